// Package workspace coordinates open files, tabs and autosave for one project.
//
// All state transitions run under the workspace mutex. The only calls made
// without it are persistence calls, whose results are applied afterwards.
package workspace

import (
	"context"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

// Phase is the pane composition state.
type Phase int

const (
	// PhaseLoading is the state before the first successful fetch.
	PhaseLoading Phase = iota
	// PhaseLoaded means the project has at least one file.
	PhaseLoaded
	// PhaseEmpty means the project has no files.
	PhaseEmpty
)

func (p Phase) String() string {
	switch p {
	case PhaseLoaded:
		return "loaded"
	case PhaseEmpty:
		return "empty"
	default:
		return "loading"
	}
}

// EventKind identifies a workspace change notification.
type EventKind string

const (
	EventFilesChanged EventKind = "files_changed"
	EventTabsChanged  EventKind = "tabs_changed"
	EventSaveState    EventKind = "save_state"
	EventPhase        EventKind = "phase"
)

// Event describes one change. FileID and State are set for EventSaveState.
type Event struct {
	Kind   EventKind
	FileID string
	State  SaveState
	Phase  Phase
}

// Workspace owns the authoritative file list, the tab set and the open sessions of one project.
type Workspace struct {
	store     project.Store
	projectID string
	settings  Settings
	preview   PreviewPolicy
	logger    logSDK.Logger
	scheduler Scheduler
	clock     Clock

	mu            sync.Mutex
	project       project.Project
	files         []project.File
	loaded        bool
	phase         Phase
	sessions      *SessionStore
	tabs          TabSet
	ui            TabUI
	savers        map[string]*AutoSave
	pendingCreate map[string]struct{}
	pendingRename map[string]string
	pendingDelete map[string]struct{}
	// mutSeq counts confirmed local changes; a fetch that overlapped one
	// carries a snapshot older than the local state.
	mutSeq uint64
	closed bool

	listenerMu   sync.RWMutex
	listeners    map[int]func(Event)
	nextListener int
}

// New constructs a workspace for projectID. Nil logger, scheduler and clock fall back to defaults.
func New(store project.Store, projectID string, settings Settings, logger logSDK.Logger, scheduler Scheduler, clock Clock) (*Workspace, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if projectID == "" {
		return nil, project.NewError(project.ErrCodeValidation, "project id is required")
	}
	if logger == nil {
		logger = log.Logger.Named("workspace")
	}
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	if clock == nil {
		clock = defaultClock
	}
	settings = settings.normalized()

	return &Workspace{
		store:         store,
		projectID:     projectID,
		settings:      settings,
		preview:       PreviewPolicyFromSettings(settings),
		logger:        logger.With(zap.String("project", projectID)),
		scheduler:     scheduler,
		clock:         clock,
		phase:         PhaseLoading,
		sessions:      NewSessionStore(),
		savers:        make(map[string]*AutoSave),
		pendingCreate: make(map[string]struct{}),
		pendingRename: make(map[string]string),
		pendingDelete: make(map[string]struct{}),
		listeners:     make(map[int]func(Event)),
	}, nil
}

// SetPreviewPolicy replaces the preview policy.
func (w *Workspace) SetPreviewPolicy(p PreviewPolicy) {
	if p == nil {
		return
	}
	w.mu.Lock()
	w.preview = p
	w.mu.Unlock()
}

// Subscribe registers fn for change events and returns its cancel function.
// Events are delivered outside the workspace lock.
func (w *Workspace) Subscribe(fn func(Event)) func() {
	w.listenerMu.Lock()
	id := w.nextListener
	w.nextListener++
	w.listeners[id] = fn
	w.listenerMu.Unlock()

	return func() {
		w.listenerMu.Lock()
		delete(w.listeners, id)
		w.listenerMu.Unlock()
	}
}

func (w *Workspace) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	w.listenerMu.RLock()
	fns := make([]func(Event), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.listenerMu.RUnlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Load fetches the project and activates its first file.
func (w *Workspace) Load(ctx context.Context) error {
	return w.fetch(ctx, true)
}

// Reload refetches the file list after an external change. Vanished files
// lose their tabs and sessions, clean sessions pick up new persisted content
// and dirty sessions keep their working copy.
func (w *Workspace) Reload(ctx context.Context) error {
	return w.fetch(ctx, false)
}

// maxFetchAttempts bounds how often fetch retries a snapshot that raced
// with local changes.
const maxFetchAttempts = 3

func (w *Workspace) fetch(ctx context.Context, initial bool) error {
	for attempt := 1; ; attempt++ {
		w.mu.Lock()
		seq := w.mutSeq
		w.mu.Unlock()

		pwf, err := w.store.GetProjectWithFiles(ctx, w.projectID)
		if err != nil {
			return project.PersistenceError("load project", err)
		}

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return errors.New("workspace closed")
		}
		if w.mutSeq == seq {
			w.applySnapshotLocked(pwf, initial)
			return nil
		}
		w.mu.Unlock()

		if attempt >= maxFetchAttempts {
			w.logger.Warn("discard project snapshot older than local changes", zap.Int("attempts", attempt))
			return nil
		}
		w.logger.Debug("refetch project after concurrent local change", zap.Int("attempt", attempt))
	}
}

// applySnapshotLocked replaces local state with pwf and releases w.mu.
func (w *Workspace) applySnapshotLocked(pwf *project.ProjectWithFiles, initial bool) {
	var events []Event
	first := !w.loaded
	w.loaded = true
	w.project = pwf.Project
	w.files = cloneFiles(pwf.Files)

	for _, f := range w.files {
		sess, ok := w.sessions.Session(f.ID)
		if !ok || sess.Dirty() || sess.LastPersistedContent == f.Content {
			continue
		}
		w.sessions.Open(f.ID, f.Content, true)
		if saver := w.savers[f.ID]; saver != nil {
			events = append(events, Event{Kind: EventSaveState, FileID: f.ID, State: saver.rebase(f.Content)})
		}
	}

	ids := project.IDs(w.files)
	w.tabs = w.tabs.Prune(ids)
	if (initial || first) && w.tabs.ActiveFileID == "" && len(ids) > 0 {
		w.tabs = w.tabs.Select(ids[0])
	}
	w.syncSessionsLocked()
	events = append(events, Event{Kind: EventFilesChanged}, Event{Kind: EventTabsChanged})
	events = append(events, w.updatePhaseLocked(first)...)
	nFiles := len(w.files)
	w.mu.Unlock()

	w.logger.Debug("project fetched", zap.Int("files", nFiles), zap.Bool("initial", initial))
	w.emit(events...)
}

// updatePhaseLocked derives the phase from the file count.
func (w *Workspace) updatePhaseLocked(force bool) []Event {
	next := PhaseEmpty
	if len(w.files) > 0 {
		next = PhaseLoaded
	}
	if next == w.phase && !force {
		return nil
	}
	w.phase = next
	return []Event{{Kind: EventPhase, Phase: next}}
}

// syncSessionsLocked opens a session for every tab lacking one and closes
// sessions whose tab is gone.
func (w *Workspace) syncSessionsLocked() {
	for _, id := range w.tabs.OpenFileIDs {
		if _, ok := w.sessions.Session(id); ok {
			continue
		}
		idx := project.Find(w.files, id)
		if idx < 0 {
			continue
		}
		content := w.files[idx].Content
		w.sessions.Open(id, content, false)
		w.savers[id] = w.newSaverLocked(id, content)
	}
	for _, id := range w.sessions.IDs() {
		if !w.tabs.Contains(id) {
			w.closeSessionLocked(id)
		}
	}
	metrics.SetOpenSessions(w.sessions.Len())
}

func (w *Workspace) closeSessionLocked(id string) {
	if saver := w.savers[id]; saver != nil {
		saver.Disable()
		delete(w.savers, id)
	}
	w.sessions.Close(id)
}

func (w *Workspace) newSaverLocked(id, content string) *AutoSave {
	var saver *AutoSave
	saver = NewAutoSave(content,
		func(ctx context.Context, c string) error {
			return w.store.UpdateFileContent(ctx, id, c)
		},
		WithDebounce(w.settings.Debounce),
		WithSaveTimeout(w.settings.SaveTimeout),
		WithScheduler(w.scheduler),
		WithClock(w.clock),
		WithLogger(w.logger.With(zap.String("file", id))),
		WithStateListener(func(st SaveState) {
			w.emit(Event{Kind: EventSaveState, FileID: id, State: st})
		}),
		WithSavedListener(func(c string, at time.Time) {
			w.applySaved(id, saver, c, at)
		}),
		WithClosedSaveListener(func(c string, at time.Time) {
			w.applyClosedSave(id, c, at)
		}),
	)
	return saver
}

// applySaved records a confirmed save, unless the session was closed or reopened since.
func (w *Workspace) applySaved(id string, saver *AutoSave, content string, at time.Time) {
	w.mu.Lock()
	if w.savers[id] != saver {
		w.mu.Unlock()
		return
	}
	w.sessions.MarkPersisted(id, content)
	if idx := project.Find(w.files, id); idx >= 0 {
		w.files[idx] = w.files[idx].WithContent(content, at)
	}
	w.mutSeq++
	w.mu.Unlock()

	w.emit(Event{Kind: EventFilesChanged})
}

// applyClosedSave records a save that finished after its tab was closed.
// A reopened session that has neither saved nor been edited since follows
// the new content; otherwise the reopened session wins.
func (w *Workspace) applyClosedSave(id, content string, at time.Time) {
	w.mu.Lock()
	idx := project.Find(w.files, id)
	if idx < 0 {
		w.mu.Unlock()
		return
	}

	var events []Event
	if saver := w.savers[id]; saver != nil {
		st := saver.State()
		sess, _ := w.sessions.Session(id)
		if st.LastSavedAt != nil || st.IsSaving || sess.Dirty() {
			w.mu.Unlock()
			return
		}
		w.sessions.Open(id, content, true)
		events = append(events, Event{Kind: EventSaveState, FileID: id, State: saver.rebase(content)})
	}
	w.files[idx] = w.files[idx].WithContent(content, at)
	w.mutSeq++
	w.mu.Unlock()

	w.logger.Debug("apply save completed after close", zap.String("file", id))
	w.emit(append(events, Event{Kind: EventFilesChanged})...)
}

// SelectFile activates id, opening it first when needed.
func (w *Workspace) SelectFile(id string) error {
	w.mu.Lock()
	if project.Find(w.files, id) < 0 {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", id)
	}
	w.tabs = w.tabs.Select(id)
	w.ui = w.ui.CloseMenu()
	w.syncSessionsLocked()
	w.mu.Unlock()

	w.emit(Event{Kind: EventTabsChanged})
	return nil
}

// CloseTab closes the tab of id and discards its working copy.
func (w *Workspace) CloseTab(id string) {
	w.mu.Lock()
	if !w.tabs.Contains(id) {
		w.mu.Unlock()
		return
	}
	w.closeSessionLocked(id)
	w.tabs = w.tabs.Close(id, project.IDs(w.files))
	w.ui = w.ui.Forget(id)
	w.syncSessionsLocked()
	w.mu.Unlock()

	w.emit(Event{Kind: EventTabsChanged})
}

// Edit records new working content of an open file and notifies its autosave.
func (w *Workspace) Edit(id, content string) error {
	w.mu.Lock()
	if !w.sessions.SetContent(id, content) {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeNotFound, "file %q is not open", id)
	}
	saver := w.savers[id]
	w.mu.Unlock()

	if saver != nil {
		saver.Update(content)
	}
	return nil
}

// SaveNow saves the working content of id immediately.
func (w *Workspace) SaveNow(id string) error {
	saver, err := w.saver(id)
	if err != nil {
		return err
	}
	saver.SaveNow()
	return nil
}

// SaveState returns the save status of an open file.
func (w *Workspace) SaveState(id string) (SaveState, bool) {
	saver, err := w.saver(id)
	if err != nil {
		return SaveState{}, false
	}
	return saver.State(), true
}

// ClearSaveError drops the recorded save error of id.
func (w *Workspace) ClearSaveError(id string) {
	if saver, err := w.saver(id); err == nil {
		saver.ClearError()
	}
}

func (w *Workspace) saver(id string) (*AutoSave, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	saver := w.savers[id]
	if saver == nil {
		return nil, project.Errorf(project.ErrCodeNotFound, "file %q is not open", id)
	}
	return saver, nil
}

// Wait blocks until every open file has no save in flight.
func (w *Workspace) Wait(ctx context.Context) error {
	w.mu.Lock()
	savers := make([]*AutoSave, 0, len(w.savers))
	for _, s := range w.savers {
		savers = append(savers, s)
	}
	w.mu.Unlock()

	for _, s := range savers {
		if err := s.Wait(ctx); err != nil {
			return errors.Wrap(err, "wait for saves")
		}
	}
	return nil
}

// Close flushes dirty sessions and waits for their saves.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	savers := make([]*AutoSave, 0, len(w.savers))
	for _, s := range w.savers {
		savers = append(savers, s)
	}
	w.mu.Unlock()

	for _, s := range savers {
		s.SaveNow()
	}
	for _, s := range savers {
		if err := s.Wait(ctx); err != nil {
			return errors.Wrap(err, "flush saves")
		}
	}

	var unsaved int
	for _, s := range savers {
		if st := s.State(); st.HasUnsavedChanges {
			unsaved++
		}
	}
	if unsaved > 0 {
		w.logger.Warn("workspace closed with unsaved files", zap.Int("count", unsaved))
		return project.Errorf(project.ErrCodePersistence, "%d file(s) could not be saved", unsaved)
	}
	return nil
}

// ProjectID returns the project this workspace edits.
func (w *Workspace) ProjectID() string {
	return w.projectID
}

// Project returns the loaded project header.
func (w *Workspace) Project() project.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project
}

// Files returns a copy of the authoritative file list.
func (w *Workspace) Files() []project.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneFiles(w.files)
}

// File returns one file of the authoritative list.
func (w *Workspace) File(id string) (project.File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx := project.Find(w.files, id); idx >= 0 {
		return w.files[idx], true
	}
	return project.File{}, false
}

// Tabs returns a copy of the tab set.
func (w *Workspace) Tabs() TabSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tabs.Clone()
}

// ActiveFile returns the active file, false when no tab is open.
func (w *Workspace) ActiveFile() (project.File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx := project.Find(w.files, w.tabs.ActiveFileID); idx >= 0 {
		return w.files[idx], true
	}
	return project.File{}, false
}

// Content returns the working content of an open file.
func (w *Workspace) Content(id string) (string, bool) {
	return w.sessions.Content(id)
}

// Session returns a snapshot of an open file's session.
func (w *Workspace) Session(id string) (Session, bool) {
	return w.sessions.Session(id)
}

// Phase returns the current pane composition state.
func (w *Workspace) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Preview returns the file the preview pane shows, with its persisted content.
func (w *Workspace) Preview() (project.File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.preview.Target(w.files, w.tabs.ActiveFileID)
}

// UI returns the tab UI markers.
func (w *Workspace) UI() TabUI {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ui
}

// ToggleMenu opens or closes the options menu of a tab.
func (w *Workspace) ToggleMenu(id string) {
	w.mu.Lock()
	w.ui = w.ui.ToggleMenu(id)
	w.mu.Unlock()
	w.emit(Event{Kind: EventTabsChanged})
}

// BeginRename starts an inline rename of an open tab.
func (w *Workspace) BeginRename(id string) error {
	w.mu.Lock()
	if !w.tabs.Contains(id) {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeNotFound, "file %q is not open", id)
	}
	w.ui = w.ui.BeginRename(id)
	w.mu.Unlock()

	w.emit(Event{Kind: EventTabsChanged})
	return nil
}

// CancelRename abandons the inline rename.
func (w *Workspace) CancelRename() {
	w.mu.Lock()
	w.ui = w.ui.CancelRename()
	w.mu.Unlock()
	w.emit(Event{Kind: EventTabsChanged})
}

// SubmitRename commits the inline rename in progress. The marker is consumed
// before the persistence call, so a repeated submission is rejected.
func (w *Workspace) SubmitRename(ctx context.Context, newName string) error {
	w.mu.Lock()
	ui, id, ok := w.ui.ConsumeRename()
	w.ui = ui
	w.mu.Unlock()
	if !ok {
		return project.NewError(project.ErrCodeBusy, "no rename in progress")
	}

	return w.RenameTab(ctx, id, newName)
}

func cloneFiles(files []project.File) []project.File {
	out := make([]project.File, len(files))
	copy(out, files)
	return out
}
