package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Laisky/texpad/internal/project"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakeScheduler records timers and fires them on demand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Active returns the number of armed timers.
func (s *fakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// LastDelay returns the delay of the most recent timer.
func (s *fakeScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return 0
	}
	return s.timers[len(s.timers)-1].d
}

// FireAll runs every armed timer synchronously and returns how many fired.
func (s *fakeScheduler) FireAll() int {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// fakeStore is an in-memory project.Store with failure injection and gates.
type fakeStore struct {
	mu      sync.Mutex
	project project.Project
	files   []project.File
	seq     int
	calls   map[string]int
	updates []string

	createErr error
	renameErr error
	deleteErr error
	updateErr error

	// a non-nil gate blocks the operation until it is closed; started
	// receives one value per blocked call.
	renameGate    chan struct{}
	renameStarted chan struct{}
	updateGate    chan struct{}
	updateStarted chan struct{}
	// getGate holds back the snapshot taken by the next GetProjectWithFiles
	// call only; later calls read the current state.
	getGate    chan struct{}
	getStarted chan struct{}

	// afterCreate runs after a successful CreateFile write, outside the lock.
	afterCreate func()
}

// holdNextFetch gates the next GetProjectWithFiles call on its snapshot.
// started fires once the snapshot was taken.
func (s *fakeStore) holdNextFetch() (started <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.getGate = gate
	s.getStarted = make(chan struct{}, 1)
	return s.getStarted, func() { close(gate) }
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{
		project: project.Project{ID: "p1", Name: "paper", CreatedAt: fixedNow},
		calls:   make(map[string]int),
	}
	for _, name := range names {
		s.files = append(s.files, s.newFileLocked(name, project.FileTypeForName(name), "content of "+name))
	}
	return s
}

func (s *fakeStore) newFileLocked(name string, ft project.FileType, content string) project.File {
	s.seq++
	return project.File{
		ID:          fmt.Sprintf("f%d", s.seq),
		ProjectID:   s.project.ID,
		Name:        name,
		FileType:    ft,
		Content:     content,
		Path:        project.FilePath(name),
		StoragePath: project.StoragePath(s.project.ID, name),
		CreatedAt:   fixedNow,
		Size:        project.ContentSize(content),
	}
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore) savedContents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.updates...)
}

func (s *fakeStore) fileByName(name string) (project.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := project.FindByName(s.files, name); idx >= 0 {
		return s.files[idx], true
	}
	return project.File{}, false
}

func (s *fakeStore) setContent(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := project.Find(s.files, id); idx >= 0 {
		s.files[idx] = s.files[idx].WithContent(content, fixedNow)
	}
}

func (s *fakeStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := project.Find(s.files, id); idx >= 0 {
		s.files = append(s.files[:idx], s.files[idx+1:]...)
	}
}

func (s *fakeStore) CreateProject(_ context.Context, name, description string) (*project.ProjectWithFiles, error) {
	return nil, project.NewError(project.ErrCodeValidation, "not supported")
}

func (s *fakeStore) ListProjects(context.Context) ([]project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []project.Project{s.project}, nil
}

func (s *fakeStore) GetProjectWithFiles(_ context.Context, projectID string) (*project.ProjectWithFiles, error) {
	s.mu.Lock()
	s.calls["get_project"]++
	if projectID != s.project.ID {
		s.mu.Unlock()
		return nil, project.NewError(project.ErrCodeNotFound, "project not found")
	}
	snapshot := &project.ProjectWithFiles{Project: s.project, Files: append([]project.File(nil), s.files...)}
	gate, started := s.getGate, s.getStarted
	s.getGate, s.getStarted = nil, nil
	s.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}
	return snapshot, nil
}

func (s *fakeStore) GetFile(_ context.Context, fileID string) (*project.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := project.Find(s.files, fileID); idx >= 0 {
		f := s.files[idx]
		return &f, nil
	}
	return nil, project.NewError(project.ErrCodeNotFound, "file not found")
}

func (s *fakeStore) CreateFile(_ context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	s.mu.Lock()
	s.calls["create"]++
	if s.createErr != nil {
		s.mu.Unlock()
		return nil, s.createErr
	}
	if project.FindByName(s.files, spec.Name) >= 0 {
		s.mu.Unlock()
		return nil, project.NewError(project.ErrCodeAlreadyExists, "file name already exists")
	}
	f := s.newFileLocked(spec.Name, spec.FileType, spec.Content)
	s.files = append(s.files, f)
	after := s.afterCreate
	s.mu.Unlock()

	if after != nil {
		after()
	}
	return &f, nil
}

func (s *fakeStore) RenameFile(_ context.Context, fileID, newName string) error {
	s.mu.Lock()
	s.calls["rename"]++
	gate, started := s.renameGate, s.renameStarted
	s.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renameErr != nil {
		return s.renameErr
	}
	idx := project.Find(s.files, fileID)
	if idx < 0 {
		return project.NewError(project.ErrCodeNotFound, "file not found")
	}
	s.files[idx] = s.files[idx].Renamed(newName, fixedNow)
	return nil
}

func (s *fakeStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["delete"]++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	idx := project.Find(s.files, fileID)
	if idx < 0 {
		return project.NewError(project.ErrCodeNotFound, "file not found")
	}
	s.files = append(s.files[:idx], s.files[idx+1:]...)
	return nil
}

func (s *fakeStore) UpdateFileContent(_ context.Context, fileID, content string) error {
	s.mu.Lock()
	s.calls["update"]++
	gate, started := s.updateGate, s.updateStarted
	s.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	idx := project.Find(s.files, fileID)
	if idx < 0 {
		return project.NewError(project.ErrCodeNotFound, "file not found")
	}
	s.updates = append(s.updates, content)
	s.files[idx] = s.files[idx].WithContent(content, fixedNow)
	return nil
}
