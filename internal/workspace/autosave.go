package workspace

import (
	"context"
	"sync"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

const (
	// DefaultDebounce is the quiet period after the last edit before an automatic save.
	DefaultDebounce = 900 * time.Millisecond
	// DefaultSaveTimeout bounds a single persistence call.
	DefaultSaveTimeout = 10 * time.Second
)

// SaveFunc persists content for one file.
type SaveFunc func(ctx context.Context, content string) error

// SaveState is the observable save status of one file.
type SaveState struct {
	IsSaving          bool
	LastSavedAt       *time.Time
	HasUnsavedChanges bool
	SaveError         string
}

// AutoSaveOption customizes an AutoSave.
type AutoSaveOption func(*AutoSave)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) AutoSaveOption {
	return func(a *AutoSave) {
		if d > 0 {
			a.debounce = d
		}
	}
}

// WithSaveTimeout overrides the per-call timeout.
func WithSaveTimeout(d time.Duration) AutoSaveOption {
	return func(a *AutoSave) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithScheduler injects the timer source.
func WithScheduler(s Scheduler) AutoSaveOption {
	return func(a *AutoSave) {
		if s != nil {
			a.scheduler = s
		}
	}
}

// WithClock injects the time source used for LastSavedAt.
func WithClock(c Clock) AutoSaveOption {
	return func(a *AutoSave) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l logSDK.Logger) AutoSaveOption {
	return func(a *AutoSave) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStateListener registers a callback invoked after every state change.
// It runs outside the controller lock.
func WithStateListener(fn func(SaveState)) AutoSaveOption {
	return func(a *AutoSave) {
		a.onState = fn
	}
}

// WithSavedListener registers a callback invoked with the content of every
// successful, non-stale save. It runs outside the controller lock.
func WithSavedListener(fn func(content string, at time.Time)) AutoSaveOption {
	return func(a *AutoSave) {
		a.onSaved = fn
	}
}

// WithClosedSaveListener registers a callback invoked when a save issued
// before Disable still succeeds. The content is persisted but the controller
// no longer tracks it.
func WithClosedSaveListener(fn func(content string, at time.Time)) AutoSaveOption {
	return func(a *AutoSave) {
		a.onClosed = fn
	}
}

// AutoSave debounces content changes of one file into serialized persistence calls.
type AutoSave struct {
	save      SaveFunc
	debounce  time.Duration
	timeout   time.Duration
	scheduler Scheduler
	clock     Clock
	logger    logSDK.Logger
	onState   func(SaveState)
	onSaved   func(string, time.Time)
	onClosed  func(string, time.Time)

	mu          sync.Mutex
	current     string
	lastSaved   string
	lastSavedAt *time.Time
	saveErr     string
	// failed holds the content of the latest failed attempt, so a queued
	// request never replays it without a new edit.
	failed    *string
	inFlight  bool
	inFlightC string
	queued    bool
	idle      chan struct{}
	timer     Timer
	timerSeq  uint64
	gen       uint64
	disabled  bool
}

// NewAutoSave constructs a controller whose last saved content is initial.
func NewAutoSave(initial string, save SaveFunc, opts ...AutoSaveOption) *AutoSave {
	a := &AutoSave{
		save:      save,
		debounce:  DefaultDebounce,
		timeout:   DefaultSaveTimeout,
		scheduler: RealScheduler{},
		clock:     defaultClock,
		current:   initial,
		lastSaved: initial,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.Logger.Named("autosave")
	}

	return a
}

// Update records new content and restarts the debounce window.
// Content equal to the last successful save cancels any pending timer instead.
func (a *AutoSave) Update(content string) {
	a.mu.Lock()
	a.current = content
	a.stopTimerLocked()
	if !a.disabled && content != a.lastSaved {
		a.timerSeq++
		seq := a.timerSeq
		a.timer = a.scheduler.AfterFunc(a.debounce, func() { a.fire(seq) })
	}
	st := a.stateLocked()
	a.mu.Unlock()

	a.emit(st)
}

// SaveNow cancels a pending debounce and saves the current content immediately.
// While a save is in flight the request is queued, or dropped when the
// in-flight content already matches.
func (a *AutoSave) SaveNow() {
	a.trigger("save_now")
}

func (a *AutoSave) fire(seq uint64) {
	a.mu.Lock()
	if seq != a.timerSeq || a.timer == nil {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	a.trigger("debounce")
}

func (a *AutoSave) trigger(reason string) {
	a.mu.Lock()
	a.stopTimerLocked()
	if a.disabled {
		a.mu.Unlock()
		return
	}

	switch {
	case a.inFlight:
		if a.current == a.inFlightC {
			a.queued = false
		} else {
			a.queued = true
		}
	case a.current == a.lastSaved:
	default:
		a.startLocked(reason)
	}
	st := a.stateLocked()
	a.mu.Unlock()

	a.emit(st)
}

// startLocked launches a save of the current content.
func (a *AutoSave) startLocked(reason string) {
	content := a.current
	gen := a.gen
	a.inFlight = true
	a.inFlightC = content
	a.queued = false
	if a.idle == nil {
		a.idle = make(chan struct{})
	}

	go a.run(gen, content, reason)
}

func (a *AutoSave) run(gen uint64, content, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	start := time.Now()
	err := a.save(ctx, content)
	cancel()
	metrics.RecordAutosave(reason, err, time.Since(start))

	a.mu.Lock()
	stale := gen != a.gen
	closedSave := stale && a.disabled && err == nil
	var savedAt time.Time
	switch {
	case stale:
		if closedSave {
			savedAt = a.clock()
		}
		metrics.RecordAutosaveStale()
		a.logger.Debug("discard stale save completion", zap.Uint64("generation", gen))
	case err != nil:
		a.saveErr = err.Error()
		failed := content
		a.failed = &failed
		a.logger.Warn("autosave failed", zap.String("trigger", reason), zap.Error(err))
	default:
		savedAt = a.clock()
		a.lastSaved = content
		a.lastSavedAt = &savedAt
		a.saveErr = ""
		a.failed = nil
	}

	a.inFlight = false
	a.inFlightC = ""
	if a.queued {
		a.queued = false
		if !a.disabled && a.current != a.lastSaved && (a.failed == nil || *a.failed != a.current) {
			a.startLocked("queued")
		}
	}
	if !a.inFlight && a.idle != nil {
		close(a.idle)
		a.idle = nil
	}
	st := a.stateLocked()
	a.mu.Unlock()

	if !stale && err == nil && a.onSaved != nil {
		a.onSaved(content, savedAt)
	}
	if closedSave && a.onClosed != nil {
		a.onClosed(content, savedAt)
	}
	if !stale {
		a.emit(st)
	}
}

// Disable cancels any pending debounce without saving. Completions of saves
// already in flight are discarded.
func (a *AutoSave) Disable() {
	a.mu.Lock()
	a.stopTimerLocked()
	a.disabled = true
	a.queued = false
	a.gen++
	a.mu.Unlock()
}

// Reset rebases the controller on authoritative content, dropping pending
// work and the recorded error.
func (a *AutoSave) Reset(content string) {
	a.emit(a.rebase(content))
}

// rebase is Reset without the state notification.
func (a *AutoSave) rebase(content string) SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopTimerLocked()
	a.gen++
	a.current = content
	a.lastSaved = content
	a.saveErr = ""
	a.failed = nil
	a.queued = false
	a.disabled = false
	return a.stateLocked()
}

// ClearError drops the recorded save error.
func (a *AutoSave) ClearError() {
	a.mu.Lock()
	a.saveErr = ""
	st := a.stateLocked()
	a.mu.Unlock()

	a.emit(st)
}

// State returns a snapshot of the save status.
func (a *AutoSave) State() SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Pending reports whether a debounce timer is armed.
func (a *AutoSave) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Wait blocks until no save is in flight or queued.
func (a *AutoSave) Wait(ctx context.Context) error {
	for {
		a.mu.Lock()
		ch := a.idle
		a.mu.Unlock()
		if ch == nil {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *AutoSave) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoSave) stateLocked() SaveState {
	st := SaveState{
		IsSaving:          a.inFlight,
		HasUnsavedChanges: a.current != a.lastSaved,
		SaveError:         a.saveErr,
	}
	if a.lastSavedAt != nil {
		at := *a.lastSavedAt
		st.LastSavedAt = &at
	}
	return st
}

func (a *AutoSave) emit(st SaveState) {
	if a.onState != nil {
		a.onState(st)
	}
}
