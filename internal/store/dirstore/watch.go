package dirstore

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is the quiet period before a batch of file events is reported.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch calls onChange after files of projectID change on disk, once per
// burst of events. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, projectID string, debounce time.Duration, onChange func()) error {
	if _, err := s.loadMeta(projectID); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}
	defer func() { _ = watcher.Close() }()

	dir := s.projectDir(projectID)
	for _, p := range []string{dir, filepath.Join(dir, filesDirName)} {
		if err := watcher.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
	}

	logger := s.logger.With(zap.String("project", projectID))
	logger.Debug("watching project directory", zap.String("dir", dir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoreEvent(ev) {
				continue
			}
			pending = true
			timer.Reset(debounce)
		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func ignoreEvent(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	if base == lockFileName || strings.Contains(base, tmpMarker) {
		return true
	}
	return ev.Op == fsnotify.Chmod
}
