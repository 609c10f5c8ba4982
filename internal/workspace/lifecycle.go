package workspace

import (
	"context"
	"slices"

	"github.com/Laisky/zap"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/metrics"
)

// Lifecycle operations are two-phase: a pending marker is recorded under the
// lock, the store is called without it, and local state changes only after
// the store confirmed.

// CreateFile creates a file with the default content of its type and appends
// it to the file list.
func (w *Workspace) CreateFile(ctx context.Context, name string, fileType project.FileType) (*project.File, error) {
	return w.createFile(ctx, name, fileType, false)
}

// CreateTab creates a file, then opens and activates its tab.
func (w *Workspace) CreateTab(ctx context.Context, name string, fileType project.FileType) (*project.File, error) {
	return w.createFile(ctx, name, fileType, true)
}

func (w *Workspace) createFile(ctx context.Context, name string, fileType project.FileType, open bool) (f *project.File, err error) {
	defer func() { metrics.RecordLifecycle("create", err) }()

	name, err = project.NormalizeFileName(name)
	if err != nil {
		return nil, err
	}
	if fileType, err = project.ParseFileType(string(fileType)); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if _, busy := w.pendingCreate[name]; busy {
		w.mu.Unlock()
		return nil, project.Errorf(project.ErrCodeBusy, "file %q is already being created", name)
	}
	w.pendingCreate[name] = struct{}{}
	w.mu.Unlock()

	created, err := w.store.CreateFile(ctx, w.projectID, project.FileSpec{
		Name:     name,
		FileType: fileType,
		Content:  project.DefaultContent(name, fileType),
	})

	w.mu.Lock()
	delete(w.pendingCreate, name)
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("create file", zap.String("name", name), zap.Error(err))
		return nil, project.PersistenceError("create file", err)
	}
	if created == nil {
		w.mu.Unlock()
		return nil, project.NewError(project.ErrCodePersistence, "store returned no file")
	}

	// a reload that finished after the store write already lists the file
	if idx := project.Find(w.files, created.ID); idx >= 0 {
		w.files[idx] = *created
	} else {
		w.files = append(w.files, *created)
	}
	w.mutSeq++
	events := []Event{{Kind: EventFilesChanged}}
	if open {
		w.tabs = w.tabs.Select(created.ID)
		w.ui = w.ui.CloseMenu()
		w.syncSessionsLocked()
		events = append(events, Event{Kind: EventTabsChanged})
	}
	events = append(events, w.updatePhaseLocked(false)...)
	w.mu.Unlock()

	w.logger.Info("file created", zap.String("file", created.ID), zap.String("name", created.Name))
	w.emit(events...)
	out := *created
	return &out, nil
}

// RenameFile renames a file once the store confirmed. Content, id and tab
// state are untouched.
func (w *Workspace) RenameFile(ctx context.Context, id, newName string) (err error) {
	defer func() { metrics.RecordLifecycle("rename", err) }()

	newName, err = project.NormalizeFileName(newName)
	if err != nil {
		return err
	}

	w.mu.Lock()
	idx := project.Find(w.files, id)
	if idx < 0 {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", id)
	}
	if _, busy := w.pendingRename[id]; busy {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeBusy, "file %q is already being renamed", id)
	}
	if _, busy := w.pendingDelete[id]; busy {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeBusy, "file %q is being deleted", id)
	}
	if w.files[idx].Name == newName {
		w.mu.Unlock()
		return nil
	}
	w.pendingRename[id] = newName
	w.mu.Unlock()

	err = w.store.RenameFile(ctx, id, newName)

	w.mu.Lock()
	delete(w.pendingRename, id)
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("rename file", zap.String("file", id), zap.String("name", newName), zap.Error(err))
		return project.PersistenceError("rename file", err)
	}
	if idx = project.Find(w.files, id); idx >= 0 {
		w.files[idx] = w.files[idx].Renamed(newName, w.clock())
	}
	w.mutSeq++
	w.mu.Unlock()

	w.logger.Info("file renamed", zap.String("file", id), zap.String("name", newName))
	w.emit(Event{Kind: EventFilesChanged}, Event{Kind: EventTabsChanged})
	return nil
}

// RenameTab renames the file behind a tab.
func (w *Workspace) RenameTab(ctx context.Context, id, newName string) error {
	return w.RenameFile(ctx, id, newName)
}

// DeleteFile deletes a file. The last remaining file cannot be deleted.
// On success the file leaves the file list, the session store and the tab
// set in one transition.
func (w *Workspace) DeleteFile(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordLifecycle("delete", err) }()

	w.mu.Lock()
	if project.Find(w.files, id) < 0 {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", id)
	}
	if _, busy := w.pendingDelete[id]; busy {
		w.mu.Unlock()
		return project.Errorf(project.ErrCodeBusy, "file %q is already being deleted", id)
	}
	if len(w.files)-len(w.pendingDelete) <= 1 {
		w.mu.Unlock()
		return project.NewError(project.ErrCodePolicy, "cannot delete the last file")
	}
	w.pendingDelete[id] = struct{}{}
	w.mu.Unlock()

	err = w.store.DeleteFile(ctx, id)

	w.mu.Lock()
	delete(w.pendingDelete, id)
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("delete file", zap.String("file", id), zap.Error(err))
		return project.PersistenceError("delete file", err)
	}
	if idx := project.Find(w.files, id); idx >= 0 {
		w.files = slices.Delete(w.files, idx, idx+1)
	}
	w.mutSeq++
	w.closeSessionLocked(id)
	w.tabs = w.tabs.Close(id, project.IDs(w.files))
	w.ui = w.ui.Forget(id)
	w.syncSessionsLocked()
	events := []Event{{Kind: EventFilesChanged}, {Kind: EventTabsChanged}}
	events = append(events, w.updatePhaseLocked(false)...)
	w.mu.Unlock()

	w.logger.Info("file deleted", zap.String("file", id))
	w.emit(events...)
	return nil
}

// DeleteTab deletes the file behind a tab and closes the tab.
func (w *Workspace) DeleteTab(ctx context.Context, id string) error {
	return w.DeleteFile(ctx, id)
}
