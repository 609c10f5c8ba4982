package workspace

import "github.com/Laisky/texpad/internal/project"

// ExplorerItem is one row of the file explorer.
type ExplorerItem struct {
	ID       string
	Name     string
	FileType project.FileType
	Open     bool
	Active   bool
	Dirty    bool
}

// ExplorerItems projects the authoritative file list into explorer rows.
func (w *Workspace) ExplorerItems() []ExplorerItem {
	w.mu.Lock()
	defer w.mu.Unlock()

	items := make([]ExplorerItem, 0, len(w.files))
	for _, f := range w.files {
		item := ExplorerItem{
			ID:       f.ID,
			Name:     f.Name,
			FileType: f.FileType,
			Open:     w.tabs.Contains(f.ID),
			Active:   w.tabs.ActiveFileID == f.ID,
		}
		if sess, ok := w.sessions.Session(f.ID); ok {
			item.Dirty = sess.Dirty()
		}
		items = append(items, item)
	}
	return items
}

// SelectFromExplorer routes an explorer click into tab selection.
func (w *Workspace) SelectFromExplorer(id string) error {
	return w.SelectFile(id)
}
