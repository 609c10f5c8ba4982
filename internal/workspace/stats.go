package workspace

import "github.com/Laisky/texpad/internal/project"

// Stats returns the status bar counters of the working content of an open file.
func (w *Workspace) Stats(id string) (project.Stats, bool) {
	content, ok := w.Content(id)
	if !ok {
		return project.Stats{}, false
	}
	return project.ComputeStats(content), true
}
