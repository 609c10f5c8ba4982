package workspace

import "github.com/Laisky/texpad/internal/project"

// PreviewPolicy picks the file rendered by the preview pane.
type PreviewPolicy interface {
	Target(files []project.File, activeID string) (project.File, bool)
}

// PinnedPreview previews the file called Name regardless of the active tab.
type PinnedPreview struct {
	Name string
}

// Target returns the file named p.Name.
func (p PinnedPreview) Target(files []project.File, _ string) (project.File, bool) {
	name := p.Name
	if name == "" {
		name = project.MainFileName
	}
	if idx := project.FindByName(files, name); idx >= 0 {
		return files[idx], true
	}
	return project.File{}, false
}

// FollowActivePreview previews whichever file is active.
type FollowActivePreview struct{}

// Target returns the active file.
func (FollowActivePreview) Target(files []project.File, activeID string) (project.File, bool) {
	if idx := project.Find(files, activeID); idx >= 0 {
		return files[idx], true
	}
	return project.File{}, false
}

// PreviewPolicyFromSettings builds the configured policy.
func PreviewPolicyFromSettings(s Settings) PreviewPolicy {
	if s.PreviewPolicy == PreviewPolicyActive {
		return FollowActivePreview{}
	}
	return PinnedPreview{Name: s.PreviewFile}
}
