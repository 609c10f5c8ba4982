package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/texpad/internal/workspace"
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return GetSubtitleStyle().Render("closing workspace...\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabBar(),
		lipgloss.JoinHorizontal(lipgloss.Top,
			GetPaneStyle(m.focus == paneExplorer).Render(m.explorer.View()),
			GetPaneStyle(m.focus == paneEditor).Render(m.renderEditor()),
			GetPaneStyle(false).Render(m.preview.View()),
		),
		m.renderStatusBar(),
		m.renderFooter(),
	)
}

func (m Model) renderTabBar() string {
	tabs := m.ws.Tabs()
	ui := m.ws.UI()

	parts := []string{GetHeaderStyle().Render(m.ws.Project().Name)}
	for _, id := range tabs.OpenFileIDs {
		f, ok := m.ws.File(id)
		if !ok {
			continue
		}

		label := f.Name
		if sess, ok := m.ws.Session(id); ok && sess.Dirty() {
			label += " ●"
		}
		if ui.RenamingID == id {
			label += " ✎"
		}
		parts = append(parts, GetTabStyle(id == tabs.ActiveFileID).Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderEditor() string {
	switch m.ws.Phase() {
	case workspace.PhaseLoading:
		return m.spinner.View() + " loading project"
	case workspace.PhaseEmpty:
		return GetSubtitleStyle().Render("no files yet, press ctrl+n to create one")
	}
	if m.editingID == "" {
		return GetSubtitleStyle().Render("no open tab, select a file in the explorer")
	}
	return m.editor.View()
}

func (m Model) renderStatusBar() string {
	id := m.ws.Tabs().ActiveFileID
	var parts []string

	if f, ok := m.ws.File(id); ok {
		parts = append(parts, f.Name)
	}
	if st, ok := m.ws.SaveState(id); ok {
		label := saveLabel(st)
		if st.IsSaving {
			label = m.spinner.View() + " " + label
		}
		parts = append(parts, label)
	}
	if stats, ok := m.ws.Stats(id); ok {
		parts = append(parts, fmt.Sprintf("%d lines · %d words · %d chars", stats.Lines, stats.Words, stats.Chars))
	}
	if m.busy > 0 {
		parts = append(parts, m.spinner.View()+" working")
	}

	bar := GetStatusBarStyle().Width(max(m.width, 1)).Render(strings.Join(parts, "  │  "))
	if m.status == "" {
		return bar
	}
	if m.statusErr {
		return lipgloss.JoinVertical(lipgloss.Left, bar, GetErrorStyle().Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, bar, GetSubtitleStyle().Render(m.status))
}

func (m Model) renderFooter() string {
	switch m.mode {
	case modeCreate, modeRename:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.input.View(),
			GetHelpStyle().Render("enter: confirm • esc: cancel"),
		)
	case modeConfirmDelete:
		name := m.deleteID
		if f, ok := m.ws.File(m.deleteID); ok {
			name = f.Name
		}
		return GetErrorStyle().Render(fmt.Sprintf("delete %s? (y/N)", name))
	}

	return GetHelpStyle().Render(
		"tab: switch pane • ctrl+s: save • ctrl+b/ctrl+t: bold/italic • " +
			"ctrl+n: new • ctrl+r: rename • ctrl+d: delete • ctrl+w: close tab • ctrl+c: quit")
}

// saveLabel describes a save state for the status bar.
func saveLabel(st workspace.SaveState) string {
	switch {
	case st.SaveError != "":
		return "save failed: " + st.SaveError
	case st.IsSaving:
		return "saving"
	case st.HasUnsavedChanges:
		return "unsaved changes"
	case st.LastSavedAt != nil:
		return "saved " + st.LastSavedAt.Local().Format("15:04:05")
	default:
		return "no changes"
	}
}
