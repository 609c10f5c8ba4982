package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette for the TUI
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Violet
	secondaryColor = lipgloss.Color("#10B981") // Emerald
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red

	fgColor     = lipgloss.Color("#CDD6F4")
	mutedColor  = lipgloss.Color("#6C7086")
	borderColor = lipgloss.Color("#45475A")
	selectedBg  = lipgloss.Color("#313244")
	highlightBg = lipgloss.Color("#45475A")
)

var subtitleStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	Italic(true)

var helpStyle = lipgloss.NewStyle().
	Foreground(mutedColor)

// paneStyle is an unfocused pane border.
var paneStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(borderColor)

// focusedPaneStyle highlights the pane receiving keys.
var focusedPaneStyle = paneStyle.
	BorderForeground(primaryColor)

var errorStyle = lipgloss.NewStyle().
	Foreground(errorColor).
	Bold(true)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(fgColor).
	Background(primaryColor).
	Padding(0, 2)

var inputLabelStyle = lipgloss.NewStyle().
	Foreground(secondaryColor).
	Bold(true)

var progressStyle = lipgloss.NewStyle().
	Foreground(accentColor)

var statusBarStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	Background(highlightBg).
	Padding(0, 1)

var tabStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	Padding(0, 1)

var activeTabStyle = lipgloss.NewStyle().
	Foreground(secondaryColor).
	Background(selectedBg).
	Bold(true).
	Padding(0, 1)

// GetSubtitleStyle returns the subtitle style
func GetSubtitleStyle() lipgloss.Style {
	return subtitleStyle
}

// GetHelpStyle returns the help style
func GetHelpStyle() lipgloss.Style {
	return helpStyle
}

// GetPaneStyle returns the pane border style, highlighted when focused
func GetPaneStyle(focused bool) lipgloss.Style {
	if focused {
		return focusedPaneStyle
	}
	return paneStyle
}

// GetErrorStyle returns the error style
func GetErrorStyle() lipgloss.Style {
	return errorStyle
}

// GetHeaderStyle returns the header style
func GetHeaderStyle() lipgloss.Style {
	return headerStyle
}

// GetInputLabelStyle returns the input label style
func GetInputLabelStyle() lipgloss.Style {
	return inputLabelStyle
}

// GetProgressStyle returns the progress style
func GetProgressStyle() lipgloss.Style {
	return progressStyle
}

// GetStatusBarStyle returns the status bar style
func GetStatusBarStyle() lipgloss.Style {
	return statusBarStyle
}

// GetTabStyle returns the tab bar style of one tab
func GetTabStyle(active bool) lipgloss.Style {
	if active {
		return activeTabStyle
	}
	return tabStyle
}
