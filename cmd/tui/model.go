// Package tui is the terminal three-pane workspace: explorer, editor and preview.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/workspace"
)

// Workspace is the part of *workspace.Workspace the TUI drives.
type Workspace interface {
	Project() project.Project
	Phase() workspace.Phase
	ExplorerItems() []workspace.ExplorerItem
	SelectFromExplorer(id string) error
	Tabs() workspace.TabSet
	File(id string) (project.File, bool)
	ActiveFile() (project.File, bool)
	SelectFile(id string) error
	CloseTab(id string)
	Content(id string) (string, bool)
	Session(id string) (workspace.Session, bool)
	Edit(id, content string) error
	SaveNow(id string) error
	SaveState(id string) (workspace.SaveState, bool)
	ClearSaveError(id string)
	Stats(id string) (project.Stats, bool)
	Preview() (project.File, bool)
	CreateTab(ctx context.Context, name string, fileType project.FileType) (*project.File, error)
	UI() workspace.TabUI
	BeginRename(id string) error
	CancelRename()
	SubmitRename(ctx context.Context, newName string) error
	DeleteTab(ctx context.Context, id string) error
	Subscribe(fn func(workspace.Event)) func()
}

var _ Workspace = (*workspace.Workspace)(nil)

type pane int

const (
	paneExplorer pane = iota
	paneEditor
)

// mode is the input mode of the model.
type mode int

const (
	modeNormal mode = iota
	modeCreate
	modeRename
	modeConfirmDelete
)

const (
	explorerWidth = 28
	eventBuffer   = 64
	defaultWidth  = 120
	defaultHeight = 40
)

// eventMsg carries a workspace change notification into the update loop.
type eventMsg workspace.Event

// opDoneMsg reports a finished lifecycle operation.
type opDoneMsg struct {
	op  string
	err error
}

type keyMap struct {
	Quit       key.Binding
	QuitPane   key.Binding
	SwitchPane key.Binding
	Select     key.Binding
	Save       key.Binding
	Bold       key.Binding
	Italic     key.Binding
	Find       key.Binding
	NewFile    key.Binding
	Rename     key.Binding
	Delete     key.Binding
	CloseTab   key.Binding
	PrevTab    key.Binding
	NextTab    key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
	Yes        key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	QuitPane:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Save:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	Bold:       key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "bold")),
	Italic:     key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "italic")),
	Find:       key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "find")),
	NewFile:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new")),
	Rename:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "rename")),
	Delete:     key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete")),
	CloseTab:   key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close tab")),
	PrevTab:    key.NewBinding(key.WithKeys("ctrl+left"), key.WithHelp("ctrl+←", "prev tab")),
	NextTab:    key.NewBinding(key.WithKeys("ctrl+right"), key.WithHelp("ctrl+→", "next tab")),
	Confirm:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Yes:        key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
}

// fileItem is one explorer row (implements list.Item)
type fileItem struct {
	workspace.ExplorerItem
}

// Title returns the row title
func (i fileItem) Title() string {
	if i.Dirty {
		return i.Name + " ●"
	}
	return i.Name
}

// Description returns the row subtitle
func (i fileItem) Description() string {
	if i.Open {
		return string(i.FileType) + " · open"
	}
	return string(i.FileType)
}

// FilterValue returns the filter value
func (i fileItem) FilterValue() string { return i.Name }

// Model is the workspace TUI following the Bubble Tea architecture
type Model struct {
	ctx         context.Context
	ws          Workspace
	events      chan workspace.Event
	unsubscribe func()

	focus pane
	mode  mode

	explorer list.Model
	editor   textarea.Model
	preview  viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// editingID is the file shown in the editor, synced is the content
	// last exchanged with its session
	editingID string
	synced    string
	deleteID  string
	busy      int

	status    string
	statusErr bool

	width    int
	height   int
	quitting bool
}

// NewModel builds the TUI over a loaded workspace.
func NewModel(ctx context.Context, ws Workspace) Model {
	events := make(chan workspace.Event, eventBuffer)
	unsubscribe := ws.Subscribe(func(ev workspace.Event) {
		select {
		case events <- ev:
		default:
			// the next delivered event refreshes everything anyway
		}
	})

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(primaryColor).
		BorderForeground(primaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(secondaryColor)

	explorer := list.New(nil, delegate, 0, 0)
	explorer.Title = "Files"
	explorer.SetShowStatusBar(false)
	explorer.SetShowHelp(false)
	explorer.SetFilteringEnabled(false)
	explorer.Styles.Title = GetHeaderStyle()

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.Placeholder = `\documentclass{article}`
	editor.Focus()

	input := textinput.New()
	input.CharLimit = 255
	input.PromptStyle = GetInputLabelStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = GetProgressStyle()

	m := Model{
		ctx:         ctx,
		ws:          ws,
		events:      events,
		unsubscribe: unsubscribe,
		focus:       paneEditor,
		explorer:    explorer,
		editor:      editor,
		preview:     viewport.New(0, 0),
		input:       input,
		spinner:     sp,
	}
	m.resize(defaultWidth, defaultHeight)
	m.refresh()
	return m
}

// Close stops the workspace subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func waitForEvent(events <-chan workspace.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
		waitForEvent(m.events),
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case eventMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case opDoneMsg:
		m.busy--
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
		} else {
			m.setStatus(msg.op + " done")
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeCreate, modeRename:
			return m.handleInput(msg)
		case modeConfirmDelete:
			return m.handleConfirmDelete(msg)
		default:
			return m.handleKey(msg)
		}
	}

	if m.focus == paneEditor {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles key events in normal mode
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	activeID := m.ws.Tabs().ActiveFileID

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.SwitchPane):
		m.setFocus((m.focus + 1) % 2)
		return m, nil

	case key.Matches(msg, keys.Save):
		if activeID == "" {
			return m, nil
		}
		m.ws.ClearSaveError(activeID)
		if err := m.ws.SaveNow(activeID); err != nil {
			m.setError(err.Error())
		}
		return m, nil

	case key.Matches(msg, keys.Find):
		m.setStatus("find is not available here, use your terminal search")
		return m, nil

	case key.Matches(msg, keys.NewFile):
		return m.beginInput(modeCreate, "new file: ", "")

	case key.Matches(msg, keys.Rename):
		f, ok := m.ws.ActiveFile()
		if !ok {
			return m, nil
		}
		if err := m.ws.BeginRename(f.ID); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		return m.beginInput(modeRename, "rename: ", f.Name)

	case key.Matches(msg, keys.Delete):
		if activeID == "" {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteID = activeID
		return m, nil

	case key.Matches(msg, keys.CloseTab):
		if activeID != "" {
			m.ws.CloseTab(activeID)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, keys.PrevTab):
		m.cycleTab(-1)
		return m, nil

	case key.Matches(msg, keys.NextTab):
		m.cycleTab(1)
		return m, nil
	}

	if m.focus == paneExplorer {
		return m.handleExplorerKey(msg)
	}
	return m.handleEditorKey(msg, activeID)
}

// handleExplorerKey handles key events in the file explorer
func (m Model) handleExplorerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.QuitPane):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Select):
		item, ok := m.explorer.SelectedItem().(fileItem)
		if !ok {
			return m, nil
		}
		if err := m.ws.SelectFromExplorer(item.ID); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		m.refresh()
		m.setFocus(paneEditor)
		return m, nil
	}

	var cmd tea.Cmd
	m.explorer, cmd = m.explorer.Update(msg)
	return m, cmd
}

// handleEditorKey forwards keys to the editor and records the new content
func (m Model) handleEditorKey(msg tea.KeyMsg, activeID string) (tea.Model, tea.Cmd) {
	if activeID == "" || m.editingID != activeID {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Bold):
		m.applyFormat(workspace.FormatBold)
		return m, nil
	case key.Matches(msg, keys.Italic):
		m.applyFormat(workspace.FormatItalic)
		return m, nil
	}

	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.syncEdit(before)
	return m, cmd
}

// handleInput handles key events while the name prompt is shown
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Cancel):
		if m.mode == modeRename {
			m.ws.CancelRename()
		}
		m.endInput()
		return m, nil

	case key.Matches(msg, keys.Confirm):
		name := strings.TrimSpace(m.input.Value())
		ws := m.ws
		op := m.mode
		m.endInput()
		m.busy++

		if op == modeRename {
			return m, m.runOp("rename", func(ctx context.Context) error {
				return ws.SubmitRename(ctx, name)
			})
		}
		return m, m.runOp("create", func(ctx context.Context) error {
			_, err := ws.CreateTab(ctx, name, project.FileTypeForName(name))
			return err
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleConfirmDelete waits for a yes/no answer
func (m Model) handleConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.deleteID
	m.mode = modeNormal
	m.deleteID = ""

	if !key.Matches(msg, keys.Yes) {
		m.setStatus("delete cancelled")
		return m, nil
	}

	ws := m.ws
	m.busy++
	return m, m.runOp("delete", func(ctx context.Context) error {
		return ws.DeleteTab(ctx, id)
	})
}

func (m Model) runOp(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) beginInput(md mode, prompt, value string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.editor.Blur()
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) endInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
	m.setFocus(m.focus)
}

func (m *Model) setFocus(p pane) {
	m.focus = p
	if p == paneEditor {
		m.editor.Focus()
	} else {
		m.editor.Blur()
	}
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *Model) setError(msg string) {
	m.status = msg
	m.statusErr = true
}

// cycleTab activates the tab step positions away from the active one.
func (m *Model) cycleTab(step int) {
	tabs := m.ws.Tabs()
	n := len(tabs.OpenFileIDs)
	if n < 2 {
		return
	}

	idx := 0
	for i, id := range tabs.OpenFileIDs {
		if id == tabs.ActiveFileID {
			idx = i
			break
		}
	}
	next := tabs.OpenFileIDs[((idx+step)%n+n)%n]
	if err := m.ws.SelectFile(next); err != nil {
		m.setError(err.Error())
		return
	}
	m.refresh()
}

// syncEdit pushes the editor content into the session when it changed.
func (m *Model) syncEdit(before string) {
	after := m.editor.Value()
	if after == before {
		return
	}
	m.synced = after
	if err := m.ws.Edit(m.editingID, after); err != nil {
		m.setError(err.Error())
	}
}

// applyFormat wraps an empty selection at the cursor with cmd's markup.
func (m *Model) applyFormat(cmd workspace.FormatCommand) {
	before := m.editor.Value()
	info := m.editor.LineInfo()
	offset := cursorOffset(before, m.editor.Line(), info.StartColumn+info.ColumnOffset)

	content, cursor := cmd.Apply(before, offset, offset)
	row, col := rowCol(content, cursor)
	m.editor.SetValue(content)
	moveCursor(&m.editor, row, col)
	m.syncEdit(before)
}

// resize lays the panes out for a terminal of width x height.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	// tab bar, status bar, help line and pane borders
	paneHeight := max(height-5, 3)
	rest := max(width-explorerWidth-6, 20)
	editorWidth := rest / 2

	m.explorer.SetSize(explorerWidth, paneHeight)
	m.editor.SetWidth(editorWidth)
	m.editor.SetHeight(paneHeight)
	m.preview.Width = rest - editorWidth
	m.preview.Height = paneHeight
	m.input.Width = max(width-20, 10)
}

// refresh re-reads the workspace into the panes.
func (m *Model) refresh() {
	items := m.ws.ExplorerItems()
	listItems := make([]list.Item, 0, len(items))
	for _, it := range items {
		listItems = append(listItems, fileItem{it})
	}
	m.explorer.SetItems(listItems)

	activeID := m.ws.Tabs().ActiveFileID
	content, ok := m.ws.Content(activeID)
	switch {
	case !ok:
		m.editingID, m.synced = "", ""
		m.editor.SetValue("")
	case activeID != m.editingID || content != m.synced:
		m.editingID, m.synced = activeID, content
		m.editor.SetValue(content)
	}

	if f, ok := m.ws.Preview(); ok {
		m.preview.SetContent(lipgloss.JoinVertical(lipgloss.Left,
			GetSubtitleStyle().Render(f.Name),
			f.Content,
		))
	} else {
		m.preview.SetContent(GetSubtitleStyle().Render("nothing to preview"))
	}
}
