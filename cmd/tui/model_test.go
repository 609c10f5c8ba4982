package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/store/sqlstore"
	"github.com/Laisky/texpad/internal/workspace"
	"github.com/Laisky/texpad/library/db/sqlite"
)

var dbSeq atomic.Int64

func newTestWorkspace(t *testing.T) (*workspace.Workspace, *sqlstore.Store) {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:tui-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sqlite.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := sqlstore.New(ctx, db, nil, nil)
	require.NoError(t, err)
	p, err := store.CreateProject(ctx, "thesis", "")
	require.NoError(t, err)

	ws, err := workspace.New(store, p.Project.ID, workspace.DefaultSettings(), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, ws.Load(ctx))
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ws.Close(closeCtx)
	})
	return ws, store
}

func newTestModel(t *testing.T) (Model, *workspace.Workspace, *sqlstore.Store) {
	t.Helper()
	ws, store := newTestWorkspace(t)
	m := NewModel(context.Background(), ws)
	t.Cleanup(m.Close)
	return m, ws, store
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func press(t *testing.T, m Model, typ tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: typ})
}

func typeRunes(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

// runOp executes a lifecycle command synchronously and feeds its result back.
func runOp(t *testing.T, m Model, cmd tea.Cmd) (Model, opDoneMsg) {
	t.Helper()
	require.NotNil(t, cmd)
	done, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	m, _ = update(t, m, done)
	return m, done
}

func activeName(t *testing.T, ws *workspace.Workspace) string {
	t.Helper()
	f, ok := ws.ActiveFile()
	require.True(t, ok)
	return f.Name
}

// TestNewModelLoadsActiveFile verifies the editor starts on the seeded main file.
func TestNewModelLoadsActiveFile(t *testing.T) {
	m, ws, _ := newTestModel(t)

	active, ok := ws.ActiveFile()
	require.True(t, ok)
	require.Equal(t, project.MainFileName, active.Name)
	require.Equal(t, active.ID, m.editingID)

	content, ok := ws.Content(active.ID)
	require.True(t, ok)
	require.Equal(t, content, m.synced)
	require.Len(t, m.explorer.Items(), 1)
	require.Equal(t, paneEditor, m.focus)
}

// TestEditorTypingEditsSession verifies keystrokes reach the session and mark it dirty.
func TestEditorTypingEditsSession(t *testing.T) {
	m, ws, _ := newTestModel(t)
	id := ws.Tabs().ActiveFileID

	require.NoError(t, ws.Edit(id, "hello"))
	m.refresh()
	require.Equal(t, "hello", m.editor.Value())

	m = typeRunes(t, m, "!")
	content, _ := ws.Content(id)
	require.Equal(t, "hello!", content)

	sess, ok := ws.Session(id)
	require.True(t, ok)
	require.True(t, sess.Dirty())
	require.Contains(t, m.View(), "●")
}

// TestSaveKeyPersists verifies ctrl+s saves the active file immediately.
func TestSaveKeyPersists(t *testing.T) {
	m, ws, store := newTestModel(t)
	id := ws.Tabs().ActiveFileID

	require.NoError(t, ws.Edit(id, `\section{Intro}`))
	m.refresh()
	m, _ = press(t, m, tea.KeyCtrlS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ws.Wait(ctx))

	f, err := store.GetFile(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, `\section{Intro}`, f.Content)

	st, ok := ws.SaveState(id)
	require.True(t, ok)
	require.False(t, st.HasUnsavedChanges)
	require.Contains(t, m.renderStatusBar(), "saved")
}

// TestFormatKeysInsertMarkup verifies bold and italic wrap the cursor position.
func TestFormatKeysInsertMarkup(t *testing.T) {
	m, ws, _ := newTestModel(t)
	id := ws.Tabs().ActiveFileID

	require.NoError(t, ws.Edit(id, "hello "))
	m.refresh()

	m, _ = press(t, m, tea.KeyCtrlB)
	m = typeRunes(t, m, "x")
	content, _ := ws.Content(id)
	require.Equal(t, `hello \textbf{x}`, content)

	m.editor.CursorEnd()
	m, _ = press(t, m, tea.KeyCtrlT)
	content, _ = ws.Content(id)
	require.Equal(t, `hello \textbf{x}\textit{}`, content)
	require.Equal(t, content, m.editor.Value())
}

// TestCreateFileFlow verifies the new-file prompt creates and activates a tab.
func TestCreateFileFlow(t *testing.T) {
	m, ws, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyCtrlN)
	require.Equal(t, modeCreate, m.mode)
	m = typeRunes(t, m, "refs.bib")

	m, cmd := press(t, m, tea.KeyEnter)
	require.Equal(t, modeNormal, m.mode)
	require.Equal(t, 1, m.busy)

	m, done := runOp(t, m, cmd)
	require.NoError(t, done.err)
	require.Zero(t, m.busy)
	require.Equal(t, "refs.bib", activeName(t, ws))
	require.Len(t, m.explorer.Items(), 2)

	f, _ := ws.ActiveFile()
	require.Equal(t, project.FileTypeBib, f.FileType)
	require.Equal(t, f.ID, m.editingID)
	content, _ := ws.Content(f.ID)
	require.Equal(t, content, m.editor.Value())
}

// TestCreateFileDuplicateShowsError verifies lifecycle failures land in the status line.
func TestCreateFileDuplicateShowsError(t *testing.T) {
	m, ws, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyCtrlN)
	m = typeRunes(t, m, project.MainFileName)
	m, cmd := press(t, m, tea.KeyEnter)
	m, done := runOp(t, m, cmd)

	require.True(t, project.IsCode(done.err, project.ErrCodeAlreadyExists))
	require.True(t, m.statusErr)
	require.Contains(t, m.status, "create failed")
	require.Len(t, ws.Files(), 1)
}

// TestCancelCreate verifies esc leaves the prompt without side effects.
func TestCancelCreate(t *testing.T) {
	m, ws, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyCtrlN)
	m = typeRunes(t, m, "draft.tex")
	m, cmd := press(t, m, tea.KeyEsc)
	require.Nil(t, cmd)
	require.Equal(t, modeNormal, m.mode)
	require.Empty(t, m.input.Value())
	require.Len(t, ws.Files(), 1)
}

// TestRenameFlow verifies ctrl+r renames the active tab through the rename guard.
func TestRenameFlow(t *testing.T) {
	m, ws, _ := newTestModel(t)
	id := ws.Tabs().ActiveFileID

	m, _ = press(t, m, tea.KeyCtrlR)
	require.Equal(t, modeRename, m.mode)
	require.Equal(t, project.MainFileName, m.input.Value())
	require.Equal(t, id, ws.UI().RenamingID)
	require.Contains(t, m.renderTabBar(), "✎")

	m.input.SetValue("paper.tex")
	m, cmd := press(t, m, tea.KeyEnter)
	require.Equal(t, modeNormal, m.mode)

	m, done := runOp(t, m, cmd)
	require.NoError(t, done.err)
	require.Empty(t, ws.UI().RenamingID)
	require.Equal(t, "paper.tex", activeName(t, ws))
	require.Equal(t, id, m.editingID)
}

// TestRenameCancel verifies esc drops the rename marker.
func TestRenameCancel(t *testing.T) {
	m, ws, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyCtrlR)
	m, _ = press(t, m, tea.KeyEsc)
	require.Equal(t, modeNormal, m.mode)
	require.Empty(t, ws.UI().RenamingID)
	require.Equal(t, project.MainFileName, activeName(t, ws))
}

// TestDeleteLastFileRejected verifies the policy error is surfaced.
func TestDeleteLastFileRejected(t *testing.T) {
	m, ws, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyCtrlD)
	require.Equal(t, modeConfirmDelete, m.mode)
	require.Contains(t, m.renderFooter(), project.MainFileName)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m, done := runOp(t, m, cmd)
	require.True(t, project.IsCode(done.err, project.ErrCodePolicy))
	require.True(t, m.statusErr)
	require.Len(t, ws.Files(), 1)
}

// TestDeleteFlow verifies a confirmed delete removes the file and its tab.
func TestDeleteFlow(t *testing.T) {
	m, ws, _ := newTestModel(t)
	_, err := ws.CreateTab(context.Background(), "notes.tex", project.FileTypeTex)
	require.NoError(t, err)
	m.refresh()

	m, _ = press(t, m, tea.KeyCtrlD)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.Nil(t, cmd)
	require.Equal(t, "delete cancelled", m.status)
	require.Len(t, ws.Files(), 2)

	m, _ = press(t, m, tea.KeyCtrlD)
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m, done := runOp(t, m, cmd)
	require.NoError(t, done.err)
	require.Len(t, ws.Files(), 1)
	require.Equal(t, project.MainFileName, activeName(t, ws))
	require.Equal(t, ws.Tabs().ActiveFileID, m.editingID)
}

// TestExplorerSelectAndTabCycle verifies explorer selection and tab navigation.
func TestExplorerSelectAndTabCycle(t *testing.T) {
	m, ws, _ := newTestModel(t)
	_, err := ws.CreateTab(context.Background(), "refs.bib", project.FileTypeBib)
	require.NoError(t, err)
	m.refresh()
	require.Equal(t, "refs.bib", activeName(t, ws))

	m, _ = press(t, m, tea.KeyTab)
	require.Equal(t, paneExplorer, m.focus)

	m, _ = press(t, m, tea.KeyEnter)
	require.Equal(t, project.MainFileName, activeName(t, ws))
	require.Equal(t, paneEditor, m.focus)

	m, _ = press(t, m, tea.KeyCtrlRight)
	require.Equal(t, "refs.bib", activeName(t, ws))
	m, _ = press(t, m, tea.KeyCtrlLeft)
	require.Equal(t, project.MainFileName, activeName(t, ws))

	m, _ = press(t, m, tea.KeyCtrlW)
	require.Equal(t, []string{ws.Tabs().ActiveFileID}, ws.Tabs().OpenFileIDs)
	require.Equal(t, "refs.bib", activeName(t, ws))
	require.Equal(t, ws.Tabs().ActiveFileID, m.editingID)
}

// TestQuitKeys verifies q quits only from the explorer.
func TestQuitKeys(t *testing.T) {
	m, ws, _ := newTestModel(t)
	id := ws.Tabs().ActiveFileID
	require.NoError(t, ws.Edit(id, ""))
	m.refresh()

	m = typeRunes(t, m, "q")
	require.False(t, m.quitting)
	content, _ := ws.Content(id)
	require.Equal(t, "q", content)

	m, _ = press(t, m, tea.KeyTab)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.True(t, m.quitting)
	require.NotNil(t, cmd)
	require.Contains(t, m.View(), "closing")
}

// TestFindPassesThrough verifies the find intent only reports a status.
func TestFindPassesThrough(t *testing.T) {
	m, ws, _ := newTestModel(t)
	before, _ := ws.Content(ws.Tabs().ActiveFileID)

	m, _ = press(t, m, tea.KeyCtrlF)
	require.Contains(t, m.status, "find")
	after, _ := ws.Content(ws.Tabs().ActiveFileID)
	require.Equal(t, before, after)
}

// TestWorkspaceEventRefreshes verifies change events re-render and re-arm the listener.
func TestWorkspaceEventRefreshes(t *testing.T) {
	m, ws, _ := newTestModel(t)
	_, err := ws.CreateFile(context.Background(), "appendix.tex", project.FileTypeTex)
	require.NoError(t, err)

	m, cmd := update(t, m, eventMsg{Kind: workspace.EventFilesChanged})
	require.NotNil(t, cmd)
	require.Len(t, m.explorer.Items(), 2)
}

// TestViewRendersPanes verifies the layout shows project, tabs, stats and preview.
func TestViewRendersPanes(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 50})

	view := m.View()
	require.Contains(t, view, "thesis")
	require.Contains(t, view, project.MainFileName)
	require.Contains(t, view, "lines")
	require.Contains(t, view, "ctrl+s")
}

func TestCursorOffsetRoundTrip(t *testing.T) {
	value := "ab\nсde\n\nf"
	cases := []struct {
		row, col, offset int
	}{
		{0, 0, 0},
		{0, 2, 2},
		{1, 1, 4},
		{1, 3, 6},
		{2, 0, 7},
		{3, 1, 9},
	}

	for _, tc := range cases {
		require.Equal(t, tc.offset, cursorOffset(value, tc.row, tc.col))
		row, col := rowCol(value, tc.offset)
		require.Equal(t, tc.row, row)
		require.Equal(t, tc.col, col)
	}

	require.Equal(t, 2, cursorOffset(value, 0, 10))
	require.Equal(t, 9, cursorOffset(value, 10, 0))
}

func TestSaveLabel(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		st   workspace.SaveState
		want string
	}{
		{"error", workspace.SaveState{SaveError: "disk full", HasUnsavedChanges: true}, "save failed: disk full"},
		{"saving", workspace.SaveState{IsSaving: true}, "saving"},
		{"dirty", workspace.SaveState{HasUnsavedChanges: true}, "unsaved changes"},
		{"saved", workspace.SaveState{LastSavedAt: &saved}, "saved "},
		{"clean", workspace.SaveState{}, "no changes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, strings.HasPrefix(saveLabel(tc.st), tc.want))
		})
	}
}
