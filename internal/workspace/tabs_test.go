package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTabSetClose(t *testing.T) {
	all := []string{"a", "b", "c", "d"}
	tabs := TabSet{OpenFileIDs: []string{"a", "b", "c"}, ActiveFileID: "b"}

	next := tabs.Close("b", all)
	require.Equal(t, TabSet{OpenFileIDs: []string{"a", "c"}, ActiveFileID: "c"}, next)
	require.Equal(t, []string{"a", "b", "c"}, tabs.OpenFileIDs)

	next = TabSet{OpenFileIDs: []string{"a", "b", "c"}, ActiveFileID: "c"}.Close("c", all)
	require.Equal(t, "b", next.ActiveFileID)

	next = tabs.Close("a", all)
	require.Equal(t, TabSet{OpenFileIDs: []string{"b", "c"}, ActiveFileID: "b"}, next)

	next = TabSet{OpenFileIDs: []string{"d"}, ActiveFileID: "d"}.Close("d", all)
	require.Equal(t, TabSet{OpenFileIDs: []string{"a"}, ActiveFileID: "a"}, next)

	next = TabSet{OpenFileIDs: []string{"d"}, ActiveFileID: "d"}.Close("d", nil)
	require.Equal(t, TabSet{OpenFileIDs: []string{}, ActiveFileID: ""}, next)

	require.Equal(t, tabs, tabs.Close("zz", all))
}

func TestTabSetSelect(t *testing.T) {
	tabs := TabSet{}.Select("a").Select("b").Select("a")
	require.Equal(t, TabSet{OpenFileIDs: []string{"a", "b"}, ActiveFileID: "a"}, tabs)
}

func TestTabSetPrune(t *testing.T) {
	tabs := TabSet{OpenFileIDs: []string{"a", "b", "c"}, ActiveFileID: "b"}
	require.Equal(t, TabSet{OpenFileIDs: []string{"a", "c"}, ActiveFileID: "c"}, tabs.Prune([]string{"a", "c"}))
	require.Equal(t, TabSet{OpenFileIDs: []string{"x"}, ActiveFileID: "x"}, tabs.Prune([]string{"x"}))
}

func TestTabUI(t *testing.T) {
	ui := TabUI{}.ToggleMenu("a")
	require.Equal(t, "a", ui.MenuID)
	require.Empty(t, ui.ToggleMenu("a").MenuID)

	ui = ui.BeginRename("a")
	require.Equal(t, TabUI{RenamingID: "a"}, ui)
	require.Equal(t, TabUI{MenuID: "b"}, ui.ToggleMenu("b"))

	ui, id, ok := ui.ConsumeRename()
	require.True(t, ok)
	require.Equal(t, "a", id)
	_, _, ok = ui.ConsumeRename()
	require.False(t, ok)

	require.Equal(t, TabUI{}, TabUI{RenamingID: "a", MenuID: "a"}.Forget("a"))
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	require.True(t, s.Open("a", "v1", false))
	require.True(t, s.SetContent("a", "v2"))
	require.False(t, s.Open("a", "v1", false))

	content, ok := s.Content("a")
	require.True(t, ok)
	require.Equal(t, "v2", content)
	sess, _ := s.Session("a")
	require.True(t, sess.Dirty())

	require.True(t, s.MarkPersisted("a", "v2"))
	sess, _ = s.Session("a")
	require.False(t, sess.Dirty())

	require.True(t, s.Open("a", "remote", true))
	content, _ = s.Content("a")
	require.Equal(t, "remote", content)

	s.Close("a")
	_, ok = s.Content("a")
	require.False(t, ok)
	require.False(t, s.SetContent("a", "x"))
	require.Zero(t, s.Len())
}

func TestFormatCommand(t *testing.T) {
	out, cursor := FormatBold.Apply("make this bold", 5, 9)
	require.Equal(t, `make \textbf{this} bold`, out)
	require.Equal(t, 17, cursor)

	out, cursor = FormatItalic.Apply("ab", 1, 1)
	require.Equal(t, `a\textit{}b`, out)
	require.Equal(t, 9, cursor)

	out, _ = FormatBold.Apply("héllo", 9, -3)
	require.Equal(t, `\textbf{héllo}`, out)
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{PreviewPolicy: "bogus"}.normalized()
	require.Equal(t, DefaultSettings(), s)
	require.IsType(t, PinnedPreview{}, PreviewPolicyFromSettings(s))

	s.PreviewPolicy = PreviewPolicyActive
	require.IsType(t, FollowActivePreview{}, PreviewPolicyFromSettings(s))
}
