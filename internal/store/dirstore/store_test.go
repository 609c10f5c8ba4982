package dirstore

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/texpad/internal/project"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil, func() time.Time {
		return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	})
	require.NoError(t, err)
	return s
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pwf, err := s.CreateProject(ctx, "notes", "")
	require.NoError(t, err)
	pid := pwf.Project.ID
	require.Equal(t, project.DefaultMainTexContent, pwf.Files[0].Content)

	b, err := os.ReadFile(filepath.Join(s.Root(), pid, filesDirName, project.MainFileName))
	require.NoError(t, err)
	require.Equal(t, project.DefaultMainTexContent, string(b))

	refs, err := s.CreateFile(ctx, pid, project.FileSpec{Name: "refs.bib", Content: "% Bibliography file: refs.bib\n\n"})
	require.NoError(t, err)
	require.Equal(t, project.FileTypeBib, refs.FileType)
	_, err = s.CreateFile(ctx, pid, project.FileSpec{Name: "refs.bib"})
	require.True(t, project.IsCode(err, project.ErrCodeAlreadyExists))
	_, err = s.CreateFile(ctx, pid, project.FileSpec{Name: "../escape.tex"})
	require.True(t, project.IsCode(err, project.ErrCodeValidation))

	require.NoError(t, s.UpdateFileContent(ctx, refs.ID, "@book{a}"))
	got, err := s.GetFile(ctx, refs.ID)
	require.NoError(t, err)
	require.Equal(t, "@book{a}", got.Content)
	require.EqualValues(t, 8, got.Size)
	require.NotNil(t, got.UpdatedAt)

	require.True(t, project.IsCode(s.RenameFile(ctx, refs.ID, project.MainFileName), project.ErrCodeAlreadyExists))
	require.NoError(t, s.RenameFile(ctx, refs.ID, "library.bib"))
	got, err = s.GetFile(ctx, refs.ID)
	require.NoError(t, err)
	require.Equal(t, "library.bib", got.Name)
	require.Equal(t, "@book{a}", got.Content)
	require.Equal(t, pid+"/library.bib", got.StoragePath)

	all, err := s.GetProjectWithFiles(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, []string{project.MainFileName, "library.bib"}, []string{all.Files[0].Name, all.Files[1].Name})

	require.NoError(t, s.DeleteFile(ctx, refs.ID))
	require.True(t, project.IsCode(s.DeleteFile(ctx, refs.ID), project.ErrCodeNotFound))
	_, err = os.Stat(filepath.Join(s.Root(), pid, filesDirName, "library.bib"))
	require.True(t, os.IsNotExist(err))

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, "notes", projects[0].Name)

	_, err = s.GetProjectWithFiles(ctx, "../etc")
	require.True(t, project.IsCode(err, project.ErrCodeNotFound))
}

func TestStoresShareDirectory(t *testing.T) {
	root := t.TempDir()
	a, err := New(root, nil, nil)
	require.NoError(t, err)
	b, err := New(root, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pwf, err := a.CreateProject(ctx, "shared", "")
	require.NoError(t, err)
	require.NoError(t, b.UpdateFileContent(ctx, pwf.Files[0].ID, "from b"))

	got, err := a.GetFile(ctx, pwf.Files[0].ID)
	require.NoError(t, err)
	require.Equal(t, "from b", got.Content)
}

func TestWatchReportsExternalEdits(t *testing.T) {
	s := newTestStore(t)
	pwf, err := s.CreateProject(context.Background(), "watched", "")
	require.NoError(t, err)
	pid := pwf.Project.ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, pid, 20*time.Millisecond, func() { changes.Add(1) })
	}()

	path := filepath.Join(s.Root(), pid, filesDirName, project.MainFileName)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("edited elsewhere"), 0o644)
		return changes.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	got, err := s.GetFile(context.Background(), pwf.Files[0].ID)
	require.NoError(t, err)
	require.Equal(t, "edited elsewhere", got.Content)
}

func TestWatchUnknownProject(t *testing.T) {
	s := newTestStore(t)
	err := s.Watch(context.Background(), "nope", 0, func() {})
	require.True(t, project.IsCode(err, project.ErrCodeNotFound))
}

func TestIgnoreEvent(t *testing.T) {
	require.True(t, ignoreEvent(fsnotify.Event{Name: "/x/" + lockFileName, Op: fsnotify.Write}))
	require.True(t, ignoreEvent(fsnotify.Event{Name: "/x/main.tex" + tmpMarker + "123", Op: fsnotify.Create}))
	require.True(t, ignoreEvent(fsnotify.Event{Name: "/x/main.tex", Op: fsnotify.Chmod}))
	require.False(t, ignoreEvent(fsnotify.Event{Name: "/x/main.tex", Op: fsnotify.Write}))
}
