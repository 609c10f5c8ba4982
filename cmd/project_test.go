package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/store/sqlstore"
	"github.com/Laisky/texpad/library/db/sqlite"
)

var dbSeq atomic.Int64

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:cmd-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sqlite.NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := sqlstore.New(context.Background(), db, nil, nil)
	require.NoError(t, err)
	return store
}

func TestPrintProjects(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := printProjects(&buf, []project.Project{
		{ID: "p1", Name: "thesis", Description: "phd", CreatedAt: created},
		{ID: "p2", Name: "notes"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "thesis")
	require.Contains(t, lines[1], "phd")
	require.Contains(t, lines[2], "-")
}

// TestResolveProject verifies the explicit id, the newest project and the empty store fallback.
func TestResolveProject(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := resolveProject(ctx, store, "given")
	require.NoError(t, err)
	require.Equal(t, "given", id)

	id, err = resolveProject(ctx, store, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	pwf, err := store.GetProjectWithFiles(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "untitled", pwf.Project.Name)
	require.Len(t, pwf.Files, 1)

	again, err := resolveProject(ctx, store, "")
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestOpenedStoreCloseReturnsFirstError(t *testing.T) {
	var calls []int
	st := &openedStore{closers: []func(context.Context) error{
		func(context.Context) error { calls = append(calls, 1); return fmt.Errorf("first") },
		func(context.Context) error { calls = append(calls, 2); return fmt.Errorf("second") },
	}}

	err := st.Close(context.Background())
	require.ErrorContains(t, err, "second")
	require.Equal(t, []int{2, 1}, calls)
}
