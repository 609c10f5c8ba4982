package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/store/sqlstore"
	"github.com/Laisky/texpad/library/db/sqlite"
)

var dbSeq atomic.Int64

func newTestServer(t *testing.T) (*Server, *sqlstore.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:mcp-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sqlite.NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := sqlstore.New(context.Background(), db, nil, nil)
	require.NoError(t, err)
	s, err := NewServer(store, nil)
	require.NoError(t, err)
	return s, store
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

// decodeResult unmarshals the JSON text content of a tool result.
func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	require.NoError(t, json.Unmarshal([]byte(text), out))
}

type toolErr struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func requireToolError(t *testing.T, result *mcp.CallToolResult, code project.ErrorCode) toolErr {
	t.Helper()
	require.True(t, result.IsError)
	var e toolErr
	decodeResult(t, result, &e)
	require.Equal(t, string(code), e.Code)
	return e
}

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
}

func TestToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	require.NotNil(t, s.Handler())

	names := map[string]bool{}
	for _, tl := range s.tools() {
		names[tl.def.Name] = true
	}
	for _, name := range []string{
		"project_list", "project_files", "file_read", "file_write",
		"file_create", "file_rename", "file_delete",
	} {
		require.True(t, names[name], name)
	}
}

// TestProjectAndFileTools walks the read and write tools over a seeded project.
func TestProjectAndFileTools(t *testing.T) {
	ctx := context.Background()
	s, store := newTestServer(t)
	p, err := store.CreateProject(ctx, "thesis", "phd")
	require.NoError(t, err)
	mainID := p.Files[0].ID

	result, err := s.handleProjectList(ctx, call(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var list struct {
		Projects []project.Project `json:"projects"`
	}
	decodeResult(t, result, &list)
	require.Len(t, list.Projects, 1)
	require.Equal(t, "thesis", list.Projects[0].Name)

	result, err = s.handleProjectFiles(ctx, call(map[string]any{"project_id": p.Project.ID}))
	require.NoError(t, err)
	var files struct {
		Files []fileInfo `json:"files"`
	}
	decodeResult(t, result, &files)
	require.Len(t, files.Files, 1)
	require.Equal(t, project.MainFileName, files.Files[0].Name)
	require.Equal(t, "/"+project.MainFileName, files.Files[0].Path)

	result, err = s.handleFileWrite(ctx, call(map[string]any{"file_id": mainID, "content": `\section{A}`}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleFileRead(ctx, call(map[string]any{"file_id": mainID}))
	require.NoError(t, err)
	var read struct {
		Content string `json:"content"`
	}
	decodeResult(t, result, &read)
	require.Equal(t, `\section{A}`, read.Content)
}

// TestFileCreateRenameDelete verifies lifecycle tools and their typed errors.
func TestFileCreateRenameDelete(t *testing.T) {
	ctx := context.Background()
	s, store := newTestServer(t)
	p, err := store.CreateProject(ctx, "thesis", "")
	require.NoError(t, err)
	mainID := p.Files[0].ID

	result, err := s.handleFileDelete(ctx, call(map[string]any{"file_id": mainID}))
	require.NoError(t, err)
	requireToolError(t, result, project.ErrCodePolicy)

	result, err = s.handleFileCreate(ctx, call(map[string]any{"project_id": p.Project.ID, "name": " refs.bib "}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var created struct {
		File fileInfo `json:"file"`
	}
	decodeResult(t, result, &created)
	require.Equal(t, "refs.bib", created.File.Name)
	require.Equal(t, project.FileTypeBib, created.File.FileType)

	f, err := store.GetFile(ctx, created.File.ID)
	require.NoError(t, err)
	require.Equal(t, project.DefaultContent("refs.bib", project.FileTypeBib), f.Content)

	result, err = s.handleFileCreate(ctx, call(map[string]any{
		"project_id": p.Project.ID, "name": "empty.tex", "content": "",
	}))
	require.NoError(t, err)
	decodeResult(t, result, &created)
	f, err = store.GetFile(ctx, created.File.ID)
	require.NoError(t, err)
	require.Empty(t, f.Content)

	result, err = s.handleFileCreate(ctx, call(map[string]any{"project_id": p.Project.ID, "name": "refs.bib"}))
	require.NoError(t, err)
	requireToolError(t, result, project.ErrCodeAlreadyExists)

	result, err = s.handleFileCreate(ctx, call(map[string]any{
		"project_id": p.Project.ID, "name": "x.md", "file_type": "markdown",
	}))
	require.NoError(t, err)
	requireToolError(t, result, project.ErrCodeValidation)

	result, err = s.handleFileRename(ctx, call(map[string]any{"file_id": created.File.ID, "name": "a/b.tex"}))
	require.NoError(t, err)
	requireToolError(t, result, project.ErrCodeValidation)

	result, err = s.handleFileRename(ctx, call(map[string]any{"file_id": created.File.ID, "name": "intro.tex"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	f, err = store.GetFile(ctx, created.File.ID)
	require.NoError(t, err)
	require.Equal(t, "intro.tex", f.Name)

	result, err = s.handleFileDelete(ctx, call(map[string]any{"file_id": created.File.ID}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	_, err = store.GetFile(ctx, created.File.ID)
	require.True(t, project.IsCode(err, project.ErrCodeNotFound))
}

func TestMissingArguments(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	result, err := s.handleFileRead(ctx, call(map[string]any{}))
	require.NoError(t, err)
	requireToolError(t, result, project.ErrCodeValidation)

	result, err = s.handleFileRead(ctx, call(map[string]any{"file_id": "missing"}))
	require.NoError(t, err)
	e := requireToolError(t, result, project.ErrCodeNotFound)
	require.False(t, e.Retryable)
}
