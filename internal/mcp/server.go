// Package mcp exposes texpad projects as Model Context Protocol tools.
package mcp

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/log"
)

const (
	serverName    = "texpad"
	serverVersion = "1.0.0"
)

// Server wraps the MCP server state for the HTTP transport.
type Server struct {
	store   project.Store
	logger  logSDK.Logger
	handler http.Handler
}

// NewServer registers the project tools over store.
func NewServer(store project.Store, logger logSDK.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = log.Logger.Named("mcp")
	}

	mcpServer := srv.NewMCPServer(
		serverName,
		serverVersion,
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Browse and edit LaTeX projects. "+
			"List projects first, then use file ids from project_files."),
		srv.WithRecovery(),
	)

	s := &Server{
		store:   store,
		logger:  logger,
		handler: srv.NewStreamableHTTPServer(mcpServer),
	}
	for _, t := range s.tools() {
		mcpServer.AddTool(t.def, t.handle)
	}

	return s, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type tool struct {
	def    mcp.Tool
	handle srv.ToolHandlerFunc
}

func (s *Server) tools() []tool {
	return []tool{
		{
			def: mcp.NewTool(
				"project_list",
				mcp.WithDescription("List projects, newest first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(true),
			),
			handle: s.handleProjectList,
		},
		{
			def: mcp.NewTool(
				"project_files",
				mcp.WithDescription("List the files of a project without their content."),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id.")),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(true),
			),
			handle: s.handleProjectFiles,
		},
		{
			def: mcp.NewTool(
				"file_read",
				mcp.WithDescription("Read the persisted content of a file."),
				mcp.WithString("file_id", mcp.Required(), mcp.Description("File id.")),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(true),
			),
			handle: s.handleFileRead,
		},
		{
			def: mcp.NewTool(
				"file_write",
				mcp.WithDescription("Replace the content of a file."),
				mcp.WithString("file_id", mcp.Required(), mcp.Description("File id.")),
				mcp.WithString("content", mcp.Required(), mcp.Description("New full content.")),
				mcp.WithIdempotentHintAnnotation(true),
			),
			handle: s.handleFileWrite,
		},
		{
			def: mcp.NewTool(
				"file_create",
				mcp.WithDescription("Create a file in a project. Without content a template is used."),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id.")),
				mcp.WithString("name", mcp.Required(), mcp.Description("File name, unique within the project.")),
				mcp.WithString("file_type", mcp.Enum(string(project.FileTypeTex), string(project.FileTypeBib)),
					mcp.Description("File type, guessed from the name when omitted.")),
				mcp.WithString("content", mcp.Description("Initial content.")),
			),
			handle: s.handleFileCreate,
		},
		{
			def: mcp.NewTool(
				"file_rename",
				mcp.WithDescription("Rename a file. Content and id are kept."),
				mcp.WithString("file_id", mcp.Required(), mcp.Description("File id.")),
				mcp.WithString("name", mcp.Required(), mcp.Description("New file name.")),
			),
			handle: s.handleFileRename,
		},
		{
			def: mcp.NewTool(
				"file_delete",
				mcp.WithDescription("Delete a file. The last file of a project cannot be deleted."),
				mcp.WithString("file_id", mcp.Required(), mcp.Description("File id.")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			handle: s.handleFileDelete,
		},
	}
}
