package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/texpad/internal/project"
)

// fileInfo is a file without its content.
type fileInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	FileType  project.FileType `json:"file_type"`
	Path      string           `json:"path"`
	Size      int64            `json:"size"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

func newFileInfo(f project.File) fileInfo {
	return fileInfo{
		ID:        f.ID,
		Name:      f.Name,
		FileType:  f.FileType,
		Path:      f.Path,
		Size:      f.Size,
		UpdatedAt: f.UpdatedAt,
	}
}

func (s *Server) handleProjectList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps, err := s.store.ListProjects(ctx)
	if err != nil {
		return s.toolError("project_list", err), nil
	}
	return jsonResult(map[string]any{"projects": ps}), nil
}

func (s *Server) handleProjectFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	pwf, err := s.store.GetProjectWithFiles(ctx, projectID)
	if err != nil {
		return s.toolError("project_files", err), nil
	}

	files := make([]fileInfo, 0, len(pwf.Files))
	for _, f := range pwf.Files {
		files = append(files, newFileInfo(f))
	}
	return jsonResult(map[string]any{
		"project": pwf.Project,
		"files":   files,
	}), nil
}

func (s *Server) handleFileRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := req.RequireString("file_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return s.toolError("file_read", err), nil
	}
	return jsonResult(map[string]any{
		"file":    newFileInfo(*f),
		"content": f.Content,
	}), nil
}

func (s *Server) handleFileWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := req.RequireString("file_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	if err = s.store.UpdateFileContent(ctx, fileID, content); err != nil {
		return s.toolError("file_write", err), nil
	}
	s.logger.Info("file written by mcp client", zap.String("file", fileID), zap.Int("bytes", len(content)))
	return jsonResult(map[string]any{"file_id": fileID, "size": project.ContentSize(content)}), nil
}

func (s *Server) handleFileCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	rawName, err := req.RequireString("name")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	name, err := project.NormalizeFileName(rawName)
	if err != nil {
		return s.toolError("file_create", err), nil
	}
	fileType := project.FileTypeForName(name)
	if raw := strings.TrimSpace(readStringArg(req, "file_type")); raw != "" {
		if fileType, err = project.ParseFileType(raw); err != nil {
			return s.toolError("file_create", err), nil
		}
	}

	spec := project.FileSpec{Name: name, FileType: fileType}
	if content, ok := optionalStringArg(req, "content"); ok {
		spec.Content = content
	} else {
		spec.Content = project.DefaultContent(name, fileType)
	}

	f, err := s.store.CreateFile(ctx, projectID, spec)
	if err != nil {
		return s.toolError("file_create", err), nil
	}
	s.logger.Info("file created by mcp client", zap.String("project", projectID), zap.String("file", f.ID))
	return jsonResult(map[string]any{"file": newFileInfo(*f)}), nil
}

func (s *Server) handleFileRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := req.RequireString("file_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	rawName, err := req.RequireString("name")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	name, err := project.NormalizeFileName(rawName)
	if err != nil {
		return s.toolError("file_rename", err), nil
	}
	if err = s.store.RenameFile(ctx, fileID, name); err != nil {
		return s.toolError("file_rename", err), nil
	}
	return jsonResult(map[string]any{"file_id": fileID, "name": name}), nil
}

// handleFileDelete refuses to delete the last file of a project, as a workspace does.
func (s *Server) handleFileDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := req.RequireString("file_id")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return s.toolError("file_delete", err), nil
	}
	pwf, err := s.store.GetProjectWithFiles(ctx, f.ProjectID)
	if err != nil {
		return s.toolError("file_delete", err), nil
	}
	if len(pwf.Files) <= 1 {
		return s.toolError("file_delete",
			project.NewError(project.ErrCodePolicy, "cannot delete the last file of a project")), nil
	}

	if err = s.store.DeleteFile(ctx, fileID); err != nil {
		return s.toolError("file_delete", err), nil
	}
	s.logger.Info("file deleted by mcp client", zap.String("file", fileID))
	return jsonResult(map[string]any{"file_id": fileID, "deleted": true}), nil
}
