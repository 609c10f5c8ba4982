package web

import (
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/jinzhu/copier"

	"github.com/Laisky/texpad/internal/project"
)

// ProjectResponse is the wire form of a project header.
type ProjectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// FileResponse is the wire form of a project file.
type FileResponse struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id"`
	Name        string           `json:"name"`
	FileType    project.FileType `json:"file_type"`
	Content     string           `json:"content"`
	Path        string           `json:"path"`
	StoragePath string           `json:"storage_path"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
	Size        int64            `json:"size"`
}

// ProjectWithFilesResponse is a project with its flat file list.
type ProjectWithFilesResponse struct {
	Project ProjectResponse `json:"project"`
	Files   []FileResponse  `json:"files"`
}

// ListProjectsResponse wraps the project list.
type ListProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateFileRequest is the body of POST /api/projects/:id/files.
//
// A nil Content gets the default template of the file type.
type CreateFileRequest struct {
	Name     string  `json:"name" binding:"required"`
	FileType string  `json:"file_type"`
	Content  *string `json:"content"`
}

// RenameFileRequest is the body of PATCH /api/files/:id.
type RenameFileRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateContentRequest is the body of PUT /api/files/:id/content.
type UpdateContentRequest struct {
	Content *string `json:"content" binding:"required"`
}

// ErrorBody is the error payload of every failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func newFileResponse(f *project.File) (*FileResponse, error) {
	resp := new(FileResponse)
	if err := copier.Copy(resp, f); err != nil {
		return nil, errors.Wrap(err, "copy file")
	}
	return resp, nil
}

func newProjectWithFilesResponse(p *project.ProjectWithFiles) (*ProjectWithFilesResponse, error) {
	resp := &ProjectWithFilesResponse{Files: []FileResponse{}}
	if err := copier.Copy(&resp.Project, &p.Project); err != nil {
		return nil, errors.Wrap(err, "copy project")
	}
	if err := copier.Copy(&resp.Files, &p.Files); err != nil {
		return nil, errors.Wrap(err, "copy files")
	}
	return resp, nil
}

func newListProjectsResponse(ps []project.Project) (*ListProjectsResponse, error) {
	resp := &ListProjectsResponse{Projects: []ProjectResponse{}}
	if err := copier.Copy(&resp.Projects, &ps); err != nil {
		return nil, errors.Wrap(err, "copy projects")
	}
	return resp, nil
}
