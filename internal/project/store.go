package project

import "context"

// Store is the persistence collaborator behind a workspace.
//
// Implementations must enforce name uniqueness within a project and return
// typed errors (ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeValidation) where they apply.
type Store interface {
	// CreateProject creates a project and seeds it with MainFileName.
	CreateProject(ctx context.Context, name, description string) (*ProjectWithFiles, error)
	ListProjects(ctx context.Context) ([]Project, error)
	GetProjectWithFiles(ctx context.Context, projectID string) (*ProjectWithFiles, error)
	GetFile(ctx context.Context, fileID string) (*File, error)
	CreateFile(ctx context.Context, projectID string, spec FileSpec) (*File, error)
	RenameFile(ctx context.Context, fileID, newName string) error
	DeleteFile(ctx context.Context, fileID string) error
	UpdateFileContent(ctx context.Context, fileID, content string) error
}
