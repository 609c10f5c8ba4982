package mongostore

import (
	"time"

	"github.com/Laisky/texpad/internal/project"
)

const (
	colProjects = "projects"
	colFiles    = "project_files"
)

type projectDoc struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	Description string     `bson:"description"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   *time.Time `bson:"updated_at,omitempty"`
}

type fileDoc struct {
	ID          string     `bson:"_id"`
	ProjectID   string     `bson:"project_id"`
	Name        string     `bson:"name"`
	FileType    string     `bson:"file_type"`
	Content     string     `bson:"content"`
	Path        string     `bson:"path"`
	StoragePath string     `bson:"storage_path"`
	Size        int64      `bson:"size"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   *time.Time `bson:"updated_at,omitempty"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (d *projectDoc) toProject() project.Project {
	return project.Project{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(d.UpdatedAt),
	}
}

func (d *fileDoc) toFile() project.File {
	return project.File{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		Name:        d.Name,
		FileType:    project.FileType(d.FileType),
		Content:     d.Content,
		Path:        d.Path,
		StoragePath: d.StoragePath,
		Size:        d.Size,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(d.UpdatedAt),
	}
}

func newFileDoc(id, projectID string, spec project.FileSpec, now time.Time) *fileDoc {
	fileType := spec.FileType
	if fileType == "" {
		fileType = project.FileTypeForName(spec.Name)
	}
	return &fileDoc{
		ID:          id,
		ProjectID:   projectID,
		Name:        spec.Name,
		FileType:    string(fileType),
		Content:     spec.Content,
		Path:        project.FilePath(spec.Name),
		StoragePath: project.StoragePath(projectID, spec.Name),
		Size:        project.ContentSize(spec.Content),
		CreatedAt:   now,
	}
}
