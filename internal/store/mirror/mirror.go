// Package mirror copies file content to blob storage after each successful write.
package mirror

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/blob"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

// ObjectWriter is the blob subset the mirror needs, satisfied by *blob.Bucket.
type ObjectWriter interface {
	PutText(ctx context.Context, key, content, contentType string) error
	Remove(ctx context.Context, key string) error
}

var _ ObjectWriter = (*blob.Bucket)(nil)

// Store mirrors every file to its StoragePath.
//
// The inner store stays authoritative: mirror failures are logged and counted,
// never returned.
type Store struct {
	inner  project.Store
	blobs  ObjectWriter
	logger logSDK.Logger
}

// New wraps inner.
func New(inner project.Store, blobs ObjectWriter, logger logSDK.Logger) (*Store, error) {
	if inner == nil || blobs == nil {
		return nil, errors.New("inner store and object writer are required")
	}
	if logger == nil {
		logger = log.Logger.Named("mirror_store")
	}
	return &Store{inner: inner, blobs: blobs, logger: logger}, nil
}

// ContentType returns the MIME type of a file type.
func ContentType(t project.FileType) string {
	switch t {
	case project.FileTypeBib:
		return "text/x-bibtex; charset=utf-8"
	default:
		return "text/x-tex; charset=utf-8"
	}
}

func (s *Store) put(ctx context.Context, f *project.File) {
	err := s.blobs.PutText(ctx, f.StoragePath, f.Content, ContentType(f.FileType))
	metrics.RecordMirrorOp("put", err)
	if err != nil {
		s.logger.Error("mirror file", zap.String("file", f.ID),
			zap.String("storage_path", f.StoragePath), zap.Error(err))
	}
}

func (s *Store) remove(ctx context.Context, storagePath string) {
	err := s.blobs.Remove(ctx, storagePath)
	metrics.RecordMirrorOp("remove", err)
	if err != nil {
		s.logger.Error("remove mirrored file", zap.String("storage_path", storagePath), zap.Error(err))
	}
}

// reput reloads fileID and mirrors its current content.
func (s *Store) reput(ctx context.Context, fileID string) (*project.File, bool) {
	f, err := s.inner.GetFile(ctx, fileID)
	if err != nil {
		metrics.RecordMirrorOp("put", err)
		s.logger.Error("load file to mirror", zap.String("file", fileID), zap.Error(err))
		return nil, false
	}
	s.put(ctx, f)
	return f, true
}

// CreateProject creates a project and mirrors its seed files.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*project.ProjectWithFiles, error) {
	p, err := s.inner.CreateProject(ctx, name, description)
	if err != nil {
		return nil, err
	}
	for i := range p.Files {
		s.put(ctx, &p.Files[i])
	}
	return p, nil
}

// ListProjects passes through.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	return s.inner.ListProjects(ctx)
}

// GetProjectWithFiles passes through.
func (s *Store) GetProjectWithFiles(ctx context.Context, projectID string) (*project.ProjectWithFiles, error) {
	return s.inner.GetProjectWithFiles(ctx, projectID)
}

// GetFile passes through.
func (s *Store) GetFile(ctx context.Context, fileID string) (*project.File, error) {
	return s.inner.GetFile(ctx, fileID)
}

// CreateFile creates and mirrors a file.
func (s *Store) CreateFile(ctx context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	f, err := s.inner.CreateFile(ctx, projectID, spec)
	if err != nil {
		return nil, err
	}
	s.put(ctx, f)
	return f, nil
}

// RenameFile renames a file and moves its mirrored object.
func (s *Store) RenameFile(ctx context.Context, fileID, newName string) error {
	before, err := s.inner.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.inner.RenameFile(ctx, fileID, newName); err != nil {
		return err
	}

	after, ok := s.reput(ctx, fileID)
	if ok && after.StoragePath != before.StoragePath {
		s.remove(ctx, before.StoragePath)
	}
	return nil
}

// DeleteFile deletes a file and its mirrored object.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	before, err := s.inner.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.inner.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.remove(ctx, before.StoragePath)
	return nil
}

// UpdateFileContent saves content and mirrors it.
func (s *Store) UpdateFileContent(ctx context.Context, fileID, content string) error {
	if err := s.inner.UpdateFileContent(ctx, fileID, content); err != nil {
		return err
	}
	s.reput(ctx, fileID)
	return nil
}
