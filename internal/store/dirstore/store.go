// Package dirstore keeps projects as plain files in a local directory, so they
// can be edited by other tools and watched for external changes.
//
// Layout:
//
//	<root>/<project id>/project.json   metadata of the project and its files
//	<root>/<project id>/files/<name>   file content
package dirstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

const (
	metaFileName = "project.json"
	filesDirName = "files"
	lockFileName = ".texpad.lock"
	tmpMarker    = ".tmp-"
)

var _ project.Store = (*Store)(nil)

// Clock returns the current time in UTC.
type Clock func() time.Time

type fileMeta struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	FileType  project.FileType `json:"file_type"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

type projectMeta struct {
	Project project.Project `json:"project"`
	Files   []fileMeta      `json:"files"`
}

// Store is a project.Store rooted at a directory. A file lock serializes
// writers across processes.
type Store struct {
	root   string
	logger logSDK.Logger
	clock  Clock

	mu   sync.Mutex
	lock *flock.Flock
}

// New creates root when missing and returns the store.
func New(root string, logger logSDK.Logger, clock Clock) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create store root")
	}
	if logger == nil {
		logger = log.Logger.Named("dir_store")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Store{
		root:   root,
		logger: logger,
		clock:  clock,
		lock:   flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// withLock runs fn holding both the in-process and the cross-process lock.
func (s *Store) withLock(op string, fn func() error) error {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("dir", op, time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, "lock store")
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func (s *Store) contentPath(projectID, name string) string {
	return filepath.Join(s.root, projectID, filesDirName, name)
}

func (s *Store) loadMeta(projectID string) (*projectMeta, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return nil, project.Errorf(project.ErrCodeNotFound, "project %q not found", projectID)
	}
	b, err := os.ReadFile(filepath.Join(s.projectDir(projectID), metaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, project.Errorf(project.ErrCodeNotFound, "project %q not found", projectID)
		}
		return nil, errors.Wrap(err, "read project metadata")
	}

	var meta projectMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, errors.Wrap(err, "parse project metadata")
	}
	return &meta, nil
}

func (s *Store) saveMeta(meta *projectMeta) error {
	dir := s.projectDir(meta.Project.ID)
	if err := os.MkdirAll(filepath.Join(dir, filesDirName), 0o755); err != nil {
		return errors.Wrap(err, "create project dir")
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal project metadata")
	}
	b = append(b, '\n')

	return atomicWriteFile(filepath.Join(dir, metaFileName), b, 0o644)
}

func (s *Store) readFile(projectID string, m fileMeta) (project.File, error) {
	b, err := os.ReadFile(s.contentPath(projectID, m.Name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return project.File{}, errors.Wrapf(err, "read file %q", m.Name)
	}
	content := string(b)

	return project.File{
		ID:          m.ID,
		ProjectID:   projectID,
		Name:        m.Name,
		FileType:    m.FileType,
		Content:     content,
		Path:        project.FilePath(m.Name),
		StoragePath: project.StoragePath(projectID, m.Name),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Size:        project.ContentSize(content),
	}, nil
}

// findFile locates fileID across projects.
func (s *Store) findFile(fileID string) (*projectMeta, int, error) {
	ids, err := s.projectIDs()
	if err != nil {
		return nil, -1, err
	}
	for _, pid := range ids {
		meta, err := s.loadMeta(pid)
		if err != nil {
			continue
		}
		for i := range meta.Files {
			if meta.Files[i].ID == fileID {
				return meta, i, nil
			}
		}
	}
	return nil, -1, project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
}

func (s *Store) projectIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "read store root")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), metaFileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CreateProject writes a new project directory with main.tex.
func (s *Store) CreateProject(_ context.Context, name, description string) (out *project.ProjectWithFiles, err error) {
	if strings.TrimSpace(name) == "" {
		return nil, project.NewError(project.ErrCodeValidation, "project name is required")
	}

	err = s.withLock("create_project", func() error {
		now := s.clock()
		meta := &projectMeta{
			Project: project.Project{ID: uuid.NewString(), Name: name, Description: description, CreatedAt: now},
			Files: []fileMeta{{
				ID:        uuid.NewString(),
				Name:      project.MainFileName,
				FileType:  project.FileTypeTex,
				CreatedAt: now,
			}},
		}
		if err := s.saveMeta(meta); err != nil {
			return err
		}
		if err := atomicWriteFile(s.contentPath(meta.Project.ID, project.MainFileName), []byte(project.DefaultMainTexContent), 0o644); err != nil {
			_ = os.RemoveAll(s.projectDir(meta.Project.ID))
			return errors.Wrap(err, "seed main file")
		}

		main, err := s.readFile(meta.Project.ID, meta.Files[0])
		if err != nil {
			return err
		}
		out = &project.ProjectWithFiles{Project: meta.Project, Files: []project.File{main}}
		return nil
	})
	return out, err
}

// ListProjects returns every project under root, newest first.
func (s *Store) ListProjects(_ context.Context) (out []project.Project, err error) {
	err = s.withLock("list_projects", func() error {
		ids, err := s.projectIDs()
		if err != nil {
			return err
		}
		out = make([]project.Project, 0, len(ids))
		for _, id := range ids {
			meta, err := s.loadMeta(id)
			if err != nil {
				s.logger.Warn("skip unreadable project", zap.String("project", id), zap.Error(err))
				continue
			}
			out = append(out, meta.Project)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

// GetProjectWithFiles reads the project metadata and every file's content.
func (s *Store) GetProjectWithFiles(_ context.Context, projectID string) (out *project.ProjectWithFiles, err error) {
	err = s.withLock("get_project", func() error {
		meta, err := s.loadMeta(projectID)
		if err != nil {
			return err
		}
		out = &project.ProjectWithFiles{Project: meta.Project, Files: make([]project.File, 0, len(meta.Files))}
		for _, m := range meta.Files {
			f, err := s.readFile(projectID, m)
			if err != nil {
				return err
			}
			out.Files = append(out.Files, f)
		}
		return nil
	})
	return out, err
}

// GetFile reads one file.
func (s *Store) GetFile(_ context.Context, fileID string) (out *project.File, err error) {
	err = s.withLock("get_file", func() error {
		meta, idx, err := s.findFile(fileID)
		if err != nil {
			return err
		}
		f, err := s.readFile(meta.Project.ID, meta.Files[idx])
		if err != nil {
			return err
		}
		out = &f
		return nil
	})
	return out, err
}

// CreateFile writes a new file and registers it in the project metadata.
func (s *Store) CreateFile(_ context.Context, projectID string, spec project.FileSpec) (out *project.File, err error) {
	name, err := project.NormalizeFileName(spec.Name)
	if err != nil {
		return nil, err
	}

	err = s.withLock("create_file", func() error {
		meta, err := s.loadMeta(projectID)
		if err != nil {
			return err
		}
		for _, m := range meta.Files {
			if m.Name == name {
				return project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", name)
			}
		}

		fileType := spec.FileType
		if fileType == "" {
			fileType = project.FileTypeForName(name)
		}
		m := fileMeta{ID: uuid.NewString(), Name: name, FileType: fileType, CreatedAt: s.clock()}
		if err := os.MkdirAll(filepath.Join(s.projectDir(projectID), filesDirName), 0o755); err != nil {
			return errors.Wrap(err, "create files dir")
		}
		if err := atomicWriteFile(s.contentPath(projectID, name), []byte(spec.Content), 0o644); err != nil {
			return err
		}
		meta.Files = append(meta.Files, m)
		if err := s.saveMeta(meta); err != nil {
			_ = os.Remove(s.contentPath(projectID, name))
			return err
		}

		f, err := s.readFile(projectID, m)
		if err != nil {
			return err
		}
		out = &f
		return nil
	})
	return out, err
}

// RenameFile moves the content file and updates the metadata.
func (s *Store) RenameFile(_ context.Context, fileID, newName string) error {
	name, err := project.NormalizeFileName(newName)
	if err != nil {
		return err
	}

	return s.withLock("rename_file", func() error {
		meta, idx, err := s.findFile(fileID)
		if err != nil {
			return err
		}
		old := meta.Files[idx].Name
		if old == name {
			return nil
		}
		for _, m := range meta.Files {
			if m.Name == name {
				return project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", name)
			}
		}

		pid := meta.Project.ID
		if err := os.Rename(s.contentPath(pid, old), s.contentPath(pid, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "move file")
		}
		now := s.clock()
		meta.Files[idx].Name = name
		meta.Files[idx].UpdatedAt = &now
		if err := s.saveMeta(meta); err != nil {
			_ = os.Rename(s.contentPath(pid, name), s.contentPath(pid, old))
			return err
		}
		return nil
	})
}

// DeleteFile removes the content file and its metadata entry.
func (s *Store) DeleteFile(_ context.Context, fileID string) error {
	return s.withLock("delete_file", func() error {
		meta, idx, err := s.findFile(fileID)
		if err != nil {
			return err
		}
		name := meta.Files[idx].Name
		meta.Files = append(meta.Files[:idx], meta.Files[idx+1:]...)
		if err := s.saveMeta(meta); err != nil {
			return err
		}
		if err := os.Remove(s.contentPath(meta.Project.ID, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove content file", zap.String("file", fileID), zap.Error(err))
		}
		return nil
	})
}

// UpdateFileContent atomically replaces a file's content.
func (s *Store) UpdateFileContent(_ context.Context, fileID, content string) error {
	return s.withLock("update_content", func() error {
		meta, idx, err := s.findFile(fileID)
		if err != nil {
			return err
		}
		if err := atomicWriteFile(s.contentPath(meta.Project.ID, meta.Files[idx].Name), []byte(content), 0o644); err != nil {
			return err
		}
		now := s.clock()
		meta.Files[idx].UpdatedAt = &now
		return s.saveMeta(meta)
	})
}
