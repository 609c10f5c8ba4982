// Package sqlstore persists projects in sqlite or PostgreSQL through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

var _ project.Store = (*Store)(nil)

// Clock returns the current time in UTC.
type Clock func() time.Time

// Store is a project.Store backed by a SQL database.
type Store struct {
	db         *sql.DB
	isPostgres bool
	logger     logSDK.Logger
	clock      Clock
	newID      func() string
}

// New detects the SQL dialect of db, runs migrations and returns the store.
func New(ctx context.Context, db *sql.DB, logger logSDK.Logger, clock Clock) (*Store, error) {
	if db == nil {
		return nil, errors.New("sql db is required")
	}
	isPostgres, err := detectPostgresDialect(ctx, db)
	if err != nil {
		return nil, errors.Wrap(err, "detect sql dialect")
	}

	s := newStore(db, isPostgres, logger, clock)
	if err := s.Migrate(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	s.logger.Info("sql store ready", zap.Bool("postgres", isPostgres))
	return s, nil
}

func newStore(db *sql.DB, isPostgres bool, logger logSDK.Logger, clock Clock) *Store {
	if logger == nil {
		logger = log.Logger.Named("sql_store")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		db:         db,
		isPostgres: isPostgres,
		logger:     logger,
		clock:      clock,
		newID:      newID,
	}
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func (s *Store) backend() string {
	if s.isPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (s *Store) observe(op string, start time.Time) {
	metrics.ObserveStoreOp(s.backend(), op, time.Since(start))
}

func (s *Store) q(query string) string {
	return rebindSQL(query, s.isPostgres)
}

// CreateProject inserts a project and its main.tex in one transaction.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*project.ProjectWithFiles, error) {
	defer s.observe("create_project", time.Now())
	if name == "" {
		return nil, project.NewError(project.ErrCodeValidation, "project name is required")
	}

	now := s.clock()
	p := project.Project{ID: s.newID(), Name: name, Description: description, CreatedAt: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		s.q(`INSERT INTO projects (id, name, description, created_at) VALUES (?, ?, ?, ?)`),
		p.ID, p.Name, p.Description, p.CreatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "insert project")
	}

	main, err := s.insertFile(ctx, tx, p.ID, project.FileSpec{
		Name:     project.MainFileName,
		FileType: project.FileTypeTex,
		Content:  project.DefaultMainTexContent,
	}, now)
	if err != nil {
		return nil, errors.Wrap(err, "seed main file")
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit project")
	}

	return &project.ProjectWithFiles{Project: p, Files: []project.File{*main}}, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	defer s.observe("list_projects", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query projects")
	}
	defer rows.Close()

	out := []project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate projects")
	}
	return out, nil
}

// GetProjectWithFiles returns a project and its files in creation order.
func (s *Store) GetProjectWithFiles(ctx context.Context, projectID string) (*project.ProjectWithFiles, error) {
	defer s.observe("get_project", time.Now())

	p, err := s.getProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+fileColumns+` FROM project_files
WHERE project_id = ? ORDER BY created_at ASC, id ASC`), projectID)
	if err != nil {
		return nil, errors.Wrap(err, "query files")
	}
	defer rows.Close()

	out := &project.ProjectWithFiles{Project: *p, Files: []project.File{}}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate files")
	}
	return out, nil
}

// GetFile returns one file.
func (s *Store) GetFile(ctx context.Context, fileID string) (*project.File, error) {
	defer s.observe("get_file", time.Now())
	return s.getFile(ctx, s.db, fileID)
}

// CreateFile inserts a file into an existing project.
func (s *Store) CreateFile(ctx context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	defer s.observe("create_file", time.Now())

	name, err := project.NormalizeFileName(spec.Name)
	if err != nil {
		return nil, err
	}
	spec.Name = name
	if _, err := s.getProject(ctx, s.db, projectID); err != nil {
		return nil, err
	}

	f, err := s.insertFile(ctx, s.db, projectID, spec, s.clock())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("file created", zap.String("file", f.ID), zap.String("name", f.Name))
	return f, nil
}

// RenameFile changes a file name and its derived paths.
func (s *Store) RenameFile(ctx context.Context, fileID, newName string) error {
	defer s.observe("rename_file", time.Now())

	name, err := project.NormalizeFileName(newName)
	if err != nil {
		return err
	}
	f, err := s.getFile(ctx, s.db, fileID)
	if err != nil {
		return err
	}

	var taken int
	if err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(1) FROM project_files WHERE project_id = ? AND name = ? AND id <> ?`),
		f.ProjectID, name, fileID,
	).Scan(&taken); err != nil {
		return errors.Wrap(err, "check file name")
	}
	if taken > 0 {
		return project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", name)
	}

	_, err = s.db.ExecContext(ctx,
		s.q(`UPDATE project_files SET name = ?, path = ?, storage_path = ?, updated_at = ? WHERE id = ?`),
		name, project.FilePath(name), project.StoragePath(f.ProjectID, name), s.clock(), fileID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", name)
		}
		return errors.Wrap(err, "update file name")
	}
	return nil
}

// DeleteFile removes a file.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	defer s.observe("delete_file", time.Now())

	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM project_files WHERE id = ?`), fileID)
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	return requireAffected(res, fileID)
}

// UpdateFileContent replaces the persisted content of a file.
func (s *Store) UpdateFileContent(ctx context.Context, fileID, content string) error {
	defer s.observe("update_content", time.Now())

	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE project_files SET content = ?, size = ?, updated_at = ? WHERE id = ?`),
		content, project.ContentSize(content), s.clock(), fileID,
	)
	if err != nil {
		return errors.Wrap(err, "update file content")
	}
	return requireAffected(res, fileID)
}

func (s *Store) insertFile(ctx context.Context, db sqlDBTX, projectID string, spec project.FileSpec, now time.Time) (*project.File, error) {
	fileType := spec.FileType
	if fileType == "" {
		fileType = project.FileTypeForName(spec.Name)
	}
	f := &project.File{
		ID:          s.newID(),
		ProjectID:   projectID,
		Name:        spec.Name,
		FileType:    fileType,
		Content:     spec.Content,
		Path:        project.FilePath(spec.Name),
		StoragePath: project.StoragePath(projectID, spec.Name),
		CreatedAt:   now,
		Size:        project.ContentSize(spec.Content),
	}

	_, err := db.ExecContext(ctx, s.q(`INSERT INTO project_files
(id, project_id, name, file_type, content, path, storage_path, size, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.ID, f.ProjectID, f.Name, string(f.FileType), f.Content, f.Path, f.StoragePath, f.Size, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", spec.Name)
		}
		return nil, errors.Wrap(err, "insert file")
	}
	return f, nil
}

func (s *Store) getProject(ctx context.Context, db sqlDBTX, projectID string) (*project.Project, error) {
	row := db.QueryRowContext(ctx,
		s.q(`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`), projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, project.Errorf(project.ErrCodeNotFound, "project %q not found", projectID)
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) getFile(ctx context.Context, db sqlDBTX, fileID string) (*project.File, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+fileColumns+` FROM project_files WHERE id = ?`), fileID)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
		}
		return nil, err
	}
	return f, nil
}

const fileColumns = `id, project_id, name, file_type, content, path, storage_path, size, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*project.Project, error) {
	var (
		p         project.Project
		updatedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan project")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if updatedAt.Valid {
		at := updatedAt.Time.UTC()
		p.UpdatedAt = &at
	}
	return &p, nil
}

func scanFile(row scanner) (*project.File, error) {
	var (
		f         project.File
		fileType  string
		updatedAt sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Name, &fileType, &f.Content, &f.Path,
		&f.StoragePath, &f.Size, &f.CreatedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan file")
	}
	f.FileType = project.FileType(fileType)
	f.CreatedAt = f.CreatedAt.UTC()
	if updatedAt.Valid {
		at := updatedAt.Time.UTC()
		f.UpdatedAt = &at
	}
	return &f, nil
}

func requireAffected(res sql.Result, fileID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
	}
	return nil
}
