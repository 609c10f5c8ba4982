package sqlstore

import (
	"context"

	errors "github.com/Laisky/errors/v2"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NULL
)`,
	`CREATE TABLE IF NOT EXISTS project_files (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  file_type TEXT NOT NULL,
  content TEXT NOT NULL,
  path TEXT NOT NULL,
  storage_path TEXT NOT NULL,
  size BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_project_files_project_name ON project_files (project_id, name)`,
	`CREATE INDEX IF NOT EXISTS idx_project_files_created ON project_files (project_id, created_at)`,
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "run migration %d", i)
		}
	}

	s.logger.Debug("sql store migrated")
	return nil
}
