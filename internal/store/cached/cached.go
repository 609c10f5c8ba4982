// Package cached adds a read-through cache in front of a project.Store.
package cached

import (
	"context"
	"encoding/json"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/db/redis"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

// DefaultTTL is used when no positive TTL is configured.
const DefaultTTL = 5 * time.Minute

// Cache is the key-value subset the store needs, satisfied by *redis.DB.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

var _ Cache = (*redis.DB)(nil)

// Store caches project snapshots and the project list.
//
// Every write goes to the inner store first; the affected cache entries are
// dropped only after it succeeds. Cache failures never fail an operation.
type Store struct {
	inner  project.Store
	cache  Cache
	ttl    time.Duration
	logger logSDK.Logger
	sf     singleflight.Group
}

// New wraps inner with cache.
func New(inner project.Store, cache Cache, ttl time.Duration, logger logSDK.Logger) (*Store, error) {
	if inner == nil || cache == nil {
		return nil, errors.New("inner store and cache are required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Logger.Named("cached_store")
	}
	return &Store{inner: inner, cache: cache, ttl: ttl, logger: logger}, nil
}

func projectKey(projectID string) string {
	return redis.KeyPrefixProject + projectID
}

func fileProjectKey(fileID string) string {
	return redis.KeyPrefixFileProject + fileID
}

// lookup decodes key into out, reporting whether it was a usable hit.
func (s *Store) lookup(ctx context.Context, key string, out any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheLookup(false)
		return false
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			s.logger.Warn("drop corrupt cache entry", zap.String("key", key), zap.Error(err))
			s.invalidate(ctx, key)
			ok = false
		}
	}
	metrics.RecordCacheLookup(ok)
	return ok
}

func (s *Store) put(ctx context.Context, key string, val any) {
	payload, err := json.Marshal(val)
	if err != nil {
		s.logger.Warn("marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
		s.logger.Warn("cache set", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidate", zap.Strings("keys", keys), zap.Error(err))
	}
}

// invalidateFile drops the snapshot of the project owning fileID, when one is indexed.
func (s *Store) invalidateFile(ctx context.Context, fileID string) {
	projectID, ok, err := s.cache.Get(ctx, fileProjectKey(fileID))
	if err != nil {
		s.logger.Warn("cache get", zap.String("file", fileID), zap.Error(err))
		return
	}
	if ok {
		s.invalidate(ctx, projectKey(projectID))
	}
}

// CreateProject creates a project and drops the cached project list.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*project.ProjectWithFiles, error) {
	p, err := s.inner.CreateProject(ctx, name, description)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, redis.KeyProjectList)
	return p, nil
}

// ListProjects serves the project list from cache when possible.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	var ps []project.Project
	if s.lookup(ctx, redis.KeyProjectList, &ps) {
		return ps, nil
	}

	v, err, _ := s.sf.Do(redis.KeyProjectList, func() (any, error) {
		ps, err := s.inner.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		s.put(ctx, redis.KeyProjectList, ps)
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]project.Project), nil
}

// GetProjectWithFiles serves a project snapshot from cache when possible.
func (s *Store) GetProjectWithFiles(ctx context.Context, projectID string) (*project.ProjectWithFiles, error) {
	key := projectKey(projectID)
	cached := new(project.ProjectWithFiles)
	if s.lookup(ctx, key, cached) {
		return cached, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		p, err := s.inner.GetProjectWithFiles(ctx, projectID)
		if err != nil {
			return nil, err
		}
		// index before the snapshot, so a cached snapshot always has its files indexed
		for _, f := range p.Files {
			if err := s.cache.Set(ctx, fileProjectKey(f.ID), p.Project.ID, 2*s.ttl); err != nil {
				s.logger.Warn("cache set", zap.String("file", f.ID), zap.Error(err))
				return p, nil
			}
		}
		s.put(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	// callers may mutate the result, never share it between singleflight waiters
	shared := v.(*project.ProjectWithFiles)
	out := &project.ProjectWithFiles{Project: shared.Project, Files: append([]project.File(nil), shared.Files...)}
	return out, nil
}

// GetFile is not cached.
func (s *Store) GetFile(ctx context.Context, fileID string) (*project.File, error) {
	return s.inner.GetFile(ctx, fileID)
}

// CreateFile creates a file and drops the project snapshot.
func (s *Store) CreateFile(ctx context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	f, err := s.inner.CreateFile(ctx, projectID, spec)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, projectKey(projectID))
	return f, nil
}

// RenameFile renames a file and drops the owning project snapshot.
func (s *Store) RenameFile(ctx context.Context, fileID, newName string) error {
	if err := s.inner.RenameFile(ctx, fileID, newName); err != nil {
		return err
	}
	s.invalidateFile(ctx, fileID)
	return nil
}

// DeleteFile deletes a file and drops the owning project snapshot.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.inner.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.invalidateFile(ctx, fileID)
	s.invalidate(ctx, fileProjectKey(fileID))
	return nil
}

// UpdateFileContent saves content and drops the owning project snapshot.
func (s *Store) UpdateFileContent(ctx context.Context, fileID, content string) error {
	if err := s.inner.UpdateFileContent(ctx, fileID, content); err != nil {
		return err
	}
	s.invalidateFile(ctx, fileID)
	return nil
}
