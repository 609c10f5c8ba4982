package cmd

import (
	"context"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/store/cached"
	"github.com/Laisky/texpad/internal/store/dirstore"
	"github.com/Laisky/texpad/internal/store/mirror"
	"github.com/Laisky/texpad/internal/store/mongostore"
	"github.com/Laisky/texpad/internal/store/remote"
	"github.com/Laisky/texpad/internal/store/sqlstore"
	"github.com/Laisky/texpad/library/blob"
	"github.com/Laisky/texpad/library/db/mongo"
	"github.com/Laisky/texpad/library/db/postgres"
	"github.com/Laisky/texpad/library/db/redis"
	"github.com/Laisky/texpad/library/db/sqlite"
	"github.com/Laisky/texpad/library/log"
)

// store backends selectable by settings.store.backend
const (
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
	backendMongo    = "mongo"
	backendDir      = "dir"
	backendRemote   = "remote"
)

var storeBackends = []string{backendSQLite, backendPostgres, backendMongo, backendDir, backendRemote}

// openedStore is a configured project.Store and what it holds open.
type openedStore struct {
	project.Store
	backend string
	// dir is set for the directory backend, it can watch for external edits.
	dir     *dirstore.Store
	closers []func(context.Context) error
}

// Close releases every connection opened for the store and returns the first failure.
func (s *openedStore) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close store")
		}
	}
	return firstErr
}

func storeBackend() string {
	backend := strings.ToLower(strings.TrimSpace(gconfig.S.GetString("settings.store.backend")))
	if backend == "" {
		return backendSQLite
	}
	return backend
}

func msFromConfig(key string) time.Duration {
	return time.Duration(gconfig.S.GetInt(key)) * time.Millisecond
}

// openStore builds the configured backend and its optional mirror and cache layers.
func openStore(ctx context.Context) (_ *openedStore, err error) {
	st := &openedStore{backend: storeBackend()}
	defer func() {
		if err != nil {
			_ = st.Close(context.Background())
		}
	}()

	logger := log.Logger.Named("store")
	switch st.backend {
	case backendSQLite:
		db, err := sqlite.NewDB(ctx, gconfig.S.GetString("settings.store.sqlite.dsn"))
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		if st.Store, err = sqlstore.New(ctx, db, logger.Named("sqlite"), nil); err != nil {
			return nil, errors.Wrap(err, "new sql store")
		}
	case backendPostgres:
		db, err := postgres.NewDB(ctx, postgres.DialInfo{
			Addr:   gconfig.S.GetString("settings.db.postgres.addr"),
			Port:   gconfig.S.GetInt("settings.db.postgres.port"),
			DBName: gconfig.S.GetString("settings.db.postgres.db"),
			User:   gconfig.S.GetString("settings.db.postgres.user"),
			Pwd:    gconfig.S.GetString("settings.db.postgres.pwd"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		if st.Store, err = sqlstore.New(ctx, db, logger.Named("postgres"), nil); err != nil {
			return nil, errors.Wrap(err, "new sql store")
		}
	case backendMongo:
		db, err := mongo.NewDB(ctx, mongo.DialInfo{
			Addr:   gconfig.S.GetString("settings.db.mongo.addr"),
			DBName: gconfig.S.GetString("settings.db.mongo.db"),
			User:   gconfig.S.GetString("settings.db.mongo.user"),
			Pwd:    gconfig.S.GetString("settings.db.mongo.pwd"),
			AuthDB: gconfig.S.GetString("settings.db.mongo.auth_db"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "open mongo")
		}
		st.closers = append(st.closers, db.Close)
		if st.Store, err = mongostore.New(ctx, db, logger.Named("mongo"), nil); err != nil {
			return nil, errors.Wrap(err, "new mongo store")
		}
	case backendDir:
		root := gconfig.S.GetString("settings.store.dir.root")
		if root == "" {
			root = "texpad-projects"
		}
		if st.dir, err = dirstore.New(root, logger.Named("dir"), nil); err != nil {
			return nil, errors.Wrap(err, "new dir store")
		}
		st.Store = st.dir
	case backendRemote:
		if st.Store, err = remote.New(
			gconfig.S.GetString("settings.store.remote.url"),
			gconfig.S.GetString("settings.store.remote.token"),
			msFromConfig("settings.store.remote.timeout_ms"),
			logger.Named("remote"),
		); err != nil {
			return nil, errors.Wrap(err, "new remote store")
		}
	default:
		return nil, errors.Errorf("unknown store backend %q", st.backend)
	}

	if err = wrapMirror(ctx, st); err != nil {
		return nil, err
	}
	if err = wrapCache(ctx, st); err != nil {
		return nil, err
	}

	logger.Info("store opened", zap.String("backend", st.backend))
	return st, nil
}

func wrapMirror(ctx context.Context, st *openedStore) error {
	endpoint := gconfig.S.GetString("settings.store.mirror.endpoint")
	if endpoint == "" {
		return nil
	}

	bucket, err := blob.New(ctx, blob.Config{
		Endpoint:  endpoint,
		AccessKey: gconfig.S.GetString("settings.store.mirror.access_key"),
		SecretKey: gconfig.S.GetString("settings.store.mirror.secret_key"),
		Bucket:    gconfig.S.GetString("settings.store.mirror.bucket"),
		Prefix:    gconfig.S.GetString("settings.store.mirror.prefix"),
		Secure:    gconfig.S.GetBool("settings.store.mirror.secure"),
	})
	if err != nil {
		return errors.Wrap(err, "open mirror bucket")
	}

	mirrored, err := mirror.New(st.Store, bucket, log.Logger.Named("mirror"))
	if err != nil {
		return errors.Wrap(err, "new mirror store")
	}
	st.Store = mirrored
	return nil
}

func wrapCache(ctx context.Context, st *openedStore) error {
	addr := gconfig.S.GetString("settings.db.redis.addr")
	if addr == "" {
		return nil
	}

	rdb, err := redis.NewDB(ctx, &goredis.Options{
		Addr:     addr,
		Password: gconfig.S.GetString("settings.db.redis.pwd"),
		DB:       gconfig.S.GetInt("settings.db.redis.db"),
	})
	if err != nil {
		return errors.Wrap(err, "open redis")
	}
	st.closers = append(st.closers, func(context.Context) error { return rdb.Close() })

	ttl := time.Duration(gconfig.S.GetInt("settings.store.cache.ttl_seconds")) * time.Second
	cachedStore, err := cached.New(st.Store, rdb, ttl, log.Logger.Named("cache"))
	if err != nil {
		return errors.Wrap(err, "new cached store")
	}
	st.Store = cachedStore
	return nil
}
