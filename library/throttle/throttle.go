// Package throttle limits request rates in total and per client.
package throttle

import (
	"context"
	"sync"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"

	"github.com/Laisky/texpad/library/log"
)

// Config configuration for Throttle
type Config struct {
	TotalNPerSec, TotalBurst int
	EachNPerSec, EachBurst   int
}

// Throttle is a token bucket shared by all clients plus one bucket per client key
type Throttle struct {
	sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	total  *gutils.Throttle
	each   *sync.Map
}

// New create new Throttle, its buckets stop when ctx is done or Close is called
func New(ctx context.Context, cfg Config) (t *Throttle, err error) {
	if cfg.TotalNPerSec <= 0 || cfg.EachNPerSec <= 0 {
		return nil, errors.New("NPerSec must bigger than 0")
	}
	if cfg.TotalBurst < cfg.TotalNPerSec || cfg.EachBurst < cfg.EachNPerSec {
		return nil, errors.New("burst must bigger than NPerSec")
	}

	ctx, cancel := context.WithCancel(ctx)
	total, err := gutils.NewThrottleWithCtx(ctx, &gutils.ThrottleCfg{
		Max:     cfg.TotalBurst,
		NPerSec: cfg.TotalNPerSec,
	})
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "create total throttle")
	}

	return &Throttle{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		total:  total,
		each:   new(sync.Map),
	}, nil
}

// Allow reports whether key may send one more request
func (t *Throttle) Allow(key string) bool {
	tt, err := t.bucket(key)
	if err != nil {
		log.Logger.Error("create throttle for key", zap.Error(err),
			zap.String("key", key),
			zap.Int("Max", t.cfg.EachBurst),
			zap.Int("NPerSec", t.cfg.EachNPerSec))
		return false
	}

	return tt.Allow() && t.total.Allow()
}

func (t *Throttle) bucket(key string) (*gutils.Throttle, error) {
	if tti, ok := t.each.Load(key); ok {
		return tti.(*gutils.Throttle), nil
	}

	t.Lock()
	defer t.Unlock()
	if tti, ok := t.each.Load(key); ok {
		return tti.(*gutils.Throttle), nil
	}

	tt, err := gutils.NewThrottleWithCtx(t.ctx, &gutils.ThrottleCfg{
		Max:     t.cfg.EachBurst,
		NPerSec: t.cfg.EachNPerSec,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new throttle")
	}
	t.each.Store(key, tt)
	return tt, nil
}

// Close stops every bucket
func (t *Throttle) Close() {
	t.cancel()
}
