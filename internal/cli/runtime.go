// Package cli wires configuration into the components the tapestry commands
// run: logger, journal, locker, metrics and the session manager.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/adapters/file"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/adapters/redis"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Runtime holds the shared components built from a Config.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Journal  ports.Journal
	Locker   ports.SessionLocker
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	closers []func() error
}

// NewRuntime builds the components cfg selects.
func NewRuntime(cfg config.Config) (*Runtime, error) {
	r := &Runtime{
		Config:   cfg,
		Logger:   logging.FromConfig(cfg.Log.Level, cfg.Log.Format),
		Registry: prometheus.NewRegistry(),
	}
	r.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.Metrics = observability.NewMetrics(r.Registry)

	switch cfg.Journal.Backend {
	case config.JournalFile:
		r.Journal = file.New(cfg.Journal.Dir)
	case config.JournalRedis:
		j := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix+"journal:"))
		r.Journal = j
		r.closers = append(r.closers, j.Close)
		if cfg.Session.DistributedLock {
			r.Locker = redis.NewLocker(j.Client(), cfg.Redis.Prefix)
		}
	default:
		r.Journal = memory.NewJournal()
	}

	if cfg.Session.DistributedLock && r.Locker == nil {
		r.Close()
		return nil, fmt.Errorf("session.distributed_lock requires the redis journal backend, got %q", cfg.Journal.Backend)
	}
	return r, nil
}

// EngineOptions returns the options every engine built by r carries.
func (r *Runtime) EngineOptions() []tapestry.Option {
	return []tapestry.Option{
		tapestry.WithLogger(r.Logger),
		tapestry.WithJournal(r.Journal),
		tapestry.WithLifecycleHooks(r.Metrics.Hooks()),
	}
}

// Factory returns a session factory that builds a fresh network from spec
// for every session, starting at modelID when set.
func (r *Runtime) Factory(spec model.Spec, modelID string, extra func(sessionID string) []tapestry.Option) session.Factory {
	return func(_ context.Context, sessionID string) (*tapestry.Engine, error) {
		net, err := model.Build(spec)
		if err != nil {
			return nil, fmt.Errorf("build network: %w", err)
		}
		if modelID != "" {
			if err := net.SetCurrent(modelID); err != nil {
				return nil, err
			}
		}
		opts := append(r.EngineOptions(), tapestry.WithSessionID(sessionID), tapestry.WithHeadless(r.Config.Engine.Headless))
		if extra != nil {
			opts = append(opts, extra(sessionID)...)
		}
		return tapestry.New(net, opts...)
	}
}

// Sessions creates a session manager over factory.
func (r *Runtime) Sessions(factory session.Factory) *session.Manager {
	opts := []session.Option{
		session.WithJournal(r.Journal),
		session.WithLogger(r.Logger),
	}
	if r.Config.Session.LockTTL > 0 {
		opts = append(opts, session.WithLockTTL(r.Config.Session.LockTTL))
	}
	if r.Locker != nil {
		opts = append(opts, session.WithLocker(r.Locker))
	}
	return session.NewManager(factory, opts...)
}

// Close releases backend connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}
