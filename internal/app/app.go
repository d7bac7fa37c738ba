// Package app wires the alias cache, the metadata cache and the SQLite store
// from a config.Config.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.trai.ch/zerr"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/aliascache"
	c "github.com/unkn0wn-root/aliascache/codec"
	gen "github.com/unkn0wn-root/aliascache/genstore"
	asynchook "github.com/unkn0wn-root/aliascache/hooks/async"
	"github.com/unkn0wn-root/aliascache/internal/config"
	lr "github.com/unkn0wn-root/aliascache/log/logrus"
	lz "github.com/unkn0wn-root/aliascache/log/zap"
	"github.com/unkn0wn-root/aliascache/meta"
	pr "github.com/unkn0wn-root/aliascache/provider"
	"github.com/unkn0wn-root/aliascache/provider/bigcache"
	rp "github.com/unkn0wn-root/aliascache/provider/redis"
	"github.com/unkn0wn-root/aliascache/provider/ristretto"
	"github.com/unkn0wn-root/aliascache/sloghooks"
	"github.com/unkn0wn-root/aliascache/store/sqlite"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Aliases *aliascache.Cache
	Meta    *meta.Cache
	Store   *sqlite.Store
	Log     aliascache.Logger

	closers []func(context.Context) error
}

// Components lets callers replace parts of the default wiring.
type Components struct {
	Logger   aliascache.Logger // nil => built from cfg.Log
	Store    *sqlite.Store     // nil => opened from cfg.Store.DSN
	Provider pr.Provider       // nil => built from cfg.Provider
}

// Build wires an App from cfg.
func Build(cfg config.Config, comp Components) (*App, error) {
	a := &App{Log: comp.Logger}
	fail := func(err error) (*App, error) {
		_ = a.Close(context.Background())
		return nil, err
	}

	if a.Log == nil {
		log, flush, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.Log = log
		a.closers = append(a.closers, func(context.Context) error { flush(); return nil })
	}

	a.Store = comp.Store
	if a.Store == nil {
		st, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return fail(zerr.With(zerr.Wrap(err, "failed to open store"), "dsn", cfg.Store.DSN))
		}
		a.Store = st
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	}

	provider := comp.Provider
	var genStore gen.GenStore
	if provider == nil {
		p, gs, closeFn, err := newProvider(cfg)
		if err != nil {
			return fail(err)
		}
		provider, genStore = p, gs
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}

	codec, err := newCodec(cfg.Codec)
	if err != nil {
		return fail(err)
	}

	hooks := asynchook.New(sloghooks.New(slog.New(slog.NewTextHandler(os.Stderr, nil)), sloghooks.Options{
		SelfHealEvery:    10,
		QueryRejectEvery: 10,
		StaleWriteEvery:  10,
	}), 1, 256)
	a.closers = append(a.closers, func(context.Context) error { hooks.Close(); return nil })

	m, err := meta.New(meta.Options{
		Namespace: cfg.MetaNamespace,
		Provider:  provider,
		Store:     a.Store,
		Logger:    a.Log,
		TTL:       cfg.TTL,

		// nil unless redis shares gens; meta keys carry their own namespace
		GenStore: genStore,
	})
	if err != nil {
		return fail(err)
	}
	a.Meta = m
	a.closers = append(a.closers, m.Close)

	cc, err := aliascache.New(aliascache.Options{
		Namespace: cfg.Namespace,
		Provider:  provider,
		Store:     a.Store,
		Meta:      m,
		Codec:     codec,
		Logger:    a.Log,
		Hooks:     hooks,
		TTL:       cfg.TTL,
		GenStore:  genStore,
	})
	if err != nil {
		return fail(err)
	}
	a.Aliases = cc
	// the cache owns the provider and the gen store from here on
	a.closers = append(a.closers, cc.Close)

	a.Aliases.Subscribe(aliascache.ListenerFunc(func(_ context.Context, id aliascache.ID, alias aliascache.Alias) {
		a.Log.Info("alias cleaned", aliascache.Fields{"id": id, "domain": alias.Domain})
	}))
	return a, nil
}

// Close releases everything Build opened.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the configured logging backend. The returned func flushes it.
func NewLogger(cfg config.LogConfig) (aliascache.Logger, func(), error) {
	switch cfg.Backend {
	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		if cfg.Level != "" {
			lvl, err := logrus.ParseLevel(cfg.Level)
			if err != nil {
				return nil, nil, zerr.With(zerr.Wrap(err, "invalid log level"), "level", cfg.Level)
			}
			l.SetLevel(lvl)
		}
		return lr.New(l), func() {}, nil
	default:
		zc := zap.NewProductionConfig()
		if cfg.Level != "" {
			lvl, err := zap.ParseAtomicLevel(cfg.Level)
			if err != nil {
				return nil, nil, zerr.With(zerr.Wrap(err, "invalid log level"), "level", cfg.Level)
			}
			zc.Level = lvl
		}
		l, err := zc.Build()
		if err != nil {
			return nil, nil, zerr.Wrap(err, "failed to build logger")
		}
		return lz.New(l), func() { _ = l.Sync() }, nil
	}
}

func newProvider(cfg config.Config) (pr.Provider, gen.GenStore, func(context.Context) error, error) {
	pc := cfg.Provider
	switch pc.Type {
	case config.Ristretto:
		p, err := ristretto.New(ristretto.Config{
			NumCounters: pc.Ristretto.NumCounters,
			MaxCost:     pc.Ristretto.MaxCost,
			BufferItems: pc.Ristretto.BufferItems,
			Metrics:     pc.Ristretto.Metrics,
		})
		if err != nil {
			return nil, nil, nil, zerr.Wrap(err, "failed to create ristretto provider")
		}
		return p, nil, nil, nil

	case config.BigCache:
		p, err := bigcache.New(bigcache.Config{
			LifeWindow:         pc.BigCache.LifeWindow,
			CleanWindow:        pc.BigCache.CleanWindow,
			HardMaxCacheSizeMB: pc.BigCache.HardMaxMB,
		})
		if err != nil {
			return nil, nil, nil, zerr.Wrap(err, "failed to create bigcache provider")
		}
		return p, nil, nil, nil

	case config.Redis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     pc.Redis.Addr,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
		})
		p, err := rp.New(rp.Config{Client: client})
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, zerr.Wrap(err, "failed to create redis provider")
		}
		var gs gen.GenStore
		if pc.Redis.SharedGens {
			gs = gen.NewRedisGenStore(client, gen.RedisOptions{Namespace: cfg.Namespace})
		}
		return p, gs, func(context.Context) error { return client.Close() }, nil
	}
	return nil, nil, nil, zerr.With(config.ErrUnknownProvider, "provider", pc.Type)
}

func newCodec(name string) (c.Codec[aliascache.Alias], error) {
	switch name {
	case "", "json":
		return c.JSON[aliascache.Alias]{}, nil
	case "msgpack":
		return c.Msgpack[aliascache.Alias]{}, nil
	case "cbor":
		cb, err := c.NewCBOR[aliascache.Alias](true)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to create cbor codec")
		}
		return cb, nil
	}
	return nil, zerr.With(config.ErrUnknownCodec, "codec", name)
}
