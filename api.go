package aliascache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/aliascache/codec"
	gen "github.com/unkn0wn-root/aliascache/genstore"
	pr "github.com/unkn0wn-root/aliascache/provider"
)

// Store is the backing store the cache reads through to.
type Store interface {
	// FetchByIDs returns the aliases that exist among ids, in any order.
	// Unknown IDs are omitted; an error means the store could not answer.
	FetchByIDs(ctx context.Context, ids []ID) ([]Alias, error)
}

// MetaCache is the sibling metadata cache (see package meta).
type MetaCache interface {
	Prime(ctx context.Context, ids []ID) error
	Delete(ctx context.Context, id ID) error
}

// Listener observes cleaned aliases. Called synchronously, in registration
// order, after the alias left the cache and before the marker moves.
type Listener interface {
	AliasCleaned(ctx context.Context, id ID, alias Alias)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, id ID, alias Alias)

func (f ListenerFunc) AliasCleaned(ctx context.Context, id ID, alias Alias) { f(ctx, id, alias) }

// SetCostFunc sizes a provider write. members is 1 for aliases and the marker,
// N for a cached query result.
type SetCostFunc func(key string, raw []byte, members int) int64

// Options tune the behavior of the cache.
// Namespace, Provider and Store are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace, e.g. "blog-aliases"
	Provider  pr.Provider
	Store     Store

	Meta           MetaCache      // nil => no metadata cascade
	Codec          c.Codec[Alias] // nil => codec.JSON
	MaxDecodeBytes int            // > 0 rejects larger cached payloads
	Logger         Logger         // nil => NopLogger
	Hooks          Hooks          // nil => NopHooks
	TTL            time.Duration  // alias and query entries; 0 => no expiry
	GenStore       gen.GenStore   // nil => in-process LocalGenStore
	Clock          Clock          // nil => wall clock
	ComputeSetCost SetCostFunc    // default 1
	Listeners      []Listener
}

// PrimeOption adjusts a single Prime, Update or GetMany call.
type PrimeOption func(*primeConfig)

type primeConfig struct {
	meta bool
}

func defaultPrimeConfig(opts []PrimeOption) primeConfig {
	cfg := primeConfig{meta: true}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithMeta sets whether fetched aliases cascade into the metadata cache.
// Default true.
func WithMeta(enabled bool) PrimeOption {
	return func(p *primeConfig) { p.meta = enabled }
}

// WithoutMeta is WithMeta(false).
func WithoutMeta() PrimeOption { return WithMeta(false) }
