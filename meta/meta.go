// Package meta caches per-alias metadata next to the alias cache.
//
// Entries live under "single:<ns>:<id>" in their own namespace, framed like
// alias entries and guarded by their own generations. An alias with no
// metadata is cached as an empty Meta so a second Prime does not reach the
// store again.
package meta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/aliascache"
	c "github.com/unkn0wn-root/aliascache/codec"
	gen "github.com/unkn0wn-root/aliascache/genstore"
	"github.com/unkn0wn-root/aliascache/internal/wire"
	pr "github.com/unkn0wn-root/aliascache/provider"
)

// Meta maps a meta key to its values.
type Meta map[string][]string

// Store loads metadata for many aliases at once.
type Store interface {
	// FetchMeta returns metadata for the ids that have any. Missing ids are omitted.
	FetchMeta(ctx context.Context, ids []aliascache.ID) (map[aliascache.ID]Meta, error)
}

type Options struct {
	Namespace string // required, e.g. "blog_alias_meta"
	Provider  pr.Provider
	Store     Store

	Codec  c.Codec[Meta]     // nil => codec.Msgpack
	Logger aliascache.Logger // nil => NopLogger
	TTL    time.Duration     // 0 => no expiry

	GenStore gen.GenStore // nil => local in-process gens
}

// Cache is safe for concurrent use as long as Provider and Store are.
type Cache struct {
	ns       string
	provider pr.Provider
	store    Store
	codec    c.Codec[Meta]
	log      aliascache.Logger
	ttl      time.Duration
	gen      gen.GenStore
}

var _ aliascache.MetaCache = (*Cache)(nil)

func New(opts Options) (*Cache, error) {
	if opts.Namespace == "" {
		return nil, errors.New("meta: namespace is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("meta: provider is required")
	}
	if opts.Store == nil {
		return nil, errors.New("meta: store is required")
	}
	m := &Cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		store:    opts.Store,
		codec:    opts.Codec,
		log:      opts.Logger,
		ttl:      opts.TTL,
		gen:      opts.GenStore,
	}
	if m.codec == nil {
		m.codec = c.Msgpack[Meta]{}
	}
	if m.log == nil {
		m.log = aliascache.NopLogger{}
	}
	if m.gen == nil {
		m.gen = gen.NewLocalGenStore(gen.LocalOptions{})
	}
	return m, nil
}

func (m *Cache) key(id aliascache.ID) string { return aliascache.StorageKey(m.ns, id) }

// Get returns cached metadata for id.
func (m *Cache) Get(ctx context.Context, id aliascache.ID) (Meta, bool, error) {
	k := m.key(id)
	raw, ok, err := m.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	g, payload, err := wire.DecodeSingle(raw)
	if err != nil {
		_ = m.provider.Del(ctx, k)
		return nil, false, nil
	}
	cur, err := m.gen.Snapshot(ctx, k)
	if err != nil {
		return nil, false, fmt.Errorf("meta: snapshot %s: %w", k, err)
	}
	if g != cur {
		_ = m.provider.Del(ctx, k)
		m.log.Debug("dropped stale meta", aliascache.Fields{"key": k, "gen": g, "current": cur})
		return nil, false, nil
	}
	v, err := m.codec.Decode(payload)
	if err != nil {
		_ = m.provider.Del(ctx, k)
		return nil, false, nil
	}
	if v == nil {
		v = Meta{}
	}
	return v, true, nil
}

// Prime fetches metadata for the ids that are not cached, in one store call.
func (m *Cache) Prime(ctx context.Context, ids []aliascache.ID) error {
	var missing []aliascache.ID
	seen := make(map[aliascache.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		_, ok, err := m.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	keys := make([]string, len(missing))
	for i, id := range missing {
		keys[i] = m.key(id)
	}
	observed, err := m.gen.SnapshotMany(ctx, keys)
	if err != nil {
		return fmt.Errorf("meta: snapshot gens: %w", err)
	}

	fetched, err := m.store.FetchMeta(ctx, missing)
	if err != nil {
		return fmt.Errorf("%w: fetch meta for %d alias(es): %w", aliascache.ErrStore, len(missing), err)
	}

	current, err := m.gen.SnapshotMany(ctx, keys)
	if err != nil {
		return fmt.Errorf("meta: snapshot gens: %w", err)
	}

	var errs []error
	for _, id := range missing {
		k := m.key(id)
		g := current[k]
		if observed[k] != g {
			m.log.Debug("meta add skipped (gen mismatch)", aliascache.Fields{"key": k, "obs": observed[k], "gen": g})
			continue
		}
		v := fetched[id]
		if v == nil {
			v = Meta{}
		}
		payload, err := m.codec.Encode(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("meta: encode %d: %w", id, err))
			continue
		}
		if _, err := m.provider.Add(ctx, k, wire.EncodeSingle(g, payload), 1, m.ttl); err != nil {
			errs = append(errs, fmt.Errorf("meta: add %s: %w", k, err))
		}
	}
	m.log.Debug("primed alias meta", aliascache.Fields{"ns": m.ns, "requested": len(missing), "found": len(fetched)})
	return errors.Join(errs...)
}

// Delete bumps the generation of id and drops its cached metadata. Either step
// alone invalidates the entry, so an error is returned only when both fail.
func (m *Cache) Delete(ctx context.Context, id aliascache.ID) error {
	k := m.key(id)
	_, bumpErr := m.gen.Bump(ctx, k)
	delErr := m.provider.Del(ctx, k)
	if bumpErr != nil && delErr != nil {
		return errors.Join(
			fmt.Errorf("meta: bump %s: %w", k, bumpErr),
			fmt.Errorf("meta: delete %s: %w", k, delErr),
		)
	}
	if bumpErr != nil || delErr != nil {
		m.log.Warn("meta delete partially failed", aliascache.Fields{"key": k, "bump_err": bumpErr, "del_err": delErr})
	}
	return nil
}

// Close releases the generation store. The provider belongs to the caller.
func (m *Cache) Close(ctx context.Context) error {
	return m.gen.Close(ctx)
}
