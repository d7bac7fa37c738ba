package aliascache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	c "github.com/unkn0wn-root/aliascache/codec"
	gen "github.com/unkn0wn-root/aliascache/genstore"
	"github.com/unkn0wn-root/aliascache/internal/wire"
	pr "github.com/unkn0wn-root/aliascache/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// Cache primes, populates and cleans cached aliases in one namespace.
// Safe for concurrent use as long as the Provider and Store are.
type Cache struct {
	ns             string
	provider       pr.Provider
	store          Store
	meta           MetaCache
	codec          c.Codec[Alias]
	markerCodec    c.Protobuf[*timestamppb.Timestamp]
	log            Logger
	hooks          Hooks
	ttl            time.Duration
	gen            gen.GenStore
	clock          Clock
	computeSetCost SetCostFunc

	mu         sync.Mutex
	listeners  []Listener
	lastMarker time.Time
}

func New(opts Options) (*Cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("aliascache: provider is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("aliascache: store is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("aliascache: namespace is required")
	}

	cc := &Cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		store:    opts.Store,
		meta:     opts.Meta,
		ttl:      opts.TTL,
		markerCodec: c.NewProtobuf(func() *timestamppb.Timestamp {
			return &timestamppb.Timestamp{}
		}),
		listeners: append([]Listener(nil), opts.Listeners...),
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.clock = coalesce[Clock](opts.Clock, realClock{})
	cc.codec = coalesce[c.Codec[Alias]](opts.Codec, c.JSON[Alias]{})
	if opts.MaxDecodeBytes > 0 {
		cc.codec = c.LimitCodec[Alias]{Inner: cc.codec, MaxDecode: opts.MaxDecodeBytes}
	}

	if opts.ComputeSetCost != nil {
		cc.computeSetCost = opts.ComputeSetCost
	} else {
		cc.computeSetCost = func(string, []byte, int) int64 { return 1 }
	}

	if opts.GenStore != nil {
		cc.gen = opts.GenStore
	} else {
		cc.gen = gen.NewLocalGenStore(gen.LocalOptions{
			CleanupInterval: defaultSweep,
			Retention:       defaultGenRetention,
		})
	}

	return cc, nil
}

// Namespace returns the cache namespace.
func (cc *Cache) Namespace() string { return cc.ns }

// Subscribe registers l for clean notifications.
func (cc *Cache) Subscribe(l Listener) {
	cc.mu.Lock()
	cc.listeners = append(cc.listeners, l)
	cc.mu.Unlock()
}

func (cc *Cache) Close(ctx context.Context) error {
	// gen store first (best effort)
	if cc.gen != nil {
		_ = cc.gen.Close(ctx)
	}
	return cc.provider.Close(ctx)
}

// Get returns a cached alias. It never reads the backing store.
func (cc *Cache) Get(ctx context.Context, id ID) (Alias, bool, error) {
	k := cc.key(id)
	return cc.lookup(ctx, k, cc.snapshotGen(ctx, k))
}

// lookup reads k and validates it against currentGen, deleting entries that
// are corrupt, stale or undecodable.
func (cc *Cache) lookup(ctx context.Context, k string, currentGen uint64) (Alias, bool, error) {
	var zero Alias
	raw, ok, err := cc.provider.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	g, payload, err := wire.DecodeSingle(raw)
	if err != nil {
		cc.selfHeal(ctx, k, "corrupt")
		return zero, false, nil
	}
	if g != currentGen {
		cc.selfHeal(ctx, k, "gen_mismatch")
		return zero, false, nil
	}
	a, err := cc.codec.Decode(payload)
	if err != nil {
		cc.selfHeal(ctx, k, "value_decode")
		return zero, false, nil
	}
	return a, true, nil
}

func (cc *Cache) selfHeal(ctx context.Context, k, reason string) {
	_ = cc.provider.Del(ctx, k)
	cc.hooks.SelfHeal(k, reason)
	cc.log.Debug("dropped cached alias", Fields{"key": k, "reason": reason})
}

// NonCachedIDs returns the IDs among ids with no valid cache entry,
// deduplicated, in first-seen order. Non-positive IDs are ignored.
func (cc *Cache) NonCachedIDs(ctx context.Context, ids []ID) ([]ID, error) {
	uniq := uniqueIDs(ids)
	if len(uniq) == 0 {
		return nil, nil
	}
	gens := cc.snapshotGens(ctx, uniq)

	var missing []ID
	for _, id := range uniq {
		k := cc.key(id)
		_, ok, err := cc.lookup(ctx, k, gens[k])
		if err != nil {
			return nil, fmt.Errorf("aliascache: read %s: %w", k, err)
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Prime loads every alias in ids that is not cached yet with a single
// FetchByIDs call and adds the results. It does nothing when ids is empty or
// fully cached. Metadata priming cascades unless WithoutMeta is given.
func (cc *Cache) Prime(ctx context.Context, ids []ID, opts ...PrimeOption) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := cc.NonCachedIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	// snapshot before the store read: anything cleaned meanwhile is not written
	observed := cc.snapshotGens(ctx, missing)

	fresh, err := cc.store.FetchByIDs(ctx, missing)
	if err != nil {
		cc.hooks.StoreError("fetch", len(missing), err)
		return storeErr("fetch", len(missing), err)
	}
	cc.log.Debug("primed aliases", Fields{"ns": cc.ns, "requested": len(missing), "found": len(fresh)})

	return cc.populate(ctx, fresh, observed, defaultPrimeConfig(opts))
}

// Update adds aliases to the cache. Existing entries are never overwritten.
// Metadata priming cascades for the same IDs unless WithoutMeta is given.
func (cc *Cache) Update(ctx context.Context, aliases []Alias, opts ...PrimeOption) error {
	return cc.populate(ctx, aliases, nil, defaultPrimeConfig(opts))
}

// populate writes aliases with add semantics. With observed != nil an alias is
// skipped when its generation moved since the snapshot.
func (cc *Cache) populate(ctx context.Context, aliases []Alias, observed map[string]uint64, cfg primeConfig) error {
	if len(aliases) == 0 {
		return nil
	}

	ids := uniqueIDs(IDs(aliases))
	current := cc.snapshotGens(ctx, ids)

	var errs []error
	for _, a := range aliases {
		if a.ID <= 0 {
			continue
		}
		k := cc.key(a.ID)
		g := current[k]
		if observed != nil {
			if obs, ok := observed[k]; !ok || obs != g {
				cc.hooks.StaleWriteSkipped(k)
				cc.log.Debug("add skipped (gen mismatch)", Fields{"key": k, "obs": obs, "gen": g})
				continue
			}
		}
		payload, err := cc.codec.Encode(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("aliascache: encode alias %d: %w", a.ID, err))
			continue
		}
		raw := wire.EncodeSingle(g, payload)
		added, err := cc.provider.Add(ctx, k, raw, cc.computeSetCost(k, raw, 1), cc.ttl)
		if err != nil {
			errs = append(errs, fmt.Errorf("aliascache: add %s: %w", k, err))
			continue
		}
		if !added {
			cc.addNotApplied(ctx, k)
		}
	}

	if cfg.meta && cc.meta != nil {
		if err := cc.meta.Prime(ctx, ids); err != nil {
			errs = append(errs, fmt.Errorf("aliascache: prime meta: %w", err))
		}
	}
	return errors.Join(errs...)
}

// addNotApplied tells a key that was already cached apart from a write the
// provider dropped under pressure.
func (cc *Cache) addNotApplied(ctx context.Context, k string) {
	_, present, err := cc.provider.Get(ctx, k)
	switch {
	case err != nil:
		cc.log.Debug("add skipped (presence unknown)", Fields{"key": k, "err": err})
	case present:
		cc.log.Debug("add skipped (present)", Fields{"key": k})
	default:
		cc.hooks.ProviderSetRejected(k)
		cc.log.Debug("add rejected by provider", Fields{"key": k})
	}
}

// GetMany primes ids and returns what is cached afterwards along with the IDs
// that do not exist in the backing store.
func (cc *Cache) GetMany(ctx context.Context, ids []ID, opts ...PrimeOption) (map[ID]Alias, []ID, error) {
	if err := cc.Prime(ctx, ids, opts...); err != nil {
		return nil, nil, err
	}
	uniq := uniqueIDs(ids)
	gens := cc.snapshotGens(ctx, uniq)

	out := make(map[ID]Alias, len(uniq))
	var missing []ID
	for _, id := range uniq {
		k := cc.key(id)
		a, ok, err := cc.lookup(ctx, k, gens[k])
		if err != nil {
			return nil, nil, fmt.Errorf("aliascache: read %s: %w", k, err)
		}
		if ok {
			out[id] = a
		} else {
			missing = append(missing, id)
		}
	}
	return out, missing, nil
}

// SnapshotGen exposes the current generation of id.
func (cc *Cache) SnapshotGen(ctx context.Context, id ID) uint64 {
	return cc.snapshotGen(ctx, cc.key(id))
}

func (cc *Cache) snapshotGen(ctx context.Context, storageKey string) uint64 {
	g, err := cc.gen.Snapshot(ctx, storageKey)
	if err != nil {
		// Conservative: treat as 0 so guarded writes skip; reads will self-heal
		cc.hooks.GenSnapshotError(1, err)
		cc.log.Warn("gen snapshot error", Fields{"key": storageKey, "err": err})
		return 0
	}
	return g
}

// snapshotGens returns generations keyed by storage key.
func (cc *Cache) snapshotGens(ctx context.Context, ids []ID) map[string]uint64 {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cc.key(id)
	}
	m, err := cc.gen.SnapshotMany(ctx, keys)
	if err == nil {
		return m
	}
	cc.hooks.GenSnapshotError(len(keys), err)
	// fall back to one by one
	out := make(map[string]uint64, len(keys))
	for _, k := range keys {
		out[k] = cc.snapshotGen(ctx, k)
	}
	return out
}

func (cc *Cache) key(id ID) string {
	return StorageKey(cc.ns, id)
}

// StorageKey is the provider key of id in namespace ns. The meta package
// uses the same layout for its own namespace.
func StorageKey(ns string, id ID) string {
	return "single:" + ns + ":" + id.String()
}

// parseStorageID is the inverse of StorageKey's ID part.
func parseStorageID(s string) (ID, bool) {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return ID(n), true
}

func uniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
