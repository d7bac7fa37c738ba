package aliascache

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/unkn0wn-root/aliascache/internal/util"
	"github.com/unkn0wn-root/aliascache/internal/wire"
)

func (cc *Cache) markerKey() string { return "marker:" + cc.ns + ":last_changed" }

// LastChanged returns the namespace's change marker, writing one first if
// none is stored yet.
func (cc *Cache) LastChanged(ctx context.Context) (time.Time, error) {
	t, ok, err := cc.readMarker(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return t, nil
	}
	return cc.touchMarker(ctx)
}

func (cc *Cache) readMarker(ctx context.Context) (time.Time, bool, error) {
	k := cc.markerKey()
	raw, ok, err := cc.provider.Get(ctx, k)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	_, payload, err := wire.DecodeSingle(raw)
	if err != nil {
		cc.selfHeal(ctx, k, "corrupt")
		return time.Time{}, false, nil
	}
	ts, err := cc.markerCodec.Decode(payload)
	if err != nil || ts.CheckValid() != nil {
		cc.selfHeal(ctx, k, "value_decode")
		return time.Time{}, false, nil
	}
	return ts.AsTime(), true, nil
}

// touchMarker stores a marker strictly later than both the stored one and the
// last one this Cache wrote, even when the clock stalls or steps back.
func (cc *Cache) touchMarker(ctx context.Context) (time.Time, error) {
	stored, _, err := cc.readMarker(ctx)
	if err != nil {
		return time.Time{}, err
	}

	cc.mu.Lock()
	next := cc.clock.Now().UTC()
	for _, prev := range []time.Time{stored, cc.lastMarker} {
		if !next.After(prev) {
			next = prev.Add(time.Microsecond)
		}
	}
	cc.lastMarker = next
	cc.mu.Unlock()

	payload, err := cc.markerCodec.Encode(timestamppb.New(next))
	if err != nil {
		return time.Time{}, err
	}
	k := cc.markerKey()
	raw := wire.EncodeSingle(0, payload)
	ok, err := cc.provider.Set(ctx, k, raw, cc.computeSetCost(k, raw, 1), 0)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		cc.hooks.ProviderSetRejected(k)
		return time.Time{}, fmt.Errorf("aliascache: provider rejected %s", k)
	}
	return next, nil
}

// QueryKey derives a cache key for query that changes whenever any alias in
// the namespace is cleaned.
func (cc *Cache) QueryKey(ctx context.Context, query string) (string, error) {
	marker, err := cc.LastChanged(ctx)
	if err != nil {
		return "", err
	}
	return util.HashKey("query:"+cc.ns, query, marker.Format(time.RFC3339Nano)), nil
}

// SetQuery caches the result IDs of query.
func (cc *Cache) SetQuery(ctx context.Context, query string, ids []ID) error {
	k, err := cc.QueryKey(ctx, query)
	if err != nil {
		return err
	}
	gens := cc.snapshotGens(ctx, ids)
	items := make([]wire.BulkItem, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		items = append(items, wire.BulkItem{Key: id.String(), Gen: gens[cc.key(id)]})
	}
	raw, err := wire.EncodeBulk(items)
	if err != nil {
		return err
	}
	ok, err := cc.provider.Set(ctx, k, raw, cc.computeSetCost(k, raw, len(items)), cc.ttl)
	if err != nil {
		return err
	}
	if !ok {
		cc.hooks.ProviderSetRejected(k)
		cc.log.Debug("query Set rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

// GetQuery returns the cached result IDs of query in the order they were
// stored. A result is dropped when any member was cleaned after it was cached.
func (cc *Cache) GetQuery(ctx context.Context, query string) ([]ID, bool, error) {
	k, err := cc.QueryKey(ctx, query)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := cc.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}

	items, err := wire.DecodeBulk(raw)
	if err != nil {
		cc.rejectQuery(ctx, k, 0, "decode_error")
		return nil, false, nil
	}
	ids := make([]ID, 0, len(items))
	for _, it := range items {
		id, ok := parseStorageID(it.Key)
		if !ok {
			cc.rejectQuery(ctx, k, len(items), "decode_error")
			return nil, false, nil
		}
		ids = append(ids, id)
	}
	gens := cc.snapshotGens(ctx, ids)
	for i, it := range items {
		if gens[cc.key(ids[i])] != it.Gen {
			cc.rejectQuery(ctx, k, len(items), "stale_member")
			return nil, false, nil
		}
	}
	return ids, true, nil
}

func (cc *Cache) rejectQuery(ctx context.Context, k string, members int, reason string) {
	_ = cc.provider.Del(ctx, k)
	cc.hooks.QueryRejected(cc.ns, members, reason)
	cc.log.Debug("dropped cached query", Fields{"key": k, "reason": reason})
}
