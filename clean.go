package aliascache

import (
	"context"
)

// Clean removes an alias and its metadata from the cache, notifies listeners
// and advances the last-changed marker.
//
// ref is an ID or an Alias. An Alias with a positive ID is used as is; an ID
// is resolved through the cache and then the backing store. Clean is a no-op
// when invalidation is suspended on ctx or the alias does not exist. A store
// failure during resolution is returned wrapped in ErrStore and nothing is
// changed.
func (cc *Cache) Clean(ctx context.Context, ref Ref) error {
	if InvalidationSuspended(ctx) {
		return nil
	}

	a, ok, err := cc.resolve(ctx, ref)
	if err != nil || !ok {
		return err
	}

	k := cc.key(a.ID)
	cerr := &CleanError{ID: a.ID}

	newGen, bumpErr := cc.gen.Bump(ctx, k)
	if bumpErr != nil {
		cerr.BumpErr = bumpErr
		cc.hooks.GenBumpError(k, bumpErr)
		cc.log.Error("gen bump error", Fields{"key": k, "err": bumpErr})
	}
	if delErr := cc.provider.Del(ctx, k); delErr != nil {
		cerr.DelErr = delErr
		cc.log.Warn("delete cached alias failed", Fields{"key": k, "err": delErr})
	}
	if cerr.BumpErr != nil && cerr.DelErr != nil {
		cc.hooks.CleanOutage(a.ID, cerr.BumpErr, cerr.DelErr)
	}
	if cc.meta != nil {
		if err := cc.meta.Delete(ctx, a.ID); err != nil {
			cerr.MetaErr = err
			cc.log.Warn("delete cached alias meta failed", Fields{"id": a.ID, "err": err})
		}
	}

	cc.notify(ctx, a)

	if _, err := cc.touchMarker(ctx); err != nil {
		cerr.MarkerErr = err
		cc.log.Warn("last_changed write failed", Fields{"ns": cc.ns, "err": err})
	}

	cc.log.Debug("cleaned alias", Fields{"key": k, "newGen": newGen})
	if cerr.failed() {
		return cerr
	}
	return nil
}

func (cc *Cache) resolve(ctx context.Context, ref Ref) (Alias, bool, error) {
	var zero Alias
	switch r := ref.(type) {
	case nil:
		return zero, false, nil
	case Alias:
		return r, r.ID > 0, nil
	case *Alias:
		if r == nil {
			return zero, false, nil
		}
		return *r, r.ID > 0, nil
	}

	id := ref.AliasID()
	if id <= 0 {
		return zero, false, nil
	}
	if a, ok, err := cc.Get(ctx, id); err == nil && ok {
		return a, true, nil
	}

	found, err := cc.store.FetchByIDs(ctx, []ID{id})
	if err != nil {
		cc.hooks.StoreError("resolve", 1, err)
		return zero, false, storeErr("resolve", 1, err)
	}
	for _, a := range found {
		if a.ID == id {
			return a, true, nil
		}
	}
	return zero, false, nil
}

func (cc *Cache) notify(ctx context.Context, a Alias) {
	cc.mu.Lock()
	ls := append([]Listener(nil), cc.listeners...)
	cc.mu.Unlock()
	for _, l := range ls {
		l.AliasCleaned(ctx, a.ID, a)
	}
}
