package aliascache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/aliascache/codec"
	"github.com/unkn0wn-root/aliascache/internal/wire"
	pr "github.com/unkn0wn-root/aliascache/provider"
)

type memProvider struct {
	mu sync.Mutex
	m  map[string][]byte
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return true, nil
}

func (p *memProvider) Add(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.m[key]; ok {
		return false, nil
	}
	p.m[key] = value
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	_, ok, _ := p.Get(context.Background(), key)
	return ok
}

type fakeStore struct {
	mu      sync.Mutex
	rows    map[ID]Alias
	calls   [][]ID
	err     error
	onFetch func() // runs inside FetchByIDs, before returning
}

func newFakeStore(aliases ...Alias) *fakeStore {
	s := &fakeStore{rows: make(map[ID]Alias)}
	for _, a := range aliases {
		s.rows[a.ID] = a
	}
	return s
}

func (s *fakeStore) FetchByIDs(_ context.Context, ids []ID) ([]Alias, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]ID(nil), ids...))
	hook := s.onFetch
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []Alias
	for _, id := range ids {
		if a, ok := s.rows[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeMeta struct {
	primed  [][]ID
	deleted []ID
	delErr  error
}

func (m *fakeMeta) Prime(_ context.Context, ids []ID) error {
	m.primed = append(m.primed, append([]ID(nil), ids...))
	return nil
}

func (m *fakeMeta) Delete(_ context.Context, id ID) error {
	m.deleted = append(m.deleted, id)
	return m.delErr
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var (
	aliasOne   = Alias{ID: 1, SiteID: 2, Domain: "one.example", Status: "active"}
	aliasTwo   = Alias{ID: 2, SiteID: 2, Domain: "two.example", Status: "active"}
	aliasThree = Alias{ID: 3, SiteID: 5, Domain: "three.example", Status: "inactive"}
)

func newTestCache(t *testing.T, mp pr.Provider, st Store, optsOpt func(*Options)) *Cache {
	t.Helper()
	opts := Options{
		Namespace: "blog-aliases",
		Provider:  mp,
		Store:     st,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

func TestNewRequiresFields(t *testing.T) {
	mp, st := newMemProvider(), newFakeStore()
	cases := map[string]Options{
		"provider":  {Namespace: "ns", Store: st},
		"store":     {Namespace: "ns", Provider: mp},
		"namespace": {Provider: mp, Store: st},
	}
	for name, opts := range cases {
		if _, err := New(opts); err == nil {
			t.Errorf("missing %s: expected error", name)
		}
	}
}

// ==============================
// Prime
// ==============================

func TestPrimeEmptyDoesNotTouchStore(t *testing.T) {
	st := newFakeStore(aliasOne)
	cc := newTestCache(t, newMemProvider(), st, nil)

	if err := cc.Prime(context.Background(), nil); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if err := cc.Prime(context.Background(), []ID{0, -4}); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if n := st.callCount(); n != 0 {
		t.Fatalf("store called %d times", n)
	}
}

func TestPrimeFullyCachedDoesNotTouchStore(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(aliasOne, aliasTwo)
	cc := newTestCache(t, newMemProvider(), st, nil)

	if err := cc.Prime(ctx, []ID{1, 2}); err != nil {
		t.Fatalf("first Prime: %v", err)
	}
	if err := cc.Prime(ctx, []ID{2, 1, 2}); err != nil {
		t.Fatalf("second Prime: %v", err)
	}
	if n := st.callCount(); n != 1 {
		t.Fatalf("store called %d times, want 1", n)
	}
}

func TestPrimeFetchesOnlyUncachedSubset(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(aliasOne, aliasTwo, aliasThree)
	cc := newTestCache(t, newMemProvider(), st, nil)

	if err := cc.Update(ctx, []Alias{aliasTwo}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := cc.Prime(ctx, []ID{1, 2, 3, 1}); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	if len(st.calls) != 1 {
		t.Fatalf("store called %d times, want 1", len(st.calls))
	}
	got := st.calls[0]
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("fetched %v, want [1 3]", got)
	}
	for _, id := range []ID{1, 2, 3} {
		if _, ok, err := cc.Get(ctx, id); err != nil || !ok {
			t.Fatalf("Get(%d) after Prime: ok=%v err=%v", id, ok, err)
		}
	}
}

func TestPrimeCascadesToMeta(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(aliasOne, aliasTwo, aliasThree)
	meta := &fakeMeta{}
	cc := newTestCache(t, newMemProvider(), st, func(o *Options) { o.Meta = meta })

	if err := cc.Prime(ctx, []ID{1, 2, 9}); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if len(meta.primed) != 1 || len(meta.primed[0]) != 2 {
		t.Fatalf("meta primed %v, want one call for the two fetched aliases", meta.primed)
	}

	if err := cc.Prime(ctx, []ID{3}, WithoutMeta()); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, 3); !ok {
		t.Fatalf("alias 3 not cached")
	}
	if len(meta.primed) != 1 {
		t.Fatalf("WithoutMeta still primed meta: %v", meta.primed)
	}
}

func TestPrimeSurfacesStoreFailure(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")
	st := newFakeStore()
	st.err = down
	cc := newTestCache(t, newMemProvider(), st, nil)

	err := cc.Prime(ctx, []ID{1})
	if !errors.Is(err, ErrStore) || !errors.Is(err, down) {
		t.Fatalf("err=%v, want ErrStore wrapping the cause", err)
	}
}

func TestPrimeSkipsAliasCleanedDuringFetch(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	st := newFakeStore(aliasOne)
	cc := newTestCache(t, mp, st, nil)

	st.onFetch = func() {
		// alias 1 is edited and cleaned while its old row is in flight
		st.onFetch = nil
		if err := cc.Clean(ctx, aliasOne); err != nil {
			t.Errorf("Clean: %v", err)
		}
	}
	if err := cc.Prime(ctx, []ID{1}); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if mp.has(StorageKey("blog-aliases", 1)) {
		t.Fatalf("stale row was written after a concurrent clean")
	}
}

// ==============================
// Update
// ==============================

func TestUpdateDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), newFakeStore(), nil)

	if err := cc.Update(ctx, []Alias{aliasOne}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	changed := aliasOne
	changed.Domain = "renamed.example"
	if err := cc.Update(ctx, []Alias{changed}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, ok, err := cc.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Domain != "one.example" {
		t.Fatalf("existing entry overwritten: %+v", got)
	}
}

func TestUpdateWithoutMetaNeverPrimesMeta(t *testing.T) {
	ctx := context.Background()
	meta := &fakeMeta{}
	cc := newTestCache(t, newMemProvider(), newFakeStore(), func(o *Options) { o.Meta = meta })

	if err := cc.Update(ctx, []Alias{aliasOne, aliasTwo}, WithMeta(false)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(meta.primed) != 0 {
		t.Fatalf("meta primed: %v", meta.primed)
	}

	if err := cc.Update(ctx, []Alias{aliasThree}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(meta.primed) != 1 || meta.primed[0][0] != 3 {
		t.Fatalf("default cascade: meta primed %v", meta.primed)
	}
}

// droppingProvider refuses every Add without storing, like ristretto under
// admission pressure.
type droppingProvider struct{ *memProvider }

func (droppingProvider) Add(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, nil
}

type rejectHooks struct {
	NopHooks
	rejected []string
}

func (h *rejectHooks) ProviderSetRejected(k string) { h.rejected = append(h.rejected, k) }

func TestUpdateReportsRejectedAdd(t *testing.T) {
	ctx := context.Background()
	h := &rejectHooks{}
	cc := newTestCache(t, droppingProvider{newMemProvider()}, newFakeStore(), func(o *Options) { o.Hooks = h })

	if err := cc.Update(ctx, []Alias{aliasOne}, WithoutMeta()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(h.rejected) != 1 || h.rejected[0] != cc.key(1) {
		t.Fatalf("rejected %v, want [%s]", h.rejected, cc.key(1))
	}
}

func TestUpdateOfPresentKeyIsNotARejection(t *testing.T) {
	ctx := context.Background()
	h := &rejectHooks{}
	cc := newTestCache(t, newMemProvider(), newFakeStore(), func(o *Options) { o.Hooks = h })

	for range 2 {
		if err := cc.Update(ctx, []Alias{aliasOne}, WithoutMeta()); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if len(h.rejected) != 0 {
		t.Fatalf("present key reported as rejected: %v", h.rejected)
	}
}

func TestUpdateEmptyIsNoop(t *testing.T) {
	meta := &fakeMeta{}
	cc := newTestCache(t, newMemProvider(), newFakeStore(), func(o *Options) { o.Meta = meta })

	if err := cc.Update(context.Background(), nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(meta.primed) != 0 {
		t.Fatalf("meta primed on empty update")
	}
}

// ==============================
// Get / self-heal
// ==============================

func TestGetSelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, newFakeStore(), nil)
	k := StorageKey("blog-aliases", 1)

	_, _ = mp.Set(ctx, k, []byte("not-wire-format"), 1, 0)
	if _, ok, err := cc.Get(ctx, 1); err != nil || ok {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if mp.has(k) {
		t.Fatalf("corrupt entry not deleted")
	}

	payload, _ := c.JSON[Alias]{}.Encode(aliasOne)
	_, _ = mp.Set(ctx, k, wire.EncodeSingle(0, payload), 1, 0)
	_, _ = cc.gen.Bump(ctx, k)
	if _, ok, err := cc.Get(ctx, 1); err != nil || ok {
		t.Fatalf("stale entry: ok=%v err=%v", ok, err)
	}
	if mp.has(k) {
		t.Fatalf("stale entry not deleted")
	}
}

func TestGetManyReportsMissing(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(aliasOne, aliasThree)
	cc := newTestCache(t, newMemProvider(), st, nil)

	got, missing, err := cc.GetMany(ctx, []ID{3, 1, 7})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 || got[1] != aliasOne || got[3] != aliasThree {
		t.Fatalf("got %v", got)
	}
	if len(missing) != 1 || missing[0] != 7 {
		t.Fatalf("missing %v, want [7]", missing)
	}
}

func TestMaxDecodeBytesDropsOversizedEntries(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), newFakeStore(), func(o *Options) {
		o.MaxDecodeBytes = 16
	})

	if err := cc.Update(ctx, []Alias{aliasOne}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, 1); ok {
		t.Fatalf("oversized payload should not decode")
	}
}
