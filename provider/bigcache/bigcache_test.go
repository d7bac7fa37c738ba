package bigcache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAddGetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{HardMaxCacheSizeMB: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing): ok=%v err=%v", ok, err)
	}
	if ok, err := p.Add(ctx, "k", []byte("first"), 1, 0); err != nil || !ok {
		t.Fatalf("first Add: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Add(ctx, "k", []byte("second"), 1, 0); err != nil || ok {
		t.Fatalf("second Add: ok=%v err=%v", ok, err)
	}
	if v, ok, _ := p.Get(ctx, "k"); !ok || string(v) != "first" {
		t.Fatalf("Get = %q ok=%v", v, ok)
	}
	if ok, err := p.Set(ctx, "k", []byte("third"), 1, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if v, _, _ := p.Get(ctx, "k"); string(v) != "third" {
		t.Fatalf("Set did not overwrite: %q", v)
	}

	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del of a missing key: %v", err)
	}
}

func TestZeroLifeWindowKeepsEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("waits past bigcache's one-second clock resolution")
	}
	ctx := context.Background()
	p, err := New(Config{MaxEntriesInWindow: 1024, MaxEntrySize: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close(ctx)

	const n = 512
	for i := 0; i < n; i++ {
		if _, err := p.Set(ctx, fmt.Sprintf("old:%d", i), []byte("v"), 1, 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	time.Sleep(2100 * time.Millisecond)
	// every Set checks the oldest entry of its shard against the life window
	for i := 0; i < n; i++ {
		if _, err := p.Set(ctx, fmt.Sprintf("new:%d", i), []byte("v"), 1, 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	lost := 0
	for i := 0; i < n; i++ {
		if _, ok, _ := p.Get(ctx, fmt.Sprintf("old:%d", i)); !ok {
			lost++
		}
	}
	if lost > 0 {
		t.Fatalf("%d/%d entries evicted with no life window set", lost, n)
	}
}
