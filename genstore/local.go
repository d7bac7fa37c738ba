package genstore

import (
	"context"
	"sync"
	"time"
)

type localGenEntry struct {
	gen       uint64
	updatedAt time.Time
}

// LocalOptions configure a LocalGenStore. The zero value disables the
// background sweep.
type LocalOptions struct {
	CleanupInterval time.Duration
	Retention       time.Duration
	Now             func() time.Time // nil => time.Now
}

// LocalGenStore keeps generations in-process.
// Entries not bumped within Retention are pruned; a pruned key reads as 0,
// which makes older cached entries for it stale and they self-heal on read.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]localGenEntry
	now  func() time.Time

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

func NewLocalGenStore(opts LocalOptions) *LocalGenStore {
	s := &LocalGenStore{
		gens: make(map[string]localGenEntry),
		now:  opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CleanupInterval > 0 && opts.Retention > 0 {
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweep(opts.CleanupInterval, opts.Retention)
	}
	return s
}

func (s *LocalGenStore) sweep(every, retention time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-s.stopCh:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	e := s.gens[k]
	s.mu.RUnlock()
	return e.gen, nil
}

// SnapshotMany reads all keys under a single read lock.
func (s *LocalGenStore) SnapshotMany(_ context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	s.mu.RLock()
	for _, k := range ks {
		out[k] = s.gens[k].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	now := s.now()
	s.mu.Lock()
	e := s.gens[k]
	e.gen++
	e.updatedAt = now
	s.gens[k] = e
	s.mu.Unlock()
	return e.gen, nil
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.gens {
		if e.updatedAt.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

func (s *LocalGenStore) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
