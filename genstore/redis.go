package genstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares per-alias generations across processes and survives
// restarts. If a generation key expires, readers observe gen=0 and cached
// entries written under a higher generation self-heal.
type RedisGenStore struct {
	rdb redis.UniversalClient
	ns  string        // should match the cache namespace
	ttl time.Duration // 0 disables expiry

	closeClient bool
}

var _ GenStore = (*RedisGenStore)(nil)

type RedisOptions struct {
	Namespace   string
	TTL         time.Duration
	CloseClient bool // set only when this store owns the client
}

func NewRedisGenStore(client redis.UniversalClient, opts RedisOptions) *RedisGenStore {
	return &RedisGenStore{rdb: client, ns: opts.Namespace, ttl: opts.TTL, closeClient: opts.CloseClient}
}

func (s *RedisGenStore) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *RedisGenStore) Snapshot(ctx context.Context, storageKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(storageKey)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseGen(storageKey, res)
}

func (s *RedisGenStore) SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error) {
	if len(storageKeys) == 0 {
		return map[string]uint64{}, nil
	}
	keys := make([]string, len(storageKeys))
	for i, k := range storageKeys {
		keys[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(storageKeys))
	for i, v := range vals {
		var raw string
		switch vv := v.(type) {
		case nil:
			out[storageKeys[i]] = 0
			continue
		case string:
			raw = vv
		case []byte:
			raw = string(vv)
		default:
			raw = fmt.Sprint(vv)
		}
		g, err := parseGen(storageKeys[i], raw)
		if err != nil {
			return nil, err
		}
		out[storageKeys[i]] = g
	}
	return out, nil
}

// Bump pipelines INCR + EXPIRE in one round-trip when a TTL is configured.
func (s *RedisGenStore) Bump(ctx context.Context, storageKey string) (uint64, error) {
	k := s.key(storageKey)

	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Uint64()
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Uint64()
}

// Cleanup is a no-op; Redis expires keys itself when a TTL is set.
func (s *RedisGenStore) Cleanup(time.Duration) {}

func (s *RedisGenStore) Close(context.Context) error {
	if s.closeClient {
		return s.rdb.Close()
	}
	return nil
}

func parseGen(storageKey, raw string) (uint64, error) {
	u, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse at %s: %w", storageKey, err)
	}
	return u, nil
}
