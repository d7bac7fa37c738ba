// Package config loads the aliascache command configuration from YAML.
package config

import (
	"os"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownProvider is returned when provider.type is not one of the supported caches.
	ErrUnknownProvider = zerr.New("unknown provider type")

	// ErrMissingField is returned when a required setting is empty.
	ErrMissingField = zerr.New("missing required field")

	// ErrUnknownCodec is returned when codec names an unsupported encoding.
	ErrUnknownCodec = zerr.New("unknown codec")

	// ErrUnknownLogger is returned when log.backend is not zap or logrus.
	ErrUnknownLogger = zerr.New("unknown log backend")
)

// Provider types.
const (
	Ristretto = "ristretto"
	BigCache  = "bigcache"
	Redis     = "redis"
)

// Config is the structure of aliascache.yaml.
type Config struct {
	Namespace     string         `yaml:"namespace"`
	MetaNamespace string         `yaml:"meta_namespace"`
	TTL           time.Duration  `yaml:"ttl"`
	Codec         string         `yaml:"codec"`
	Provider      ProviderConfig `yaml:"provider"`
	Store         StoreConfig    `yaml:"store"`
	Log           LogConfig      `yaml:"log"`
}

// ProviderConfig selects and tunes the cache backend.
type ProviderConfig struct {
	Type      string          `yaml:"type"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
	Redis     RedisConfig     `yaml:"redis"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow  time.Duration `yaml:"life_window"`
	HardMaxMB   int           `yaml:"hard_max_mb"`
	CleanWindow time.Duration `yaml:"clean_window"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// SharedGens keeps generations in Redis so every process sees the same
	// invalidations.
	SharedGens bool `yaml:"shared_gens"`
}

type StoreConfig struct {
	DSN        string `yaml:"dsn"`
	AliasTable string `yaml:"alias_table"`
	MetaTable  string `yaml:"meta_table"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap | logrus
	Level   string `yaml:"level"`
}

// Default returns the configuration used when no file is given. Its ristretto
// provider lives only as long as the process; a CLI run against it sees an
// empty cache.
func Default() Config {
	return Config{
		Namespace:     "blog-aliases",
		MetaNamespace: "blog-alias-meta",
		Codec:         "json",
		Provider: ProviderConfig{
			Type: Ristretto,
			Ristretto: RistrettoConfig{
				NumCounters: 100_000,
				MaxCost:     10_000,
				BufferItems: 64,
			},
			BigCache: BigCacheConfig{HardMaxMB: 64},
			Redis:    RedisConfig{Addr: "localhost:6379", SharedGens: true},
		},
		Store: StoreConfig{DSN: "file:aliases.db"},
		Log:   LogConfig{Backend: "zap", Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return Config{}, zerr.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, zerr.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return zerr.With(ErrMissingField, "field", "namespace")
	}
	if c.MetaNamespace == "" {
		return zerr.With(ErrMissingField, "field", "meta_namespace")
	}
	if c.MetaNamespace == c.Namespace {
		return zerr.With(zerr.New("meta_namespace must differ from namespace"), "namespace", c.Namespace)
	}
	if c.Store.DSN == "" {
		return zerr.With(ErrMissingField, "field", "store.dsn")
	}

	switch c.Provider.Type {
	case Ristretto, BigCache:
	case Redis:
		if c.Provider.Redis.Addr == "" {
			return zerr.With(ErrMissingField, "field", "provider.redis.addr")
		}
	default:
		return zerr.With(ErrUnknownProvider, "provider", c.Provider.Type)
	}

	switch c.Codec {
	case "json", "msgpack", "cbor":
	default:
		return zerr.With(ErrUnknownCodec, "codec", c.Codec)
	}

	switch c.Log.Backend {
	case "zap", "logrus":
	default:
		return zerr.With(ErrUnknownLogger, "backend", c.Log.Backend)
	}
	return nil
}
