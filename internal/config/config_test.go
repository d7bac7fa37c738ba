package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"github.com/unkn0wn-root/aliascache/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aliascache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
namespace: site-aliases
meta_namespace: site-alias-meta
ttl: 10m
codec: msgpack
provider:
  type: redis
  redis:
    addr: cache:6379
    db: 2
store:
  dsn: file:test.db
log:
  backend: logrus
  level: debug
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "site-aliases", cfg.Namespace)
	assert.Equal(t, "site-alias-meta", cfg.MetaNamespace)
	assert.Equal(t, 10*time.Minute, cfg.TTL)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, config.Redis, cfg.Provider.Type)
	assert.Equal(t, "cache:6379", cfg.Provider.Redis.Addr)
	assert.Equal(t, 2, cfg.Provider.Redis.DB)
	assert.True(t, cfg.Provider.Redis.SharedGens, "default kept when not overridden")
	assert.Equal(t, "file:test.db", cfg.Store.DSN)
	assert.Equal(t, "logrus", cfg.Log.Backend)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "store:\n  dsn: file:other.db\n"))
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def.Namespace, cfg.Namespace)
	assert.Equal(t, config.Ristretto, cfg.Provider.Type)
	assert.Equal(t, def.Provider.Ristretto, cfg.Provider.Ristretto)
	assert.Equal(t, "file:other.db", cfg.Store.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "namespace: [unterminated"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
		wantKey string
		wantVal string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *config.Config) { c.Provider.Type = "memcached" },
			wantMsg: "unknown provider type",
			wantKey: "provider",
			wantVal: "memcached",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *config.Config) { c.Provider.Type = config.Redis; c.Provider.Redis.Addr = "" },
			wantMsg: "missing required field",
			wantKey: "field",
			wantVal: "provider.redis.addr",
		},
		{
			name:    "empty namespace",
			mutate:  func(c *config.Config) { c.Namespace = "" },
			wantMsg: "missing required field",
			wantKey: "field",
			wantVal: "namespace",
		},
		{
			name:    "unknown codec",
			mutate:  func(c *config.Config) { c.Codec = "gob" },
			wantMsg: "unknown codec",
			wantKey: "codec",
			wantVal: "gob",
		},
		{
			name:    "unknown log backend",
			mutate:  func(c *config.Config) { c.Log.Backend = "glog" },
			wantMsg: "unknown log backend",
			wantKey: "backend",
			wantVal: "glog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantMsg)

			zErr, ok := err.(*zerr.Error)
			require.True(t, ok, "expected *zerr.Error, got %T", err)
			assert.Equal(t, tt.wantVal, zErr.Metadata()[tt.wantKey])
		})
	}
}

func TestValidate_SharedNamespace(t *testing.T) {
	cfg := config.Default()
	cfg.MetaNamespace = cfg.Namespace
	assert.Error(t, cfg.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}
