package app

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/aliascache"
	"github.com/unkn0wn-root/aliascache/internal/config"
	"github.com/unkn0wn-root/aliascache/store/sqlite"
)

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	st, err := sqlite.New(sqlite.Config{DB: db})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.CreateSchema(ctx))
	_, err = db.ExecContext(ctx, `INSERT INTO blog_aliases (id, blog_id, domain, status, created) VALUES
		(1, 2, 'one.example', 'active', '2024-05-01 10:00:00'),
		(2, 2, 'two.example', 'active', '2024-05-02 10:00:00')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO blog_aliasmeta (blog_alias_id, meta_key, meta_value) VALUES (1, 'redirect', '301')`)
	require.NoError(t, err)
	return st
}

func TestBuild_InMemoryProviders(t *testing.T) {
	for _, tc := range []struct{ provider, codec string }{
		{config.Ristretto, "json"},
		{config.BigCache, "msgpack"},
		{config.Ristretto, "cbor"},
	} {
		t.Run(tc.provider+"/"+tc.codec, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider.Type = tc.provider
			cfg.Codec = tc.codec

			a, err := Build(cfg, Components{Logger: aliascache.NopLogger{}, Store: seededStore(t)})
			require.NoError(t, err)
			defer func() { assert.NoError(t, a.Close(context.Background())) }()

			ctx := context.Background()
			got, missing, err := a.Aliases.GetMany(ctx, []aliascache.ID{1, 2, 99})
			require.NoError(t, err)
			assert.Equal(t, []aliascache.ID{99}, missing)
			require.Len(t, got, 2)
			assert.Equal(t, "one.example", got[1].Domain)

			m, ok, err := a.Meta.Get(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok, "meta primed alongside aliases")
			assert.Equal(t, []string{"301"}, m["redirect"])

			require.NoError(t, a.Aliases.Clean(ctx, aliascache.ID(1)))
			_, ok, err = a.Aliases.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = a.Meta.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBuild_RejectsUnknownCodec(t *testing.T) {
	cfg := config.Default()
	cfg.Codec = "gob"
	_, err := Build(cfg, Components{Logger: aliascache.NopLogger{}, Store: seededStore(t)})
	assert.ErrorContains(t, err, "unknown codec")
}

func TestNewLogger(t *testing.T) {
	for _, backend := range []string{"zap", "logrus"} {
		t.Run(backend, func(t *testing.T) {
			l, flush, err := NewLogger(config.LogConfig{Backend: backend, Level: "debug"})
			require.NoError(t, err)
			require.NotNil(t, l)
			l.Debug("hello", aliascache.Fields{"k": 1})
			flush()

			_, _, err = NewLogger(config.LogConfig{Backend: backend, Level: "loud"})
			assert.ErrorContains(t, err, "invalid log level")
		})
	}
}
