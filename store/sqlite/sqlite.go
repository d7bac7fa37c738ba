// Package sqlite reads aliases and alias metadata from SQLite through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/aliascache"
	"github.com/unkn0wn-root/aliascache/meta"
)

const (
	DefaultAliasTable = "blog_aliases"
	DefaultMetaTable  = "blog_aliasmeta"
)

var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	DB         *sql.DB
	AliasTable string // "" => blog_aliases
	MetaTable  string // "" => blog_aliasmeta
}

// Store implements aliascache.Store and meta.Store.
type Store struct {
	db         *sql.DB
	aliasTable string
	metaTable  string
}

var (
	_ aliascache.Store = (*Store)(nil)
	_ meta.Store       = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("sqlite store: nil db")
	}
	s := &Store{db: cfg.DB, aliasTable: cfg.AliasTable, metaTable: cfg.MetaTable}
	if s.aliasTable == "" {
		s.aliasTable = DefaultAliasTable
	}
	if s.metaTable == "" {
		s.metaTable = DefaultMetaTable
	}
	for _, t := range []string{s.aliasTable, s.metaTable} {
		if !validTable.MatchString(t) {
			return nil, fmt.Errorf("sqlite store: invalid table name %q", t)
		}
	}
	return s, nil
}

// Open opens dsn with the "sqlite" driver and wraps it.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return New(Config{DB: db})
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// FetchByIDs runs one SELECT ... WHERE id IN (...) for all ids.
func (s *Store) FetchByIDs(ctx context.Context, ids []aliascache.ID) ([]aliascache.Alias, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(
		"SELECT id, blog_id, domain, status, created FROM %s WHERE id IN (%s)",
		s.aliasTable, placeholders(len(ids)),
	)
	rows, err := s.db.QueryContext(ctx, q, args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []aliascache.Alias
	for rows.Next() {
		var (
			a       aliascache.Alias
			created sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.SiteID, &a.Domain, &a.Status, &created); err != nil {
			return nil, err
		}
		if created.Valid && created.String != "" {
			t, err := parseTime(created.String)
			if err != nil {
				return nil, fmt.Errorf("alias %d: %w", a.ID, err)
			}
			a.Created = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FetchMeta returns metadata grouped by alias, values in row order.
func (s *Store) FetchMeta(ctx context.Context, ids []aliascache.ID) (map[aliascache.ID]meta.Meta, error) {
	out := make(map[aliascache.ID]meta.Meta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := fmt.Sprintf(
		"SELECT blog_alias_id, meta_key, meta_value FROM %s WHERE blog_alias_id IN (%s) ORDER BY meta_id",
		s.metaTable, placeholders(len(ids)),
	)
	rows, err := s.db.QueryContext(ctx, q, args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    aliascache.ID
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&id, &key, &value); err != nil {
			return nil, err
		}
		m := out[id]
		if m == nil {
			m = meta.Meta{}
			out[id] = m
		}
		m[key] = append(m[key], value.String)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(ids []aliascache.ID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, error) {
	if strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, nil
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
