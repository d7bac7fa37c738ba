package sqlite

import (
	"context"
	"fmt"
)

// CreateSchema creates the alias and meta tables when missing. The host
// platform owns the real schema; this is for tests and local tooling.
func (s *Store) CreateSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			blog_id INTEGER NOT NULL DEFAULT 0,
			domain  TEXT    NOT NULL DEFAULT '',
			status  TEXT    NOT NULL DEFAULT 'active',
			created TEXT    NOT NULL DEFAULT '0000-00-00 00:00:00'
		)`, s.aliasTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			meta_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			blog_alias_id INTEGER NOT NULL DEFAULT 0,
			meta_key      TEXT    NOT NULL DEFAULT '',
			meta_value    TEXT
		)`, s.metaTable),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
