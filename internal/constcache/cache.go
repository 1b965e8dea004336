// Package constcache persists associated-constant resolutions between
// compilation sessions, so incremental builds skip re-running trait
// selection for constants whose inputs did not change.
//
// The store is a plain sqlite file. It is purely an optimization: the
// evaluator never requires it, and deferred resolutions are never cached
// (they may become resolvable once more type information exists).
package constcache

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/typesystem"
)

const schema = `
CREATE TABLE IF NOT EXISTS resolved_consts (
	key      TEXT PRIMARY KEY,
	item     INTEGER NOT NULL,
	original INTEGER NOT NULL
);`

// EntryKind records how to reconstruct the resolved substitutions.
type EntryKind uint8

const (
	// EntryImplItem: resolution found an impl override; substitutions
	// are the found item's identity substitutions from the registry.
	EntryImplItem EntryKind = iota
	// EntryOriginal: resolution kept the original reference (trait
	// default); substitutions are the caller's own.
	EntryOriginal
)

// Entry is one cached resolution.
type Entry struct {
	Item defs.ItemID
	Kind EntryKind
}

// Instance rebuilds the resolved instance for a cached entry.
func (e Entry) Instance(r *defs.Registry, origItem defs.ItemID, origSubsts []typesystem.Type) defs.Instance {
	if e.Kind == EntryOriginal {
		return defs.NewInstance(origItem, origSubsts)
	}
	return defs.NewInstance(e.Item, r.IdentitySubsts(e.Item))
}

// Key builds the stable cache key for a resolution query. The target
// name participates because layout-dependent defaults may differ.
func Key(item defs.ItemID, substs []typesystem.Type, target string) string {
	parts := make([]string, 0, len(substs)+2)
	parts = append(parts, fmt.Sprintf("#%d", item))
	for _, s := range substs {
		parts = append(parts, s.String())
	}
	parts = append(parts, "@"+target)
	return strings.Join(parts, "|")
}

// Store is an open cache database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening const cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing const cache: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get looks up a cached resolution.
func (s *Store) Get(key string) (Entry, bool, error) {
	var item int64
	var original int64
	err := s.db.QueryRow(
		"SELECT item, original FROM resolved_consts WHERE key = ?", key,
	).Scan(&item, &original)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("const cache get: %w", err)
	}
	kind := EntryImplItem
	if original != 0 {
		kind = EntryOriginal
	}
	return Entry{Item: defs.ItemID(item), Kind: kind}, true, nil
}

// Put stores a resolution, replacing any previous entry for the key.
func (s *Store) Put(key string, e Entry) error {
	original := 0
	if e.Kind == EntryOriginal {
		original = 1
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO resolved_consts (key, item, original) VALUES (?, ?, ?)",
		key, int64(e.Item), original,
	)
	if err != nil {
		return fmt.Errorf("const cache put: %w", err)
	}
	return nil
}
