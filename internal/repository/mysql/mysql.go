// Package mysql implements the repository.Store contracts over MySQL using
// plain database/sql. Schema lives in migrations/schema.sql. Uniqueness and
// the singleton bootstrap marker are enforced by database constraints so the
// guarantees hold across processes.
package mysql

import (
	"database/sql"
	"strings"

	"github.com/showdeck/access/internal/repository"
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

// isDuplicate reports whether err is a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

var _ repository.Store = (*Store)(nil)
