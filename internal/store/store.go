package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Store groups the SQLite-backed repositories.
type Store struct {
	db            *sql.DB
	parameterSets *ParameterSetStore
	users         *UserStore
}

func New(db *sql.DB) *Store {
	return &Store{
		db:            db,
		parameterSets: &ParameterSetStore{db: db},
		users:         &UserStore{db: db},
	}
}

func (s *Store) ParameterSets() *ParameterSetStore {
	return s.parameterSets
}

func (s *Store) Users() *UserStore {
	return s.users
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
