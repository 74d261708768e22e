// Package repository is the only path by which the coordinator touches
// durable state.  Store hands out transactional sessions; every
// fetch-and-lock inside a session acquires an exclusive row lock that is
// held until the session commits or rolls back.  Driver errors are
// classified into the store error kinds so upper layers can decide what is
// retryable without knowing MySQL error numbers.
package repository

import (
	"context"
	"database/sql"
)

// Store wraps the database pool and opens transactional sessions.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying pool for read-only repositories that do not
// need a locking session.
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a new transactional session.  The caller must finish it with
// Commit or Rollback on every exit path.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return &Session{tx: tx}, nil
}

// Session is one open transaction.  All fetch-and-lock and mutation
// operations run on the same underlying *sql.Tx, so locks taken by one
// operation protect the rows for the rest of the session.
type Session struct {
	tx   *sql.Tx
	done bool
}

// Commit finishes the transaction and releases all row locks.
func (s *Session) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	return classify(s.tx.Commit())
}

// Rollback aborts the transaction.  Calling it after Commit is a no-op so
// callers can keep an unconditional deferred rollback.
func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return classify(s.tx.Rollback())
}
