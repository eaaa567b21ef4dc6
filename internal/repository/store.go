package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	app_errors "openchat/assistant/internal/errors"
)

// Store is the single shared handle to the conversation tables. Reads run in
// their own transactions and may overlap each other and the writer; writes are
// serialized and atomic.
type Store struct {
	db *sql.DB

	// writeMu serializes writers so a transaction never waits on SQLITE_BUSY
	// behind another writer of this process.
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, subs: make(map[int]chan struct{})}
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Read runs fn against a consistent snapshot.
func (s *Store) Read(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(NewSQLiteRepository(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// Write runs fn inside an exclusive transaction. Either every mutation made by
// fn is committed or none is. Failures other than domain errors raised by fn
// are reported as app_errors.ErrPersistence.
func (s *Store) Write(ctx context.Context, fn func(repo Repository) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: could not begin transaction: %w", app_errors.ErrPersistence, err)
	}
	// Ensure transaction is rolled back on error
	defer func() { _ = tx.Rollback() }()

	if err := fn(NewSQLiteRepository(tx)); err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", app_errors.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: could not commit transaction: %w", app_errors.ErrPersistence, err)
	}

	s.notifyCommitted()
	return nil
}

// Subscribe returns a channel that receives a signal after commits. Signals
// coalesce: a subscriber that has not drained its channel receives one signal
// for any number of commits. The returned function ends the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notifyCommitted() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, app_errors.ErrNotFound) ||
		errors.Is(err, app_errors.ErrValidation) ||
		errors.Is(err, app_errors.ErrPermission) ||
		errors.Is(err, app_errors.ErrConflict)
}
