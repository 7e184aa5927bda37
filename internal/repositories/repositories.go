package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keithriordan/foyer/internal/shared"
)

// DBTX is the query surface shared by [sql.DB] and [sql.Tx].
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// WithinTx runs fn inside a transaction on db. The transaction commits when fn returns nil and rolls back otherwise.
func WithinTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// notFound maps [sql.ErrNoRows] to a wrapped [shared.ErrNotFound] naming the entity.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", shared.ErrNotFound, entity, id)
	}
	return fmt.Errorf("failed to scan %s: %w", entity, err)
}

// requireAffected returns a wrapped [shared.ErrNotFound] when result touched no rows.
func requireAffected(result sql.Result, entity string, id any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %v", shared.ErrNotFound, entity, id)
	}
	return nil
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// nullString stores a nil pointer as NULL.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// now returns the current time truncated to microseconds in UTC, matching what round-trips through sqlite.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
