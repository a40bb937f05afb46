// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Status is the discriminated outcome of a lifecycle operation. Expected
// conditions (no current book, already reading, not in queue) are statuses,
// not errors: both manual commands and the watchers treat them as routine.
// The error return of each operation is reserved for infrastructure
// failures.
type Status int

const (
	StatusOK Status = iota
	StatusNotInQueue
	StatusAlreadyReading
	StatusNoCurrentBook
	StatusAlreadyQueued
	StatusNotFound
	StatusPollAlreadyOpen
	StatusAlreadyListed
	StatusLimitReached
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInQueue:
		return "not_in_queue"
	case StatusAlreadyReading:
		return "already_reading"
	case StatusNoCurrentBook:
		return "no_current_book"
	case StatusAlreadyQueued:
		return "already_queued"
	case StatusNotFound:
		return "not_found"
	case StatusPollAlreadyOpen:
		return "poll_already_open"
	case StatusAlreadyListed:
		return "already_listed"
	case StatusLimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// SelectResult is the outcome of SelectFromQueue.
type SelectResult struct {
	Status      Status
	VolumeID    string
	SuggestedBy int64
	Deadline    *time.Time
}

// FinishResult is the outcome of FinishCurrentBook.
type FinishResult struct {
	Status      Status
	CompletedID string
	VolumeID    string
	SuggestedBy int64
	StartedAt   time.Time
}

// RemoveResult is the outcome of RemoveCurrentBook.
type RemoveResult struct {
	Status   Status
	VolumeID string
}

// Engine owns every lifecycle-defining mutation. Watchers, the vote
// lifecycles, and the command surface all call through it; nothing else
// writes current_book, book_queue, completed_book, or book_rating rows.
//
// Each operation is one transaction: lock, mutate, commit. Two racing
// callers on the same server get one winner and one well-defined
// expected-condition loser, never a double transition.
type Engine struct {
	db   *sql.DB
	lock string
}

// New creates an Engine for the given driver ("postgres" or "sqlite").
// Postgres serializes callers with SELECT ... FOR UPDATE row locks. SQLite
// has no FOR UPDATE; its single-writer transactions give the same
// serialization, so the lock clause is elided there.
func New(db *sql.DB, driver string) *Engine {
	lock := ""
	if driver == "postgres" {
		lock = " FOR UPDATE"
	}
	return &Engine{db: db, lock: lock}
}

// DB exposes the underlying handle for read-only collaborators.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// lockServer serializes queue mutations for one server on its server row.
// Must run inside the caller's transaction.
func (e *Engine) lockServer(ctx context.Context, tx *sql.Tx, serverID int64) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM server WHERE server_id = $1`+e.lock, serverID).Scan(&one)
	if err == sql.ErrNoRows {
		// Unknown server: nothing to lock against, the caller's insert or
		// empty-result path handles it.
		return nil
	}
	return err
}

// IsUniqueViolation reports whether err is a uniqueness violation from
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign-key violation from
// either supported driver.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "violates foreign key constraint") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}
