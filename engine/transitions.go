// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SelectFromQueue moves a queued book into the Current slot. Preconditions:
// the volume is in the server's queue and the server has no current book.
// The suggester is copied from the queue entry, the entry is deleted, and
// the remaining queue is renumbered in the same transaction.
func (e *Engine) SelectFromQueue(ctx context.Context, serverID int64, volumeID string, announceChannel *int64, deadline *time.Time) (SelectResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return SelectResult{}, fmt.Errorf("begin select transaction: %w", err)
	}
	defer tx.Rollback()

	if err := e.lockServer(ctx, tx, serverID); err != nil {
		return SelectResult{}, fmt.Errorf("lock server %d: %w", serverID, err)
	}

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM current_book WHERE server_id = $1`+e.lock, serverID).Scan(&one)
	if err == nil {
		return SelectResult{Status: StatusAlreadyReading}, nil
	}
	if err != sql.ErrNoRows {
		return SelectResult{}, fmt.Errorf("query current book: %w", err)
	}

	var suggestedBy int64
	err = tx.QueryRowContext(ctx, `
		SELECT suggested_by FROM book_queue
		WHERE server_id = $1 AND volume_id = $2`+e.lock,
		serverID, volumeID).Scan(&suggestedBy)
	if err == sql.ErrNoRows {
		return SelectResult{Status: StatusNotInQueue}, nil
	}
	if err != nil {
		return SelectResult{}, fmt.Errorf("query queue entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_book (server_id, volume_id, suggested_by, started_at, deadline, announcement_channel_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, serverID, volumeID, suggestedBy, time.Now().UTC(), deadline, announceChannel)
	if err != nil {
		// Another caller slipped in between our check and insert; the
		// primary key makes that a routine loss, not a failure.
		if IsUniqueViolation(err) {
			return SelectResult{Status: StatusAlreadyReading}, nil
		}
		return SelectResult{}, fmt.Errorf("insert current book: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM book_queue WHERE server_id = $1 AND volume_id = $2
	`, serverID, volumeID)
	if err != nil {
		return SelectResult{}, fmt.Errorf("delete queue entry: %w", err)
	}

	if err := e.renumberQueue(ctx, tx, serverID); err != nil {
		return SelectResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return SelectResult{}, fmt.Errorf("commit select transaction: %w", err)
	}

	return SelectResult{
		Status:      StatusOK,
		VolumeID:    volumeID,
		SuggestedBy: suggestedBy,
		Deadline:    deadline,
	}, nil
}

// FinishCurrentBook completes the server's current book: a completed_book
// row is inserted copying start time and suggester, reading progress for
// the server is cleared, and the current row is deleted. Run concurrently
// on the same server, exactly one caller gets StatusOK; the rest get
// StatusNoCurrentBook.
func (e *Engine) FinishCurrentBook(ctx context.Context, serverID int64) (FinishResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return FinishResult{}, fmt.Errorf("begin finish transaction: %w", err)
	}
	defer tx.Rollback()

	var volumeID string
	var suggestedBy int64
	var startedAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT volume_id, suggested_by, started_at FROM current_book
		WHERE server_id = $1`+e.lock,
		serverID).Scan(&volumeID, &suggestedBy, &startedAt)
	if err == sql.ErrNoRows {
		return FinishResult{Status: StatusNoCurrentBook}, nil
	}
	if err != nil {
		return FinishResult{}, fmt.Errorf("query current book: %w", err)
	}

	completedID := uuid.NewString()
	completedAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO completed_book (completed_id, server_id, volume_id, suggested_by, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, completedID, serverID, volumeID, suggestedBy, startedAt, completedAt)
	if err != nil {
		return FinishResult{}, fmt.Errorf("insert completed book: %w", err)
	}

	if err := e.clearProgress(ctx, tx, serverID); err != nil {
		return FinishResult{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM current_book WHERE server_id = $1`, serverID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("delete current book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// The row lock should make this impossible; losing it mid-flight
		// means the transaction is no longer sound.
		return FinishResult{}, fmt.Errorf("current book for server %d vanished mid-transaction", serverID)
	}

	if err := tx.Commit(); err != nil {
		return FinishResult{}, fmt.Errorf("commit finish transaction: %w", err)
	}

	return FinishResult{
		Status:      StatusOK,
		CompletedID: completedID,
		VolumeID:    volumeID,
		SuggestedBy: suggestedBy,
		StartedAt:   startedAt,
	}, nil
}

// RemoveCurrentBook abandons the current book without recording a
// completion. Same locking discipline as FinishCurrentBook; progress rows
// are cleared here too.
func (e *Engine) RemoveCurrentBook(ctx context.Context, serverID int64) (RemoveResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("begin remove transaction: %w", err)
	}
	defer tx.Rollback()

	var volumeID string
	err = tx.QueryRowContext(ctx, `
		SELECT volume_id FROM current_book WHERE server_id = $1`+e.lock,
		serverID).Scan(&volumeID)
	if err == sql.ErrNoRows {
		return RemoveResult{Status: StatusNoCurrentBook}, nil
	}
	if err != nil {
		return RemoveResult{}, fmt.Errorf("query current book: %w", err)
	}

	if err := e.clearProgress(ctx, tx, serverID); err != nil {
		return RemoveResult{}, err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM current_book WHERE server_id = $1`, serverID)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("delete current book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RemoveResult{}, fmt.Errorf("commit remove transaction: %w", err)
	}

	return RemoveResult{Status: StatusOK, VolumeID: volumeID}, nil
}

func (e *Engine) clearProgress(ctx context.Context, tx *sql.Tx, serverID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM reading_progress WHERE server_id = $1`, serverID)
	if err != nil {
		return fmt.Errorf("clear reading progress: %w", err)
	}
	return nil
}
