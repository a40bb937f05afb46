// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/fable/models"
)

// AddToQueue appends a volume to the server's queue at position N+1. A
// volume already present yields StatusAlreadyQueued.
func (e *Engine) AddToQueue(ctx context.Context, serverID int64, volumeID string, suggestedBy int64) (Status, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin queue add transaction: %w", err)
	}
	defer tx.Rollback()

	if err := e.lockServer(ctx, tx, serverID); err != nil {
		return 0, fmt.Errorf("lock server %d: %w", serverID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO book_queue (server_id, volume_id, suggested_by, position)
		SELECT $1, $2, $3, COALESCE(MAX(position), 0) + 1
		FROM book_queue WHERE server_id = $1
	`, serverID, volumeID, suggestedBy)
	if err != nil {
		if IsUniqueViolation(err) {
			return StatusAlreadyQueued, nil
		}
		return 0, fmt.Errorf("insert queue entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit queue add transaction: %w", err)
	}
	return StatusOK, nil
}

// RemoveFromQueue deletes a queue entry and renumbers the remainder so
// positions stay dense 1..N.
func (e *Engine) RemoveFromQueue(ctx context.Context, serverID int64, volumeID string) (Status, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin queue remove transaction: %w", err)
	}
	defer tx.Rollback()

	if err := e.lockServer(ctx, tx, serverID); err != nil {
		return 0, fmt.Errorf("lock server %d: %w", serverID, err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM book_queue WHERE server_id = $1 AND volume_id = $2
	`, serverID, volumeID)
	if err != nil {
		return 0, fmt.Errorf("delete queue entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return StatusNotInQueue, nil
	}

	if err := e.renumberQueue(ctx, tx, serverID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit queue remove transaction: %w", err)
	}
	return StatusOK, nil
}

// renumberQueue rewrites positions to 1..N in (position, added_at) order.
// The original schema did this with a delete trigger; keeping it here makes
// the density invariant visible at the one place queue rows are mutated.
func (e *Engine) renumberQueue(ctx context.Context, tx *sql.Tx, serverID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE book_queue SET position = src.rn
		FROM (
			SELECT volume_id, ROW_NUMBER() OVER (ORDER BY position, added_at) AS rn
			FROM book_queue
			WHERE server_id = $1
		) AS src
		WHERE book_queue.server_id = $1 AND book_queue.volume_id = src.volume_id
	`, serverID)
	if err != nil {
		return fmt.Errorf("renumber queue: %w", err)
	}
	return nil
}

// ListQueue returns the server's queue in position order.
func (e *Engine) ListQueue(ctx context.Context, serverID int64) ([]models.QueueEntry, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT server_id, volume_id, suggested_by, position, added_at
		FROM book_queue
		WHERE server_id = $1
		ORDER BY position
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	entries := []models.QueueEntry{}
	for rows.Next() {
		var entry models.QueueEntry
		if err := rows.Scan(&entry.ServerID, &entry.VolumeID, &entry.SuggestedBy, &entry.Position, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RandomQueueBook picks one queue entry uniformly at random, for the
// "surprise me" selection path.
func (e *Engine) RandomQueueBook(ctx context.Context, serverID int64) (models.QueueEntry, Status, error) {
	var entry models.QueueEntry
	err := e.db.QueryRowContext(ctx, `
		SELECT server_id, volume_id, suggested_by, position, added_at
		FROM book_queue
		WHERE server_id = $1
		ORDER BY RANDOM()
		LIMIT 1
	`, serverID).Scan(&entry.ServerID, &entry.VolumeID, &entry.SuggestedBy, &entry.Position, &entry.AddedAt)
	if err == sql.ErrNoRows {
		return models.QueueEntry{}, StatusNotInQueue, nil
	}
	if err != nil {
		return models.QueueEntry{}, 0, fmt.Errorf("query random queue book: %w", err)
	}
	return entry, StatusOK, nil
}

// QueueBooksForPoll returns the first n queue entries in position order,
// the candidate set for a selection poll.
func (e *Engine) QueueBooksForPoll(ctx context.Context, serverID int64, n int) ([]models.QueueEntry, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT server_id, volume_id, suggested_by, position, added_at
		FROM book_queue
		WHERE server_id = $1
		ORDER BY position
		LIMIT $2
	`, serverID, n)
	if err != nil {
		return nil, fmt.Errorf("query poll candidates: %w", err)
	}
	defer rows.Close()

	entries := []models.QueueEntry{}
	for rows.Next() {
		var entry models.QueueEntry
		if err := rows.Scan(&entry.ServerID, &entry.VolumeID, &entry.SuggestedBy, &entry.Position, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan poll candidate: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
