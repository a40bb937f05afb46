// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/fable/models"
)

// UpsertRating writes or overwrites one user's rating for a completed book
// and synchronously recomputes the book's aggregate in the same
// transaction. The aggregate is never allowed to go stale: the original
// schema maintained it with a trigger, here it is an explicit step on the
// only write path.
func (e *Engine) UpsertRating(ctx context.Context, userID int64, completedID string, rating int) (Status, error) {
	if rating < models.RatingMin || rating > models.RatingMax {
		return 0, fmt.Errorf("rating %d out of range %d..%d", rating, models.RatingMin, models.RatingMax)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rating transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO book_rating (user_id, completed_id, rating, rated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, completed_id)
		DO UPDATE SET rating = $3, rated_at = $4
	`, userID, completedID, rating, time.Now().UTC())
	if err != nil {
		if IsForeignKeyViolation(err) {
			return StatusNotFound, nil
		}
		return 0, fmt.Errorf("upsert rating: %w", err)
	}

	if err := e.recomputeAggregates(ctx, tx, completedID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rating transaction: %w", err)
	}
	return StatusOK, nil
}

// RemoveRating retracts a user's rating and recomputes the aggregate.
// Retracting a rating that was never cast is StatusNotFound, a routine
// outcome when a vote-remove event trails a poll close.
func (e *Engine) RemoveRating(ctx context.Context, userID int64, completedID string) (Status, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rating remove transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM book_rating WHERE user_id = $1 AND completed_id = $2
	`, userID, completedID)
	if err != nil {
		return 0, fmt.Errorf("delete rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return StatusNotFound, nil
	}

	if err := e.recomputeAggregates(ctx, tx, completedID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rating remove transaction: %w", err)
	}
	return StatusOK, nil
}

// recomputeAggregates refreshes average_rating/total_ratings from the
// rating rows. With zero ratings the average becomes NULL, not 0.
func (e *Engine) recomputeAggregates(ctx context.Context, tx *sql.Tx, completedID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE completed_book SET
			average_rating = (SELECT AVG(CAST(rating AS REAL)) FROM book_rating WHERE completed_id = $1),
			total_ratings = (SELECT COUNT(*) FROM book_rating WHERE completed_id = $1)
		WHERE completed_id = $1
	`, completedID)
	if err != nil {
		return fmt.Errorf("recompute rating aggregates: %w", err)
	}
	return nil
}

// CompletedBook fetches one completed-book record with its aggregates.
func (e *Engine) CompletedBook(ctx context.Context, completedID string) (models.CompletedBook, Status, error) {
	var book models.CompletedBook
	err := e.db.QueryRowContext(ctx, `
		SELECT completed_id, server_id, volume_id, suggested_by, started_at, completed_at, average_rating, total_ratings
		FROM completed_book
		WHERE completed_id = $1
	`, completedID).Scan(
		&book.CompletedID, &book.ServerID, &book.VolumeID, &book.SuggestedBy,
		&book.StartedAt, &book.CompletedAt, &book.AverageRating, &book.TotalRatings,
	)
	if err == sql.ErrNoRows {
		return models.CompletedBook{}, StatusNotFound, nil
	}
	if err != nil {
		return models.CompletedBook{}, 0, fmt.Errorf("query completed book: %w", err)
	}
	return book, StatusOK, nil
}

// ListCompleted returns the server's completed-book history, most recent
// first.
func (e *Engine) ListCompleted(ctx context.Context, serverID int64) ([]models.CompletedBook, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT completed_id, server_id, volume_id, suggested_by, started_at, completed_at, average_rating, total_ratings
		FROM completed_book
		WHERE server_id = $1
		ORDER BY completed_at DESC
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("query completed books: %w", err)
	}
	defer rows.Close()

	books := []models.CompletedBook{}
	for rows.Next() {
		var book models.CompletedBook
		if err := rows.Scan(
			&book.CompletedID, &book.ServerID, &book.VolumeID, &book.SuggestedBy,
			&book.StartedAt, &book.CompletedAt, &book.AverageRating, &book.TotalRatings,
		); err != nil {
			return nil, fmt.Errorf("scan completed book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
