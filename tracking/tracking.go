// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/models"
)

// Tracker owns the per-member lists: reading list, favorites, and reading
// progress. Limit checks run under the member's user-row lock so two
// concurrent adds cannot push a list past its cap.
type Tracker struct {
	db   *sql.DB
	lock string
}

// New creates a Tracker for the given driver ("postgres" or "sqlite").
func New(db *sql.DB, driver string) *Tracker {
	lock := ""
	if driver == "postgres" {
		lock = " FOR UPDATE"
	}
	return &Tracker{db: db, lock: lock}
}

func (t *Tracker) lockUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM club_user WHERE user_id = $1`+t.lock, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// ReadingListAdd puts a volume on a member's reading list. The list caps at
// models.ReadingListLimit entries per server.
func (t *Tracker) ReadingListAdd(ctx context.Context, serverID, userID int64, volumeID string) (engine.Status, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reading list transaction: %w", err)
	}
	defer tx.Rollback()

	if err := t.lockUser(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("lock user %d: %w", userID, err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reading_list WHERE user_id = $1 AND server_id = $2
	`, userID, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reading list: %w", err)
	}
	if count >= models.ReadingListLimit {
		return engine.StatusLimitReached, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reading_list (user_id, server_id, volume_id)
		VALUES ($1, $2, $3)
	`, userID, serverID, volumeID)
	if err != nil {
		if engine.IsUniqueViolation(err) {
			return engine.StatusAlreadyListed, nil
		}
		return 0, fmt.Errorf("insert reading list entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reading list transaction: %w", err)
	}
	return engine.StatusOK, nil
}

// ReadingListRemove drops a volume from the list.
func (t *Tracker) ReadingListRemove(ctx context.Context, serverID, userID int64, volumeID string) (engine.Status, error) {
	res, err := t.db.ExecContext(ctx, `
		DELETE FROM reading_list WHERE user_id = $1 AND server_id = $2 AND volume_id = $3
	`, userID, serverID, volumeID)
	if err != nil {
		return 0, fmt.Errorf("delete reading list entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.StatusNotFound, nil
	}
	return engine.StatusOK, nil
}

// ReadingList returns a member's list in insertion order.
func (t *Tracker) ReadingList(ctx context.Context, serverID, userID int64) ([]models.ReadingListEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT volume_id, added_at FROM reading_list
		WHERE user_id = $1 AND server_id = $2
		ORDER BY added_at
	`, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("query reading list: %w", err)
	}
	defer rows.Close()

	entries := []models.ReadingListEntry{}
	for rows.Next() {
		var entry models.ReadingListEntry
		if err := rows.Scan(&entry.VolumeID, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan reading list entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FavoriteAdd records a favorite, capped at models.FavoritesLimit per
// server. With numberOne set, any previous number-one is demoted in the
// same transaction so at most one row carries the mark; favoriting an
// already-favorited volume with numberOne promotes it instead of failing.
func (t *Tracker) FavoriteAdd(ctx context.Context, serverID, userID int64, volumeID string, numberOne bool) (engine.Status, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin favorite transaction: %w", err)
	}
	defer tx.Rollback()

	if err := t.lockUser(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("lock user %d: %w", userID, err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT TRUE FROM favorite_book
		WHERE user_id = $1 AND server_id = $2 AND volume_id = $3
	`, userID, serverID, volumeID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query favorite: %w", err)
	}

	if exists && !numberOne {
		return engine.StatusAlreadyListed, nil
	}

	if !exists {
		var count int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM favorite_book WHERE user_id = $1 AND server_id = $2
		`, userID, serverID).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("count favorites: %w", err)
		}
		if count >= models.FavoritesLimit {
			return engine.StatusLimitReached, nil
		}
	}

	if numberOne {
		_, err = tx.ExecContext(ctx, `
			UPDATE favorite_book SET is_number_one = FALSE
			WHERE user_id = $1 AND server_id = $2 AND is_number_one
		`, userID, serverID)
		if err != nil {
			return 0, fmt.Errorf("demote number one: %w", err)
		}
	}

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE favorite_book SET is_number_one = TRUE
			WHERE user_id = $1 AND server_id = $2 AND volume_id = $3
		`, userID, serverID, volumeID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO favorite_book (user_id, server_id, volume_id, is_number_one)
			VALUES ($1, $2, $3, $4)
		`, userID, serverID, volumeID, numberOne)
	}
	if err != nil {
		return 0, fmt.Errorf("write favorite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit favorite transaction: %w", err)
	}
	return engine.StatusOK, nil
}

// FavoriteRemove drops a favorite.
func (t *Tracker) FavoriteRemove(ctx context.Context, serverID, userID int64, volumeID string) (engine.Status, error) {
	res, err := t.db.ExecContext(ctx, `
		DELETE FROM favorite_book WHERE user_id = $1 AND server_id = $2 AND volume_id = $3
	`, userID, serverID, volumeID)
	if err != nil {
		return 0, fmt.Errorf("delete favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.StatusNotFound, nil
	}
	return engine.StatusOK, nil
}

// Favorites returns a member's favorites, number-one first.
func (t *Tracker) Favorites(ctx context.Context, serverID, userID int64) ([]models.FavoriteEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT volume_id, is_number_one, added_at FROM favorite_book
		WHERE user_id = $1 AND server_id = $2
		ORDER BY is_number_one DESC, added_at
	`, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	entries := []models.FavoriteEntry{}
	for rows.Next() {
		var entry models.FavoriteEntry
		if err := rows.Scan(&entry.VolumeID, &entry.NumberOne, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClearNumberOne demotes the member's number-one favorite, if any.
func (t *Tracker) ClearNumberOne(ctx context.Context, serverID, userID int64) (engine.Status, error) {
	res, err := t.db.ExecContext(ctx, `
		UPDATE favorite_book SET is_number_one = FALSE
		WHERE user_id = $1 AND server_id = $2 AND is_number_one
	`, userID, serverID)
	if err != nil {
		return 0, fmt.Errorf("clear number one: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.StatusNotFound, nil
	}
	return engine.StatusOK, nil
}

// SetProgress records a member's progress note for the server's current
// book. There must be a current book; the engine clears these rows when it
// leaves the Current state.
func (t *Tracker) SetProgress(ctx context.Context, serverID, userID int64, text string) (engine.Status, error) {
	if len(text) > models.ProgressTextLimit {
		return 0, fmt.Errorf("progress text exceeds %d characters", models.ProgressTextLimit)
	}

	var one int
	err := t.db.QueryRowContext(ctx,
		`SELECT 1 FROM current_book WHERE server_id = $1`, serverID).Scan(&one)
	if err == sql.ErrNoRows {
		return engine.StatusNoCurrentBook, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query current book: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		INSERT INTO reading_progress (user_id, server_id, progress_text, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, server_id)
		DO UPDATE SET progress_text = $3, updated_at = $4
	`, userID, serverID, text, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("upsert progress: %w", err)
	}
	return engine.StatusOK, nil
}

// ClearProgress removes one member's progress note.
func (t *Tracker) ClearProgress(ctx context.Context, serverID, userID int64) (engine.Status, error) {
	res, err := t.db.ExecContext(ctx, `
		DELETE FROM reading_progress WHERE user_id = $1 AND server_id = $2
	`, userID, serverID)
	if err != nil {
		return 0, fmt.Errorf("delete progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.StatusNotFound, nil
	}
	return engine.StatusOK, nil
}

// Progress returns every member's progress note for the current book.
func (t *Tracker) Progress(ctx context.Context, serverID int64) ([]models.ProgressEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT user_id, progress_text, updated_at FROM reading_progress
		WHERE server_id = $1
		ORDER BY updated_at DESC
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	entries := []models.ProgressEntry{}
	for rows.Next() {
		var entry models.ProgressEntry
		if err := rows.Scan(&entry.UserID, &entry.Text, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
