// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Users (gateway identities, upserted on first sight)
CREATE TABLE IF NOT EXISTS club_user (
    user_id BIGINT PRIMARY KEY,
    username TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Servers (one isolated book-club community each)
CREATE TABLE IF NOT EXISTS server (
    server_id BIGINT PRIMARY KEY,
    server_name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Per-server bot configuration
CREATE TABLE IF NOT EXISTS server_config (
    server_id BIGINT PRIMARY KEY REFERENCES server(server_id) ON DELETE CASCADE,
    announcement_channel_id BIGINT,
    queue_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    pin_polls BOOLEAN NOT NULL DEFAULT TRUE,
    auto_finish_on_deadline BOOLEAN NOT NULL DEFAULT FALSE,
    mature_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Ordered backlog of suggested books. Positions are kept dense (1..N) by
-- the engine's renumbering step, never by a storage trigger.
CREATE TABLE IF NOT EXISTS book_queue (
    server_id BIGINT NOT NULL,
    volume_id TEXT NOT NULL,
    suggested_by BIGINT NOT NULL,
    position INTEGER NOT NULL,
    added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (server_id, volume_id)
);

CREATE INDEX IF NOT EXISTS idx_book_queue_position ON book_queue(server_id, position);

-- The single book a server is actively reading. At most one per server,
-- enforced by the primary key.
CREATE TABLE IF NOT EXISTS current_book (
    server_id BIGINT PRIMARY KEY,
    volume_id TEXT NOT NULL,
    suggested_by BIGINT NOT NULL,
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deadline TIMESTAMP,
    announcement_channel_id BIGINT,
    discussion_channel_id BIGINT
);

CREATE INDEX IF NOT EXISTS idx_current_book_deadline ON current_book(deadline);

-- Completed-book history. average_rating/total_ratings are derived from
-- book_rating and recomputed by the engine on every rating write.
CREATE TABLE IF NOT EXISTS completed_book (
    completed_id TEXT PRIMARY KEY,
    server_id BIGINT NOT NULL,
    volume_id TEXT NOT NULL,
    suggested_by BIGINT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    average_rating REAL,
    total_ratings INTEGER NOT NULL DEFAULT 0,
    UNIQUE (server_id, volume_id, completed_at)
);

CREATE INDEX IF NOT EXISTS idx_completed_book_server ON completed_book(server_id, completed_at);

-- One rating per (user, completed book); mutable until the user retracts it.
CREATE TABLE IF NOT EXISTS book_rating (
    user_id BIGINT NOT NULL,
    completed_id TEXT NOT NULL REFERENCES completed_book(completed_id) ON DELETE CASCADE,
    rating INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
    rated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, completed_id)
);

CREATE INDEX IF NOT EXISTS idx_book_rating_completed ON book_rating(completed_id);

-- Selection polls, keyed by the gateway message that carries them. The
-- partial unique index is what makes "one open poll per server" hold even
-- under concurrent creation.
CREATE TABLE IF NOT EXISTS selection_poll (
    message_id BIGINT PRIMARY KEY,
    channel_id BIGINT NOT NULL,
    server_id BIGINT NOT NULL,
    book_options TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    deadline TIMESTAMP,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    selected_volume_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_selection_poll_one_open
    ON selection_poll(server_id) WHERE NOT processed;
CREATE INDEX IF NOT EXISTS idx_selection_poll_pending
    ON selection_poll(expires_at) WHERE NOT processed;

-- One row per (poll, voter); re-voting overwrites the option index.
CREATE TABLE IF NOT EXISTS selection_vote (
    message_id BIGINT NOT NULL REFERENCES selection_poll(message_id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    option_index INTEGER NOT NULL,
    voted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (message_id, user_id)
);

-- Rating polls are a timing envelope around a completed book: votes land
-- directly in book_rating, the poll row only tracks expiry + processed.
CREATE TABLE IF NOT EXISTS rating_poll (
    message_id BIGINT PRIMARY KEY,
    channel_id BIGINT NOT NULL,
    server_id BIGINT NOT NULL,
    completed_id TEXT NOT NULL REFERENCES completed_book(completed_id) ON DELETE CASCADE,
    expires_at TIMESTAMP NOT NULL,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rating_poll_pending
    ON rating_poll(expires_at) WHERE NOT processed;
CREATE INDEX IF NOT EXISTS idx_rating_poll_completed ON rating_poll(completed_id);

-- Per-user reading progress for the server's current book. Cleared when
-- the current book is finished or removed.
CREATE TABLE IF NOT EXISTS reading_progress (
    user_id BIGINT NOT NULL,
    server_id BIGINT NOT NULL,
    progress_text TEXT,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, server_id)
);

CREATE INDEX IF NOT EXISTS idx_reading_progress_server ON reading_progress(server_id);

-- Personal reading list, capped at 5 per (user, server) at write time.
CREATE TABLE IF NOT EXISTS reading_list (
    user_id BIGINT NOT NULL,
    server_id BIGINT NOT NULL,
    volume_id TEXT NOT NULL,
    added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, server_id, volume_id)
);

-- Favorites, capped at 5 per (user, server); at most one number-one.
CREATE TABLE IF NOT EXISTS favorite_book (
    user_id BIGINT NOT NULL,
    server_id BIGINT NOT NULL,
    volume_id TEXT NOT NULL,
    is_number_one BOOLEAN NOT NULL DEFAULT FALSE,
    added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, server_id, volume_id)
);
`
