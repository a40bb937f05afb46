// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db creates the database schema for the fable server.

# Schema Overview

Lifecycle state:

  - current_book: at most one row per server (primary key on server_id)
  - book_queue: dense 1..N positions per server, renumbered by the engine
  - completed_book: append-only history with derived rating aggregates
  - book_rating: one row per (user, completed book)

Poll state:

  - selection_poll: "pick the next book" votes; a partial unique index on
    (server_id) WHERE NOT processed guarantees at most one open poll per
    server even under concurrent creation
  - selection_vote: per-voter choice rows tallied at close time
  - rating_poll: expiry envelope for post-completion rating windows

Personal tracking:

  - reading_progress: per (user, server), cleared when a book finishes
  - reading_list, favorite_book: capped at 5 per (user, server)

# Uniqueness Constraints

These are relied on for correctness, not just hygiene:

  - current_book.server_id (primary key): no double-selection
  - selection_poll one-open partial index: no concurrent second poll
  - book_rating (user_id, completed_id): one rating per voter
  - book_queue (server_id, volume_id): a volume queues at most once

# Dialects

The DDL is accepted by both PostgreSQL (lib/pq) and SQLite
(modernc.org/sqlite). Partial indexes and UPDATE ... FROM are available in
both.
*/
package db
