// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the fable book-club server.

Fable runs a community book club's lifecycle behind a chat gateway: books
are suggested into a queue, chosen by poll or by hand, read against an
optional deadline, and rated 1-5 when finished. The server owns all state
and timing; the gateway only relays commands and poll votes.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... GATEWAY_TOKEN_SALT=... go run .

Or with flags:

	go run . -p 3326 -d "postgres://..." -gateway-salt secret

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL or SQLite connection string
  - GATEWAY_TOKEN_SALT (--gateway-salt): Secret for per-server token HMAC

Optional settings:

  - PORT (-p): Server port (default: 3326)
  - DATABASE_TYPE (-t): postgres (default) or sqlite
  - GATEWAY_FEED_URL (--feed): Websocket vote-event feed
  - GATEWAY_API_URL (--gateway): Announcement API; log-only when unset
  - METADATA_API_URL / METADATA_API_KEY: Volume metadata upstream
  - DEADLINE_INTERVAL, POLL_INTERVAL, RATING_WINDOW: Lifecycle timing

# Architecture

The server uses a handler-based architecture with dependency injection:

  - engine: Transactional lifecycle transitions and queue/rating writes
  - polls: Selection and rating poll lifecycles
  - watcher: Deadline and poll-expiry background sweeps
  - events: Websocket vote-event consumer and dispatcher
  - tracking: Per-member reading lists, favorites, progress
  - metadata, policy, notify: Volume lookup, content gating, announcements
  - handlers, router, middleware, models, auth, db, cliparse: HTTP surface

See package documentation for each component.
*/
package main
