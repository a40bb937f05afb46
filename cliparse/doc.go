// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration from CLI flags and environment
variables.

# Precedence

CLI flags win over environment variables; environment variables win over
defaults. Secrets should come from the environment (a .env file is loaded
by main before parsing).

# Settings

Required:

  - DATABASE_URL (-d): PostgreSQL connection string or SQLite path
  - GATEWAY_TOKEN_SALT (--gateway-salt): secret for command-surface HMAC

Optional:

  - PORT (-p): HTTP port (default 3326)
  - DATABASE_TYPE (-t): "postgres" (default) or "sqlite"
  - GATEWAY_FEED_URL (--feed): websocket vote-event feed; empty disables
    the event consumer
  - GATEWAY_API_URL (--gateway): announcement endpoint; empty means
    announcements are logged only
  - METADATA_API_KEY (--metadata-key): metadata lookup key
  - DEADLINE_INTERVAL, POLL_INTERVAL, RATING_WINDOW: Go duration strings
    overriding the watcher cadences and the rating poll window
*/
package cliparse
