// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metadata looks up book volume metadata from a Google-Books-shaped
// upstream, with a TTL cache in front. Lookup failures are typed (ErrNotFound
// vs ErrTransient) so callers can fall back to "Book (<id>)" titles without
// ever blocking or rolling back a lifecycle transition on upstream trouble.
package metadata
