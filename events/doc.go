// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package events consumes the gateway's vote event feed. The Consumer owns
// the websocket (connect, read, reconnect with capped backoff); the
// Dispatcher is the transport-free core that routes each event to the
// selection or rating lifecycle by message id. Per-event failures are
// logged and never stop the feed.
package events
