// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package handlers is the HTTP command surface the gateway calls into: the
// same lifecycle operations the watchers drive, plus queue, config, history,
// and per-member list management. Every /servers/{id} route authenticates
// the caller with a per-server HMAC X-Gateway-Token. Routine engine
// outcomes map to 404/409 responses with typed JSON bodies.
package handlers
