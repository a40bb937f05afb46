// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package tracking keeps the per-member lists that sit alongside the
// lifecycle: reading lists and favorites (both capped at five per server,
// with at most one number-one favorite) and progress notes on the current
// book. Caps are enforced under a user-row lock, same discipline as the
// engine's server-row lock.
package tracking
