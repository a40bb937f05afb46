// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package policy decides whether mature-flagged volumes may be surfaced in a
// server and whose rating votes count. A denial is a quiet drop, never an
// error surfaced to the member.
package policy
