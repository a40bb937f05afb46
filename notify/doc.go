// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package notify delivers announcements, native polls, and pins to the chat
// gateway. The Announcer interface keeps the lifecycles transport-agnostic;
// the Log implementation serves local runs and tests.
package notify
