// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidGatewayToken = errors.New("invalid gateway token")

// GenerateGatewayToken creates the HMAC token the gateway must present for
// command-surface calls scoped to one server. Deterministic and verifiable,
// so nothing needs to be stored.
func GenerateGatewayToken(serverID int64, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(strconv.FormatInt(serverID, 10)))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateGatewayToken checks the provided token against the expected one
// for this server using a constant-time comparison.
func ValidateGatewayToken(serverID int64, token, salt string) error {
	expected := GenerateGatewayToken(serverID, salt)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return ErrInvalidGatewayToken
	}
	return nil
}
