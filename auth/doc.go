// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential and identifier generation.

# Participant Tokens

A participant's bearer token is a random 24-byte (192-bit) secret:

	token, err := auth.GenerateParticipantToken()

It is returned once, at join, and is the participant's only credential.
The database keeps only an HMAC of it:

	hash := auth.HashToken(token, salt)
	err := auth.ValidateToken(token, hash, salt) // ErrInvalidToken on mismatch

Comparison is constant time.

# Join Codes

Join codes are short base62 strings derived from the session ID with HMAC:

	code := auth.GenerateJoinCode(sessionID, salt)

They are deterministic, alphanumeric only and fit comfortably in a QR code.

# IDs

	id := auth.NewID()              // UUID for database rows
	hexID, err := auth.GenerateID(4) // 8 hex characters

# IP Hashing

	key := auth.HashIP(ipAddress, salt)

Returns the first 8 bytes (16 hex chars) of HMAC-SHA256. Used to key the
join rate limiter.
*/
package auth
