// Package common defines shared constants and sentinel errors used across
// client and server layers of Gophgram. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Registry-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Registration / validation errors.
	ErrMissingUsername  = errors.New("username is required")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrWrappedKeySet    = errors.New("wrapped private key already set")
	ErrWeakPassword     = errors.New("password must be at least 6 characters")
	ErrMissingPublicKey = errors.New("public key is required")
	ErrEmptyContent     = errors.New("message content is empty")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	// Ledger state-machine errors.
	ErrInvalidTransition = errors.New("invalid message status transition")
)
