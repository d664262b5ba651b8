// Package common defines shared constants and sentinel errors used across
// the server layers of idlink. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidSize is returned for a negative random buffer size.
	ErrInvalidSize = errors.New("invalid size")
)
