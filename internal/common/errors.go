// Package common defines shared sentinel errors used across the server
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository and storage errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorPersistence   = errors.New("persistence failure")

	// Access control errors. Neither one is ever surfaced to the client
	// with detail; both map to a generic failure response.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Wire protocol errors (malformed or unrecognized messages).
	ErrorProtocol = errors.New("protocol error")

	// Generic internal flow control.
	ErrorInternal = errors.New("internal error")

	// Auth token errors.
	ErrorInvalidToken = errors.New("invalid token")
)
