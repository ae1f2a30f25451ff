package model

import "errors"

// Sentinel errors for the agent subsystem. Handlers map these to HTTP status
// codes; everything else is treated as an internal failure and replaced with a
// generic message before crossing the API boundary.
var (
	// ErrValidation marks malformed or empty input. Never retried.
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized marks a missing or foreign user identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks an unknown conversation or resource. Also returned
	// on cross-user access so that foreign IDs are indistinguishable from
	// missing ones.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized marks use of the agent before it is ready or after
	// shutdown began.
	ErrNotInitialized = errors.New("agent service not initialized")
)
