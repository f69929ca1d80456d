// Package services defines the business logic for authentication and the
// chat generation pipeline. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Chat-related errors.
var (
	// ErrEmptyPrompt is returned when a chat request contains an empty
	// (or whitespace-only) prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the maximum configured
	// length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrChatNotFound indicates that the requested chat record does not
	// exist or is not owned by the current user. The two cases are
	// deliberately indistinguishable.
	ErrChatNotFound = errors.New("chat not found")

	// ErrPersist is returned when a response was generated successfully but
	// could not be saved. Callers must be able to distinguish this from a
	// generation failure.
	ErrPersist = errors.New("failed to save chat record")
)

// Auth-related errors.
var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. The two cases share one error so login failures do not leak
	// account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidRegistration is returned when registration input is
	// incomplete or malformed.
	ErrInvalidRegistration = errors.New("invalid registration input")
)
