// Package apierr classifies failures surfaced by backend calls and client-side
// validation, and carries the scoped feedback message each view shows.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind string

const (
	KindAuth       Kind = "AUTH_FAILURE"       // 401: missing, expired or invalid token
	KindValidation Kind = "VALIDATION_FAILURE" // rejected client-side before dispatch
	KindRemote     Kind = "REMOTE_FAILURE"     // backend answered with an error payload
	KindNetwork    Kind = "NETWORK_FAILURE"    // no response at all
)

// Error is a classified failure. Message holds the backend's detail (or the
// validation text) and may be empty when the backend sent none.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuth creates an authorization failure.
func NewAuth(status int, detail string) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: detail}
}

// NewValidation creates a client-side validation failure.
func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewRemote creates a failure for a backend error payload.
func NewRemote(status int, detail string) *Error {
	return &Error{Kind: KindRemote, Status: status, Message: detail}
}

// NewNetwork wraps a transport-level error (no response received).
func NewNetwork(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Detail returns the user-facing message for err: the backend detail or
// validation text when present, fallback otherwise.
func Detail(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		switch e.Kind {
		case KindRemote, KindAuth, KindValidation:
			return e.Message
		}
	}
	return fallback
}

// Feedback is the scoped error/success pair a view displays after its last
// operation. At most one of the two is set.
type Feedback struct {
	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`
}

// Failed builds a Feedback carrying an error message.
func Failed(msg string) Feedback { return Feedback{Error: msg} }

// Succeeded builds a Feedback carrying a success message.
func Succeeded(msg string) Feedback { return Feedback{Success: msg} }
