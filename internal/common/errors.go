// Package common defines shared constants and sentinel errors used across
// the skybox server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("forbidden")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Ledger errors.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrQuotaExceeded       = errors.New("storage quota exceeded")

	// ErrExternalStore wraps object store and payment gateway failures, timeouts included.
	ErrExternalStore = errors.New("external store failure")

	// ErrInconsistentState marks metadata that points at an object the store
	// reports absent. It is always returned together with ErrorNotFound.
	ErrInconsistentState = errors.New("inconsistent state")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Payment errors.
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrUnknownPlan      = errors.New("unknown plan tier")
	ErrNotPurchasable   = errors.New("plan is not purchasable")
	ErrNotAnUpgrade     = errors.New("plan is not an upgrade")
)
