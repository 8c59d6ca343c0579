package services

import "errors"

// Sentinel errors for explicit error handling.
// Expected absence (unknown instance, item or key) is reported as a nil
// result, not an error.

var (
	// ErrCreationInProgress indicates another instance creation is in flight
	ErrCreationInProgress = errors.New("instance creation already in progress")

	// ErrInvalidPagination indicates page or limit is below 1
	ErrInvalidPagination = errors.New("invalid pagination parameters")

	// ErrInvalidInput indicates an item payload failed validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrVerificationFailed indicates a freshly written instance could not be read back
	ErrVerificationFailed = errors.New("instance verification failed")
)
