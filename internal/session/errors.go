package session

import (
	"errors"
	"fmt"
)

// Domain errors. All are terminal: surfaced to the caller once, never
// retried. Handlers translate them to HTTP statuses with errors.Is.
var (
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidToken    = errors.New("invalid or unknown session token")
	ErrExpired         = errors.New("session token has expired")
	ErrAlreadyRedeemed = errors.New("attendance already recorded for this session")
	ErrStorage         = errors.New("storage failure")
	ErrArtifact        = errors.New("artifact generation failure")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func storagef(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func artifactf(err error) error {
	return fmt.Errorf("%w: %v", ErrArtifact, err)
}
