package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable covers outright GitHub API failures: network
	// errors and non-success statuses on calls that cannot degrade.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrBadCredential is the 401/403 subset of upstream failures, so callers
	// can tell a revoked token from a transient outage.
	ErrBadCredential = errors.New("upstream rejected credential")

	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

func Validation(field, message string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, message)
}

func Upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
}

func UpstreamStatus(op string, status int) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("%w: %s: status=%d", ErrBadCredential, op, status)
	}
	return fmt.Errorf("%w: %s: status=%d", ErrUpstreamUnavailable, op, status)
}
