package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth marks failures of the SSO handshake itself (unrecognized login
	// page, missing execution token, poisoned session).
	ErrAuth = errors.New("authentication error")
	// ErrBadCredentials marks a login rejected by the identity server.
	ErrBadCredentials = errors.New("wrong username or password")
	// ErrNotLoggedIn marks operations that require an established session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrConnectivity marks a session whose connectivity probe failed on both
	// the proxied and the direct path.
	ErrConnectivity = errors.New("connection failed")
	// ErrTransient marks a request that failed after exhausting transport
	// retries.
	ErrTransient = errors.New("transient failure")
	// ErrIntegrity marks a paginated listing that kept returning incomplete
	// pages; the caller should retry later.
	ErrIntegrity = errors.New("incomplete listing")
	// ErrFormat marks unusable remote or local data (unsupported image
	// format, unparseable payload).
	ErrFormat = errors.New("format error")
	// ErrNotFound marks a resource the portal no longer exposes.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth retrying automatically.
// Authentication and format errors need user action and are never retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAuth), errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrNotLoggedIn), errors.Is(err, ErrFormat):
		return false
	default:
		return true
	}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
