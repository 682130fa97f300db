package conversation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when the session document does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreWrite wraps any failed or timed out write to the document store.
	ErrStoreWrite = errors.New("store write failed")
	// ErrMalformedRecord marks a stored document that cannot be decoded.
	// It is logged and the record skipped; callers never receive it.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInvalidArgument is returned before any I/O for missing identifiers.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RequireID checks that value is non-blank and usable as a document path segment.
func RequireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	if strings.Contains(value, "/") || value == "." || value == ".." {
		return fmt.Errorf("%w: %s is not a valid path segment", ErrInvalidArgument, name)
	}
	return nil
}

// RequireOwner validates the (appName, userID) pair every operation is scoped to.
func RequireOwner(appName, userID string) error {
	if err := RequireID("appName", appName); err != nil {
		return err
	}
	return RequireID("userId", userID)
}

// RequireSessionKey validates a full session key.
func RequireSessionKey(appName, userID, sessionID string) error {
	if err := RequireOwner(appName, userID); err != nil {
		return err
	}
	return RequireID("sessionId", sessionID)
}
