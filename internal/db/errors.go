package db

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrPermissionDenied is returned when the store's rules reject the caller.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is returned when the session token is missing or expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStreamClosed is returned by SnapshotStream.Next after Stop.
	ErrStreamClosed = errors.New("snapshot stream closed")
	// ErrNotConfigured is returned when the backend lacks the settings to connect.
	ErrNotConfigured = errors.New("store backend is not configured")
)

// classify wraps a Firestore error with the matching sentinel so callers
// outside this package never look at gRPC codes.
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %v", msg, ErrNotFound, err)
	case codes.PermissionDenied:
		return fmt.Errorf("%s: %w: %v", msg, ErrPermissionDenied, err)
	case codes.Unauthenticated:
		return fmt.Errorf("%s: %w: %v", msg, ErrUnauthenticated, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
