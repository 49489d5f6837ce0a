package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a referenced entity id is absent from the store.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// PermissionDeniedError indicates the evaluated grant set for a principal
// does not contain the requested operation.
type PermissionDeniedError struct {
	UserID    string
	ThemeID   string
	Operation Permission
}

func (e PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q denied %s on theme %q", e.UserID, e.Operation, e.ThemeID)
}

// CapacityExceededError indicates an organization's seat ceiling is reached.
// It is reported to the caller, never silently truncated.
type CapacityExceededError struct {
	OrganizationID string
	Seats          int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("organization %q seat capacity %d exceeded", e.OrganizationID, e.Seats)
}

// VersionConflictError indicates a snapshot write raced on a version tag that
// is not strictly greater than the current maximum for the theme.
type VersionConflictError struct {
	ThemeID string
	Version string
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("theme %q version %q conflicts with an existing snapshot", e.ThemeID, e.Version)
}

// InvalidStateError indicates an operation is not legal from the entity's
// current state, such as a purchase transition from a terminal status.
type InvalidStateError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsPermissionDenied reports whether err wraps a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var target PermissionDeniedError
	return errors.As(err, &target)
}

// IsCapacityExceeded reports whether err wraps a CapacityExceededError.
func IsCapacityExceeded(err error) bool {
	var target CapacityExceededError
	return errors.As(err, &target)
}

// IsVersionConflict reports whether err wraps a VersionConflictError.
func IsVersionConflict(err error) bool {
	var target VersionConflictError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var target InvalidStateError
	return errors.As(err, &target)
}
