package icetype

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrSnapshotNotFound is returned when no stored snapshot exists for
	// a schema.
	ErrSnapshotNotFound = errors.New("icetype: snapshot not found")

	// ErrNoChanges is returned by planning helpers asked to produce a
	// migration for an unchanged schema.
	ErrNoChanges = errors.New("icetype: schema has no changes")
)

// SnapshotNotFoundError reports a missing snapshot for a named schema.
type SnapshotNotFoundError struct {
	name string
}

// Error returns the error string.
func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("icetype: snapshot for schema %q not found", e.name)
}

// Is reports whether the target matches ErrSnapshotNotFound, so
// errors.Is(err, ErrSnapshotNotFound) holds for wrapped instances.
func (e *SnapshotNotFoundError) Is(err error) bool {
	return err == ErrSnapshotNotFound
}

// Name returns the schema name the snapshot was requested for.
func (e *SnapshotNotFoundError) Name() string {
	return e.name
}

// NewSnapshotNotFoundError returns a SnapshotNotFoundError for the
// given schema name.
func NewSnapshotNotFoundError(name string) *SnapshotNotFoundError {
	return &SnapshotNotFoundError{name: name}
}

// IsSnapshotNotFound reports whether the error is a missing-snapshot
// error.
func IsSnapshotNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *SnapshotNotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrSnapshotNotFound)
}

// BreakingChangeError reports a planned migration that was refused
// because it contains breaking changes and the caller did not allow
// them.
type BreakingChangeError struct {
	schema  string
	changes []string
}

// Error returns the error string.
func (e *BreakingChangeError) Error() string {
	return fmt.Sprintf("icetype: schema %q has %d breaking change(s); pass AllowBreaking to proceed",
		e.schema, len(e.changes))
}

// Schema returns the schema name.
func (e *BreakingChangeError) Schema() string {
	return e.schema
}

// Changes returns the descriptions of the breaking changes.
func (e *BreakingChangeError) Changes() []string {
	return e.changes
}

// NewBreakingChangeError returns a BreakingChangeError for the schema.
func NewBreakingChangeError(schema string, changes []string) *BreakingChangeError {
	return &BreakingChangeError{schema: schema, changes: changes}
}

// IsBreakingChange reports whether the error is a BreakingChangeError.
func IsBreakingChange(err error) bool {
	if err == nil {
		return false
	}
	var e *BreakingChangeError
	return errors.As(err, &e)
}
