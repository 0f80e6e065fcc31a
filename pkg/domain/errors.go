package domain

import (
	"fmt"
	"strings"
)

// ErrorCode is a stable machine-readable code surfaced to callers alongside
// typed errors and link validations.
type ErrorCode string

// Error codes surfaced outward by the core.
const (
	CodeCrossTripExpense     ErrorCode = "CROSS_TRIP_EXPENSE"
	CodeCrossTripTravelItem  ErrorCode = "CROSS_TRIP_TRAVEL_ITEM"
	CodeExpenseNotFound      ErrorCode = "EXPENSE_NOT_FOUND"
	CodeTravelItemNotFound   ErrorCode = "TRAVEL_ITEM_NOT_FOUND"
	CodeTripNotFound         ErrorCode = "TRIP_NOT_FOUND"
	CodeInvalidSchemaVersion ErrorCode = "INVALID_SCHEMA_VERSION"
	CodeBackupNotFound       ErrorCode = "BACKUP_NOT_FOUND"
	CodeTripExists           ErrorCode = "TRIP_EXISTS"
	CodeCorruptDocument      ErrorCode = "CORRUPT_DOCUMENT"
)

// NotFoundError reports a missing trip, expense, travel item, or backup.
type NotFoundError struct {
	Code ErrorCode
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewTripNotFound builds the not-found error for a trip id.
func NewTripNotFound(tripID string) NotFoundError {
	return NotFoundError{Code: CodeTripNotFound, Kind: "trip", ID: tripID}
}

// NewBackupNotFound builds the not-found error for a backup record id.
func NewBackupNotFound(backupID string) NotFoundError {
	return NotFoundError{Code: CodeBackupNotFound, Kind: "backup", ID: backupID}
}

// InvalidSchemaVersionError reports a document whose schema version is
// outside 1..CurrentSchemaVersion. This is unrecoverable caller error, never
// repaired by migration.
type InvalidSchemaVersionError struct {
	TripID  string
	Version int
}

func (e InvalidSchemaVersionError) Error() string {
	return fmt.Sprintf("trip %s has invalid schema version %d", e.TripID, e.Version)
}

// ConflictError reports an operation refused because the target already
// holds data, e.g. restoring onto a live trip without the overwrite flag.
type ConflictError struct {
	Code   ErrorCode
	TripID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("trip %s already exists", e.TripID)
}

// LinkViolationError wraps a failed link validation when the caller asked
// for the link to be applied rather than just checked.
type LinkViolationError struct {
	Validation LinkValidation
}

func (e LinkViolationError) Error() string {
	msgs := e.Validation.Messages()
	if len(msgs) == 0 {
		return string(e.Validation.Code())
	}
	return fmt.Sprintf("%s: %s", e.Validation.Code(), strings.Join(msgs, "; "))
}
