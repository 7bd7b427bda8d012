package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("vector regions overlap")
	ErrOutOfBounds        = errors.New("vector extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyVectors     = errors.New("too many vectors in file")
	ErrVectorNameTooLong  = errors.New("vector name too long")
	ErrInvalidVectorName  = errors.New("invalid vector name")
	ErrDuplicateVector    = errors.New("duplicate vector name")
	ErrMalformedRecord    = errors.New("malformed vector record")
	ErrVectorNotFound     = errors.New("vector not found")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

// ValidationError provides detailed information about validation failures.
//
// It unwraps to one of the sentinel errors above so callers can use
// errors.Is.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Vector  string // Primary vector name involved
	Vector2 string // Secondary vector name (for overlap errors)
	Details string // Additional details
	Err     error  // Sentinel error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Vector2 != "" {
		return fmt.Sprintf("%s: vectors %q and %q: %s", e.Type, e.Vector, e.Vector2, e.Details)
	}
	if e.Vector != "" {
		return fmt.Sprintf("%s: vector %q: %s", e.Type, e.Vector, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
