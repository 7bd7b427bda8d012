package serialization

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxVectorCount   = 100_000           // Maximum number of vectors in a file
	MaxVectorNameLen = 4096              // Maximum vector name length
	MaxKeyLen        = 1 << 20           // Maximum feature key length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and counts but not region layout.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateVectorOffsets checks for overlapping regions and out-of-bounds
// access. Every region must also be large enough for its record count.
func ValidateVectorOffsets(vectors []VectorMeta, dataSize int64) error {
	if len(vectors) > MaxVectorCount {
		return &ValidationError{
			Type:    "too_many_vectors",
			Details: fmt.Sprintf("got %d, max %d", len(vectors), MaxVectorCount),
			Err:     ErrTooManyVectors,
		}
	}

	sorted := make([]VectorMeta, len(vectors))
	copy(sorted, vectors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, v := range sorted {
		if v.Offset < 0 || v.Size < 0 || v.Entries < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Vector:  v.Name,
				Details: fmt.Sprintf("offset=%d, size=%d, entries=%d", v.Offset, v.Size, v.Entries),
				Err:     ErrNegativeOffset,
			}
		}

		if v.Offset+v.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Vector:  v.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", v.Offset, v.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}

		if int64(v.Entries)*recordOverhead > v.Size {
			return &ValidationError{
				Type:    "malformed_record",
				Vector:  v.Name,
				Details: fmt.Sprintf("%d entries do not fit in %d bytes", v.Entries, v.Size),
				Err:     ErrMalformedRecord,
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if v.Offset+v.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Vector:  v.Name,
					Vector2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						v.Offset, v.Offset+v.Size, next.Offset, next.Offset+next.Size),
					Err: ErrOffsetOverlap,
				}
			}
		}
	}

	return nil
}

// ValidateVectorName rejects empty, oversized, non UTF-8 and NUL-bearing
// names. Names carry class labels, so any other character is allowed.
func ValidateVectorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty name", Err: ErrInvalidVectorName}
	case len(name) > MaxVectorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Vector:  name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxVectorNameLen),
			Err:     ErrVectorNameTooLong,
		}
	case !utf8.ValidString(name):
		return &ValidationError{Type: "invalid_name", Vector: name, Details: "not valid UTF-8", Err: ErrInvalidVectorName}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Vector: name, Details: "contains null byte", Err: ErrInvalidVectorName}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Vectors) > MaxVectorCount {
		return &ValidationError{
			Type:    "too_many_vectors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Vectors), MaxVectorCount),
			Err:     ErrTooManyVectors,
		}
	}

	seen := make(map[string]struct{}, len(h.Vectors))
	for _, v := range h.Vectors {
		if err := ValidateVectorName(v.Name); err != nil {
			return err
		}
		if _, dup := seen[v.Name]; dup {
			return &ValidationError{Type: "duplicate_vector", Vector: v.Name, Details: "listed twice", Err: ErrDuplicateVector}
		}
		seen[v.Name] = struct{}{}
	}

	if level == ValidationStrict {
		if err := ValidateVectorOffsets(h.Vectors, dataSize); err != nil {
			return err
		}
	}

	return nil
}
