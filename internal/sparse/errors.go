package sparse

import (
	"errors"
	"math"
)

// Epsilon is the threshold below which a value is treated as zero.
const Epsilon = 1e-10

// ErrInvalidKeyType is returned when a polymorphic key is neither a string,
// a byte slice nor a Key.
var ErrInvalidKeyType = errors.New("invalid key type")

// IsZero reports whether v is within Epsilon of zero.
func IsZero(v float64) bool {
	return math.Abs(v) < Epsilon
}

// ApproxEqual reports whether a and b are within Epsilon of each other.
func ApproxEqual(a, b float64) bool {
	return IsZero(a - b)
}
