// Package sparse implements string-keyed sparse vectors for online learning.
//
// This package provides:
//   - Map: an open-addressing hash table from byte keys to float64 values
//   - Vector: a named-coordinate vector with an optional frozen key set
//   - LazyVector: a Vector whose coordinates decay lazily between accesses
//
// LazyVector is the piece that makes regularized SGD over millions of
// features affordable. Every coordinate remembers the iteration it was last
// brought up to date; IncrementIteration only advances a logical clock, and
// the decay a coordinate missed is replayed in one call to its UpdateFunc
// the next time the coordinate is read or written.
//
// Example usage:
//
//	decay := func(_ string, w float64, from, to int64) float64 {
//	    return w * math.Pow(0.9, float64(to-from))
//	}
//	params := sparse.NewLazyVector(decay)
//	params.Set("x", 1.0)
//	params.IncrementIteration()
//	params.IncrementIteration()
//	w := params.Get("x") // 0.81
//
// None of the types in this package are safe for concurrent use.
package sparse
