package sparse

import (
	"encoding/json"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Vec is the read side shared by Vector and LazyVector.
type Vec interface {
	// Get returns the value of a coordinate, 0 if absent.
	Get(name string) float64

	// Len returns the number of populated coordinates.
	Len() int

	// Range calls fn for every populated coordinate until fn returns false.
	Range(fn func(name string, value float64) bool)

	// Dot returns the inner product with other.
	Dot(other Vec) float64
}

type entry struct {
	key   Key
	value float64
}

// Vector is a sparse vector indexed by feature name.
//
// Coordinates whose value falls within Epsilon of zero are removed. When the
// key set is frozen, operations that would introduce a new coordinate are
// silently dropped; existing coordinates can still be updated and deleted.
type Vector struct {
	m      *Map
	frozen bool
}

// NewVector creates an empty vector.
func NewVector() *Vector {
	return NewVectorWithCapacity(DefaultCapacity)
}

// NewVectorWithCapacity creates an empty vector sized for n coordinates.
func NewVectorWithCapacity(n int) *Vector {
	return &Vector{m: NewMap(n, DefaultLoadFactor, 0)}
}

// NewVectorFromMap creates a vector holding the non-zero entries of values.
func NewVectorFromMap(values map[string]float64) *Vector {
	v := NewVectorWithCapacity(len(values))
	for name, value := range values {
		v.Set(name, value)
	}
	return v
}

// Frozen reports whether new coordinates are rejected.
func (v *Vector) Frozen() bool {
	return v.frozen
}

// SetFrozen sets whether new coordinates are rejected.
func (v *Vector) SetFrozen(frozen bool) {
	v.frozen = frozen
}

// Get returns the value of a coordinate, 0 if absent.
func (v *Vector) Get(name string) float64 {
	return v.m.Get(Key(name))
}

// Contains reports whether the coordinate is populated.
func (v *Vector) Contains(name string) bool {
	return v.m.Contains(Key(name))
}

// Len returns the number of populated coordinates.
func (v *Vector) Len() int {
	return v.m.Len()
}

// Set overwrites a coordinate and returns its previous value.
//
// Setting a value within Epsilon of zero deletes the coordinate.
func (v *Vector) Set(name string, value float64) float64 {
	k := Key(name)
	if IsZero(value) {
		return v.m.Remove(k)
	}
	if v.frozen && !v.m.Contains(k) {
		return 0
	}
	return v.m.Put(k, value)
}

// Delete removes a coordinate and returns its previous value.
func (v *Vector) Delete(name string) float64 {
	return v.m.Remove(Key(name))
}

// Add adds delta to a coordinate, treating an absent one as 0, and returns
// the previous value.
func (v *Vector) Add(name string, delta float64) float64 {
	return v.add(Key(name), delta)
}

func (v *Vector) add(k Key, delta float64) float64 {
	if cur, ok := v.m.Lookup(k); ok {
		sum := cur + delta
		if IsZero(sum) {
			return v.m.Remove(k)
		}
		return v.m.Put(k, sum)
	}
	if v.frozen || IsZero(delta) {
		return 0
	}
	v.m.Put(k, delta)
	return 0
}

// Range calls fn for every populated coordinate in unspecified order.
func (v *Vector) Range(fn func(name string, value float64) bool) {
	v.m.Range(func(k Key, value float64) bool {
		return fn(string(k), value)
	})
}

// Keys returns the populated coordinate names in sorted order.
func (v *Vector) Keys() []string {
	return sortedKeys(v.m)
}

// ToMap returns the populated coordinates as a Go map.
func (v *Vector) ToMap() map[string]float64 {
	return toMap(v.m)
}

// Dot returns the inner product with other.
//
// Only the smaller operand is iterated, so scoring a short instance against
// a large parameter vector costs O(instance).
func (v *Vector) Dot(other Vec) float64 {
	switch o := other.(type) {
	case *LazyVector:
		return o.Dot(v)
	case *Vector:
		return dotMaps(v.m, o.m)
	default:
		var res float64
		other.Range(func(name string, value float64) bool {
			res += value * v.m.Get(Key(name))
			return true
		})
		return res
	}
}

func dotMaps(a, b *Map) float64 {
	small, big := a, b
	if small.Len() > big.Len() {
		small, big = big, small
	}
	var res float64
	small.Range(func(k Key, value float64) bool {
		if w, ok := big.Lookup(k); ok {
			res += value * w
		}
		return true
	})
	return res
}

// AddScaled adds scale * other to v, over other's populated coordinates.
//
// A LazyVector operand is brought fully up to date first.
func (v *Vector) AddScaled(other Vec, scale float64) {
	for _, e := range entriesOf(other) {
		v.add(e.key, scale*e.value)
	}
}

// AddVector adds other to v.
func (v *Vector) AddVector(other Vec) {
	v.AddScaled(other, 1)
}

// Sub subtracts other from v.
func (v *Vector) Sub(other Vec) {
	v.AddScaled(other, -1)
}

// Scale multiplies every coordinate by a.
func (v *Vector) Scale(a float64) {
	v.m.Sweep(func(_ Key, value float64) (float64, bool) {
		next := a * value
		return next, !IsZero(next)
	})
}

// Transform applies f to every populated value in place.
//
// Values driven to zero stay stored until RemoveZeroCoordinates is called.
func (v *Vector) Transform(f func(float64) float64) {
	v.m.Sweep(func(_ Key, value float64) (float64, bool) {
		return f(value), true
	})
}

// RemoveZeroCoordinates drops coordinates within Epsilon of zero.
func (v *Vector) RemoveZeroCoordinates() {
	v.m.Sweep(func(_ Key, value float64) (float64, bool) {
		return value, !IsZero(value)
	})
}

// MultiplyPointwise returns the pointwise product of v and other.
func (v *Vector) MultiplyPointwise(other Vec) *Vector {
	res := NewVectorWithCapacity(other.Len())
	for _, e := range entriesOf(other) {
		res.m.Put(e.key, v.m.Get(e.key)*e.value)
	}
	res.RemoveZeroCoordinates()
	return res
}

// ProjectOntoNonZeroCoordinates returns v restricted to the coordinates
// populated in other.
func (v *Vector) ProjectOntoNonZeroCoordinates(other Vec) *Vector {
	res := NewVectorWithCapacity(other.Len())
	for _, e := range entriesOf(other) {
		res.add(e.key, v.m.Get(e.key))
	}
	return res
}

// LPNorm returns the p-norm over populated coordinates.
func (v *Vector) LPNorm(p float64) float64 {
	return normOf(v.m, p)
}

// Max returns the largest coordinate, counting absent coordinates as 0.
func (v *Vector) Max() float64 {
	return maxOf(v.m)
}

// Copy returns a deep copy of the values. The copy is not frozen.
func (v *Vector) Copy() *Vector {
	return &Vector{m: v.m.Copy()}
}

// MarshalJSON encodes the vector as a {"name": value} object.
func (v *Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToMap())
}

// UnmarshalJSON decodes a {"name": value} object, replacing v's contents.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*v = *NewVectorFromMap(values)
	return nil
}

// String returns the JSON encoding of the vector.
func (v *Vector) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// entriesOf snapshots the populated coordinates of a vector so callers can
// mutate any vector, including the source, while applying them.
func entriesOf(vec Vec) []entry {
	var src *Map
	switch o := vec.(type) {
	case *LazyVector:
		o.Delazify()
		src = o.values
	case *Vector:
		src = o.m
	}

	if src != nil {
		out := make([]entry, 0, src.Len())
		src.Range(func(k Key, value float64) bool {
			out = append(out, entry{key: k, value: value})
			return true
		})
		return out
	}

	out := make([]entry, 0, vec.Len())
	vec.Range(func(name string, value float64) bool {
		out = append(out, entry{key: Key(name), value: value})
		return true
	})
	return out
}

func valuesOf(m *Map) []float64 {
	out := make([]float64, 0, m.Len())
	m.Range(func(_ Key, value float64) bool {
		out = append(out, value)
		return true
	})
	return out
}

func normOf(m *Map, p float64) float64 {
	return floats.Norm(valuesOf(m), p)
}

func maxOf(m *Map) float64 {
	values := valuesOf(m)
	if len(values) == 0 {
		return 0
	}
	return max(floats.Max(values), 0)
}

func sortedKeys(m *Map) []string {
	out := make([]string, 0, m.Len())
	m.Range(func(k Key, _ float64) bool {
		out = append(out, string(k))
		return true
	})
	sort.Strings(out)
	return out
}

func toMap(m *Map) map[string]float64 {
	out := make(map[string]float64, m.Len())
	m.Range(func(k Key, value float64) bool {
		out[string(k)] = value
		return true
	})
	return out
}
