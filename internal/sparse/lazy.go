package sparse

import "encoding/json"

// UpdateFunc replays the decay a coordinate missed between two iterations.
//
// It must be a pure function of its arguments as far as the vector is
// concerned: replaying [a, c) in one call must give the same result as
// replaying [a, b) and then [b, c).
type UpdateFunc func(key string, value float64, from, to int64) float64

// Identity is the UpdateFunc of a vector without regularization.
func Identity(_ string, value float64, _, _ int64) float64 {
	return value
}

// LazyVector is a Vector whose coordinates decay lazily.
//
// Each coordinate records the iteration at which it was last brought up to
// date. IncrementIteration only advances the logical clock; a stale
// coordinate is replayed through the UpdateFunc when it is next read or
// written. Operations that need every coordinate at once (Len, Keys, Range,
// norms, serialization) call Delazify first.
type LazyVector struct {
	values    *Map
	synced    *Map
	iteration int64
	update    UpdateFunc
	frozen    bool
}

// NewLazyVector creates an empty lazy vector decaying through fn.
// A nil fn means no decay.
func NewLazyVector(fn UpdateFunc) *LazyVector {
	return NewLazyVectorWithCapacity(DefaultCapacity, fn)
}

// NewLazyVectorWithCapacity creates an empty lazy vector sized for n
// coordinates.
func NewLazyVectorWithCapacity(n int, fn UpdateFunc) *LazyVector {
	if fn == nil {
		fn = Identity
	}
	return &LazyVector{
		values: NewMap(n, DefaultLoadFactor, 0),
		synced: NewMap(n, DefaultLoadFactor, 0),
		update: fn,
	}
}

// NewLazyVectorAt restores a lazy vector whose values are already up to date
// at the given iteration, e.g. after loading a checkpoint.
//
// No per-coordinate sync entries are written: the sync map's default is the
// restored iteration, so every restored coordinate counts as synced there.
func NewLazyVectorAt(values map[string]float64, iteration int64, fn UpdateFunc) *LazyVector {
	lv := NewLazyVectorWithCapacity(len(values), fn)
	lv.iteration = iteration
	lv.synced = NewMap(len(values), DefaultLoadFactor, float64(iteration))
	for name, value := range values {
		if !IsZero(value) {
			lv.values.Put(Key(name), value)
		}
	}
	return lv
}

// NewLazyVectorFrom creates a lazy vector holding the current values of vec.
func NewLazyVectorFrom(vec Vec, fn UpdateFunc) *LazyVector {
	lv := NewLazyVectorWithCapacity(vec.Len(), fn)
	for _, e := range entriesOf(vec) {
		lv.values.Put(e.key, e.value)
	}
	return lv
}

// Iteration returns the logical clock.
func (lv *LazyVector) Iteration() int64 {
	return lv.iteration
}

// IncrementIteration advances the logical clock by one. No coordinate is
// touched.
func (lv *LazyVector) IncrementIteration() {
	lv.iteration++
}

// SkipToIteration brings every coordinate up to date, then moves the clock
// to iter and marks every coordinate as synced there.
func (lv *LazyVector) SkipToIteration(iter int64) {
	lv.Delazify()
	lv.iteration = iter
	lv.synced = NewMap(lv.values.Len(), DefaultLoadFactor, float64(iter))
}

// SetUpdateFunc replaces the decay function. Pending decay is replayed with
// the new function.
func (lv *LazyVector) SetUpdateFunc(fn UpdateFunc) {
	if fn == nil {
		fn = Identity
	}
	lv.update = fn
}

// Frozen reports whether new coordinates are rejected.
func (lv *LazyVector) Frozen() bool {
	return lv.frozen
}

// SetFrozen sets whether new coordinates are rejected.
func (lv *LazyVector) SetFrozen(frozen bool) {
	lv.frozen = frozen
}

func (lv *LazyVector) syncedAt(k Key) int64 {
	return int64(lv.synced.Get(k))
}

func (lv *LazyVector) drop(k Key) float64 {
	lv.synced.Remove(k)
	return lv.values.Remove(k)
}

func (lv *LazyVector) store(k Key, value float64) float64 {
	lv.synced.Put(k, float64(lv.iteration))
	return lv.values.Put(k, value)
}

// delazify brings a single coordinate up to date and returns its value.
func (lv *LazyVector) delazify(k Key) float64 {
	cur, ok := lv.values.Lookup(k)
	if !ok {
		return 0
	}
	from := lv.syncedAt(k)
	if from >= lv.iteration {
		return cur
	}

	next := lv.update(string(k), cur, from, lv.iteration)
	if IsZero(next) {
		lv.drop(k)
		return 0
	}
	lv.store(k, next)
	return next
}

// DelazifyCoordinate brings one coordinate up to date and returns its value.
func (lv *LazyVector) DelazifyCoordinate(name string) float64 {
	return lv.delazify(Key(name))
}

// Delazify brings every coordinate up to date. This is O(stored
// coordinates).
func (lv *LazyVector) Delazify() {
	it := lv.iteration
	lv.values.Sweep(func(k Key, value float64) (float64, bool) {
		from := lv.syncedAt(k)
		if from < it {
			value = lv.update(string(k), value, from, it)
			lv.synced.Put(k, float64(it))
		}
		if IsZero(value) {
			lv.synced.Remove(k)
			return 0, false
		}
		return value, true
	})
}

// Get returns the up to date value of a coordinate, 0 if absent.
func (lv *LazyVector) Get(name string) float64 {
	return lv.delazify(Key(name))
}

// Contains reports whether the coordinate is populated after replaying its
// decay.
func (lv *LazyVector) Contains(name string) bool {
	k := Key(name)
	lv.delazify(k)
	return lv.values.Contains(k)
}

// Set overwrites a coordinate and returns its previous up to date value.
//
// Setting a value within Epsilon of zero deletes the coordinate.
func (lv *LazyVector) Set(name string, value float64) float64 {
	k := Key(name)
	if IsZero(value) {
		return lv.Delete(name)
	}
	prev := lv.delazify(k)
	if lv.frozen && !lv.values.Contains(k) {
		return 0
	}
	lv.store(k, value)
	return prev
}

// Delete removes a coordinate and returns its previous up to date value.
func (lv *LazyVector) Delete(name string) float64 {
	k := Key(name)
	prev := lv.delazify(k)
	lv.drop(k)
	return prev
}

// Add adds delta to the up to date value of a coordinate and returns the
// previous value.
func (lv *LazyVector) Add(name string, delta float64) float64 {
	return lv.add(Key(name), delta)
}

func (lv *LazyVector) add(k Key, delta float64) float64 {
	cur := lv.delazify(k)
	if lv.values.Contains(k) {
		sum := cur + delta
		if IsZero(sum) {
			return lv.drop(k)
		}
		return lv.store(k, sum)
	}
	if lv.frozen || IsZero(delta) {
		return 0
	}
	lv.store(k, delta)
	return 0
}

// Len returns the number of populated coordinates after a full Delazify.
func (lv *LazyVector) Len() int {
	lv.Delazify()
	return lv.values.Len()
}

// StoredLen returns the number of stored coordinates without replaying any
// decay. Coordinates that would decay to zero are still counted.
func (lv *LazyVector) StoredLen() int {
	return lv.values.Len()
}

// Keys returns the populated coordinate names in sorted order.
func (lv *LazyVector) Keys() []string {
	lv.Delazify()
	return sortedKeys(lv.values)
}

// ToMap returns the up to date coordinates as a Go map.
func (lv *LazyVector) ToMap() map[string]float64 {
	lv.Delazify()
	return toMap(lv.values)
}

// Range brings the vector up to date and calls fn for every coordinate.
// fn must not modify the vector.
func (lv *LazyVector) Range(fn func(name string, value float64) bool) {
	lv.Delazify()
	lv.values.Range(func(k Key, value float64) bool {
		return fn(string(k), value)
	})
}

// Dot returns the inner product with other.
//
// Only the coordinates actually visited are brought up to date: the
// intersection of both key sets, found by walking the smaller one.
func (lv *LazyVector) Dot(other Vec) float64 {
	switch o := other.(type) {
	case *LazyVector:
		return lv.dotLazy(o)
	case *Vector:
		return lv.dotVector(o)
	default:
		var res float64
		for _, e := range entriesOf(other) {
			res += e.value * lv.delazify(e.key)
		}
		return res
	}
}

func (lv *LazyVector) dotLazy(o *LazyVector) float64 {
	if o == lv {
		lv.Delazify()
		var res float64
		lv.values.Range(func(_ Key, value float64) bool {
			res += value * value
			return true
		})
		return res
	}

	small, big := lv.values, o.values
	if small.Len() > big.Len() {
		small, big = big, small
	}
	common := make([]Key, 0, small.Len())
	small.Range(func(k Key, _ float64) bool {
		if big.Contains(k) {
			common = append(common, k)
		}
		return true
	})

	var res float64
	for _, k := range common {
		res += lv.delazify(k) * o.delazify(k)
	}
	return res
}

func (lv *LazyVector) dotVector(o *Vector) float64 {
	var res float64
	if o.m.Len() <= lv.values.Len() {
		o.m.Range(func(k Key, value float64) bool {
			res += value * lv.delazify(k)
			return true
		})
		return res
	}

	common := make([]Key, 0, lv.values.Len())
	lv.values.Range(func(k Key, _ float64) bool {
		if o.m.Contains(k) {
			common = append(common, k)
		}
		return true
	})
	for _, k := range common {
		res += lv.delazify(k) * o.m.Get(k)
	}
	return res
}

// AddScaled adds scale * other to lv, coordinate by coordinate.
//
// A lazy operand is brought fully up to date first because its values are
// absorbed permanently; lv's own coordinates are replayed as they are
// touched.
func (lv *LazyVector) AddScaled(other Vec, scale float64) {
	for _, e := range entriesOf(other) {
		lv.add(e.key, scale*e.value)
	}
}

// AddVector adds other to lv.
func (lv *LazyVector) AddVector(other Vec) {
	lv.AddScaled(other, 1)
}

// Sub subtracts other from lv.
func (lv *LazyVector) Sub(other Vec) {
	lv.AddScaled(other, -1)
}

// Scale multiplies every coordinate by a.
func (lv *LazyVector) Scale(a float64) {
	lv.Delazify()
	lv.values.Sweep(func(k Key, value float64) (float64, bool) {
		next := a * value
		if IsZero(next) {
			lv.synced.Remove(k)
			return 0, false
		}
		return next, true
	})
}

// Transform brings the vector up to date and applies f to every value.
//
// Values driven to zero stay stored until RemoveZeroCoordinates is called.
func (lv *LazyVector) Transform(f func(float64) float64) {
	lv.Delazify()
	lv.values.Sweep(func(_ Key, value float64) (float64, bool) {
		return f(value), true
	})
}

// RemoveZeroCoordinates drops coordinates within Epsilon of zero from both
// the value and the sync maps.
func (lv *LazyVector) RemoveZeroCoordinates() {
	lv.values.Sweep(func(k Key, value float64) (float64, bool) {
		if IsZero(value) {
			lv.synced.Remove(k)
			return 0, false
		}
		return value, true
	})
}

// MultiplyPointwise returns the pointwise product of lv and other.
func (lv *LazyVector) MultiplyPointwise(other Vec) *Vector {
	res := NewVectorWithCapacity(other.Len())
	for _, e := range entriesOf(other) {
		res.Set(string(e.key), lv.delazify(e.key)*e.value)
	}
	return res
}

// ProjectOntoNonZeroCoordinates returns lv restricted to the coordinates
// populated in other.
func (lv *LazyVector) ProjectOntoNonZeroCoordinates(other Vec) *Vector {
	res := NewVectorWithCapacity(other.Len())
	for _, e := range entriesOf(other) {
		res.add(e.key, lv.delazify(e.key))
	}
	return res
}

// LPNorm returns the p-norm of the up to date vector.
func (lv *LazyVector) LPNorm(p float64) float64 {
	lv.Delazify()
	return normOf(lv.values, p)
}

// Max returns the largest up to date coordinate, counting absent
// coordinates as 0.
func (lv *LazyVector) Max() float64 {
	lv.Delazify()
	return maxOf(lv.values)
}

// Copy returns an up to date deep copy sharing the decay function and
// clock.
func (lv *LazyVector) Copy() *LazyVector {
	lv.Delazify()
	return &LazyVector{
		values:    lv.values.Copy(),
		synced:    NewMap(lv.values.Len(), DefaultLoadFactor, float64(lv.iteration)),
		iteration: lv.iteration,
		update:    lv.update,
	}
}

// Snapshot returns the up to date values as a plain Vector.
func (lv *LazyVector) Snapshot() *Vector {
	lv.Delazify()
	return &Vector{m: lv.values.Copy()}
}

// Rehashes reports how many times the value table grew past
// LargeTableSlots.
func (lv *LazyVector) Rehashes() int {
	return lv.values.Rehashes()
}

// MarshalJSON encodes the up to date values as a {"name": value} object.
// Sync iterations are not encoded.
func (lv *LazyVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(lv.ToMap())
}

// String returns the JSON encoding of the up to date vector.
func (lv *LazyVector) String() string {
	data, err := lv.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}
