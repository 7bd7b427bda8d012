package sparse

// Map sizing defaults.
const (
	DefaultCapacity   = 16
	DefaultLoadFactor = 0.75

	// LargeTableSlots is the capacity past which a rehash is counted in
	// Rehashes, so owners can report unusually large feature spaces.
	LargeTableSlots = 1 << 20
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotFull
	slotDeleted
)

// Map is an open-addressing hash table from Key to float64.
//
// Absent keys read as the map's default value. Keys and values live in flat
// parallel slices so a table with millions of entries holds no per-entry
// pointers besides the key strings themselves.
//
// Once occupied slots (live entries plus tombstones) exceed
// capacity * loadFactor the table is rehashed: in place when the live
// entries fill at most half the load, doubled otherwise.
type Map struct {
	keys       []Key
	values     []float64
	states     []slotState
	live       int
	used       int
	loadFactor float64
	def        float64
	rehashes   int
}

// NewMap creates a map able to hold capacity entries before growing.
//
// Non-positive capacity and load factors outside (0, 1) fall back to
// DefaultCapacity and DefaultLoadFactor.
func NewMap(capacity int, loadFactor, def float64) *Map {
	if loadFactor <= 0 || loadFactor >= 1 {
		loadFactor = DefaultLoadFactor
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	slots := 8
	for float64(slots)*loadFactor < float64(capacity) {
		slots <<= 1
	}

	m := &Map{loadFactor: loadFactor, def: def}
	m.alloc(slots)
	return m
}

func (m *Map) alloc(slots int) {
	m.keys = make([]Key, slots)
	m.values = make([]float64, slots)
	m.states = make([]slotState, slots)
	m.live = 0
	m.used = 0
}

// find returns the slot holding k, or the slot where k should be inserted.
func (m *Map) find(k Key) (int, bool) {
	mask := len(m.states) - 1
	i := int(k.hash() & uint64(mask)) //nolint:gosec // G115: masked to table size.
	tombstone := -1

	for {
		switch m.states[i] {
		case slotEmpty:
			if tombstone >= 0 {
				return tombstone, false
			}
			return i, false
		case slotDeleted:
			if tombstone < 0 {
				tombstone = i
			}
		case slotFull:
			if m.keys[i] == k {
				return i, true
			}
		}
		i = (i + 1) & mask
	}
}

// Default returns the value reported for absent keys.
func (m *Map) Default() float64 {
	return m.def
}

// Len returns the number of stored entries.
func (m *Map) Len() int {
	return m.live
}

// Capacity returns the number of slots in the table.
func (m *Map) Capacity() int {
	return len(m.states)
}

// Rehashes returns how many times the table grew past LargeTableSlots.
func (m *Map) Rehashes() int {
	return m.rehashes
}

// Get returns the value stored for k, or the default if k is absent.
func (m *Map) Get(k Key) float64 {
	if i, ok := m.find(k); ok {
		return m.values[i]
	}
	return m.def
}

// Lookup returns the value stored for k and whether it was present.
func (m *Map) Lookup(k Key) (float64, bool) {
	if i, ok := m.find(k); ok {
		return m.values[i], true
	}
	return m.def, false
}

// Contains reports whether k has an entry.
func (m *Map) Contains(k Key) bool {
	_, ok := m.find(k)
	return ok
}

// Put stores v under k and returns the previous value (the default if k was
// absent).
func (m *Map) Put(k Key, v float64) float64 {
	i, ok := m.find(k)
	if ok {
		prev := m.values[i]
		m.values[i] = v
		return prev
	}

	if m.states[i] == slotEmpty {
		m.used++
	}
	m.keys[i] = k
	m.values[i] = v
	m.states[i] = slotFull
	m.live++

	if float64(m.used) > float64(len(m.states))*m.loadFactor {
		m.grow()
	}
	return m.def
}

// Remove deletes k and returns its value, or the default if it was absent.
func (m *Map) Remove(k Key) float64 {
	i, ok := m.find(k)
	if !ok {
		return m.def
	}
	prev := m.values[i]
	m.removeSlot(i)
	return prev
}

func (m *Map) removeSlot(i int) {
	m.keys[i] = ""
	m.values[i] = 0
	m.states[i] = slotDeleted
	m.live--
}

// grow rehashes the table. When tombstones rather than live entries pushed
// it past the load factor, the table is rebuilt at its current size.
func (m *Map) grow() {
	keys, values, states := m.keys, m.values, m.states

	slots := len(states)
	if float64(2*m.live) > float64(slots)*m.loadFactor {
		slots <<= 1
		for float64(m.live) > float64(slots)*m.loadFactor {
			slots <<= 1
		}
	}
	if slots > LargeTableSlots && slots > len(states) {
		m.rehashes++
	}

	m.alloc(slots)
	for i, st := range states {
		if st != slotFull {
			continue
		}
		j, _ := m.find(keys[i])
		m.keys[j] = keys[i]
		m.values[j] = values[i]
		m.states[j] = slotFull
		m.live++
		m.used++
	}
}

// Range calls fn for every entry until fn returns false.
//
// fn must not modify the map; use Sweep to rewrite or drop entries.
func (m *Map) Range(fn func(k Key, v float64) bool) {
	for i, st := range m.states {
		if st != slotFull {
			continue
		}
		if !fn(m.keys[i], m.values[i]) {
			return
		}
	}
}

// Sweep visits every entry once, replacing its value with the first result
// of fn, or removing it when fn returns keep == false.
func (m *Map) Sweep(fn func(k Key, v float64) (next float64, keep bool)) {
	for i, st := range m.states {
		if st != slotFull {
			continue
		}
		next, keep := fn(m.keys[i], m.values[i])
		if keep {
			m.values[i] = next
		} else {
			m.removeSlot(i)
		}
	}
}

// Clear removes all entries but keeps the allocated table.
func (m *Map) Clear() {
	clear(m.keys)
	clear(m.values)
	clear(m.states)
	m.live = 0
	m.used = 0
}

// Copy returns a deep copy of the map.
func (m *Map) Copy() *Map {
	out := NewMap(m.live, m.loadFactor, m.def)
	m.Range(func(k Key, v float64) bool {
		out.Put(k, v)
		return true
	})
	return out
}

// GetAny is Get for a key given as string, []byte or Key.
func (m *Map) GetAny(key any) (float64, error) {
	k, err := KeyOf(key)
	if err != nil {
		return m.def, err
	}
	return m.Get(k), nil
}

// PutAny is Put for a key given as string, []byte or Key.
func (m *Map) PutAny(key any, v float64) (float64, error) {
	k, err := KeyOf(key)
	if err != nil {
		return m.def, err
	}
	return m.Put(k, v), nil
}

// ContainsAny is Contains for a key given as string, []byte or Key.
func (m *Map) ContainsAny(key any) (bool, error) {
	k, err := KeyOf(key)
	if err != nil {
		return false, err
	}
	return m.Contains(k), nil
}

// RemoveAny is Remove for a key given as string, []byte or Key.
func (m *Map) RemoveAny(key any) (float64, error) {
	k, err := KeyOf(key)
	if err != nil {
		return m.def, err
	}
	return m.Remove(k), nil
}
