// Package dictionary implements the bidirectional string<->ValueID map
// shared by every indexed-string column in a table: one Dictionary per
// table, interning each distinct string once and handing out a dense,
// append-only ValueID that every partition's column index can use as a
// bitmap-array subscript.
package dictionary

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/silo/internal/types"
)

// Dictionary interns strings into dense ValueIDs. It is safe for
// concurrent use: lookups take a read lock, and only GetOrCreate takes
// the write lock, and only when the string is genuinely new.
type Dictionary struct {
	mu        sync.RWMutex
	idToValue []string
	valueToID map[uint64][]entry
}

type entry struct {
	value string
	id    types.ValueID
}

// New returns an empty Dictionary. ValueID 0 is reserved for NULL and is
// never assigned to a real string, so idToValue starts with one
// placeholder slot.
func New() *Dictionary {
	return &Dictionary{
		idToValue: []string{""},
		valueToID: make(map[uint64][]entry),
	}
}

func hashKey(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Lookup returns the ValueID already assigned to value, if any.
func (d *Dictionary) Lookup(value string) (types.ValueID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookupLocked(value)
}

func (d *Dictionary) lookupLocked(value string) (types.ValueID, bool) {
	for _, e := range d.valueToID[hashKey(value)] {
		if e.value == value {
			return e.id, true
		}
	}
	return 0, false
}

// GetOrCreate returns the ValueID for value, assigning a new one (the
// next dense id) if value has never been seen by this Dictionary.
func (d *Dictionary) GetOrCreate(value string) types.ValueID {
	d.mu.RLock()
	if id, ok := d.lookupLocked(value); ok {
		d.mu.RUnlock()
		return id
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.lookupLocked(value); ok {
		return id
	}

	id := types.ValueID(len(d.idToValue))
	d.idToValue = append(d.idToValue, value)
	key := hashKey(value)
	d.valueToID[key] = append(d.valueToID[key], entry{value: value, id: id})
	return id
}

// Value returns the string assigned to id. The zero ValueID always maps
// to the empty string and is never a real interned value.
func (d *Dictionary) Value(id types.ValueID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.idToValue) {
		return "", false
	}
	return d.idToValue[id], true
}

// Len returns the number of distinct interned strings, excluding the
// reserved NULL slot.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.idToValue) - 1
}

// Snapshot returns a copy of every interned value in ValueID order,
// including the reserved empty slot at index 0, for persistence.
func (d *Dictionary) Snapshot() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.idToValue))
	copy(out, d.idToValue)
	return out
}

// LoadSnapshot restores a Dictionary from a value list previously
// produced by Snapshot, rebuilding the reverse index.
func LoadSnapshot(values []string) *Dictionary {
	d := &Dictionary{
		idToValue: append([]string(nil), values...),
		valueToID: make(map[uint64][]entry, len(values)),
	}
	for i, v := range d.idToValue {
		if i == 0 {
			continue
		}
		key := hashKey(v)
		d.valueToID[key] = append(d.valueToID[key], entry{value: v, id: types.ValueID(i)})
	}
	return d
}
