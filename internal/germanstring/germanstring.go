// Package germanstring implements an Umbra-style ("German string")
// compact string descriptor: a fixed 16-byte value that stores short
// strings fully inline and, for longer strings, a length plus an 8-byte
// prefix plus a reference into a suffix registry. Comparing two
// descriptors by prefix alone resolves most orderings without touching
// the registry at all.
package germanstring

import (
	"bytes"
	"encoding/binary"
	"sync"
)

const (
	// shortStringSize is the largest string stored fully inline.
	shortStringSize = 12
	suffixIDSize    = 4
	prefixLength    = shortStringSize - suffixIDSize // 8
)

// String is a 16-byte-equivalent descriptor: a uint32 length plus a
// 12-byte payload that is either the whole string (length <=
// shortStringSize) or an 8-byte prefix followed by a 4-byte suffix id
// resolved through a Registry.
type String struct {
	length  uint32
	payload [shortStringSize]byte
}

// Registry owns the out-of-line suffixes for strings longer than
// shortStringSize. One Registry is shared by every String value
// produced for a given column partition.
type Registry struct {
	mu       sync.RWMutex
	suffixes [][]byte
}

// NewRegistry returns an empty suffix registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) store(suffix []byte) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint32(len(r.suffixes))
	cp := append([]byte(nil), suffix...)
	r.suffixes = append(r.suffixes, cp)
	return id
}

func (r *Registry) lookup(id uint32) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suffixes[id]
}

// New builds a String descriptor for value, registering its suffix in
// reg if value is longer than shortStringSize.
func New(value string, reg *Registry) String {
	s := String{length: uint32(len(value))}
	if len(value) <= shortStringSize {
		copy(s.payload[:], value)
		return s
	}

	copy(s.payload[:prefixLength], value[:prefixLength])
	id := reg.store([]byte(value[prefixLength:]))
	binary.LittleEndian.PutUint32(s.payload[prefixLength:], id)
	return s
}

// Len returns the original string's length in bytes.
func (s String) Len() int { return int(s.length) }

// IsInline reports whether the full string is stored in the descriptor
// with no registry lookup needed.
func (s String) IsInline() bool {
	return s.length <= shortStringSize
}

// Prefix returns the bytes available without any registry access: the
// whole string when it is inline, otherwise its first prefixLength bytes.
func (s String) Prefix() []byte {
	if s.IsInline() {
		n := s.length
		if n > shortStringSize {
			n = shortStringSize
		}
		return s.payload[:n]
	}
	return s.payload[:prefixLength]
}

func (s String) suffixID() uint32 {
	return binary.LittleEndian.Uint32(s.payload[prefixLength:])
}

// Value reconstructs the original string, consulting reg only when the
// descriptor is not inline.
func (s String) Value(reg *Registry) string {
	if s.IsInline() {
		return string(s.payload[:s.length])
	}
	suffix := reg.lookup(s.suffixID())
	out := make([]byte, 0, s.length)
	out = append(out, s.payload[:prefixLength]...)
	out = append(out, suffix...)
	return string(out)
}

// FastCompareResult is the outcome of a prefix-only comparison.
type FastCompareResult int

const (
	// Indeterminate means the prefixes (and, for inline strings, the
	// whole value) tie and the caller must compare full values via reg.
	Indeterminate FastCompareResult = iota
	Less
	Equal
	Greater
)

// FastCompare compares s to other without necessarily resolving a
// suffix: if s is inline, the comparison is exact; otherwise only the
// prefix is compared, and a tie yields Indeterminate.
func (s String) FastCompare(other string) FastCompareResult {
	if s.IsInline() {
		return compareBytes(s.payload[:s.length], []byte(other))
	}

	n := prefixLength
	if len(other) < n {
		n = len(other)
	}
	cmp := compareBytes(s.payload[:prefixLength][:n], []byte(other)[:n])
	if cmp != Equal {
		return cmp
	}
	if len(other) < prefixLength {
		return Greater
	}
	return Indeterminate
}

// SameValue reports whether s and t denote the same string, using the
// length and prefix (and inline payload) to short-circuit without
// touching reg whenever possible.
func SameValue(s, t String, reg *Registry) bool {
	if s.length != t.length {
		return false
	}
	if s.IsInline() {
		return s.payload == t.payload
	}
	if !bytes.Equal(s.payload[:prefixLength], t.payload[:prefixLength]) {
		return false
	}
	return s.Value(reg) == t.Value(reg)
}

func compareBytes(a, b []byte) FastCompareResult {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			return Less
		}
		if a[i] > b[i] {
			return Greater
		}
	}
	switch {
	case len(a) < len(b):
		return Less
	case len(a) > len(b):
		return Greater
	default:
		return Equal
	}
}
