package metadata

import (
	"strings"
	"sync/atomic"
)

// parsed boxes a decoded value so it can be published atomically.
type parsed struct {
	v any
}

// entry is one value slot. It holds a typed value, wire bytes, or both once
// one has been converted into the other. Neither form is dropped after it is
// known. Conversions publish with compare-and-swap, so concurrent readers all
// end up with the first stored result.
type entry struct {
	name     string
	wireName []byte

	raw    atomic.Pointer[[]byte]
	parsed atomic.Pointer[parsed]

	// marshal encodes the typed value with the codec of the key it was put
	// under. It is nil for entries received from the wire.
	marshal func() ([]byte, error)
}

func newTypedEntry[T any](key *Key[T], v T) *entry {
	e := &entry{
		name:     key.name,
		wireName: key.wireName,
		marshal:  func() ([]byte, error) { return key.encode(v) },
	}
	e.parsed.Store(&parsed{v: v})
	return e
}

func newRawEntry(name, value []byte) *entry {
	e := &entry{
		name:     strings.ToLower(string(name)),
		wireName: name,
	}
	e.raw.Store(&value)
	return e
}

// bytes returns the wire value, encoding and caching it on first use.
func (e *entry) bytes() ([]byte, error) {
	if b := e.raw.Load(); b != nil {
		return *b, nil
	}

	b, err := e.marshal()
	if err != nil {
		return nil, err
	}
	if e.raw.CompareAndSwap(nil, &b) {
		return b, nil
	}
	return *e.raw.Load(), nil
}

// decodeEntry returns the typed value of e as seen through key. A cached value
// of type T is returned as is; otherwise the wire bytes are decoded and the
// result cached if the slot is still empty.
func decodeEntry[T any](e *entry, key *Key[T]) (T, error) {
	if p := e.parsed.Load(); p != nil {
		if v, ok := p.v.(T); ok {
			return v, nil
		}
	}

	var zero T
	data, err := e.bytes()
	if err != nil {
		return zero, err
	}

	v, err := key.decode(data)
	if err != nil {
		return zero, &DecodeError{Name: e.name, Binary: key.binary, Err: err}
	}

	if e.parsed.CompareAndSwap(nil, &parsed{v: v}) {
		return v, nil
	}
	if w, ok := e.parsed.Load().v.(T); ok {
		return w, nil
	}
	// The slot holds a value of another type; serve this one uncached.
	return v, nil
}

// store is the ordered multimap behind a container.
type store struct {
	entries []*entry
}

func (s *store) put(e *entry) {
	s.entries = append(s.entries, e)
}

func (s *store) first(name string) *entry {
	for _, e := range s.entries {
		if e.name == name {
			return e
		}
	}
	return nil
}

// remove drops every entry named name and reports how many were dropped.
// The remaining entries keep their order in a fresh slice, so containers
// that merged these entries earlier are not affected.
func (s *store) remove(name string) int {
	kept := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	n := len(s.entries) - len(kept)
	s.entries = kept
	return n
}
