// Package metadata provides the typed, multi-valued header container carried
// with RPC calls.
//
// A container is created in one of two modes that never change:
//
//   - Typed containers come from New and are filled with Put. They are the
//     only containers that can be serialized.
//   - Raw containers come from FromWire and hold the name/value pairs exactly
//     as received. Values are decoded only when read through a Key.
//
// Each value is converted at most once in each direction: decoded values and
// encoded bytes are cached on the entry and returned by identity afterwards.
// A container is meant to be filled by one goroutine and then read by any
// number of goroutines without further writes.
package metadata

import (
	"iter"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Mode is the provenance of a container's values.
type Mode int

const (
	// Typed containers are built locally from typed values.
	Typed Mode = iota
	// Raw containers are built from wire bytes.
	Raw
)

func (m Mode) String() string {
	switch m {
	case Typed:
		return "typed"
	case Raw:
		return "raw"
	default:
		return "unknown"
	}
}

// Metadata is an ordered multimap of header names to values.
// The zero value is an empty Typed container.
type Metadata struct {
	mode  Mode
	store store
}

// New returns an empty Typed container.
func New() *Metadata {
	return &Metadata{mode: Typed}
}

// FromWire returns a Raw container holding pairs, a flat sequence of
// alternating name and value byte slices in arrival order. The slices are
// retained, not copied, and nothing is decoded until it is read.
func FromWire(pairs [][]byte) (*Metadata, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "odd number of wire pairs (%d)", len(pairs))
	}

	md := &Metadata{mode: Raw}
	md.store.entries = make([]*entry, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		md.store.put(newRawEntry(pairs[i], pairs[i+1]))
	}
	return md, nil
}

// Mode returns the mode fixed at construction.
func (md *Metadata) Mode() Mode { return md.mode }

// Len returns the number of entries, counting repeated names.
func (md *Metadata) Len() int { return len(md.store.entries) }

// Contains reports whether at least one entry has the given name.
func (md *Metadata) Contains(name string) bool {
	return md.store.first(canonicalName(name)) != nil
}

// Names returns the distinct entry names in order of first arrival.
func (md *Metadata) Names() []string {
	seen := make(map[string]struct{}, len(md.store.entries))
	var names []string
	for _, e := range md.store.entries {
		if _, ok := seen[e.name]; ok {
			continue
		}
		seen[e.name] = struct{}{}
		names = append(names, e.name)
	}
	return names
}

// RemoveAll drops every entry with the given name and returns how many were
// removed.
func (md *Metadata) RemoveAll(name string) int {
	return md.store.remove(canonicalName(name))
}

// Put appends v under key. Existing values for the same name are kept.
// Put is allowed in both modes, but a Raw container still cannot be
// serialized afterwards.
func Put[T any](md *Metadata, key *Key[T], v T) {
	md.store.put(newTypedEntry(key, v))
}

// Get returns the first value stored under key's name. ok is false when there
// is none. A value stored with Put is returned as the same instance; a wire
// value is decoded once and the decoded instance is returned on every call.
func Get[T any](md *Metadata, key *Key[T]) (v T, ok bool, err error) {
	e := md.store.first(key.name)
	if e == nil {
		return v, false, nil
	}

	v, err = decodeEntry(e, key)
	return v, true, err
}

// GetAll returns every value stored under key's name in arrival order.
// Values are decoded as the sequence is consumed, and the sequence can be
// ranged over again.
func GetAll[T any](md *Metadata, key *Key[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, e := range md.store.entries {
			if e.name != key.name {
				continue
			}
			if !yield(decodeEntry(e, key)) {
				return
			}
		}
	}
}

// Values collects GetAll into a slice, stopping at the first decode error.
func Values[T any](md *Metadata, key *Key[T]) ([]T, error) {
	var out []T
	for v, err := range GetAll(md, key) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Merge appends the entries of other to md, keeping their order. Merging a
// Raw container is rejected and leaves md unchanged. md keeps its own mode.
func (md *Metadata) Merge(other *Metadata) error {
	if other.mode == Raw {
		return &ModeError{Op: "merge", Mode: other.mode, Kind: ErrInvalidArgument}
	}

	md.store.entries = append(md.store.entries, other.store.entries...)
	return nil
}

// Serialize returns the wire form of md: alternating name and value slices,
// one pair per entry in arrival order. Encoded values are cached, so repeated
// calls return the same slices. Raw containers cannot be serialized.
func (md *Metadata) Serialize() ([][]byte, error) {
	if md.mode == Raw {
		return nil, &ModeError{Op: "serialize", Mode: md.mode, Kind: ErrIllegalState}
	}

	out := make([][]byte, 0, 2*len(md.store.entries))
	for _, e := range md.store.entries {
		b, err := e.bytes()
		if err != nil {
			return nil, errors.Wrapf(err, "metadata: encode %q", e.name)
		}
		out = append(out, e.wireName, b)
	}
	return out, nil
}

// LogValue implements slog.LogValuer. Values are never included.
func (md *Metadata) LogValue() slog.Value {
	if md == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("mode", md.mode.String()),
		slog.Int("entries", md.Len()),
		slog.Any("names", md.Names()),
	)
}

func canonicalName(name string) string {
	return strings.ToLower(name)
}
