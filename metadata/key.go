package metadata

import (
	"strings"
)

// BinarySuffix marks a key whose values travel in binary form.
const BinarySuffix = "-bin"

// Key names a metadata entry and binds it to the codec for its values.
//
// Keys are immutable and usually declared once at package level:
//
//	var RequestID = metadata.NewKey[string]("x-request-id", metadata.String{})
//
// Entries are looked up by name, so two keys with the same name refer to
// the same values.
type Key[T any] struct {
	name     string
	wireName []byte
	binary   bool
	codec    Codec[T]
}

// NewKey returns a key for name. The name is lower-cased. A name ending in
// BinarySuffix selects the codec's binary form, any other name the ascii form.
//
// NewKey panics if name is empty or codec is nil.
func NewKey[T any](name string, codec Codec[T]) *Key[T] {
	if name == "" {
		panic("metadata: empty key name")
	}
	if codec == nil {
		panic("metadata: nil codec for key " + name)
	}

	name = strings.ToLower(name)
	return &Key[T]{
		name:     name,
		wireName: []byte(name),
		binary:   isBinaryName(name),
		codec:    codec,
	}
}

// Name returns the canonical, lower-cased wire name.
func (k *Key[T]) Name() string { return k.name }

// Binary reports whether values of this key use the binary form.
func (k *Key[T]) Binary() bool { return k.binary }

// Codec returns the codec bound to the key.
func (k *Key[T]) Codec() Codec[T] { return k.codec }

func (k *Key[T]) String() string {
	return "Key{name=" + k.name + "}"
}

func (k *Key[T]) encode(v T) ([]byte, error) {
	if k.binary {
		return k.codec.EncodeBinary(v)
	}
	s, err := k.codec.EncodeASCII(v)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (k *Key[T]) decode(data []byte) (T, error) {
	if k.binary {
		return k.codec.DecodeBinary(data)
	}
	return k.codec.DecodeASCII(string(data))
}

func isBinaryName(name string) bool {
	return strings.HasSuffix(name, BinarySuffix)
}
