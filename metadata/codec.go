package metadata

import (
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Codec converts values of type T to and from their wire forms.
//
// A Codec has a binary form, used by keys whose name ends in BinarySuffix,
// and an ascii form restricted to printable ASCII, used by every other key.
// Each form must round-trip on its own: DecodeBinary(EncodeBinary(v)) and
// DecodeASCII(EncodeASCII(v)) reproduce v. Mixing forms is not required to work.
//
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	// EncodeBinary returns the binary wire form of v.
	EncodeBinary(v T) ([]byte, error)
	// EncodeASCII returns the printable ASCII wire form of v.
	EncodeASCII(v T) (string, error)
	// DecodeBinary parses a binary wire value.
	DecodeBinary(data []byte) (T, error)
	// DecodeASCII parses an ascii wire value.
	DecodeASCII(text string) (T, error)
}

// ErrNotASCII is returned when a value cannot be represented in the ascii form.
var ErrNotASCII = errors.New("metadata: value is not printable ascii")

// IsPrintableASCII reports whether s only contains bytes in the range 0x20-0x7E.
func IsPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// String is the codec for plain text header values.
type String struct{}

func (String) EncodeBinary(v string) ([]byte, error) { return []byte(v), nil }

func (String) EncodeASCII(v string) (string, error) {
	if !IsPrintableASCII(v) {
		return "", errors.Wrapf(ErrNotASCII, "%q", v)
	}
	return v, nil
}

func (String) DecodeBinary(data []byte) (string, error) { return string(data), nil }

func (String) DecodeASCII(text string) (string, error) { return text, nil }

// Bytes is the codec for opaque binary values. Its ascii form is base64.
type Bytes struct{}

func (Bytes) EncodeBinary(v []byte) ([]byte, error) { return v, nil }

func (Bytes) EncodeASCII(v []byte) (string, error) {
	return base64.RawStdEncoding.EncodeToString(v), nil
}

func (Bytes) DecodeBinary(data []byte) ([]byte, error) { return data, nil }

func (Bytes) DecodeASCII(text string) ([]byte, error) {
	return DecodeBase64(text)
}

// DecodeBase64 decodes standard base64 with or without padding.
func DecodeBase64(text string) ([]byte, error) {
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	if err != nil {
		return nil, errors.Wrap(err, "base64")
	}
	return b, nil
}

// Int64 encodes integers as decimal text, or 8 big-endian bytes in binary form.
type Int64 struct{}

func (Int64) EncodeBinary(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(v)), nil
}

func (Int64) EncodeASCII(v int64) (string, error) {
	return strconv.FormatInt(v, 10), nil
}

func (Int64) DecodeBinary(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, errors.Errorf("int64: want 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

func (Int64) DecodeASCII(text string) (int64, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "int64")
	}
	return v, nil
}
