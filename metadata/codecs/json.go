package codecs

import (
	"encoding/json"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// JSON encodes values of type T with encoding/json. The ascii form is the
// same document with non-ASCII runes escaped, which JSON decoders undo.
type JSON[T any] struct{}

func (JSON[T]) EncodeBinary(v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "json: marshal")
	}
	return b, nil
}

func (c JSON[T]) EncodeASCII(v T) (string, error) {
	b, err := c.EncodeBinary(v)
	if err != nil {
		return "", err
	}
	return escapeNonASCII(b), nil
}

func (JSON[T]) DecodeBinary(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "json: unmarshal")
	}
	return v, nil
}

func (c JSON[T]) DecodeASCII(text string) (T, error) {
	return c.DecodeBinary([]byte(text))
}

// escapeNonASCII rewrites every rune outside printable ASCII as a \u escape.
// encoding/json already escapes control characters inside strings, so in
// valid output such runes only appear within string literals.
func escapeNonASCII(b []byte) string {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r >= 0x20 && r <= 0x7e {
			out = append(out, byte(r))
			continue
		}
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			out = appendEscape(out, r1)
			out = appendEscape(out, r2)
			continue
		}
		out = appendEscape(out, r)
	}
	return string(out)
}

func appendEscape(out []byte, r rune) []byte {
	out = append(out, `\u`...)
	hex := strconv.FormatInt(int64(r), 16)
	for i := len(hex); i < 4; i++ {
		out = append(out, '0')
	}
	return append(out, hex...)
}
