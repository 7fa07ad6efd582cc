package codecs

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Zereker/metasocket/metadata"
)

// MsgPack encodes values of type T as MessagePack. The ascii form is base64.
type MsgPack[T any] struct{}

func (MsgPack[T]) EncodeBinary(v T) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "msgpack: marshal")
	}
	return b, nil
}

func (c MsgPack[T]) EncodeASCII(v T) (string, error) {
	b, err := c.EncodeBinary(v)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

func (MsgPack[T]) DecodeBinary(data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "msgpack: unmarshal")
	}
	return v, nil
}

func (c MsgPack[T]) DecodeASCII(text string) (T, error) {
	b, err := metadata.DecodeBase64(text)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.DecodeBinary(b)
}
