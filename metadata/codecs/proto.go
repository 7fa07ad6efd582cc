package codecs

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"

	"github.com/Zereker/metasocket/metadata"
)

// Proto encodes protocol buffer messages in their binary wire format.
// The ascii form is base64 of the binary form.
type Proto[T proto.Message] struct {
	newMessage func() T
}

// NewProto returns a codec that decodes into messages created by newMessage.
func NewProto[T proto.Message](newMessage func() T) Proto[T] {
	return Proto[T]{newMessage: newMessage}
}

func (Proto[T]) EncodeBinary(v T) ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "proto: marshal")
	}
	return b, nil
}

func (c Proto[T]) EncodeASCII(v T) (string, error) {
	b, err := c.EncodeBinary(v)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

func (c Proto[T]) DecodeBinary(data []byte) (T, error) {
	m := c.newMessage()
	if err := proto.Unmarshal(data, m); err != nil {
		var zero T
		return zero, errors.Wrap(err, "proto: unmarshal")
	}
	return m, nil
}

func (c Proto[T]) DecodeASCII(text string) (T, error) {
	b, err := metadata.DecodeBase64(text)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.DecodeBinary(b)
}
