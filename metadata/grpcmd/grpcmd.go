// Package grpcmd moves metadata containers in and out of gRPC calls.
//
// gRPC keeps metadata in a map, so the relative order of different names is
// lost on the way in. FromMD orders names lexically to stay deterministic and
// keeps the order of values within each name.
package grpcmd

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	grpcmetadata "google.golang.org/grpc/metadata"

	"github.com/Zereker/metasocket/metadata"
)

// FromMD returns a Raw container holding the values of md.
func FromMD(md grpcmetadata.MD) (*metadata.Metadata, error) {
	names := make([]string, 0, len(md))
	n := 0
	for name, vals := range md {
		names = append(names, name)
		n += len(vals)
	}
	sort.Strings(names)

	pairs := make([][]byte, 0, 2*n)
	for _, name := range names {
		wireName := []byte(name)
		for _, v := range md[name] {
			pairs = append(pairs, wireName, []byte(v))
		}
	}
	return metadata.FromWire(pairs)
}

// ToMD serializes m into gRPC metadata. Values of binary keys are passed as
// raw bytes; gRPC base64-encodes them on the wire.
func ToMD(m *metadata.Metadata) (grpcmetadata.MD, error) {
	pairs, err := m.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "grpcmd: serialize")
	}

	md := make(grpcmetadata.MD, m.Len())
	for i := 0; i < len(pairs); i += 2 {
		md.Append(string(pairs[i]), string(pairs[i+1]))
	}
	return md, nil
}

// FromIncomingContext returns the metadata of an incoming call as a Raw
// container. ok is false when the context carries none.
func FromIncomingContext(ctx context.Context) (m *metadata.Metadata, ok bool, err error) {
	md, ok := grpcmetadata.FromIncomingContext(ctx)
	if !ok {
		return nil, false, nil
	}

	m, err = FromMD(md)
	return m, true, err
}

// AppendToOutgoingContext adds the entries of m to the outgoing metadata of ctx.
func AppendToOutgoingContext(ctx context.Context, m *metadata.Metadata) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	pairs, err := m.Serialize()
	if err != nil {
		return ctx, errors.Wrap(err, "grpcmd: serialize")
	}
	if len(pairs) == 0 {
		return ctx, nil
	}

	kv := make([]string, len(pairs))
	for i, p := range pairs {
		kv[i] = string(p)
	}
	return grpcmetadata.AppendToOutgoingContext(ctx, kv...), nil
}

// UnaryClientInterceptor attaches m to every unary call. m must be Typed and
// must not be written to once the interceptor is installed.
func UnaryClientInterceptor(m *metadata.Metadata) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req any,
		reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := AppendToOutgoingContext(ctx, m)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor attaches m to every streaming call.
func StreamClientInterceptor(m *metadata.Metadata) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := AppendToOutgoingContext(ctx, m)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}
