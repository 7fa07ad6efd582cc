package codecs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// TraceParentKey is the W3C trace context header name.
const TraceParentKey = "traceparent"

const (
	traceParentVersion = 0
	traceParentBinLen  = 1 + 16 + 8 + 1
)

// ErrInvalidSpanContext is returned when encoding a span context without
// valid trace and span ids.
var ErrInvalidSpanContext = errors.New("traceparent: invalid span context")

// TraceParent carries a span context as a W3C traceparent value:
// "00-<trace-id>-<span-id>-<flags>" in ascii form, or 26 bytes (version,
// trace id, span id, flags) in binary form. Trace state is not carried.
// Decoded span contexts are marked remote.
type TraceParent struct{}

func (TraceParent) EncodeBinary(sc trace.SpanContext) ([]byte, error) {
	if !sc.IsValid() {
		return nil, ErrInvalidSpanContext
	}
	traceID, spanID := sc.TraceID(), sc.SpanID()

	b := make([]byte, 0, traceParentBinLen)
	b = append(b, traceParentVersion)
	b = append(b, traceID[:]...)
	b = append(b, spanID[:]...)
	return append(b, byte(sc.TraceFlags())), nil
}

func (TraceParent) EncodeASCII(sc trace.SpanContext) (string, error) {
	if !sc.IsValid() {
		return "", ErrInvalidSpanContext
	}
	return fmt.Sprintf("%02x-%s-%s-%s", traceParentVersion, sc.TraceID(), sc.SpanID(), sc.TraceFlags()), nil
}

func (TraceParent) DecodeBinary(data []byte) (trace.SpanContext, error) {
	if len(data) != traceParentBinLen {
		return trace.SpanContext{}, errors.Errorf("traceparent: want %d bytes, got %d", traceParentBinLen, len(data))
	}
	if data[0] != traceParentVersion {
		return trace.SpanContext{}, errors.Errorf("traceparent: unsupported version %d", data[0])
	}

	var cfg trace.SpanContextConfig
	copy(cfg.TraceID[:], data[1:17])
	copy(cfg.SpanID[:], data[17:25])
	cfg.TraceFlags = trace.TraceFlags(data[25])
	return newRemoteSpanContext(cfg)
}

func (TraceParent) DecodeASCII(text string) (trace.SpanContext, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 4 {
		return trace.SpanContext{}, errors.Errorf("traceparent: malformed %q", text)
	}
	if parts[0] != "00" {
		return trace.SpanContext{}, errors.Errorf("traceparent: unsupported version %q", parts[0])
	}

	var (
		cfg trace.SpanContextConfig
		err error
	)
	if cfg.TraceID, err = trace.TraceIDFromHex(parts[1]); err != nil {
		return trace.SpanContext{}, errors.Wrap(err, "traceparent: trace id")
	}
	if cfg.SpanID, err = trace.SpanIDFromHex(parts[2]); err != nil {
		return trace.SpanContext{}, errors.Wrap(err, "traceparent: span id")
	}
	if len(parts[3]) != 2 {
		return trace.SpanContext{}, errors.Errorf("traceparent: malformed flags %q", parts[3])
	}
	flags, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return trace.SpanContext{}, errors.Wrap(err, "traceparent: flags")
	}
	cfg.TraceFlags = trace.TraceFlags(flags)
	return newRemoteSpanContext(cfg)
}

func newRemoteSpanContext(cfg trace.SpanContextConfig) (trace.SpanContext, error) {
	cfg.Remote = true
	sc := trace.NewSpanContext(cfg)
	if !sc.IsValid() {
		return trace.SpanContext{}, ErrInvalidSpanContext
	}
	return sc, nil
}
