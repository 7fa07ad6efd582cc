// Package codecs provides metadata codecs for structured values: JSON,
// MessagePack, protocol buffers and W3C trace context.
//
// Codecs whose binary form is not printable use base64 for their ascii form,
// which is the convention gRPC applies to binary header values on text
// transports.
package codecs
