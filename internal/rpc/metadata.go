package rpc

import (
	"context"
	"time"
)

const (
	// HeaderRequestID carries the relay correlation id across hops.
	HeaderRequestID = "x-request-id"
	// HeaderTimeout carries the time the caller has left, so a handler stops
	// working once the caller has given up.
	HeaderTimeout = "x-timeout"
)

// Metadata describes the inbound call a handler is serving.
type Metadata struct {
	Method string
	Header map[string]string
	// Peer is the common name of the verified client certificate.
	Peer string
}

type metadataKey struct{}
type outgoingKey struct{}

func withMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// FromContext returns the metadata of the inbound call served by ctx.
func FromContext(ctx context.Context) (Metadata, bool) {
	md, ok := ctx.Value(metadataKey{}).(Metadata)
	return md, ok
}

// WithOutgoingHeader attaches a header to every call made with the returned
// context.
func WithOutgoingHeader(ctx context.Context, key, value string) context.Context {
	prev, _ := ctx.Value(outgoingKey{}).(map[string]string)
	next := make(map[string]string, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[key] = value
	return context.WithValue(ctx, outgoingKey{}, next)
}

func outgoingHeaders(ctx context.Context) map[string]string {
	prev, _ := ctx.Value(outgoingKey{}).(map[string]string)
	out := make(map[string]string, len(prev)+2)
	for k, v := range prev {
		out[k] = v
	}
	return out
}

func callTimeout(header map[string]string) (time.Duration, bool) {
	v, ok := header[HeaderTimeout]
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
