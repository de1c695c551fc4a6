package providers

import "errors"

// ErrSinkDetached is returned by a sink whose client has gone away.
var ErrSinkDetached = errors.New("stream sink detached")

// StreamSink is a push-capable client connection.
type StreamSink interface {
	// Emit writes one typed chunk and flushes it.
	Emit(eventType string, data any) error
}
