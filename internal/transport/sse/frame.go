// Package sse talks to an HTTP agent gateway that streams agent replies as
// Server-Sent Events, and serves the same wire format.
package sse

import (
	"encoding/json"

	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Frame is the JSON payload of one SSE data event. Exactly one field is set.
type Frame struct {
	Chunk *ChunkFrame     `json:"chunk,omitempty"`
	Trace json.RawMessage `json:"trace,omitempty"`
	Error *ErrorFrame     `json:"error,omitempty"`

	// Err is set by the reader when the payload could not be parsed. Never serialized.
	Err error `json:"-"`
}

// ChunkFrame carries raw content bytes, base64 encoded on the wire.
type ChunkFrame struct {
	Bytes []byte `json:"bytes"`
}

// ErrorFrame reports that the agent failed after the stream started.
type ErrorFrame struct {
	Message string `json:"message"`
}

// FrameOf converts a stream event into its wire frame.
func FrameOf(ev stream.Event) (Frame, bool) {
	switch v := ev.(type) {
	case stream.Chunk:
		return Frame{Chunk: &ChunkFrame{Bytes: v.Bytes}}, true
	case stream.Text:
		return Frame{Chunk: &ChunkFrame{Bytes: []byte(v.Text)}}, true
	case stream.Trace:
		return Frame{Trace: v.Payload}, true
	default:
		return Frame{}, false
	}
}

// event converts a wire frame into a stream event. Frames with no known field are dropped.
func (f Frame) event() (stream.Event, bool) {
	switch {
	case f.Chunk != nil:
		return stream.Chunk{Bytes: f.Chunk.Bytes}, true
	case len(f.Trace) > 0:
		return stream.Trace{Payload: f.Trace}, true
	default:
		return nil, false
	}
}
