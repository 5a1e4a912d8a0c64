// Package stream models an agent's reply as an ordered sequence of typed events
// and drains it into text content plus trace payloads.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

var (
	// ErrDecode signals malformed UTF-8 content, including a truncated trailing code point.
	ErrDecode = errors.New("stream decode failed")
	// ErrTimeout signals that the stream did not finish before its deadline.
	ErrTimeout = errors.New("stream timeout")
)

// Event is one element of a response stream. The set of variants is closed:
// Chunk, Text and Trace. Transports drop any other wire shape before it gets here.
type Event interface {
	isEvent()
}

// Chunk carries a fragment of UTF-8 encoded content. A code point may be split across chunks.
type Chunk struct {
	Bytes []byte
}

// Text carries already decoded content.
type Text struct {
	Text string
}

// Trace carries a diagnostic payload as raw JSON.
type Trace struct {
	Payload json.RawMessage
}

func (Chunk) isEvent() {}
func (Text) isEvent()  {}
func (Trace) isEvent() {}

// Stream is a single-use, in-order sequence of events.
// Recv returns io.EOF once the sequence is exhausted.
type Stream interface {
	Recv(ctx context.Context) (Event, error)
	Close() error
}

// Of returns a stream that replays the given events.
func Of(events ...Event) Stream {
	return &sliceStream{events: events}
}

type sliceStream struct {
	events []Event
	pos    int
}

func (s *sliceStream) Recv(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // caller classifies context errors
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceStream) Close() error { return nil }

// FromChannel adapts a channel-driven source. The stream ends when events is closed;
// errFn (may be nil) then reports whether the source stopped on an error.
func FromChannel(events <-chan Event, errFn func() error, closeFn func() error) Stream {
	return &chanStream{events: events, errFn: errFn, closeFn: closeFn}
}

type chanStream struct {
	events  <-chan Event
	errFn   func() error
	closeFn func() error
}

func (s *chanStream) Recv(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err() //nolint:wrapcheck // caller classifies context errors
	case ev, ok := <-s.events:
		if ok {
			return ev, nil
		}
		if s.errFn != nil {
			if err := s.errFn(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}
}

func (s *chanStream) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
