package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Result is a fully drained stream.
type Result struct {
	Content string
	Traces  []json.RawMessage
}

// Drain consumes s to the end and concatenates its content in arrival order.
// Byte chunks are decoded as UTF-8 with code points reassembled across chunk
// boundaries; trace payloads are collected separately. A nil stream yields an
// empty Result. The stream is closed before Drain returns.
func Drain(ctx context.Context, s Stream) (Result, error) {
	res := Result{Traces: []json.RawMessage{}}
	if s == nil {
		return res, nil
	}
	defer s.Close() //nolint:errcheck // close errors carry no content

	var (
		sb      strings.Builder
		pending []byte
	)
	for {
		ev, err := s.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, classify(err)
		}

		switch e := ev.(type) {
		case Chunk:
			pending = append(pending, e.Bytes...)
			n, err := completePrefix(pending)
			if err != nil {
				return Result{}, err
			}
			sb.Write(pending[:n])
			pending = pending[n:]
		case Text:
			if len(pending) > 0 {
				return Result{}, fmt.Errorf("code point split by text event: %w", ErrDecode)
			}
			sb.WriteString(e.Text)
		case Trace:
			res.Traces = append(res.Traces, e.Payload)
		}
	}

	if len(pending) > 0 {
		return Result{}, fmt.Errorf("truncated code point at end of stream (% x): %w", pending, ErrDecode)
	}
	res.Content = sb.String()
	return res, nil
}

// completePrefix returns the length of the longest prefix of b made of whole,
// valid code points. An incomplete sequence at the tail is left for the next
// chunk; an invalid sequence anywhere is an error.
func completePrefix(b []byte) (int, error) {
	i := 0
	for i < len(b) {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b[i:]) {
				return i, nil
			}
			return 0, fmt.Errorf("invalid UTF-8 at offset %d: %w", i, ErrDecode)
		}
		i += size
	}
	return i, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("drain: %w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("drain: %w", err)
}
