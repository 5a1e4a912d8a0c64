package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; chunk frames carry base64 payloads.
const maxLineSize = 1 << 20

// ReadFrames reads SSE events from body and delivers them on the returned
// channel. The channel is closed when the body is exhausted, a read error
// occurs, or ctx is cancelled. The body is closed when reading finishes.
//
// Lines starting with ":" are comments. Multiple "data:" lines in one event
// are joined with newlines. Malformed JSON yields a Frame with Err set.
func ReadFrames(ctx context.Context, body io.ReadCloser) <-chan Frame {
	ch := make(chan Frame)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		var dataBuf strings.Builder

		flush := func() bool {
			if dataBuf.Len() == 0 {
				return true
			}
			raw := dataBuf.String()
			dataBuf.Reset()
			return send(ctx, ch, parseFrame(raw))
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					send(ctx, ch, Frame{Err: fmt.Errorf("sse: read: %w", err)})
					return
				}
				flush()
				return
			}

			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(payload)
			default:
				// event:, id:, retry: carry nothing we use.
			}
		}
	}()
	return ch
}

func parseFrame(raw string) Frame {
	var f Frame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return Frame{Err: fmt.Errorf("sse: unmarshal frame: %w", err)}
	}
	return f
}

func send(ctx context.Context, ch chan<- Frame, f Frame) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
