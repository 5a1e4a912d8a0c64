package research

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/deepresearch/internal/domain"
)

// Envelope is an inbound invocation. Body is a request object, or the same
// object encoded as a JSON string as API Gateway delivers it.
type Envelope struct {
	Body json.RawMessage `json:"body"`
}

// Request decodes the body. An absent or null body is an empty request.
func (e Envelope) Request() (Request, error) {
	raw := bytes.TrimSpace(e.Body)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Request{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Request{}, fmt.Errorf("decode body string: %w: %w", domain.ErrInvalidRequest, err)
		}
		if s == "" {
			return Request{}, nil
		}
		raw = []byte(s)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("decode body: %w: %w", domain.ErrInvalidRequest, err)
	}
	return req, nil
}

// Reply is the invocation result. Body holds the JSON-encoded aggregate or error.
type Reply struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ErrorBody is the body of a failed invocation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Succeeded wraps agg in a 200 reply.
func Succeeded(agg Aggregate) Reply {
	data, err := json.Marshal(agg)
	if err != nil {
		return Failed()
	}
	return Reply{StatusCode: http.StatusOK, Body: string(data)}
}

// Failed is the reply to any failed run. It never carries details.
func Failed() Reply {
	data, _ := json.Marshal(ErrorBody{Error: FailureMessage}) //nolint:errchkjson // constant string
	return Reply{StatusCode: http.StatusInternalServerError, Body: string(data)}
}
