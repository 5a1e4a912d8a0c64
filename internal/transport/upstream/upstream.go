// Package upstream posts JSON to tool providers and records per-tool metrics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
)

// maxErrorBody bounds how much of a failed response ends up in the error message.
const maxErrorBody = 512

// Client posts JSON requests on behalf of one tool.
type Client struct {
	tool string
	http *http.Client
}

// New creates a client for tool. A nil hc gets a client with the given timeout.
func New(tool string, hc *http.Client, timeout time.Duration) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{tool: tool, http: hc}
}

// PostJSON sends body as JSON and decodes a 2xx response into out.
// Every failure is a *domain.UpstreamToolError.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	start := time.Now()
	err := c.post(ctx, url, header, body, out)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ToolRequestsTotal.WithLabelValues(c.tool, status).Inc()
	metrics.ToolRequestDuration.WithLabelValues(c.tool).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) post(ctx context.Context, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewUpstreamToolError(c.tool, 0, fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.NewUpstreamToolError(c.tool, 0, fmt.Sprintf("build request: %v", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewUpstreamToolError(c.tool, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.NewUpstreamToolError(c.tool, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewUpstreamToolError(c.tool, resp.StatusCode, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

// Bearer returns an Authorization header for token.
func Bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
