package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Compile-time checks.
var (
	_ domain.AgentInvoker  = (*Client)(nil)
	_ domain.HealthChecker = (*Client)(nil)
)

// InvokeRequest is the body posted to the gateway.
type InvokeRequest struct {
	InputText string `json:"inputText"`
}

// Config holds the gateway settings.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client invokes agents through an SSE gateway:
// POST {base}/agents/{agentId}/aliases/{aliasId}/sessions/{sessionId}/text.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
		logger:  logger,
	}
}

// InvokePath returns the gateway path for one agent session.
func InvokePath(agent domain.AgentIdentity, sessionID string) string {
	return "/agents/" + url.PathEscape(agent.AgentID) +
		"/aliases/" + url.PathEscape(agent.AliasID) +
		"/sessions/" + url.PathEscape(sessionID) + "/text"
}

// Invoke implements domain.AgentInvoker.
func (c *Client) Invoke(
	ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Stream, error) {
	if err := agent.Validate(); err != nil {
		return nil, domain.NewRemoteInvocationError(agent, err)
	}

	body, err := json.Marshal(InvokeRequest{InputText: input})
	if err != nil {
		return nil, domain.NewRemoteInvocationError(agent, fmt.Errorf("marshal request: %w", err))
	}

	sessionID := domain.NewSessionID(role)
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.baseURL+InvokePath(agent, sessionID), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, domain.NewRemoteInvocationError(agent, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("Invoking gateway agent",
		zap.String("agent", agent.String()),
		zap.String("session_id", sessionID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, domain.NewRemoteInvocationError(agent, err)
	}
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, domain.NewRemoteInvocationError(agent,
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	return newFrameStream(reqCtx, cancel, resp.Body, agent), nil
}

// HealthCheck probes GET {base}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway health: status %d", resp.StatusCode)
	}
	return nil
}

type frameStream struct {
	ctx    context.Context
	events chan stream.Event

	mu  sync.Mutex
	err error
}

func newFrameStream(
	ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, agent domain.AgentIdentity,
) stream.Stream {
	fs := &frameStream{ctx: ctx, events: make(chan stream.Event)}

	go func() {
		defer close(fs.events)
		for f := range ReadFrames(ctx, body) {
			if ctx.Err() != nil {
				return
			}
			if f.Err != nil {
				fs.fail(domain.NewRemoteInvocationError(agent, f.Err))
				return
			}
			if f.Error != nil {
				fs.fail(domain.NewRemoteInvocationError(agent, errors.New(f.Error.Message)))
				return
			}
			ev, ok := f.event()
			if !ok {
				continue
			}
			select {
			case fs.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return stream.FromChannel(fs.events, fs.error, func() error {
		cancel()
		return nil
	})
}

func (fs *frameStream) fail(err error) {
	fs.mu.Lock()
	fs.err = err
	fs.mu.Unlock()
}

func (fs *frameStream) error() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.err != nil {
		return fs.err
	}
	return fs.ctx.Err() //nolint:wrapcheck // caller classifies context errors
}
