// Package openai runs agents on an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Compile-time checks.
var (
	_ domain.AgentInvoker  = (*ChatAgent)(nil)
	_ domain.HealthChecker = (*ChatAgent)(nil)
)

// ChatAgent maps an agent identity onto a streamed chat completion:
// the agent id selects the model and the alias id selects a system prompt.
type ChatAgent struct {
	client   *openai.Client
	profiles map[string]string
	logger   *zap.Logger
}

// Config holds the chat backend settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Profiles map[string]string
	Logger   *zap.Logger
}

// NewChatAgent creates an OpenAI-compatible agent backend.
func NewChatAgent(cfg *Config) *ChatAgent {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChatAgent{
		client:   openai.NewClientWithConfig(clientCfg),
		profiles: cfg.Profiles,
		logger:   logger,
	}
}

// Invoke implements domain.AgentInvoker.
func (a *ChatAgent) Invoke(
	ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Stream, error) {
	if err := agent.Validate(); err != nil {
		return nil, domain.NewRemoteInvocationError(agent, err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt := a.profiles[agent.AliasID]; prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input})

	sessionID := domain.NewSessionID(role)
	a.logger.Debug("Starting chat completion",
		zap.String("model", agent.AgentID),
		zap.String("session_id", sessionID),
	)

	cs, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    agent.AgentID,
		Messages: messages,
		Stream:   true,
		User:     sessionID,
	})
	if err != nil {
		return nil, domain.NewRemoteInvocationError(agent, parseAPIError(err))
	}

	return &chatStream{inner: cs, agent: agent}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *ChatAgent) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// chatStream turns completion deltas into Text events.
type chatStream struct {
	inner *openai.ChatCompletionStream
	agent domain.AgentIdentity
}

func (s *chatStream) Recv(ctx context.Context) (stream.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // caller classifies context errors
		}
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr //nolint:wrapcheck // caller classifies context errors
			}
			return nil, domain.NewRemoteInvocationError(s.agent, parseAPIError(err))
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return stream.Text{Text: resp.Choices[0].Delta.Content}, nil
	}
}

func (s *chatStream) Close() error {
	s.inner.Close()
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	return fmt.Errorf("chat request failed: %w", err)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
