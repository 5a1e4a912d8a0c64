// Package bedrock invokes Amazon Bedrock agents and adapts their event stream.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Compile-time check: Client implements domain.AgentInvoker.
var _ domain.AgentInvoker = (*Client)(nil)

// eventSource is the part of the SDK event stream the client reads.
type eventSource interface {
	Events() <-chan types.ResponseStream
	Err() error
	Close() error
}

// invokeFunc starts an InvokeAgent call and returns its event stream.
type invokeFunc func(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventSource, error)

// Config holds the Bedrock agent runtime settings.
type Config struct {
	Region      string
	EnableTrace bool
	Logger      *zap.Logger
}

// Client invokes Bedrock agents.
type Client struct {
	invoke      invokeFunc
	enableTrace bool
	logger      *zap.Logger
}

// NewClient loads the default AWS credential chain for the region and creates a client.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	rt := bedrockagentruntime.NewFromConfig(awsCfg)

	return newClient(func(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventSource, error) {
		out, err := rt.InvokeAgent(ctx, in)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Invoke
		}
		return out.GetStream(), nil
	}, cfg), nil
}

func newClient(invoke invokeFunc, cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{invoke: invoke, enableTrace: cfg.EnableTrace, logger: logger}
}

// Invoke implements domain.AgentInvoker. Every call opens a new agent session.
func (c *Client) Invoke(
	ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Stream, error) {
	if err := agent.Validate(); err != nil {
		return nil, domain.NewRemoteInvocationError(agent, err)
	}

	sessionID := domain.NewSessionID(role)
	c.logger.Debug("Invoking Bedrock agent",
		zap.String("agent", agent.String()),
		zap.String("session_id", sessionID),
	)

	es, err := c.invoke(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(agent.AgentID),
		AgentAliasId: aws.String(agent.AliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(input),
		EnableTrace:  aws.Bool(c.enableTrace),
	})
	if err != nil {
		return nil, domain.NewRemoteInvocationError(agent, err)
	}

	return adapt(ctx, es, c.logger), nil
}

// adapt converts the SDK union into stream events. Members other than chunk
// and trace are dropped here.
func adapt(ctx context.Context, es eventSource, logger *zap.Logger) stream.Stream {
	events := make(chan stream.Event)
	done := make(chan struct{})

	go func() {
		defer close(events)
		for raw := range es.Events() {
			ev, ok := convert(raw, logger)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	errFn := func() error {
		if err := es.Err(); err != nil {
			return err //nolint:wrapcheck // wrapped by the caller
		}
		return ctx.Err() //nolint:wrapcheck // caller classifies context errors
	}
	return stream.FromChannel(events, errFn, func() error {
		once.Do(func() { close(done) })
		return es.Close()
	})
}

func convert(raw types.ResponseStream, logger *zap.Logger) (stream.Event, bool) {
	switch v := raw.(type) {
	case *types.ResponseStreamMemberChunk:
		return stream.Chunk{Bytes: v.Value.Bytes}, true
	case *types.ResponseStreamMemberTrace:
		payload, err := json.Marshal(v.Value)
		if err != nil {
			logger.Warn("Failed to encode agent trace", zap.Error(err))
			return nil, false
		}
		return stream.Trace{Payload: payload}, true
	default:
		return nil, false
	}
}
