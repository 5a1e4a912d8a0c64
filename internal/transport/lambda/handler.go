// Package lambda exposes the research orchestrator and the tool handlers as
// AWS Lambda functions.
package lambda

import (
	"context"
	"errors"
	"fmt"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain/action"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/logger"
)

// Researcher answers research envelopes.
type Researcher interface {
	Handle(ctx context.Context, env domres.Envelope) domres.Reply
}

// ToolHandler answers tool calls.
type ToolHandler interface {
	Handle(ctx context.Context, name tool.Name, in action.Input) (action.Output, error)
}

// ResearchFunc is the Lambda signature of the research entry point.
type ResearchFunc func(ctx context.Context, env domres.Envelope) (domres.Reply, error)

// ToolFunc is the Lambda signature of a tool entry point.
type ToolFunc func(ctx context.Context, in action.Input) (action.Output, error)

// ResearchHandler adapts r to a Lambda handler. Failures are reported inside
// the reply, so the function itself never errors.
func ResearchHandler(r Researcher, log *zap.Logger) ResearchFunc {
	return func(ctx context.Context, env domres.Envelope) (domres.Reply, error) {
		ctx = logger.ContextWithLogger(ctx, log.With(zap.String("function", "research")))
		return r.Handle(ctx, env), nil
	}
}

// ToolHandlerFor adapts the named tool of h to a Lambda handler.
func ToolHandlerFor(name tool.Name, h ToolHandler, log *zap.Logger) (ToolFunc, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return func(ctx context.Context, in action.Input) (action.Output, error) {
		l := log.With(zap.String("function", string(name)), zap.String("api_path", in.APIPath))
		ctx = logger.ContextWithLogger(ctx, l)

		out, err := h.Handle(ctx, name, in)
		if err != nil {
			l.Error("tool failed", zap.Error(err))
			return action.Output{}, err //nolint:wrapcheck // surfaced to the agent runtime as-is
		}
		return out, nil
	}, nil
}

// Start runs handler under the Lambda runtime until ctx is done or the
// runtime exits.
func Start(ctx context.Context, handler any) error {
	if handler == nil {
		return errors.New("lambda: nil handler")
	}
	awslambda.StartWithOptions(handler, awslambda.WithContext(ctx))
	return nil
}
