// Package agent decorates agent backends with metrics and logging.
package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
)

// Compile-time check.
var _ domain.AgentInvoker = (*InstrumentedInvoker)(nil)

// InstrumentedInvoker wraps an AgentInvoker with invocation metrics and logging.
// A call is counted once, when its stream ends or fails to open.
type InstrumentedInvoker struct {
	inner   domain.AgentInvoker
	backend string
	logger  *zap.Logger
}

// NewInstrumentedInvoker wraps inner. backend labels metrics ("bedrock", "openai", "sse").
func NewInstrumentedInvoker(inner domain.AgentInvoker, backend string, logger *zap.Logger) *InstrumentedInvoker {
	return &InstrumentedInvoker{inner: inner, backend: backend, logger: logger}
}

// Invoke delegates to the inner invoker and observes the returned stream.
func (p *InstrumentedInvoker) Invoke(
	ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Stream, error) {
	start := time.Now()

	s, err := p.inner.Invoke(ctx, agent, role, input)
	if err != nil {
		p.finish(agent, role, start, err)
		return nil, err //nolint:wrapcheck // already a domain error
	}

	return &observedStream{inner: s, onEnd: func(err error) { p.finish(agent, role, start, err) }, role: role}, nil
}

func (p *InstrumentedInvoker) finish(agent domain.AgentIdentity, role domain.Role, start time.Time, err error) {
	duration := time.Since(start)
	status := statusOf(err)

	metrics.AgentInvocationsTotal.WithLabelValues(p.backend, string(role), status).Inc()
	metrics.AgentInvocationDuration.WithLabelValues(p.backend, string(role)).Observe(duration.Seconds())

	if err != nil {
		p.logger.Error("Agent invocation failed",
			zap.String("backend", p.backend),
			zap.String("role", string(role)),
			zap.String("agent", agent.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Agent invocation completed",
		zap.String("backend", p.backend),
		zap.String("role", string(role)),
		zap.String("agent", agent.String()),
		zap.Duration("duration", duration),
	)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// observedStream counts content and traces and reports the outcome once.
type observedStream struct {
	inner stream.Stream
	role  domain.Role
	onEnd func(error)
	once  sync.Once
}

func (s *observedStream) Recv(ctx context.Context) (stream.Event, error) {
	ev, err := s.inner.Recv(ctx)
	if errors.Is(err, io.EOF) {
		s.end(nil)
		return nil, err //nolint:wrapcheck // io.EOF must stay unwrapped
	}
	if err != nil {
		s.end(err)
		return nil, err //nolint:wrapcheck // passthrough
	}

	switch e := ev.(type) {
	case stream.Chunk:
		metrics.AgentStreamBytesTotal.WithLabelValues(string(s.role)).Add(float64(len(e.Bytes)))
	case stream.Text:
		metrics.AgentStreamBytesTotal.WithLabelValues(string(s.role)).Add(float64(len(e.Text)))
	case stream.Trace:
		metrics.AgentStreamTracesTotal.WithLabelValues(string(s.role)).Inc()
	}
	return ev, nil
}

// Close reports an abandoned stream as canceled if it never reached the end.
func (s *observedStream) Close() error {
	s.end(context.Canceled)
	return s.inner.Close() //nolint:wrapcheck // passthrough
}

func (s *observedStream) end(err error) {
	s.once.Do(func() { s.onEnd(err) })
}
