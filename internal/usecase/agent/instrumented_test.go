package agent

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterAgentMetrics()
	os.Exit(m.Run())
}

type mockInvoker struct {
	stream stream.Stream
	err    error
}

func (m *mockInvoker) Invoke(context.Context, domain.AgentIdentity, domain.Role, string) (stream.Stream, error) {
	return m.stream, m.err
}

var testAgent = domain.AgentIdentity{AgentID: "A", AliasID: "B"}

func TestInvoke_SuccessCountedOnEOF(t *testing.T) {
	inner := &mockInvoker{stream: stream.Of(
		stream.Chunk{Bytes: []byte("abc")},
		stream.Trace{Payload: []byte(`{}`)},
		stream.Text{Text: "de"},
	)}
	inv := NewInstrumentedInvoker(inner, "unit-ok", zap.NewNop())

	success := metrics.AgentInvocationsTotal.WithLabelValues("unit-ok", "deep-research", "success")
	bytesBefore := testutil.ToFloat64(metrics.AgentStreamBytesTotal.WithLabelValues("deep-research"))
	tracesBefore := testutil.ToFloat64(metrics.AgentStreamTracesTotal.WithLabelValues("deep-research"))

	s, err := inv.Invoke(context.Background(), testAgent, domain.RoleDeepResearch, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if testutil.ToFloat64(success) != 0 {
		t.Fatal("invocation must not be counted before the stream ends")
	}

	res, err := stream.Drain(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "abcde" {
		t.Errorf("content = %q", res.Content)
	}
	if got := testutil.ToFloat64(success); got != 1 {
		t.Errorf("success count = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(metrics.AgentStreamBytesTotal.WithLabelValues("deep-research")) - bytesBefore; got != 5 {
		t.Errorf("bytes delta = %v, expected 5", got)
	}
	if got := testutil.ToFloat64(metrics.AgentStreamTracesTotal.WithLabelValues("deep-research")) - tracesBefore; got != 1 {
		t.Errorf("traces delta = %v, expected 1", got)
	}
}

func TestInvoke_OpenErrorCounted(t *testing.T) {
	boom := domain.NewRemoteInvocationError(testAgent, errors.New("boom"))
	inv := NewInstrumentedInvoker(&mockInvoker{err: boom}, "unit-err", zap.NewNop())

	_, err := inv.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if !errors.Is(err, domain.ErrRemoteInvocation) {
		t.Fatalf("expected ErrRemoteInvocation, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.AgentInvocationsTotal.WithLabelValues("unit-err", "search-web", "error")); got != 1 {
		t.Errorf("error count = %v, expected 1", got)
	}
}

func TestInvoke_TimeoutStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	inv := NewInstrumentedInvoker(&mockInvoker{stream: stream.Of(stream.Text{Text: "x"})}, "unit-timeout", zap.NewNop())
	s, err := inv.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := stream.Drain(ctx, s); !errors.Is(err, stream.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.AgentInvocationsTotal.WithLabelValues("unit-timeout", "search-web", "timeout")); got != 1 {
		t.Errorf("timeout count = %v, expected 1", got)
	}
}

func TestInvoke_AbandonedStreamCountedOnce(t *testing.T) {
	inv := NewInstrumentedInvoker(&mockInvoker{stream: stream.Of(stream.Text{Text: "x"})}, "unit-abandon", zap.NewNop())

	s, err := inv.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Close()
	_ = s.Close()

	if got := testutil.ToFloat64(metrics.AgentInvocationsTotal.WithLabelValues("unit-abandon", "search-web", "canceled")); got != 1 {
		t.Errorf("canceled count = %v, expected 1", got)
	}
}
