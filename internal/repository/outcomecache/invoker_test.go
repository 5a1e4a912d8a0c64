package outcomecache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/db"
	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

func TestInvoke_CacheMissRecordsContent(t *testing.T) {
	inner := &mockInvoker{events: []stream.Event{
		stream.Chunk{Bytes: []byte("rice ")},
		stream.Trace{Payload: json.RawMessage(`{}`)},
		stream.Text{Text: "prices rose"},
	}}
	ci, ms := newTestCachedInvoker(t, inner)

	var stored string
	var storedTTL time.Duration
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		if !strings.HasPrefix(key, "test:outcome:") {
			t.Errorf("unexpected key %q", key)
		}
		stored = string(value)
		storedTTL = ttl
		return nil
	}

	s, err := ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "rice price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := stream.Drain(context.Background(), s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	if res.Content != "rice prices rose" {
		t.Errorf("unexpected content %q", res.Content)
	}
	if len(res.Traces) != 1 {
		t.Errorf("traces must pass through on a miss, got %d", len(res.Traces))
	}
	if stored != "rice prices rose" {
		t.Errorf("expected content to be cached, got %q", stored)
	}
	if storedTTL != testTTL {
		t.Errorf("expected ttl %v, got %v", testTTL, storedTTL)
	}
}

func TestInvoke_CacheHit(t *testing.T) {
	inner := &mockInvoker{}
	ci, ms := newTestCachedInvoker(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("from cache"), nil
	}

	s, err := ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "rice price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := stream.Drain(context.Background(), s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if res.Content != "from cache" {
		t.Errorf("unexpected content %q", res.Content)
	}
	if inner.calls != 0 {
		t.Errorf("expected no remote call on hit, got %d", inner.calls)
	}
}

func TestInvoke_InnerError(t *testing.T) {
	inner := &mockInvoker{err: domain.NewRemoteInvocationError(testAgent, errors.New("throttled"))}
	ci, _ := newTestCachedInvoker(t, inner)

	_, err := ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if !errors.Is(err, domain.ErrRemoteInvocation) {
		t.Fatalf("expected ErrRemoteInvocation, got %v", err)
	}
}

func TestInvoke_DecodeFailureNotCached(t *testing.T) {
	inner := &mockInvoker{events: []stream.Event{stream.Chunk{Bytes: []byte{0xe7, 0xb1}}}}
	ci, ms := newTestCachedInvoker(t, inner)

	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		t.Error("truncated content must not be cached")
		return nil
	}

	s, err := ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stream.Drain(context.Background(), s); !errors.Is(err, stream.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestInvoke_StoreErrorsAreSoft(t *testing.T) {
	inner := &mockInvoker{events: []stream.Event{stream.Text{Text: "answer"}}}
	ci, ms := newTestCachedInvoker(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: errors.New("conn reset")}
	}
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		return &db.Error{Op: db.OpSet, Err: errors.New("conn reset")}
	}

	s, err := ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	if err != nil {
		t.Fatalf("cache failures must not fail the call: %v", err)
	}
	res, err := stream.Drain(context.Background(), s)
	if err != nil || res.Content != "answer" {
		t.Fatalf("got %q, %v", res.Content, err)
	}
}

func TestCacheKey_DependsOnAgentAndInput(t *testing.T) {
	ci := New(&mockInvoker{}, &mockKVStore{}, "p:", testTTL, nil, zap.NewNop())

	a := ci.cacheKey(testAgent, "q")
	if a != ci.cacheKey(testAgent, "q") {
		t.Error("key must be deterministic")
	}
	if a == ci.cacheKey(testAgent, "q2") {
		t.Error("key must depend on input")
	}
	if a == ci.cacheKey(domain.AgentIdentity{AgentID: "SEARCH", AliasID: "DRAFT"}, "q") {
		t.Error("key must depend on alias")
	}
}

func TestInvoke_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_outcome_cache_total"}, []string{"result"})
	inner := &mockInvoker{events: []stream.Event{stream.Text{Text: "x"}}}
	ms := &mockKVStore{}
	ci := New(inner, ms, "p:", testTTL, counter, zap.NewNop())

	_, _ = ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")
	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte("x"), nil }
	_, _ = ci.Invoke(context.Background(), testAgent, domain.RoleSearchWeb, "q")

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}
