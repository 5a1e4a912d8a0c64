package outcomecache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/db"
	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

var (
	testAgent = domain.AgentIdentity{AgentID: "SEARCH", AliasID: "LIVE"}
	testTTL   = time.Hour
)

type mockInvoker struct {
	events []stream.Event
	err    error
	calls  int
}

func (m *mockInvoker) Invoke(
	_ context.Context, _ domain.AgentIdentity, _ domain.Role, _ string,
) (stream.Stream, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return stream.Of(m.events...), nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedInvoker(t *testing.T, inner *mockInvoker) (*CachedInvoker, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ci := New(inner, ms, "test:", testTTL, nil, zap.NewNop())
	return ci, ms
}
