// Package outcomecache caches what an agent answered for a given input, so a
// repeated search query does not start a new remote session.
package outcomecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/db"
	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

const keySegment = "outcome:"

// store is the consumer interface for the outcome cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedInvoker serves repeated calls from a key-value store.
// Only content is cached; a replayed stream carries no traces.
type CachedInvoker struct {
	inner      domain.AgentInvoker
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.AgentInvoker,
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedInvoker {
	return &CachedInvoker{
		inner:      inner,
		store:      s,
		prefix:     prefix + keySegment,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Invoke replays a cached answer or starts the call and records its content
// once the stream ends cleanly.
func (c *CachedInvoker) Invoke(
	ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Stream, error) {
	key := c.cacheKey(agent, input)

	if content, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return stream.Of(stream.Text{Text: content}), nil
	}
	c.incCache("miss")

	s, err := c.inner.Invoke(ctx, agent, role, input)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", role, err)
	}
	return &recordingStream{inner: s, onComplete: func(ctx context.Context, content string) {
		c.putToCache(ctx, key, content)
	}}, nil
}

func (c *CachedInvoker) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the agent identity and the input; session ids never enter the key.
func (c *CachedInvoker) cacheKey(agent domain.AgentIdentity, input string) string {
	h := sha256.New()
	h.Write([]byte(agent.AgentID))
	h.Write([]byte{0})
	h.Write([]byte(agent.AliasID))
	h.Write([]byte{0})
	h.Write([]byte(input))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedInvoker) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached outcome", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func (c *CachedInvoker) putToCache(ctx context.Context, key, content string) {
	if content == "" {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, []byte(content), c.ttl); err != nil {
		c.logger.Warn("Failed to cache outcome", zap.String("key", key), zap.Error(err))
	}
}

// recordingStream passes events through and reports the concatenated content
// once the inner stream reaches io.EOF. Streams that fail or carry invalid
// UTF-8 are never reported.
type recordingStream struct {
	inner      stream.Stream
	buf        strings.Builder
	failed     bool
	done       bool
	onComplete func(ctx context.Context, content string)
}

func (r *recordingStream) Recv(ctx context.Context) (stream.Event, error) {
	ev, err := r.inner.Recv(ctx)
	if errors.Is(err, io.EOF) {
		if !r.done && !r.failed && utf8.ValidString(r.buf.String()) {
			r.done = true
			r.onComplete(ctx, r.buf.String())
		}
		return nil, io.EOF
	}
	if err != nil {
		r.failed = true
		return nil, err //nolint:wrapcheck // transparent decorator
	}
	switch e := ev.(type) {
	case stream.Chunk:
		r.buf.Write(e.Bytes)
	case stream.Text:
		r.buf.WriteString(e.Text)
	}
	return ev, nil
}

func (r *recordingStream) Close() error {
	return r.inner.Close() //nolint:wrapcheck // transparent decorator
}
