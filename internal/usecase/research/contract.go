package research

import (
	"context"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Invoker starts a remote agent call.
type Invoker interface {
	Invoke(ctx context.Context, agent domain.AgentIdentity, role domain.Role, input string) (stream.Stream, error)
}
