package health

import "context"

// CachePinger checks outcome cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// AgentChecker checks agent backend availability.
type AgentChecker interface {
	HealthCheck(ctx context.Context) error
}
