package domain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

// Role tags the purpose of an agent call. It prefixes session ids.
type Role string

const (
	// RoleDeepResearch generates the query set.
	RoleDeepResearch Role = "deep-research"
	// RoleSearchWeb answers a single research query.
	RoleSearchWeb Role = "search-web"
)

// AgentIdentity addresses a remote agent: the agent itself and the alias (deployed version) to call.
type AgentIdentity struct {
	AgentID string `json:"agentId" yaml:"agent_id"`
	AliasID string `json:"agentAliasId" yaml:"alias_id"`
}

// Validate checks that both parts of the identity are set.
func (a AgentIdentity) Validate() error {
	if a.AgentID == "" {
		return fmt.Errorf("agent id is empty: %w", ErrInvalidIdentity)
	}
	if a.AliasID == "" {
		return fmt.Errorf("alias id is empty: %w", ErrInvalidIdentity)
	}
	return nil
}

func (a AgentIdentity) String() string { return a.AgentID + "/" + a.AliasID }

// AgentInvoker starts a remote agent call and returns its single-use response stream.
// Implementations derive a fresh session id from role on every call and never retry.
type AgentInvoker interface {
	Invoke(ctx context.Context, agent AgentIdentity, role Role, input string) (stream.Stream, error)
}

// HealthChecker is implemented by backends that can report availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewSessionID derives a session id from the role, the current time in nanoseconds
// and a random suffix, so concurrent calls with the same role never collide.
func NewSessionID(role Role) string {
	return newSessionID(role, time.Now())
}

func newSessionID(role Role, now time.Time) string {
	suffix := uuid.NewString()[:8]
	return string(role) + "-" + strconv.FormatInt(now.UnixNano(), 10) + "-" + suffix
}
