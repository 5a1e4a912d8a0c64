package domain

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
)

var (
	// ErrRemoteInvocation signals that a remote agent could not be reached or refused the call.
	ErrRemoteInvocation = errors.New("remote invocation failed")
	// ErrInvalidIdentity signals an agent identity with an empty id or alias.
	ErrInvalidIdentity = errors.New("invalid agent identity")
	// ErrDecode signals malformed UTF-8 in a response stream.
	ErrDecode = stream.ErrDecode
	// ErrStreamTimeout signals that a response stream was not drained in time.
	ErrStreamTimeout = stream.ErrTimeout
	// ErrUpstreamTool signals a failed call to a search or data provider.
	ErrUpstreamTool = errors.New("upstream tool error")
	// ErrInvalidRequest signals a malformed inbound request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidToolInput signals a tool invocation with missing or unusable parameters.
	ErrInvalidToolInput = errors.New("invalid tool input")
	// ErrToolNotConfigured signals a tool whose provider credentials or endpoint are missing.
	ErrToolNotConfigured = errors.New("tool not configured")
	// ErrNotFound signals an unknown tool or route target.
	ErrNotFound = errors.New("not found")
)

// RemoteInvocationError wraps a failed agent call with the agent it targeted.
type RemoteInvocationError struct {
	Agent AgentIdentity
	Err   error
}

func (e *RemoteInvocationError) Error() string {
	return fmt.Sprintf("%s: agent %s/%s: %v", ErrRemoteInvocation.Error(), e.Agent.AgentID, e.Agent.AliasID, e.Err)
}

// Is reports ErrRemoteInvocation so callers match on the sentinel.
func (e *RemoteInvocationError) Is(target error) bool { return target == ErrRemoteInvocation }

func (e *RemoteInvocationError) Unwrap() error { return e.Err }

// NewRemoteInvocationError creates a remote invocation error for the given agent.
func NewRemoteInvocationError(agent AgentIdentity, err error) error {
	return &RemoteInvocationError{Agent: agent, Err: err}
}

// UpstreamToolError wraps ErrUpstreamTool with the tool name and HTTP status (0 if none).
type UpstreamToolError struct {
	Tool       string
	StatusCode int
	Message    string
}

func (e *UpstreamToolError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s returned %d: %s", ErrUpstreamTool.Error(), e.Tool, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrUpstreamTool.Error(), e.Tool, e.Message)
}

func (e *UpstreamToolError) Unwrap() error { return ErrUpstreamTool }

// NewUpstreamToolError creates an upstream tool error.
func NewUpstreamToolError(tool string, status int, msg string) error {
	return &UpstreamToolError{Tool: tool, StatusCode: status, Message: msg}
}
