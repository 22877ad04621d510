// Package model defines the polymorphic model-backend abstraction (C5):
// a cancellable, lazy stream of stream events that concrete providers
// produce and the stream parser (C6, see fold.go) folds into a Message.
package model

import (
	"context"
	"errors"

	"agentrun/pkg/agent/conv"
)

// Sentinel stream errors a Backend may wrap into a StreamResult.Err so the
// agent loop can classify them as resumable (section 7): the turn stays
// mid-turn, awaiting a driver-initiated retry, instead of ending.
var (
	ErrThrottled       = errors.New("model backend: request throttled")
	ErrModelOverloaded = errors.New("model backend: overloaded")

	// ErrContextWindowOverflow and ErrMonthlyLimitReached are terminal:
	// the turn ends and the driver surfaces them to the user.
	ErrContextWindowOverflow = errors.New("model backend: context window exceeded")
	ErrMonthlyLimitReached   = errors.New("model backend: monthly limit reached")
)

// StreamEventKind tags the variant of a StreamEvent.
type StreamEventKind int

const (
	EvMessageStart StreamEventKind = iota
	EvContentBlockStart
	EvContentBlockDelta
	EvContentBlockStop
	EvMessageStop
	EvMetadata
)

// BlockStart describes the content block a ContentBlockStart event opens.
type BlockStart struct {
	Type     string // "text", "thinking", "tool_use"
	ToolUseID string
	ToolName  string
}

// Delta carries one incremental fragment of an open content block.
type Delta struct {
	Type        string // "text_delta", "thinking_delta", "input_json_delta"
	Text        string
	PartialJSON string
}

// StreamEvent is a single incremental message produced by a model backend.
type StreamEvent struct {
	Kind        StreamEventKind
	Role        conv.Role       // EvMessageStart
	Block       *BlockStart     // EvContentBlockStart
	Index       int             // EvContentBlockStart / EvContentBlockStop
	Delta       *Delta          // EvContentBlockDelta
	StopReason  string          // EvMessageStop
	InputTokens int             // EvMessageStart / EvMetadata
	OutputTokens int            // EvMessageStop / EvMetadata
	Meta        map[string]any  // EvMetadata
}

// StreamResult is one item of a model backend's stream: either a StreamEvent
// or a terminal error.
type StreamResult struct {
	Event StreamEvent
	Err   error
}

// Request is the backend-agnostic request assembled by the agent loop for
// one request/response cycle.
type Request struct {
	Messages     []conv.Message
	Tools        []conv.ToolSpec
	SystemPrompt string
	Model        string
}

// Backend is the polymorphic capability every concrete model provider
// implements. Stream must honour ctx cancellation promptly: a cancelled
// context must not leak the underlying transport. The returned channel is
// closed when the stream ends, whether by completion, error, or
// cancellation.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan StreamResult, error)
}
