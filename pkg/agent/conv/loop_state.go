package conv

import "time"

// LoopState is the current phase of the agent loop state machine.
type LoopState int

const (
	LoopIdle LoopState = iota
	LoopAwaitingModel
	LoopStreamingResponse
	LoopAwaitingApproval
	LoopExecutingTools
	LoopEnded
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopAwaitingModel:
		return "awaiting_model"
	case LoopStreamingResponse:
		return "streaming_response"
	case LoopAwaitingApproval:
		return "awaiting_approval"
	case LoopExecutingTools:
		return "executing_tools"
	case LoopEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// LoopEndReason explains why a user turn ended.
type LoopEndReason int

const (
	EndDidNotRun LoopEndReason = iota
	EndUserTurnEnd
	EndToolUseRejected
	EndError
	EndCancelled
)

func (r LoopEndReason) String() string {
	switch r {
	case EndDidNotRun:
		return "did_not_run"
	case EndUserTurnEnd:
		return "user_turn_end"
	case EndToolUseRejected:
		return "tool_use_rejected"
	case EndError:
		return "error"
	case EndCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// InvalidToolUse records a tool-use block whose concatenated input deltas
// failed to parse as JSON.
type InvalidToolUse struct {
	ToolUseID string
	ToolName  string
	RawInput  string
	ParseErr  string
}

// LoopErrorKind tags the variant of a LoopError.
type LoopErrorKind int

const (
	ErrInvalidJSON LoopErrorKind = iota
	ErrStream
)

// LoopError is the terminal error form surfaced by a failed user turn.
type LoopError struct {
	Kind LoopErrorKind

	// ErrInvalidJSON
	AssistantText string
	InvalidTools  []InvalidToolUse

	// ErrStream
	Cause error
}

func (e *LoopError) Error() string {
	switch e.Kind {
	case ErrInvalidJSON:
		return "invalid tool-use JSON input"
	default:
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return "stream error"
	}
}

// UserTurnMetadata summarizes a completed (or cancelled/errored) user turn.
type UserTurnMetadata struct {
	LoopID            string
	Result            *Message // nil if Err != nil
	Err               *LoopError
	MessageIDs        []*string
	TotalRequestCount int
	NumberOfCycles    int
	TurnDuration      time.Duration
	EndReason         LoopEndReason
	EndTimestamp      time.Time
}

// AgentSnapshot is the persisted, resumable record of one agent conversation.
type AgentSnapshot struct {
	ID                 AgentId
	ConversationState   *ConversationState
	ConversationSummary string
	ExecutionState      LoopState
	ModelState          map[string]any
	ToolSettings        ToolSettings
	AllowedTools        AllowedTools
}
