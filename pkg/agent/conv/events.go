package conv

import "time"

// LoopEventKind tags the variant of a LoopEvent published to the driver
// subscriber channel.
type LoopEventKind int

const (
	EventAssistantText LoopEventKind = iota
	EventReasoningContent
	EventToolUseStart
	EventToolUse
	EventResponseStreamEnd
	EventUserTurnEnd
	EventLoopStateChange
	EventApprovalRequest
	EventStream
)

// LoopEvent is the ordered, tagged event published by the agent loop and
// the stream parser to external subscribers.
type LoopEvent struct {
	Kind      LoopEventKind
	Timestamp time.Time

	Text             string              // EventAssistantText / EventReasoningContent delta
	ToolUseID        string              // EventToolUseStart / EventToolUse
	ToolName         string              // EventToolUseStart / EventToolUse
	ToolUse          *ContentBlock       // EventToolUse (final, parsed block)
	StreamResultOK   bool                // EventStream
	StreamRaw        any                 // EventStream: the raw model.StreamResult, kept untyped to avoid an import cycle
	ResponseResult   *Message            // EventResponseStreamEnd: nil on error
	ResponseErr      *LoopError          // EventResponseStreamEnd / EventUserTurnEnd
	TurnMetadata     *UserTurnMetadata   // EventUserTurnEnd
	StateFrom        LoopState           // EventLoopStateChange
	StateTo          LoopState           // EventLoopStateChange
	ApprovalID       string              // EventApprovalRequest
	ApprovalToolName string              // EventApprovalRequest
	ApprovalToolArgs string              // EventApprovalRequest (raw JSON)
}

func NewAssistantTextEvent(delta string) LoopEvent {
	return LoopEvent{Kind: EventAssistantText, Timestamp: time.Now(), Text: delta}
}

func NewReasoningContentEvent(delta string) LoopEvent {
	return LoopEvent{Kind: EventReasoningContent, Timestamp: time.Now(), Text: delta}
}

func NewToolUseStartEvent(id, name string) LoopEvent {
	return LoopEvent{Kind: EventToolUseStart, Timestamp: time.Now(), ToolUseID: id, ToolName: name}
}

func NewToolUseEvent(block ContentBlock) LoopEvent {
	return LoopEvent{Kind: EventToolUse, Timestamp: time.Now(), ToolUseID: block.ToolUseID, ToolName: block.ToolName, ToolUse: &block}
}

func NewResponseStreamEndEvent(result *Message, err *LoopError) LoopEvent {
	return LoopEvent{Kind: EventResponseStreamEnd, Timestamp: time.Now(), ResponseResult: result, ResponseErr: err}
}

func NewUserTurnEndEvent(meta *UserTurnMetadata) LoopEvent {
	return LoopEvent{Kind: EventUserTurnEnd, Timestamp: time.Now(), TurnMetadata: meta}
}

func NewLoopStateChangeEvent(from, to LoopState) LoopEvent {
	return LoopEvent{Kind: EventLoopStateChange, Timestamp: time.Now(), StateFrom: from, StateTo: to}
}

func NewApprovalRequestEvent(id, toolName, argsJSON string) LoopEvent {
	return LoopEvent{Kind: EventApprovalRequest, Timestamp: time.Now(), ApprovalID: id, ApprovalToolName: toolName, ApprovalToolArgs: argsJSON}
}

func NewStreamEvent(raw any, ok bool) LoopEvent {
	return LoopEvent{Kind: EventStream, Timestamp: time.Now(), StreamRaw: raw, StreamResultOK: ok}
}
