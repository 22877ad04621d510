package model

import (
	"encoding/json"
	"fmt"

	"agentrun/pkg/agent/conv"
)

// blockAccum tracks the in-progress state of one content block while its
// deltas are folded.
type blockAccum struct {
	kind      string // "text", "thinking", "tool_use"
	text      string
	toolUseID string
	toolName  string
	toolJSON  string
}

// Fold consumes a model backend's stream and folds it into a single
// assistant Message plus zero or more tool-use blocks. Every event is
// re-emitted verbatim via emit(EventStream) before being folded, so live
// subscribers can observe deltas; AssistantText/ReasoningContent/
// ToolUseStart/ToolUse events are emitted as blocks open, accumulate, and
// close.
//
// On success it returns the folded message and a nil error. If any
// tool-use block's concatenated input deltas fail to parse as JSON, it
// returns the partially-folded message (with its Text content intact) and
// an InvalidJson LoopError listing every offending tool use. Any stream
// error terminates folding and is returned as a Stream LoopError.
func Fold(events <-chan StreamResult, emit func(conv.LoopEvent)) (*conv.Message, *conv.LoopError) {
	msg := &conv.Message{Role: conv.RoleAssistant}
	var invalid []conv.InvalidToolUse
	started := false
	var current *blockAccum

	for res := range events {
		if emit != nil {
			emit(conv.NewStreamEvent(res, res.Err == nil))
		}

		if res.Err != nil {
			return msg, &conv.LoopError{Kind: conv.ErrStream, Cause: res.Err}
		}

		ev := res.Event
		switch ev.Kind {
		case EvMessageStart:
			if started {
				return msg, &conv.LoopError{Kind: conv.ErrStream, Cause: fmt.Errorf("protocol violation: duplicate MessageStart")}
			}
			started = true

		case EvContentBlockStart:
			if !started {
				return msg, &conv.LoopError{Kind: conv.ErrStream, Cause: fmt.Errorf("protocol violation: ContentBlockStart before MessageStart")}
			}
			current = &blockAccum{kind: ev.Block.Type, toolUseID: ev.Block.ToolUseID, toolName: ev.Block.ToolName}
			if current.kind == "tool_use" && emit != nil {
				emit(conv.NewToolUseStartEvent(current.toolUseID, current.toolName))
			}

		case EvContentBlockDelta:
			if current == nil || ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				current.text += ev.Delta.Text
				if emit != nil {
					emit(conv.NewAssistantTextEvent(ev.Delta.Text))
				}
			case "thinking_delta":
				current.text += ev.Delta.Text
				if emit != nil {
					emit(conv.NewReasoningContentEvent(ev.Delta.Text))
				}
			case "input_json_delta":
				current.toolJSON += ev.Delta.PartialJSON
			}

		case EvContentBlockStop:
			if current == nil {
				continue
			}
			switch current.kind {
			case "text":
				msg.Blocks = append(msg.Blocks, conv.TextBlock(current.text))
			case "thinking":
				msg.Blocks = append(msg.Blocks, conv.ReasoningBlock(current.text))
			case "tool_use":
				raw := current.toolJSON
				if raw == "" {
					raw = "{}"
				}
				if !json.Valid([]byte(raw)) {
					invalid = append(invalid, conv.InvalidToolUse{
						ToolUseID: current.toolUseID,
						ToolName:  current.toolName,
						RawInput:  current.toolJSON,
						ParseErr:  "invalid JSON",
					})
				} else {
					block := conv.ToolUseBlock(current.toolUseID, current.toolName, json.RawMessage(raw))
					msg.Blocks = append(msg.Blocks, block)
					if emit != nil {
						emit(conv.NewToolUseEvent(block))
					}
				}
			}
			current = nil

		case EvMessageStop:
			// Terminal event for this response; nothing further to fold.

		case EvMetadata:
			// Usage/metadata events carry no content-block state.
		}
	}

	if len(invalid) > 0 {
		return msg, &conv.LoopError{Kind: conv.ErrInvalidJSON, AssistantText: msg.Text(), InvalidTools: invalid}
	}
	return msg, nil
}
