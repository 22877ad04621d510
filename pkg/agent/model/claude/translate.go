package claude

import (
	"github.com/anthropics/anthropic-sdk-go"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/model"
)

// translate converts one raw Anthropic stream event into a model.StreamEvent.
// The bool result is false for provider events that carry no information
// C6 needs (e.g. a ping), so the caller can skip emitting anything.
func translate(event anthropic.MessageStreamEventUnion) (model.StreamEvent, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return model.StreamEvent{
			Kind:        model.EvMessageStart,
			Role:        conv.RoleAssistant,
			InputTokens: int(e.Message.Usage.InputTokens),
		}, true

	case anthropic.ContentBlockStartEvent:
		block := e.ContentBlock
		start := &model.BlockStart{Type: block.Type}
		if block.Type == "tool_use" {
			toolBlock := block.AsToolUse()
			start.ToolUseID = toolBlock.ID
			start.ToolName = toolBlock.Name
		}
		return model.StreamEvent{Kind: model.EvContentBlockStart, Block: start, Index: int(e.Index)}, true

	case anthropic.ContentBlockDeltaEvent:
		delta := e.Delta
		switch delta.Type {
		case "text_delta":
			return model.StreamEvent{Kind: model.EvContentBlockDelta, Index: int(e.Index),
				Delta: &model.Delta{Type: "text_delta", Text: delta.AsTextDelta().Text}}, true
		case "thinking_delta":
			return model.StreamEvent{Kind: model.EvContentBlockDelta, Index: int(e.Index),
				Delta: &model.Delta{Type: "thinking_delta", Text: delta.AsThinkingDelta().Thinking}}, true
		case "input_json_delta":
			return model.StreamEvent{Kind: model.EvContentBlockDelta, Index: int(e.Index),
				Delta: &model.Delta{Type: "input_json_delta", PartialJSON: delta.AsInputJSONDelta().PartialJSON}}, true
		default:
			return model.StreamEvent{}, false
		}

	case anthropic.ContentBlockStopEvent:
		return model.StreamEvent{Kind: model.EvContentBlockStop, Index: int(e.Index)}, true

	case anthropic.MessageDeltaEvent:
		return model.StreamEvent{
			Kind:         model.EvMetadata,
			OutputTokens: int(e.Usage.OutputTokens),
			Meta:         map[string]any{"stop_reason": string(e.Delta.StopReason)},
		}, true

	case anthropic.MessageStopEvent:
		return model.StreamEvent{Kind: model.EvMessageStop}, true

	default:
		return model.StreamEvent{}, false
	}
}
