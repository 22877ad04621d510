package model

import (
	"testing"

	"agentrun/pkg/agent/conv"
)

func chanOf(results ...StreamResult) <-chan StreamResult {
	ch := make(chan StreamResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestFoldTrivialTurn(t *testing.T) {
	events := chanOf(
		StreamResult{Event: StreamEvent{Kind: EvMessageStart, Role: conv.RoleAssistant}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStart, Block: &BlockStart{Type: "text"}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockDelta, Delta: &Delta{Type: "text_delta", Text: "hi"}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStop}},
		StreamResult{Event: StreamEvent{Kind: EvMessageStop, StopReason: "end_turn"}},
	)

	var raw []conv.LoopEvent
	msg, err := Fold(events, func(e conv.LoopEvent) { raw = append(raw, e) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text() != "hi" {
		t.Fatalf("Text() = %q, want %q", msg.Text(), "hi")
	}
	if len(msg.ToolUses()) != 0 {
		t.Fatalf("expected no tool uses")
	}

	var sawMessageStart, sawMessageStop bool
	for _, e := range raw {
		if e.Kind != conv.EventStream {
			continue
		}
		sr := e.StreamRaw.(StreamResult)
		if sr.Event.Kind == EvMessageStart {
			sawMessageStart = true
		}
		if sr.Event.Kind == EvMessageStop {
			sawMessageStop = true
		}
	}
	if !sawMessageStart || !sawMessageStop {
		t.Fatal("expected Stream events to include MessageStart and MessageStop")
	}
}

func TestFoldOneToolUse(t *testing.T) {
	events := chanOf(
		StreamResult{Event: StreamEvent{Kind: EvMessageStart, Role: conv.RoleAssistant}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStart, Block: &BlockStart{Type: "tool_use", ToolUseID: "t1", ToolName: "fs_read"}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockDelta, Delta: &Delta{Type: "input_json_delta", PartialJSON: `{"path":"/tmp/f.txt"}`}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStop}},
		StreamResult{Event: StreamEvent{Kind: EvMessageStop, StopReason: "tool_use"}},
	)

	msg, err := Fold(events, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	uses := msg.ToolUses()
	if len(uses) != 1 || uses[0].ToolUseID != "t1" || uses[0].ToolName != "fs_read" {
		t.Fatalf("unexpected tool uses: %+v", uses)
	}
}

func TestFoldInvalidJSONPreservesAssistantText(t *testing.T) {
	events := chanOf(
		StreamResult{Event: StreamEvent{Kind: EvMessageStart, Role: conv.RoleAssistant}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStart, Block: &BlockStart{Type: "tool_use", ToolUseID: "t1", ToolName: "fs_read"}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockDelta, Delta: &Delta{Type: "input_json_delta", PartialJSON: `{ "path": `}}},
		StreamResult{Event: StreamEvent{Kind: EvContentBlockStop}},
		StreamResult{Event: StreamEvent{Kind: EvMessageStop}},
	)

	_, err := Fold(events, nil)
	if err == nil || err.Kind != conv.ErrInvalidJSON {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
	if len(err.InvalidTools) != 1 || err.InvalidTools[0].ToolUseID != "t1" {
		t.Fatalf("unexpected invalid tools: %+v", err.InvalidTools)
	}
}

func TestFoldStreamErrorTerminates(t *testing.T) {
	boom := &testErr{"boom"}
	events := chanOf(
		StreamResult{Event: StreamEvent{Kind: EvMessageStart}},
		StreamResult{Err: boom},
	)
	_, err := Fold(events, nil)
	if err == nil || err.Kind != conv.ErrStream {
		t.Fatalf("expected ErrStream, got %v", err)
	}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
