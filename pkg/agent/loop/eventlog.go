package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentrun/pkg/agent/conv"
)

// logEntry is one line of a loop's per-conversation JSONL event log.
type logEntry struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	StateFrom string `json:"state_from,omitempty"`
	StateTo   string `json:"state_to,omitempty"`
	EndReason string `json:"end_reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventLogger subscribes to a Loop's Events channel and appends one JSONL
// line per event to a per-conversation log file under dir. Raw Stream
// events are not written.
func EventLogger(dir, conversationID string, events <-chan conv.LoopEvent) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create event log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", conversationID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	go func() {
		defer f.Close()
		for ev := range events {
			writeEntry(f, ev)
		}
	}()
	return nil
}

func writeEntry(f *os.File, ev conv.LoopEvent) {
	entry := logEntry{Timestamp: ev.Timestamp.Format(time.RFC3339Nano)}
	switch ev.Kind {
	case conv.EventAssistantText:
		entry.Kind, entry.Text = "assistant_text", ev.Text
	case conv.EventReasoningContent:
		entry.Kind, entry.Text = "reasoning", ev.Text
	case conv.EventToolUseStart:
		entry.Kind, entry.ToolName, entry.ToolUseID = "tool_use_start", ev.ToolName, ev.ToolUseID
	case conv.EventToolUse:
		entry.Kind, entry.ToolName, entry.ToolUseID = "tool_use", ev.ToolName, ev.ToolUseID
	case conv.EventResponseStreamEnd:
		entry.Kind = "response_stream_end"
		if ev.ResponseErr != nil {
			entry.Error = ev.ResponseErr.Error()
		}
	case conv.EventUserTurnEnd:
		entry.Kind = "user_turn_end"
		if ev.TurnMetadata != nil {
			entry.EndReason = ev.TurnMetadata.EndReason.String()
		}
	case conv.EventLoopStateChange:
		entry.Kind, entry.StateFrom, entry.StateTo = "state_change", ev.StateFrom.String(), ev.StateTo.String()
	case conv.EventApprovalRequest:
		entry.Kind, entry.ToolName = "approval_request", ev.ApprovalToolName
	case conv.EventStream:
		return // raw provider events are high-volume; omitted from the durable log
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f.Write(data)
	f.Write([]byte("\n"))
}
