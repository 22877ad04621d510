// Package tools implements the built-in tool executors (C8): filesystem
// read/write/list, image read, grep, mkdir, and shell command execution,
// each with a static input schema, input validation, and execution that
// canonicalizes paths identically to the permission evaluator.
package tools

import (
	"context"
	"encoding/json"

	"agentrun/pkg/agent/conv"
)

// Output is the result of a successful tool execution: zero or more
// content items (mirroring ToolResultItem's Text/JSON/Image variants).
type Output struct {
	Items []conv.ToolResultItem
}

// Tool is the capability set every built-in tool implements.
type Tool interface {
	Name() string
	Schema() map[string]any
	Validate(input json.RawMessage) error
	Execute(ctx context.Context, input json.RawMessage) (*Output, error)
}

func textItem(s string) conv.ToolResultItem {
	return conv.ToolResultItem{Kind: conv.ToolResultItemText, Text: s}
}

func jsonItem(v any) (conv.ToolResultItem, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return conv.ToolResultItem{}, err
	}
	return conv.ToolResultItem{Kind: conv.ToolResultItemJSON, JSON: raw}, nil
}
