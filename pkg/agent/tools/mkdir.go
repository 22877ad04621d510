package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

type mkdirInput struct {
	Path string `json:"path"`
}

// Mkdir creates a directory (and any missing parents) that must not
// already exist.
type Mkdir struct {
	Sys pathutil.System
}

func (Mkdir) Name() string { return "mkdir" }

func (Mkdir) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []any{"path"},
	}
}

func (Mkdir) Validate(input json.RawMessage) error {
	var in mkdirInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if in.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

func (m Mkdir) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in mkdirInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	resolved, err := pathutil.Canonicalize(m.Sys, in.Path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(resolved); err == nil {
		return nil, fmt.Errorf("'%s' already exists", resolved)
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", resolved, err)
	}
	return &Output{Items: []conv.ToolResultItem{textItem(fmt.Sprintf("created %s", resolved))}}, nil
}
