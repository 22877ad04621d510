package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

type fileWriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileWrite creates (or overwrites) a file with the given content,
// creating parent directories as needed.
type FileWrite struct {
	Sys pathutil.System
}

func (FileWrite) Name() string { return "fs_write" }

func (FileWrite) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
		"required": []any{"path", "content"},
	}
}

func (FileWrite) Validate(input json.RawMessage) error {
	var in fileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if in.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

func (w FileWrite) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in fileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	resolved, err := pathutil.Canonicalize(w.Sys, in.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create parents for %s: %w", resolved, err)
	}
	if err := os.WriteFile(resolved, []byte(in.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", resolved, err)
	}
	return &Output{Items: []conv.ToolResultItem{textItem(fmt.Sprintf("wrote %s", resolved))}}, nil
}
