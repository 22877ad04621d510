package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

type lsInput struct {
	Path string `json:"path"`
}

// Ls lists the contents of a single directory.
type Ls struct {
	Sys pathutil.System
}

func (Ls) Name() string { return "ls" }

func (Ls) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []any{"path"},
	}
}

func (Ls) Validate(input json.RawMessage) error {
	var in lsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if in.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

func (l Ls) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in lsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	resolved, err := pathutil.Canonicalize(l.Sys, in.Path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resolved, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
		} else {
			names = append(names, e.Name())
		}
	}
	return &Output{Items: []conv.ToolResultItem{textItem(strings.Join(names, "\n"))}}, nil
}
