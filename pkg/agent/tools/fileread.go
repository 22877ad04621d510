package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

// maxReadSize is the cumulative content budget, in bytes, before a
// FileRead operation's output is truncated.
const maxReadSize = 250 * 1024

// FileReadOp is one read request within a FileRead call.
type FileReadOp struct {
	Path   string `json:"path"`
	Limit  *int   `json:"limit,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

type fileReadInput struct {
	Ops []FileReadOp `json:"ops"`
}

// FileRead reads lines from one or more files, with optional offset/limit
// and truncation once cumulative output exceeds maxReadSize.
type FileRead struct {
	Sys pathutil.System
}

func (FileRead) Name() string { return "fs_read" }

func (FileRead) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ops": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":   map[string]any{"type": "string", "description": "Path to the file"},
						"limit":  map[string]any{"type": "integer", "description": "Number of lines to read"},
						"offset": map[string]any{"type": "integer", "description": "Line offset from the start of the file"},
					},
					"required": []any{"path"},
				},
			},
		},
		"required": []any{"ops"},
	}
}

func (r FileRead) Validate(input json.RawMessage) error {
	var in fileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	var errs []string
	for _, op := range in.Ops {
		resolved, err := pathutil.Canonicalize(r.Sys, op.Path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("'%s': %s", op.Path, err))
			continue
		}
		fi, err := os.Lstat(resolved)
		if err != nil {
			errs = append(errs, fmt.Sprintf("'%s' does not exist", resolved))
			continue
		}
		if !fi.Mode().IsRegular() {
			errs = append(errs, fmt.Sprintf("'%s' is not a file", resolved))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (r FileRead) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in fileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var items []conv.ToolResultItem
	var errs []string
	for _, op := range in.Ops {
		text, err := r.executeOp(op)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Operation for '%s' failed: %s", op.Path, err))
			continue
		}
		items = append(items, textItem(text))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, ","))
	}
	return &Output{Items: items}, nil
}

func (r FileRead) executeOp(op FileReadOp) (string, error) {
	resolved, err := pathutil.Canonicalize(r.Sys, op.Path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", resolved, err)
	}
	defer f.Close()

	offset := 0
	if op.Offset != nil {
		offset = *op.Offset
	}
	limit := -1
	if op.Limit != nil {
		limit = *op.Limit
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	size := 0
	truncated := false
	i := 0
	taken := 0
	for scanner.Scan() {
		if i < offset {
			i++
			continue
		}
		if limit >= 0 && taken >= limit {
			break
		}
		if size > maxReadSize {
			truncated = true
			break
		}
		line := scanner.Text()
		lines = append(lines, line)
		size += len(line)
		taken++
		i++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read line %d: %w", i+1, err)
	}

	content := strings.Join(lines, "\n")
	if truncated {
		content += "...truncated"
	}
	return content, nil
}
