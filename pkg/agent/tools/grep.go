package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"

	"github.com/gobwas/glob"
)

type grepInput struct {
	Pattern string   `json:"pattern"`
	Base    string   `json:"base,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

// Grep searches file content under a base directory for a regex, optionally
// restricted to paths matching one or more glob patterns.
type Grep struct {
	Sys pathutil.System
}

func (Grep) Name() string { return "grep" }

func (Grep) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "description": "Regex to search files for"},
			"base":    map[string]any{"type": "string", "description": "Path to the directory to start the search from. Defaults to current working directory"},
			"paths": map[string]any{
				"type":        "array",
				"description": "List of glob patterns restricting which files are searched",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required": []any{"pattern"},
	}
}

func (Grep) Validate(input json.RawMessage) error {
	var in grepInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if in.Pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	if _, err := regexp.Compile(in.Pattern); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

func (g Grep) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in grepInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	base := in.Base
	if base == "" {
		base = "."
	}
	resolvedBase, err := pathutil.Canonicalize(g.Sys, base)
	if err != nil {
		return nil, err
	}

	var globs []glob.Glob
	for _, p := range in.Paths {
		compiled, err := glob.Compile(p)
		if err != nil {
			continue
		}
		globs = append(globs, compiled)
	}

	var matches []string
	walkErr := filepath.WalkDir(resolvedBase, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(globs) > 0 {
			rel, relErr := filepath.Rel(resolvedBase, path)
			if relErr != nil {
				rel = path
			}
			matched := false
			for _, glb := range globs {
				if glb.Match(rel) {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				matches = append(matches, fmt.Sprintf("%s:%d:%s", path, lineNo, scanner.Text()))
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("grep %s: %w", resolvedBase, walkErr)
	}

	item, err := jsonItem(matches)
	if err != nil {
		return nil, err
	}
	return &Output{Items: []conv.ToolResultItem{item}}, nil
}
