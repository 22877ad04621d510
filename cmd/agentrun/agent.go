package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"agentrun/pkg/agent/agentconfig"
	"agentrun/pkg/agent/catalog"
	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/loop"
	modelclaude "agentrun/pkg/agent/model/claude"
	"agentrun/pkg/agent/pathutil"
	"agentrun/pkg/agent/toolname"
	"agentrun/pkg/agent/tools"
	backendAnth "agentrun/pkg/backend/anthropic"
)

// builtInRegistry adapts the fixed set of built-in tool executors (C8) to
// catalog.BuiltInRegistry for the sanitizer, and to loop.Config.BuiltIns
// for execution.
type builtInRegistry struct {
	sys pathutil.System
}

var builtInDescriptions = map[string]string{
	"fs_read":       "Read a file from the local filesystem, optionally by line range.",
	"fs_write":      "Create or overwrite a file on the local filesystem.",
	"ls":            "List the entries of a directory.",
	"fs_read_image": "Read a supported image file and return its contents.",
	"grep":          "Search files under a directory for lines matching a regular expression.",
	"mkdir":         "Create a directory, including any missing parents.",
	"execute_cmd":   "Run a shell command and return its exit status, stdout, and stderr.",
}

func (r builtInRegistry) Spec(name string) (conv.ToolSpec, bool) {
	t, ok := r.executors()[name]
	if !ok {
		return conv.ToolSpec{}, false
	}
	return conv.ToolSpec{Name: t.Name(), Description: builtInDescriptions[name], InputSchema: t.Schema()}, true
}

func (r builtInRegistry) executors() map[string]tools.Tool {
	return map[string]tools.Tool{
		"fs_read":       tools.FileRead{Sys: r.sys},
		"fs_write":      tools.FileWrite{Sys: r.sys},
		"ls":            tools.Ls{Sys: r.sys},
		"fs_read_image": tools.ImageRead{Sys: r.sys},
		"grep":          tools.Grep{Sys: r.sys},
		"mkdir":         tools.Mkdir{Sys: r.sys},
		"execute_cmd":   tools.ExecuteCmd{},
	}
}

// runAgent drives a single user turn of the agent loop runtime (C1-C8)
// against an agentconfig.Config, using its own flag set.
func runAgent(args []string) error {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	agentPath := fs.String("agent-config", "", "path to agent config yaml")
	prompt := fs.String("prompt", "", "user prompt text (reads stdin if empty)")
	model := fs.String("model", "claude-sonnet-4-5-20250929", "model id")
	authPath := fs.String("auth-path", "", "path to Claude OAuth token store")
	logDir := fs.String("log-dir", "", "directory for JSONL turn logs (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agentPath == "" {
		return fmt.Errorf("--agent-config is required")
	}

	agentCfg, err := agentconfig.Load(*agentPath)
	if err != nil {
		return fmt.Errorf("load agent config: %w", err)
	}

	promptText := *prompt
	if promptText == "" {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		promptText = string(data)
	}

	sys := pathutil.RealSystem{}
	registry := builtInRegistry{sys: sys}

	canonical := make([]conv.CanonicalToolName, 0, len(agentCfg.Tools))
	for _, name := range agentCfg.Tools {
		ref := toolname.Parse(name)
		switch ref.Kind {
		case toolname.McpFullName:
			canonical = append(canonical, conv.Mcp(ref.Server, ref.Tool))
		case toolname.Agent:
			canonical = append(canonical, conv.Agent(ref.Name))
		default:
			canonical = append(canonical, conv.BuiltIn(name))
		}
	}
	sanitized := catalog.Sanitize(registry, canonical, nil, agentCfg.ToolAliases)

	tokens := backendAnth.NewTokenStore(*authPath)
	backend := modelclaude.New(modelclaude.Config{Tokens: tokens})

	id := fmt.Sprintf("%s-%d", agentCfg.Name, os.Getpid())
	l := loop.New(id, loop.Config{
		Backend:      backend,
		Catalog:      sanitized,
		BuiltIns:     registry.executors(),
		AllowedTools: agentCfg.AllowedToolSet(),
		ToolSettings: agentCfg.ToToolSettings(),
		Sys:          sys,
		SystemPrompt: agentCfg.Prompt,
		Model:        *model,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *logDir != "" {
		if err := loop.EventLogger(*logDir, id, l.Events()); err != nil {
			return fmt.Errorf("start event log: %w", err)
		}
	} else {
		go func() {
			for range l.Events() {
			}
		}()
	}

	go l.Serve(ctx)

	resp, ok := l.Sender().SendAndAwait(ctx, loop.SendPromptRequest(promptText))
	if !ok {
		return fmt.Errorf("agent loop stopped before replying")
	}
	if resp.Err != nil {
		return fmt.Errorf("agent turn: %w", resp.Err)
	}
	if resp.Metadata != nil && resp.Metadata.Result != nil {
		for _, block := range resp.Metadata.Result.Blocks {
			if block.Text != "" {
				fmt.Fprintln(os.Stdout, block.Text)
			}
		}
	}
	return nil
}
