package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"agentrun/pkg/agent/conv"
)

// execShellEnvVar overrides the shell used to run commands; bash if unset.
const execShellEnvVar = "AGENTRUN_EXEC_SHELL"

// userAgentEnvVar carries user-agent metadata through to spawned commands,
// appended to if already present in the parent environment.
const userAgentEnvVar = "AGENTRUN_USER_AGENT"

const userAgentAppName = "agentrun"
const userAgentVersion = "1"

type executeCmdInput struct {
	Command string `json:"command"`
}

// ExecuteCmd runs a shell command, capturing stdout/stderr and stripping
// hidden Unicode characters from both before returning them.
type ExecuteCmd struct{}

func (ExecuteCmd) Name() string { return "execute_cmd" }

func (ExecuteCmd) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Command to execute"},
		},
		"required": []any{"command"},
	}
}

func (ExecuteCmd) Validate(input json.RawMessage) error {
	var in executeCmdInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if in.Command == "" {
		return fmt.Errorf("command must not be empty")
	}
	return nil
}

func (ExecuteCmd) Execute(ctx context.Context, input json.RawMessage) (*Output, error) {
	var in executeCmdInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	shell := os.Getenv(execShellEnvVar)
	if shell == "" {
		shell = "bash"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", in.Command)
	cmd.Env = envWithUserAgent()
	cmd.Stdin = os.Stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitStatus := "0"
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitStatus = exitErr.String()
		} else {
			return nil, fmt.Errorf("failed to spawn command '%s': %w", in.Command, err)
		}
	}

	result := map[string]string{
		"exit_status": exitStatus,
		"stdout":      sanitizeHiddenChars(stdout.String()),
		"stderr":      sanitizeHiddenChars(stderr.String()),
	}
	item, err := jsonItem(result)
	if err != nil {
		return nil, err
	}
	return &Output{Items: []conv.ToolResultItem{item}}, nil
}

// isHidden reports whether r is an invisible or control character from a
// range considered unsafe to pass through to model input. U+FFFD is kept.
func isHidden(r rune) bool {
	switch {
	case r >= 0xE0000 && r <= 0xE007F:
		return true
	case r >= 0x200B && r <= 0x200F:
		return true
	case r >= 0x2028 && r <= 0x202F:
		return true
	case r >= 0x205F && r <= 0x206F:
		return true
	case r >= 0xFFF0 && r <= 0xFFFC:
		return true
	case r >= 0xFFFE && r <= 0xFFFF:
		return true
	default:
		return false
	}
}

func sanitizeHiddenChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isHidden(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func envWithUserAgent() []string {
	env := os.Environ()
	metadata := fmt.Sprintf("%s version/%s", userAgentAppName, userAgentVersion)

	existing, found := "", false
	for _, kv := range env {
		if strings.HasPrefix(kv, userAgentEnvVar+"=") {
			existing = strings.TrimPrefix(kv, userAgentEnvVar+"=")
			found = true
			break
		}
	}

	value := metadata
	if found && existing != "" {
		value = existing + " " + metadata
	}

	out := make([]string, 0, len(env)+1)
	replaced := false
	for _, kv := range env {
		if strings.HasPrefix(kv, userAgentEnvVar+"=") {
			out = append(out, userAgentEnvVar+"="+value)
			replaced = true
			continue
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, userAgentEnvVar+"="+value)
	}
	return out
}
