// Package claude adapts the Anthropic Messages API to the model.Backend
// interface (C5), splitting what a merged harness event translator would
// do in one step into two: this package only shapes the request and
// relays raw provider events as model.StreamEvent; folding them into a
// conv.Message is model.Fold's job (C6).
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/model"
	backendAnth "agentrun/pkg/backend/anthropic"
)

// Config holds the Claude backend's configuration.
type Config struct {
	Tokens           *backendAnth.TokenStore
	DefaultModel     string
	DefaultMaxTokens int
	ThinkingBudget   int
}

// Backend implements model.Backend against the Anthropic Messages API.
type Backend struct {
	tokens       *backendAnth.TokenStore
	defaultModel string
	maxTokens    int
	thinkBudget  int
}

var _ model.Backend = (*Backend)(nil)

// New constructs a Claude model.Backend.
func New(cfg Config) *Backend {
	m := cfg.DefaultModel
	if m == "" {
		m = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.DefaultMaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	return &Backend{tokens: cfg.Tokens, defaultModel: m, maxTokens: maxTokens, thinkBudget: cfg.ThinkingBudget}
}

func (b *Backend) Name() string { return "claude" }

// Stream issues one streaming Messages API call and relays each raw
// Anthropic event as a model.StreamResult over the returned channel. The
// channel is closed when the stream ends, errors, or ctx is cancelled.
func (b *Backend) Stream(ctx context.Context, req model.Request) (<-chan model.StreamResult, error) {
	params, err := b.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("claude: build request: %w", err)
	}

	token, err := b.tokens.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("claude: access token: %w", err)
	}

	client := anthropic.NewClient(
		option.WithAuthToken(token),
		option.WithHeader("anthropic-beta", "oauth-2025-04-20"),
	)

	out := make(chan model.StreamResult)
	go func() {
		defer close(out)
		stream := client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			ev, ok := translate(stream.Current())
			if !ok {
				continue
			}
			select {
			case out <- model.StreamResult{Event: ev}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- model.StreamResult{Err: classifyErr(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// classifyErr wraps provider errors that the agent loop treats as
// resumable mid-turn conditions (section 7) with the shared sentinels.
func classifyErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "overloaded_error"), strings.Contains(msg, "529"):
		return fmt.Errorf("%w: %v", model.ErrModelOverloaded, err)
	case strings.Contains(msg, "rate_limit_error"), strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", model.ErrThrottled, err)
	default:
		return err
	}
}

// buildRequest translates a backend-agnostic model.Request into Anthropic
// MessageNewParams.
func (b *Backend) buildRequest(req model.Request) (anthropic.MessageNewParams, error) {
	m := req.Model
	if m == "" {
		m = b.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m),
		MaxTokens: int64(b.maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		blocks, role := convertBlocks(msg)
		switch role {
		case conv.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case conv.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		var toolParams []anthropic.ToolUnionParam
		for _, t := range req.Tools {
			schema := anthropic.ToolInputSchemaParam{}
			if props, ok := t.InputSchema["properties"].(map[string]any); ok {
				schema.Properties = props
			}
			if required, ok := t.InputSchema["required"].([]any); ok {
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
			toolParams = append(toolParams, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: schema,
				},
			})
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	if b.thinkBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(b.thinkBudget))
		if params.MaxTokens < int64(b.thinkBudget)+4096 {
			params.MaxTokens = int64(b.thinkBudget) + 4096
		}
	}

	return params, nil
}

func convertBlocks(msg conv.Message) ([]anthropic.ContentBlockParamUnion, conv.Role) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range msg.Blocks {
		switch b.Kind {
		case conv.BlockText:
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case conv.BlockToolUse:
			var input map[string]any
			if len(b.ToolInput) > 0 {
				_ = json.Unmarshal(b.ToolInput, &input)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
		case conv.BlockToolResult:
			text := ""
			for _, item := range b.ToolResultItems {
				if item.Kind == conv.ToolResultItemText {
					text += item.Text
				}
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResultID, text, b.ToolResultStatus == conv.ToolResultError))
		}
	}
	return blocks, msg.Role
}
