// Package loop implements the agent loop state machine (C7): the
// orchestrator that drives one user turn at a time, tying together the
// sanitized catalog (C4), the permission evaluator (C2), a model backend
// (C5/C6), and the built-in tool executors (C8).
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/mailbox"
	"agentrun/pkg/agent/mcpclient"
	"agentrun/pkg/agent/model"
	"agentrun/pkg/agent/pathutil"
	"agentrun/pkg/agent/permissions"
	"agentrun/pkg/agent/tools"
)

// ApprovalDecision is the driver's answer to an ApprovalRequest event.
type ApprovalDecision struct {
	Approve    bool
	DenyReason string
}

// Config wires the dependencies a Loop needs to run turns: the model
// backend, the turn's sanitized tool catalog, the built-in executors
// reachable from it, and the policy it evaluates tool uses against.
type Config struct {
	Backend      model.Backend
	Catalog      *conv.SanitizedCatalog
	BuiltIns     map[string]tools.Tool // keyed by built-in canonical name
	Mcp          *mcpclient.Manager    // nil if no external tool servers are configured
	AllowedTools conv.AllowedTools
	ToolSettings conv.ToolSettings
	Sys          pathutil.System
	SystemPrompt string
	Model        string
}

// reqKind tags a DriverRequest sent over the loop's mailbox.
type reqKind int

const (
	reqSendPrompt reqKind = iota
	reqSendApprovalResult
)

// DriverRequest is a message the external driver sends the loop over its
// single mailbox (C1).
type DriverRequest struct {
	kind       reqKind
	text       string
	approvalID string
	decision   ApprovalDecision
}

// SendPromptRequest constructs a DriverRequest carrying a new user prompt.
func SendPromptRequest(text string) DriverRequest {
	return DriverRequest{kind: reqSendPrompt, text: text}
}

// SendApprovalResultRequest constructs a DriverRequest resolving a
// previously emitted ApprovalRequest event.
func SendApprovalResultRequest(id string, decision ApprovalDecision) DriverRequest {
	return DriverRequest{kind: reqSendApprovalResult, approvalID: id, decision: decision}
}

// DriverResponse is the reply a loop sends back over SendAndAwait.
type DriverResponse struct {
	Metadata *conv.UserTurnMetadata // reqSendPrompt
	Err      error
}

// Loop is a single conversation's agent loop state machine. It owns its
// ConversationState, LoopState, and in-flight stream exclusively; only the
// goroutine running Serve mutates them.
type Loop struct {
	cfg Config

	conversation *conv.ConversationState
	events       chan conv.LoopEvent

	mailbox *mailbox.Mailbox[DriverRequest, DriverResponse]
	sender  mailbox.Sender[DriverRequest, DriverResponse]

	mu          sync.Mutex
	state       conv.LoopState
	turnCancel  context.CancelFunc
	totalReqs   int
	cycles      int
	pendingByID map[string]chan ApprovalDecision
}

// New creates a Loop ready to Serve. The caller owns running Serve in a
// goroutine and reading Events until it closes.
func New(id string, cfg Config) *Loop {
	mb, sender := mailbox.New[DriverRequest, DriverResponse](0)
	return &Loop{
		cfg:          cfg,
		conversation: conv.NewConversationState(id),
		events:       make(chan conv.LoopEvent, 64),
		mailbox:      mb,
		sender:       sender,
		state:        conv.LoopIdle,
		pendingByID:  make(map[string]chan ApprovalDecision),
	}
}

// Sender returns the clonable send side of the loop's mailbox (C1).
func (l *Loop) Sender() mailbox.Sender[DriverRequest, DriverResponse] { return l.sender }

// Events returns the ordered event stream published to the driver.
func (l *Loop) Events() <-chan conv.LoopEvent { return l.events }

// GetExecutionState returns the current LoopState. It is a fast,
// lock-protected read rather than a request queued behind SendPrompt, so
// it remains responsive while a turn's stream or tool executions are
// in flight.
func (l *Loop) GetExecutionState() conv.LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cancel signals the current in-flight turn, if any, to stop at its next
// suspension point. Like GetExecutionState it bypasses mailbox
// serialization: a turn blocked awaiting a stream chunk, a tool
// executor, or an approval result must still observe Cancel promptly.
func (l *Loop) Cancel() {
	l.mu.Lock()
	cancel := l.turnCancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Serve is the loop's single actor: it drains the mailbox and processes
// SendPrompt and SendApprovalResult requests one at a time, so no two
// turns ever run concurrently against the same ConversationState. It
// returns when ctx is cancelled or the mailbox is closed.
func (l *Loop) Serve(ctx context.Context) {
	defer close(l.events)
	for {
		req, ok := l.mailbox.Recv(ctx)
		if !ok {
			return
		}
		switch req.Payload.kind {
		case reqSendApprovalResult:
			l.resolveApproval(req.Payload.approvalID, req.Payload.decision)
			req.Reply(DriverResponse{})
		case reqSendPrompt:
			meta, err := l.runTurn(ctx, req.Payload.text)
			req.Reply(DriverResponse{Metadata: meta, Err: err})
		}
	}
}

func (l *Loop) resolveApproval(id string, decision ApprovalDecision) {
	l.mu.Lock()
	ch, ok := l.pendingByID[id]
	if ok {
		delete(l.pendingByID, id)
	}
	l.mu.Unlock()
	if ok {
		ch <- decision
	}
}

func (l *Loop) setState(to conv.LoopState) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.mu.Unlock()
	l.events <- conv.NewLoopStateChangeEvent(from, to)
}

// runTurn implements the one-user-turn algorithm of section 4.7: build a
// request from history, stream it through the model, resolve and
// evaluate tool uses, execute approved ones, and repeat until the model
// emits a turn with no tool uses, an unrecoverable error, or Cancel.
func (l *Loop) runTurn(parent context.Context, prompt string) (*conv.UserTurnMetadata, error) {
	start := time.Now()
	if prompt != "" {
		l.conversation.Append(conv.Message{Role: conv.RoleUser, Blocks: []conv.ContentBlock{conv.TextBlock(prompt)}})
	}

	turnCtx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	l.turnCancel = cancel
	l.mu.Unlock()
	defer cancel()

	for {
		l.setState(conv.LoopAwaitingModel)

		req := model.Request{
			Messages:     l.conversation.Messages,
			Tools:        l.cfg.Catalog.ToolSpecs(),
			SystemPrompt: l.cfg.SystemPrompt,
			Model:        l.cfg.Model,
		}

		stream, err := l.cfg.Backend.Stream(turnCtx, req)
		if err != nil {
			return l.endTurn(start, nil, &conv.LoopError{Kind: conv.ErrStream, Cause: err}, conv.EndError)
		}

		l.setState(conv.LoopStreamingResponse)
		message, foldErr := model.Fold(stream, func(ev conv.LoopEvent) { l.events <- ev })
		l.totalReqs++
		l.events <- conv.NewResponseStreamEndEvent(message, foldErr)

		if foldErr != nil {
			if turnCtx.Err() != nil {
				return l.endTurn(start, message, nil, conv.EndCancelled)
			}
			if isResumable(foldErr) {
				// Surface the error to the driver but stay mid-turn: the
				// turn is not ended, and a subsequent SendPrompt("")
				// retries against the same history.
				return nil, foldErr
			}
			return l.endTurn(start, message, foldErr, conv.EndError)
		}

		l.conversation.Append(*message)

		toolUses := message.ToolUses()
		if len(toolUses) == 0 {
			return l.endTurn(start, message, nil, conv.EndUserTurnEnd)
		}

		resultItems, cancelled := l.processToolUses(turnCtx, toolUses)
		if cancelled {
			return l.endTurn(start, message, nil, conv.EndCancelled)
		}
		l.conversation.Append(conv.Message{
			Role:   conv.RoleUser,
			Blocks: resultItems,
		})

		l.cycles++
	}
}

// isResumable reports whether a LoopError is a Throttling/ModelOverloaded
// transport error (section 7): the turn stays mid-turn rather than ending.
// ContextWindowOverflow, InvalidJson, and unclassified stream errors are
// all terminal for the turn.
func isResumable(err *conv.LoopError) bool {
	if err.Kind != conv.ErrStream || err.Cause == nil {
		return false
	}
	return errors.Is(err.Cause, model.ErrThrottled) || errors.Is(err.Cause, model.ErrModelOverloaded)
}

// processToolUses walks the tool-use blocks of one assistant turn in
// order: resolves the presented name, evaluates policy, suspends for
// approval when asked, and executes approved tools sequentially. It
// returns the ToolResult content blocks to append as a single User
// message, and whether the turn was cancelled mid-way.
func (l *Loop) processToolUses(ctx context.Context, toolUses []conv.ContentBlock) ([]conv.ContentBlock, bool) {
	l.setState(conv.LoopAwaitingApproval)

	type decided struct {
		use      conv.ContentBlock
		canon    conv.CanonicalToolName
		approved bool
		reason   string
	}
	var plan []decided

	for _, use := range toolUses {
		canon, ok := l.cfg.Catalog.Resolve(use.ToolName)
		if !ok {
			plan = append(plan, decided{use: use, approved: false, reason: fmt.Sprintf("tool not found: %s", use.ToolName)})
			continue
		}

		inv := permissions.Invocation{
			Kind:     inferKind(canon),
			ToolName: canon,
			Paths:    extractPaths(use.ToolInput),
		}
		result := permissions.Evaluate(l.cfg.Sys, inv, l.cfg.AllowedTools, l.cfg.ToolSettings)

		switch result.Decision {
		case permissions.Allow:
			plan = append(plan, decided{use: use, canon: canon, approved: true})
		case permissions.Deny:
			plan = append(plan, decided{use: use, canon: canon, approved: false, reason: result.Reason})
		case permissions.Ask:
			id := uuid.NewString()
			ch := make(chan ApprovalDecision, 1)
			l.mu.Lock()
			l.pendingByID[id] = ch
			l.mu.Unlock()

			l.events <- conv.NewApprovalRequestEvent(id, use.ToolName, string(use.ToolInput))

			select {
			case dec := <-ch:
				if dec.Approve {
					plan = append(plan, decided{use: use, canon: canon, approved: true})
				} else {
					plan = append(plan, decided{use: use, canon: canon, approved: false, reason: dec.DenyReason})
				}
			case <-ctx.Done():
				l.mu.Lock()
				delete(l.pendingByID, id)
				l.mu.Unlock()
				return nil, true
			}
		}
	}

	l.setState(conv.LoopExecutingTools)

	var blocks []conv.ContentBlock
	for _, d := range plan {
		if ctx.Err() != nil {
			return nil, true
		}
		if !d.approved {
			blocks = append(blocks, conv.ToolResultBlock(d.use.ToolUseID,
				[]conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: d.reason}}, conv.ToolResultError))
			continue
		}
		items, status := l.executeTool(ctx, d.canon, d.use.ToolInput)
		blocks = append(blocks, conv.ToolResultBlock(d.use.ToolUseID, items, status))
	}
	return blocks, false
}

func (l *Loop) executeTool(ctx context.Context, canon conv.CanonicalToolName, input json.RawMessage) ([]conv.ToolResultItem, conv.ToolResultStatus) {
	if canon.Kind == conv.ToolKindMcp {
		if l.cfg.Mcp == nil {
			return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: fmt.Sprintf("no mcp manager configured for %s", canon.Server)}}, conv.ToolResultError
		}
		items, err := l.cfg.Mcp.Call(ctx, canon.Server, canon.Tool, input)
		if err != nil {
			return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: err.Error()}}, conv.ToolResultError
		}
		return items, conv.ToolResultOK
	}
	if canon.Kind != conv.ToolKindBuiltIn {
		return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: "sub-agent tool execution not wired into this loop"}}, conv.ToolResultError
	}
	tool, ok := l.cfg.BuiltIns[canon.Name]
	if !ok {
		return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: fmt.Sprintf("no executor registered for %s", canon.Name)}}, conv.ToolResultError
	}
	if err := tool.Validate(input); err != nil {
		return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: err.Error()}}, conv.ToolResultError
	}
	out, err := tool.Execute(ctx, input)
	if err != nil {
		return []conv.ToolResultItem{{Kind: conv.ToolResultItemText, Text: err.Error()}}, conv.ToolResultError
	}
	return out.Items, conv.ToolResultOK
}

func (l *Loop) endTurn(start time.Time, result *conv.Message, loopErr *conv.LoopError, reason conv.LoopEndReason) (*conv.UserTurnMetadata, error) {
	l.setState(conv.LoopEnded)
	meta := &conv.UserTurnMetadata{
		Result:            result,
		Err:               loopErr,
		TotalRequestCount: l.totalReqs,
		NumberOfCycles:    l.cycles,
		TurnDuration:      time.Since(start),
		EndReason:         reason,
		EndTimestamp:      time.Now(),
	}
	l.events <- conv.NewUserTurnEndEvent(meta)
	if loopErr != nil {
		return meta, loopErr
	}
	return meta, nil
}

// inferKind maps a canonical built-in tool name to its permission kind.
// External (Mcp) and sub-agent tools are always evaluated as KindMcp.
func inferKind(c conv.CanonicalToolName) permissions.InvocationKind {
	if c.Kind != conv.ToolKindBuiltIn {
		return permissions.KindMcp
	}
	switch c.Name {
	case "fs_read":
		return permissions.KindFileRead
	case "fs_write":
		return permissions.KindFileWrite
	case "ls":
		return permissions.KindLs
	case "fs_read_image":
		return permissions.KindImageRead
	case "grep":
		return permissions.KindGrep
	case "mkdir":
		return permissions.KindMkdir
	case "execute_cmd":
		return permissions.KindExecuteCmd
	default:
		return permissions.KindIntrospect
	}
}

// extractPaths pulls every "path"/"paths" string field out of a tool
// input so the permission evaluator can canonicalize and check them,
// without needing each built-in's typed input struct.
// extractPaths peeks the "path"/"paths"/"ops[].path" shapes used across the
// built-in tools' otherwise-heterogeneous input schemas, without requiring
// each one's own argument struct to be known here. gjson tolerates whichever
// fields are absent rather than erroring, which a single strict Unmarshal
// target could not do across fs_read's ops-array shape and fs_write/ls's
// flat path shape at once.
func extractPaths(input json.RawMessage) []string {
	if !gjson.ValidBytes(input) {
		return nil
	}
	parsed := gjson.ParseBytes(input)

	var out []string
	if p := parsed.Get("path"); p.Exists() {
		out = append(out, p.String())
	}
	for _, p := range parsed.Get("paths").Array() {
		out = append(out, p.String())
	}
	for _, op := range parsed.Get("ops").Array() {
		if p := op.Get("path"); p.Exists() {
			out = append(out, p.String())
		}
	}
	return out
}
