package conv

import "encoding/json"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the variant of a ContentBlock.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockReasoning
	BlockToolUse
	BlockToolResult
	BlockImage
)

// ToolResultStatus is the outcome recorded on a ToolResult block.
type ToolResultStatus string

const (
	ToolResultOK    ToolResultStatus = "ok"
	ToolResultError ToolResultStatus = "error"
)

// ToolResultItemKind tags the variant of a single ToolResult payload item.
type ToolResultItemKind int

const (
	ToolResultItemText ToolResultItemKind = iota
	ToolResultItemJSON
	ToolResultItemImage
)

// ToolResultItem is one piece of a tool's result payload.
type ToolResultItem struct {
	Kind      ToolResultItemKind
	Text      string
	JSON      json.RawMessage
	ImageData []byte
	MediaType string
}

// ContentBlock is a tagged union matching exactly one of Text, Reasoning,
// ToolUse, ToolResult, or Image depending on Kind.
type ContentBlock struct {
	Kind BlockKind

	Text      string // BlockText / BlockReasoning
	ImageData []byte // BlockImage
	MediaType string // BlockImage

	ToolUseID    string          // BlockToolUse
	ToolName     string          // BlockToolUse
	ToolInput    json.RawMessage // BlockToolUse

	ToolResultID     string           // BlockToolResult: references a prior ToolUseID
	ToolResultItems  []ToolResultItem // BlockToolResult
	ToolResultStatus ToolResultStatus // BlockToolResult
}

// TextBlock constructs a Text content block.
func TextBlock(text string) ContentBlock { return ContentBlock{Kind: BlockText, Text: text} }

// ReasoningBlock constructs a Reasoning content block.
func ReasoningBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockReasoning, Text: text}
}

// ToolUseBlock constructs a ToolUse content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock constructs a ToolResult content block. It must only ever
// be placed in a User message.
func ToolResultBlock(toolUseID string, items []ToolResultItem, status ToolResultStatus) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResultID: toolUseID, ToolResultItems: items, ToolResultStatus: status}
}

// ImageBlock constructs an Image content block.
func ImageBlock(data []byte, mediaType string) ContentBlock {
	return ContentBlock{Kind: BlockImage, ImageData: data, MediaType: mediaType}
}

// Message is an ordered sequence of content blocks tagged with a role.
// An Assistant message is immutable once emitted by the loop; a User
// message carrying ToolResult blocks must reference ToolUse ids that
// appeared earlier in the conversation.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// ToolUses returns every ToolUse block in the message, in order.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates every Text block in the message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ConversationState is the append-only message history for one conversation.
// It is mutated only by the agent loop that owns it.
type ConversationState struct {
	ID       string
	Messages []Message
}

// NewConversationState starts an empty conversation with a fresh id.
func NewConversationState(id string) *ConversationState {
	return &ConversationState{ID: id}
}

// Append adds a message to the end of the history.
func (c *ConversationState) Append(m Message) {
	c.Messages = append(c.Messages, m)
}
