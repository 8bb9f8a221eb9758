package schema

import (
	"encoding/json"
	"fmt"
)

// Role is an Anthropic message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of an Anthropic request's message sequence.
type Message struct {
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

// SystemTextBlock is one element of a system prompt given as a block sequence.
type SystemTextBlock struct {
	Type         string        `json:"type"` // "text"
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// SystemPrompt is the union of the request's optional system field: either a
// plain string or an ordered sequence of text blocks.
type SystemPrompt struct {
	union json.RawMessage
}

func (s SystemPrompt) IsZero() bool {
	return len(s.union) == 0
}

func (s SystemPrompt) AsString() (string, error) {
	var v string
	err := json.Unmarshal(s.union, &v)
	return v, err
}

func (s SystemPrompt) AsBlocks() ([]SystemTextBlock, error) {
	var v []SystemTextBlock
	err := json.Unmarshal(s.union, &v)
	return v, err
}

func SystemPromptFromString(v string) (SystemPrompt, error) {
	b, err := json.Marshal(v)
	return SystemPrompt{union: b}, err
}

func SystemPromptFromBlocks(v []SystemTextBlock) (SystemPrompt, error) {
	b, err := json.Marshal(v)
	return SystemPrompt{union: b}, err
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.union == nil {
		return []byte("null"), nil
	}
	return s.union, nil
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	s.union = append(json.RawMessage(nil), data...)
	return nil
}

// ToolDef describes one tool a client makes available to the model.
type ToolDef struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoiceType discriminates ToolChoice variants.
type ToolChoiceType string

const (
	ToolChoiceTypeAuto ToolChoiceType = "auto"
	ToolChoiceTypeAny  ToolChoiceType = "any"
	ToolChoiceTypeTool ToolChoiceType = "tool"
	ToolChoiceTypeNone ToolChoiceType = "none"
)

// ToolChoice steers whether and which tool the model must call.
type ToolChoice struct {
	Type ToolChoiceType `json:"type"`
	Name string         `json:"name,omitempty"` // set only when Type == "tool"
}

// Metadata carries request metadata; only UserID is used downstream.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Request is a validated Anthropic Messages API request.
type Request struct {
	Model         string       `json:"model" validate:"required"`
	Messages      []Message    `json:"messages" validate:"required,min=1"`
	MaxTokens     int          `json:"max_tokens" validate:"required,min=1"`
	System        SystemPrompt `json:"system,omitempty"`
	Tools         []ToolDef    `json:"tools,omitempty" validate:"dive"`
	Temperature   *float64     `json:"temperature,omitempty"`
	TopP          *float64     `json:"top_p,omitempty"`
	TopK          *int         `json:"top_k,omitempty"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
	Stream        *bool        `json:"stream,omitempty"`
	Metadata      *Metadata    `json:"metadata,omitempty"`
	ToolChoice    *ToolChoice  `json:"tool_choice,omitempty"`
}

// FirstOffendingToolUseID walks the message sequence and returns the
// tool_use_id carried by the first tool_result block that does not reference
// a tool_use id which appeared earlier in the conversation. Returns "", false if every
// tool_result is correctly linked (or none exist).
func (r *Request) FirstOffendingToolUseID() (string, bool) {
	seen := make(map[string]bool)
	for _, msg := range r.Messages {
		if msg.Content.IsString() {
			continue
		}
		blocks, err := msg.Content.AsBlocks()
		if err != nil {
			continue
		}
		for _, block := range blocks {
			kind, err := block.Discriminator()
			if err != nil {
				continue
			}
			switch kind {
			case ContentBlockTypeToolUse:
				tu, err := block.AsToolUseBlock()
				if err == nil {
					seen[tu.ID] = true
				}
			case ContentBlockTypeToolResult:
				tr, err := block.AsToolResultBlock()
				if err == nil && !seen[tr.ToolUseID] {
					return tr.ToolUseID, true
				}
			}
		}
	}
	return "", false
}

// SystemText concatenates the system prompt, whichever shape it takes, into
// a single string. Cache-control annotations are dropped. Returns "" if no
// system prompt was supplied.
func (r *Request) SystemText() (string, error) {
	if r.System.IsZero() {
		return "", nil
	}
	if text, err := r.System.AsString(); err == nil {
		return text, nil
	}
	blocks, err := r.System.AsBlocks()
	if err != nil {
		return "", fmt.Errorf("system prompt: neither a string nor a block sequence: %w", err)
	}
	var out string
	for _, b := range blocks {
		out += b.Text
	}
	return out, nil
}
