package schema

import "encoding/json"

// ChatRole is an OpenAI chat message role.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
)

// FunctionCall is the function payload of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one assistant-issued tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // "function"
	Function FunctionCall `json:"function"`
}

// ChatMessage is one entry of a flat OpenAI chat message list.
type ChatMessage struct {
	Role       ChatRole            `json:"role"`
	Content    *ChatMessageContent `json:"content,omitempty"`
	ToolCalls  []ToolCall          `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
}

// FunctionDef describes a tool's callable function.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatTool is one tool made available to the model.
type ChatTool struct {
	Type     string      `json:"type"` // "function"
	Function FunctionDef `json:"function"`
}

// StopField is the union of the request's optional "stop" field: a single
// string or a short list of strings.
type StopField struct {
	union json.RawMessage
}

func StopFieldFromString(v string) StopField {
	b, _ := json.Marshal(v)
	return StopField{union: b}
}

func StopFieldFromSlice(v []string) StopField {
	b, _ := json.Marshal(v)
	return StopField{union: b}
}

func (s StopField) MarshalJSON() ([]byte, error) {
	if s.union == nil {
		return []byte("null"), nil
	}
	return s.union, nil
}

func (s *StopField) UnmarshalJSON(data []byte) error {
	s.union = append(json.RawMessage(nil), data...)
	return nil
}

// ToolChoiceFunctionName names a specific function the model must call.
type ToolChoiceFunctionName struct {
	Name string `json:"name"`
}

// ToolChoiceObject is the object form of ToolChoiceField, forcing one named function.
type ToolChoiceObject struct {
	Type     string                 `json:"type"` // "function"
	Function ToolChoiceFunctionName `json:"function"`
}

// ToolChoiceField is the union of the request's optional "tool_choice"
// field: either a string ("auto" | "none" | "required") or an object
// forcing a specific named function.
type ToolChoiceField struct {
	union json.RawMessage
}

func ToolChoiceFromString(v string) ToolChoiceField {
	b, _ := json.Marshal(v)
	return ToolChoiceField{union: b}
}

func ToolChoiceFromFunctionName(name string) ToolChoiceField {
	b, _ := json.Marshal(ToolChoiceObject{Type: "function", Function: ToolChoiceFunctionName{Name: name}})
	return ToolChoiceField{union: b}
}

func (t ToolChoiceField) MarshalJSON() ([]byte, error) {
	if t.union == nil {
		return []byte("null"), nil
	}
	return t.union, nil
}

func (t *ToolChoiceField) UnmarshalJSON(data []byte) error {
	t.union = append(json.RawMessage(nil), data...)
	return nil
}

// ChatCompletionRequest is the flat OpenAI-compatible request sent upstream.
type ChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
	Stop        *StopField       `json:"stop,omitempty"`
	Stream      *bool            `json:"stream,omitempty"`
	Tools       []ChatTool       `json:"tools,omitempty"`
	ToolChoice  *ToolChoiceField `json:"tool_choice,omitempty"`
	User        string           `json:"user,omitempty"`
}
