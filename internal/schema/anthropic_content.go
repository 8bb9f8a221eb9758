package schema

import (
	"encoding/json"
	"fmt"
)

// ContentBlockType discriminates the variants of ContentBlock.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeImage      ContentBlockType = "image"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
	ContentBlockTypeThinking   ContentBlockType = "thinking"
)

// CacheControl is an optional cache-control annotation on a content block or
// system text block. TTL, when present, is expected to lie in [60, 3600]
// seconds; the transformer drops this annotation rather than validating it.
type CacheControl struct {
	Type string `json:"type"`
	TTL  *int   `json:"ttl,omitempty"`
}

// TextBlock is the "text" content block variant.
type TextBlock struct {
	Type         ContentBlockType `json:"type"`
	Text         string           `json:"text"`
	CacheControl *CacheControl    `json:"cache_control,omitempty"`
}

// ImageSource carries a base64-encoded image payload. Remote image URLs are
// not a defined Anthropic ingress shape; they only arise on the (unsupported)
// reverse path.
type ImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ImageBlock is the "image" content block variant.
type ImageBlock struct {
	Type   ContentBlockType `json:"type"`
	Source ImageSource      `json:"source"`
}

// ToolUseBlock is the "tool_use" content block variant (assistant-originated).
type ToolUseBlock struct {
	Type  ContentBlockType `json:"type"`
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Input json.RawMessage  `json:"input"`
}

// ToolResultContentPartType discriminates ToolResultContentPart variants.
type ToolResultContentPartType string

const (
	ToolResultContentPartTypeText  ToolResultContentPartType = "text"
	ToolResultContentPartTypeImage ToolResultContentPartType = "image"
)

// ToolResultContentPart is one element of a tool_result block's content
// sequence, restricted to text and image per the Anthropic schema.
type ToolResultContentPart struct {
	union json.RawMessage
}

func (p ToolResultContentPart) Discriminator() (ToolResultContentPartType, error) {
	var tagged struct {
		Type ToolResultContentPartType `json:"type"`
	}
	if err := json.Unmarshal(p.union, &tagged); err != nil {
		return "", fmt.Errorf("tool result content part: %w", err)
	}
	return tagged.Type, nil
}

func (p ToolResultContentPart) AsTextBlock() (TextBlock, error) {
	var v TextBlock
	err := json.Unmarshal(p.union, &v)
	return v, err
}

func (p ToolResultContentPart) AsImageBlock() (ImageBlock, error) {
	var v ImageBlock
	err := json.Unmarshal(p.union, &v)
	return v, err
}

func FromTextBlockAsToolResultPart(v TextBlock) (ToolResultContentPart, error) {
	v.Type = ContentBlockTypeText
	b, err := json.Marshal(v)
	return ToolResultContentPart{union: b}, err
}

func FromImageBlockAsToolResultPart(v ImageBlock) (ToolResultContentPart, error) {
	v.Type = ContentBlockTypeImage
	b, err := json.Marshal(v)
	return ToolResultContentPart{union: b}, err
}

func (p ToolResultContentPart) MarshalJSON() ([]byte, error) {
	if p.union == nil {
		return []byte("null"), nil
	}
	return p.union, nil
}

func (p *ToolResultContentPart) UnmarshalJSON(data []byte) error {
	p.union = append(json.RawMessage(nil), data...)
	return nil
}

// ToolResultContent is the union of a tool_result block's content: either a
// plain string or an ordered sequence of text/image parts.
type ToolResultContent struct {
	union json.RawMessage
}

func (c ToolResultContent) IsString() bool {
	var s string
	return json.Unmarshal(c.union, &s) == nil
}

func (c ToolResultContent) AsString() (string, error) {
	var v string
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func (c ToolResultContent) AsParts() ([]ToolResultContentPart, error) {
	var v []ToolResultContentPart
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func FromString(v string) (ToolResultContent, error) {
	b, err := json.Marshal(v)
	return ToolResultContent{union: b}, err
}

func FromToolResultParts(v []ToolResultContentPart) (ToolResultContent, error) {
	b, err := json.Marshal(v)
	return ToolResultContent{union: b}, err
}

func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	if c.union == nil {
		return []byte("null"), nil
	}
	return c.union, nil
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	c.union = append(json.RawMessage(nil), data...)
	return nil
}

// ToolResultBlock is the "tool_result" content block variant (user-originated).
type ToolResultBlock struct {
	Type      ContentBlockType  `json:"type"`
	ToolUseID string            `json:"tool_use_id"`
	Content   ToolResultContent `json:"content"`
	IsError   bool              `json:"is_error,omitempty"`
}

// ThinkingBlock is the "thinking" content block variant (assistant-originated, optional).
type ThinkingBlock struct {
	Type      ContentBlockType `json:"type"`
	Thinking  string           `json:"thinking"`
	Signature string           `json:"signature,omitempty"`
}

// ContentBlock is the closed tagged union over all five Anthropic content
// block variants. It stores its raw JSON and is decoded on demand via the
// AsXxx accessors, constructed on demand via the FromXxx constructors.
type ContentBlock struct {
	union json.RawMessage
}

func (b ContentBlock) Discriminator() (ContentBlockType, error) {
	var tagged struct {
		Type ContentBlockType `json:"type"`
	}
	if err := json.Unmarshal(b.union, &tagged); err != nil {
		return "", fmt.Errorf("content block: %w", err)
	}
	return tagged.Type, nil
}

func (b ContentBlock) AsTextBlock() (TextBlock, error) {
	var v TextBlock
	err := json.Unmarshal(b.union, &v)
	return v, err
}

func (b ContentBlock) AsImageBlock() (ImageBlock, error) {
	var v ImageBlock
	err := json.Unmarshal(b.union, &v)
	return v, err
}

func (b ContentBlock) AsToolUseBlock() (ToolUseBlock, error) {
	var v ToolUseBlock
	err := json.Unmarshal(b.union, &v)
	return v, err
}

func (b ContentBlock) AsToolResultBlock() (ToolResultBlock, error) {
	var v ToolResultBlock
	err := json.Unmarshal(b.union, &v)
	return v, err
}

func (b ContentBlock) AsThinkingBlock() (ThinkingBlock, error) {
	var v ThinkingBlock
	err := json.Unmarshal(b.union, &v)
	return v, err
}

func FromTextBlock(v TextBlock) (ContentBlock, error) {
	v.Type = ContentBlockTypeText
	b, err := json.Marshal(v)
	return ContentBlock{union: b}, err
}

func FromImageBlock(v ImageBlock) (ContentBlock, error) {
	v.Type = ContentBlockTypeImage
	b, err := json.Marshal(v)
	return ContentBlock{union: b}, err
}

func FromToolUseBlock(v ToolUseBlock) (ContentBlock, error) {
	v.Type = ContentBlockTypeToolUse
	b, err := json.Marshal(v)
	return ContentBlock{union: b}, err
}

func FromToolResultBlock(v ToolResultBlock) (ContentBlock, error) {
	v.Type = ContentBlockTypeToolResult
	b, err := json.Marshal(v)
	return ContentBlock{union: b}, err
}

func FromThinkingBlock(v ThinkingBlock) (ContentBlock, error) {
	v.Type = ContentBlockTypeThinking
	b, err := json.Marshal(v)
	return ContentBlock{union: b}, err
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if b.union == nil {
		return []byte("null"), nil
	}
	return b.union, nil
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	b.union = append(json.RawMessage(nil), data...)
	return nil
}

// MessageContent is the union of a Message's content: either a plain string
// or an ordered sequence of content blocks.
type MessageContent struct {
	union json.RawMessage
}

func (c MessageContent) IsString() bool {
	var s string
	return json.Unmarshal(c.union, &s) == nil
}

func (c MessageContent) AsString() (string, error) {
	var v string
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func (c MessageContent) AsBlocks() ([]ContentBlock, error) {
	var v []ContentBlock
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func MessageContentFromString(v string) (MessageContent, error) {
	b, err := json.Marshal(v)
	return MessageContent{union: b}, err
}

func MessageContentFromBlocks(v []ContentBlock) (MessageContent, error) {
	b, err := json.Marshal(v)
	return MessageContent{union: b}, err
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.union == nil {
		return []byte("null"), nil
	}
	return c.union, nil
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	c.union = append(json.RawMessage(nil), data...)
	return nil
}
