package schema

import (
	"encoding/json"
	"fmt"
)

// ChatContentPartType discriminates ChatContentPart variants.
type ChatContentPartType string

const (
	ChatContentPartTypeText     ChatContentPartType = "text"
	ChatContentPartTypeImageURL ChatContentPartType = "image_url"
)

type ChatTextPart struct {
	Type ChatContentPartType `json:"type"`
	Text string              `json:"text"`
}

type ChatImageURL struct {
	URL string `json:"url"`
}

type ChatImagePart struct {
	Type     ChatContentPartType `json:"type"`
	ImageURL ChatImageURL        `json:"image_url"`
}

// ChatContentPart is the union of one element of a flat OpenAI message content sequence.
type ChatContentPart struct {
	union json.RawMessage
}

func (p ChatContentPart) Discriminator() (ChatContentPartType, error) {
	var tagged struct {
		Type ChatContentPartType `json:"type"`
	}
	if err := json.Unmarshal(p.union, &tagged); err != nil {
		return "", fmt.Errorf("chat content part: %w", err)
	}
	return tagged.Type, nil
}

func (p ChatContentPart) AsTextPart() (ChatTextPart, error) {
	var v ChatTextPart
	err := json.Unmarshal(p.union, &v)
	return v, err
}

func (p ChatContentPart) AsImagePart() (ChatImagePart, error) {
	var v ChatImagePart
	err := json.Unmarshal(p.union, &v)
	return v, err
}

func FromChatTextPart(v ChatTextPart) ChatContentPart {
	v.Type = ChatContentPartTypeText
	b, _ := json.Marshal(v)
	return ChatContentPart{union: b}
}

func FromChatImagePart(v ChatImagePart) ChatContentPart {
	v.Type = ChatContentPartTypeImageURL
	b, _ := json.Marshal(v)
	return ChatContentPart{union: b}
}

func (p ChatContentPart) MarshalJSON() ([]byte, error) {
	if p.union == nil {
		return []byte("null"), nil
	}
	return p.union, nil
}

func (p *ChatContentPart) UnmarshalJSON(data []byte) error {
	p.union = append(json.RawMessage(nil), data...)
	return nil
}

// ChatMessageContent is the union of an OpenAI message's content: either a
// plain string or an ordered sequence of content parts.
type ChatMessageContent struct {
	union json.RawMessage
}

func (c ChatMessageContent) AsString() (string, error) {
	var v string
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func (c ChatMessageContent) AsParts() ([]ChatContentPart, error) {
	var v []ChatContentPart
	err := json.Unmarshal(c.union, &v)
	return v, err
}

func ChatMessageContentFromString(v string) ChatMessageContent {
	b, _ := json.Marshal(v)
	return ChatMessageContent{union: b}
}

func ChatMessageContentFromParts(v []ChatContentPart) ChatMessageContent {
	b, _ := json.Marshal(v)
	return ChatMessageContent{union: b}
}

func (c ChatMessageContent) MarshalJSON() ([]byte, error) {
	if c.union == nil {
		return []byte("null"), nil
	}
	return c.union, nil
}

func (c *ChatMessageContent) UnmarshalJSON(data []byte) error {
	c.union = append(json.RawMessage(nil), data...)
	return nil
}
