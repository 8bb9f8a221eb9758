package schema

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the Anthropic SSE event records.
type EventType string

const (
	EventTypeMessageStart      EventType = "message_start"
	EventTypeContentBlockStart EventType = "content_block_start"
	EventTypeContentBlockDelta EventType = "content_block_delta"
	EventTypeContentBlockStop  EventType = "content_block_stop"
	EventTypeMessageDelta      EventType = "message_delta"
	EventTypeMessageStop       EventType = "message_stop"
)

// Event is implemented by every Anthropic SSE event record. EventType
// reports the value written to the SSE "event:" line ahead of the JSON body.
type Event interface {
	EventType() EventType
}

// MessageStartMessage is the partial message object embedded in message_start.
type MessageStartMessage struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"` // "message"
	Role    Role           `json:"role"` // "assistant"
	Model   string         `json:"model"`
	Content []ContentBlock `json:"content"` // always empty at message_start
	Usage   Usage          `json:"usage"`
}

type MessageStartEvent struct {
	Type    EventType           `json:"type"`
	Message MessageStartMessage `json:"message"`
}

func (MessageStartEvent) EventType() EventType { return EventTypeMessageStart }

func NewMessageStartEvent(id, model string, usage Usage) MessageStartEvent {
	return MessageStartEvent{
		Type: EventTypeMessageStart,
		Message: MessageStartMessage{
			ID:      id,
			Type:    "message",
			Role:    RoleAssistant,
			Model:   model,
			Content: []ContentBlock{},
			Usage:   usage,
		},
	}
}

type ContentBlockStartEvent struct {
	Type         EventType    `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

func (ContentBlockStartEvent) EventType() EventType { return EventTypeContentBlockStart }

func NewContentBlockStartEvent(index int, block ContentBlock) ContentBlockStartEvent {
	return ContentBlockStartEvent{Type: EventTypeContentBlockStart, Index: index, ContentBlock: block}
}

// DeltaType discriminates ContentDelta variants.
type DeltaType string

const (
	DeltaTypeText      DeltaType = "text_delta"
	DeltaTypeInputJSON DeltaType = "input_json_delta"
)

type TextDelta struct {
	Type DeltaType `json:"type"`
	Text string    `json:"text"`
}

type InputJSONDelta struct {
	Type        DeltaType `json:"type"`
	PartialJSON string    `json:"partial_json"`
}

// ContentDelta is the union of a content_block_delta event's delta payload.
type ContentDelta struct {
	union json.RawMessage
}

func (d ContentDelta) Discriminator() (DeltaType, error) {
	var tagged struct {
		Type DeltaType `json:"type"`
	}
	if err := json.Unmarshal(d.union, &tagged); err != nil {
		return "", fmt.Errorf("content delta: %w", err)
	}
	return tagged.Type, nil
}

func (d ContentDelta) AsTextDelta() (TextDelta, error) {
	var v TextDelta
	err := json.Unmarshal(d.union, &v)
	return v, err
}

func (d ContentDelta) AsInputJSONDelta() (InputJSONDelta, error) {
	var v InputJSONDelta
	err := json.Unmarshal(d.union, &v)
	return v, err
}

func FromTextDelta(v TextDelta) ContentDelta {
	v.Type = DeltaTypeText
	b, _ := json.Marshal(v)
	return ContentDelta{union: b}
}

func FromInputJSONDelta(v InputJSONDelta) ContentDelta {
	v.Type = DeltaTypeInputJSON
	b, _ := json.Marshal(v)
	return ContentDelta{union: b}
}

func (d ContentDelta) MarshalJSON() ([]byte, error) {
	if d.union == nil {
		return []byte("null"), nil
	}
	return d.union, nil
}

func (d *ContentDelta) UnmarshalJSON(data []byte) error {
	d.union = append(json.RawMessage(nil), data...)
	return nil
}

type ContentBlockDeltaEvent struct {
	Type  EventType    `json:"type"`
	Index int          `json:"index"`
	Delta ContentDelta `json:"delta"`
}

func (ContentBlockDeltaEvent) EventType() EventType { return EventTypeContentBlockDelta }

func NewContentBlockDeltaEvent(index int, delta ContentDelta) ContentBlockDeltaEvent {
	return ContentBlockDeltaEvent{Type: EventTypeContentBlockDelta, Index: index, Delta: delta}
}

type ContentBlockStopEvent struct {
	Type  EventType `json:"type"`
	Index int       `json:"index"`
}

func (ContentBlockStopEvent) EventType() EventType { return EventTypeContentBlockStop }

func NewContentBlockStopEvent(index int) ContentBlockStopEvent {
	return ContentBlockStopEvent{Type: EventTypeContentBlockStop, Index: index}
}

type MessageDeltaPayload struct {
	StopReason   StopReason `json:"stop_reason"`
	StopSequence *string    `json:"stop_sequence"`
}

type MessageDeltaEvent struct {
	Type  EventType           `json:"type"`
	Delta MessageDeltaPayload `json:"delta"`
	Usage Usage               `json:"usage"`
}

func (MessageDeltaEvent) EventType() EventType { return EventTypeMessageDelta }

func NewMessageDeltaEvent(stopReason StopReason, usage Usage) MessageDeltaEvent {
	return MessageDeltaEvent{
		Type:  EventTypeMessageDelta,
		Delta: MessageDeltaPayload{StopReason: stopReason},
		Usage: usage,
	}
}

type MessageStopEvent struct {
	Type EventType `json:"type"`
}

func (MessageStopEvent) EventType() EventType { return EventTypeMessageStop }

func NewMessageStopEvent() MessageStopEvent {
	return MessageStopEvent{Type: EventTypeMessageStop}
}
