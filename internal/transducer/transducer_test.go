package transducer

import (
	"testing"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

func strptr(s string) *string { return &s }

func collect(t *testing.T, feed func(emit EmitFunc) error) []schema.Event {
	t.Helper()
	var events []schema.Event
	err := feed(func(e schema.Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return events
}

func eventTypes(events []schema.Event) []schema.EventType {
	out := make([]schema.EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

func chunk(id string, content *string, toolCalls []schema.ToolCallDelta, finish *string) *schema.ChatCompletionChunk {
	return &schema.ChatCompletionChunk{
		ID:    id,
		Model: "m",
		Choices: []schema.ChunkChoice{
			{Index: 0, Delta: schema.ChunkDelta{Content: content, ToolCalls: toolCalls}, FinishReason: finish},
		},
	}
}

// TestS4_StreamingText mirrors the streaming-text scenario: role chunk, two
// content fragments, then an empty finish chunk.
func TestS4_StreamingText(t *testing.T) {
	events := collect(t, func(emit EmitFunc) error {
		tr := New(emit)
		if err := tr.Feed(chunk("a", nil, nil, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("a", strptr("Hel"), nil, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("a", strptr("lo"), nil, nil)); err != nil {
			return err
		}
		return tr.Feed(chunk("a", nil, nil, strptr("stop")))
	})

	want := []schema.EventType{
		schema.EventTypeMessageStart,
		schema.EventTypeContentBlockStart,
		schema.EventTypeContentBlockDelta,
		schema.EventTypeContentBlockDelta,
		schema.EventTypeContentBlockStop,
		schema.EventTypeMessageDelta,
		schema.EventTypeMessageStop,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event count mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, got[i], want[i])
		}
	}

	start := events[1].(schema.ContentBlockStartEvent)
	if start.Index != 0 {
		t.Fatalf("expected text block at index 0, got %d", start.Index)
	}

	d1 := events[2].(schema.ContentBlockDeltaEvent)
	td1, err := d1.Delta.AsTextDelta()
	if err != nil || td1.Text != "Hel" {
		t.Fatalf("unexpected first delta: %+v err=%v", td1, err)
	}
	d2 := events[3].(schema.ContentBlockDeltaEvent)
	td2, err := d2.Delta.AsTextDelta()
	if err != nil || td2.Text != "lo" {
		t.Fatalf("unexpected second delta: %+v err=%v", td2, err)
	}

	md := events[5].(schema.MessageDeltaEvent)
	if md.Delta.StopReason != schema.StopReasonEndTurn {
		t.Fatalf("expected end_turn, got %s", md.Delta.StopReason)
	}
}

// TestS5_StreamingToolCallAcrossChunks mirrors the tool-call-across-chunks
// scenario: name arrives first, then two argument fragments, then finish.
func TestS5_StreamingToolCallAcrossChunks(t *testing.T) {
	id := "t1"
	name := "f"
	args1 := `{"a":`
	args2 := `1}`

	events := collect(t, func(emit EmitFunc) error {
		tr := New(emit)
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, ID: &id, Function: &schema.FunctionCallDelta{Name: &name}},
		}, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, Function: &schema.FunctionCallDelta{Arguments: &args1}},
		}, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, Function: &schema.FunctionCallDelta{Arguments: &args2}},
		}, nil)); err != nil {
			return err
		}
		return tr.Feed(chunk("x", nil, nil, strptr("tool_calls")))
	})

	want := []schema.EventType{
		schema.EventTypeMessageStart,
		schema.EventTypeContentBlockStart,
		schema.EventTypeContentBlockDelta,
		schema.EventTypeContentBlockDelta,
		schema.EventTypeContentBlockStop,
		schema.EventTypeMessageDelta,
		schema.EventTypeMessageStop,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event count mismatch: got %v want %v", got, want)
	}

	start := events[1].(schema.ContentBlockStartEvent)
	tu, err := start.ContentBlock.AsToolUseBlock()
	if err != nil || tu.ID != "t1" || tu.Name != "f" {
		t.Fatalf("unexpected tool_use start: %+v err=%v", tu, err)
	}

	d1 := events[2].(schema.ContentBlockDeltaEvent)
	ij1, _ := d1.Delta.AsInputJSONDelta()
	if ij1.PartialJSON != `{"a":` {
		t.Fatalf("unexpected first arg delta: %q", ij1.PartialJSON)
	}
	d2 := events[3].(schema.ContentBlockDeltaEvent)
	ij2, _ := d2.Delta.AsInputJSONDelta()
	if ij2.PartialJSON != `1}` {
		t.Fatalf("unexpected second arg delta: %q", ij2.PartialJSON)
	}

	md := events[5].(schema.MessageDeltaEvent)
	if md.Delta.StopReason != schema.StopReasonToolUse {
		t.Fatalf("expected tool_use, got %s", md.Delta.StopReason)
	}
}

// TestS6_TextThenTool checks that a text block closes before a following
// tool-call block opens, with strictly increasing indices.
func TestS6_TextThenTool(t *testing.T) {
	name := "f"
	events := collect(t, func(emit EmitFunc) error {
		tr := New(emit)
		if err := tr.Feed(chunk("x", strptr("hi"), nil, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, Function: &schema.FunctionCallDelta{Name: &name}},
		}, nil)); err != nil {
			return err
		}
		return tr.Feed(chunk("x", nil, nil, strptr("tool_calls")))
	})

	var textStart, toolStart *int
	for _, e := range events {
		switch v := e.(type) {
		case schema.ContentBlockStartEvent:
			kind, err := v.ContentBlock.Discriminator()
			if err != nil {
				t.Fatalf("discriminator: %v", err)
			}
			idx := v.Index
			switch kind {
			case schema.ContentBlockTypeText:
				textStart = &idx
			case schema.ContentBlockTypeToolUse:
				toolStart = &idx
			}
		}
	}
	if textStart == nil || toolStart == nil {
		t.Fatalf("expected both a text and a tool_use content_block_start")
	}
	if *textStart != 0 || *toolStart != 1 {
		t.Fatalf("expected indices 0 then 1, got text=%d tool=%d", *textStart, *toolStart)
	}
}

// TestArgumentsBeforeName checks the buffered-then-replayed-as-one-delta rule.
func TestArgumentsBeforeName(t *testing.T) {
	args := `{"x":1}`
	name := "f"

	events := collect(t, func(emit EmitFunc) error {
		tr := New(emit)
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, Function: &schema.FunctionCallDelta{Arguments: &args}},
		}, nil)); err != nil {
			return err
		}
		if err := tr.Feed(chunk("x", nil, []schema.ToolCallDelta{
			{Index: 0, Function: &schema.FunctionCallDelta{Name: &name}},
		}, nil)); err != nil {
			return err
		}
		return tr.Feed(chunk("x", nil, nil, strptr("tool_calls")))
	})

	var deltas []string
	for _, e := range events {
		if d, ok := e.(schema.ContentBlockDeltaEvent); ok {
			ij, err := d.Delta.AsInputJSONDelta()
			if err != nil {
				t.Fatalf("unexpected delta type: %v", err)
			}
			deltas = append(deltas, ij.PartialJSON)
		}
	}
	if len(deltas) != 1 || deltas[0] != args {
		t.Fatalf("expected a single replayed delta %q, got %v", args, deltas)
	}
}

// TestClose_SynthesizesEndTurnWithoutFinishReason exercises the
// disconnect-before-finalization error behavior.
func TestClose_SynthesizesEndTurnWithoutFinishReason(t *testing.T) {
	var lastStopReason schema.StopReason
	tr := New(func(e schema.Event) error {
		if md, ok := e.(schema.MessageDeltaEvent); ok {
			lastStopReason = md.Delta.StopReason
		}
		return nil
	})
	if err := tr.Feed(chunk("x", strptr("partial"), nil, nil)); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !tr.Stopped() {
		t.Fatalf("expected transducer to be stopped after Close")
	}
	if lastStopReason != schema.StopReasonEndTurn {
		t.Fatalf("expected synthesized end_turn, got %s", lastStopReason)
	}
	// Idempotent: a second Close must not emit again or error.
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
