package transducer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

// activeBlock tracks which kind of Anthropic content block is currently
// open, mirroring the transducer's "active_block" state.
type activeBlock int

const (
	blockNone activeBlock = iota
	blockText
	blockTool
)

// toolRow is one row of the tool_table keyed by upstream tool-call index.
type toolRow struct {
	id             string
	name           string
	argBuf         strings.Builder // accumulated_argument_string
	anthropicIndex int
	started        bool
}

// EmitFunc receives one outgoing Anthropic SSE event record in emission order.
type EmitFunc func(schema.Event) error

// Transducer converts a sequence of OpenAI streaming chunks into a sequence
// of Anthropic SSE events, maintaining the block-index and tool-call-table
// state described by the per-chunk processing rules. One Transducer serves
// exactly one request and is not safe for concurrent use — it is driven by
// exactly one producer (the reader of the upstream body).
type Transducer struct {
	emit EmitFunc

	started bool
	stopped bool

	active   activeBlock
	blockIdx int

	toolTable map[int]*toolRow

	lastUsage    schema.Usage
	sawToolCalls bool
	nextToolSeq  int
}

// New constructs a Transducer that calls emit for each outgoing event.
func New(emit EmitFunc) *Transducer {
	return &Transducer{emit: emit, toolTable: make(map[int]*toolRow)}
}

// Stopped reports whether the terminal message_stop has already been emitted.
func (t *Transducer) Stopped() bool { return t.stopped }

// Feed processes one decoded upstream chunk, emitting zero or more Anthropic
// events. Once the transducer has stopped (finalization already ran), Feed
// is a no-op — per the contract, subsequent chunks after finish_reason are
// ignored.
func (t *Transducer) Feed(chunk *schema.ChatCompletionChunk) error {
	if t.stopped {
		return nil
	}

	if err := t.firstChunkHousekeeping(chunk); err != nil {
		return err
	}

	if chunk.Usage != nil {
		t.lastUsage = schema.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		if err := t.handleText(*choice.Delta.Content); err != nil {
			return err
		}
	}

	if len(choice.Delta.ToolCalls) > 0 {
		if err := t.handleToolCalls(choice.Delta.ToolCalls); err != nil {
			return err
		}
	}

	if choice.FinishReason != nil {
		return t.finalize(*choice.FinishReason)
	}

	return nil
}

// Close runs finalization if it has not already happened, synthesizing
// stop_reason "end_turn" per the error-behavior rule for streams that end
// (cleanly or via upstream disconnect) without ever carrying a finish_reason.
// It is idempotent.
func (t *Transducer) Close() error {
	if t.stopped || !t.started {
		return nil
	}
	return t.finalize("")
}

func (t *Transducer) firstChunkHousekeeping(chunk *schema.ChatCompletionChunk) error {
	if t.started {
		return nil
	}
	t.started = true
	return t.emit(schema.NewMessageStartEvent(chunk.ID, chunk.Model, t.lastUsage))
}

func (t *Transducer) handleText(text string) error {
	if t.active == blockTool {
		if err := t.emit(schema.NewContentBlockStopEvent(t.blockIdx)); err != nil {
			return err
		}
		t.blockIdx++
	}
	if t.active != blockText {
		block, err := schema.FromTextBlock(schema.TextBlock{Text: ""})
		if err != nil {
			return err
		}
		if err := t.emit(schema.NewContentBlockStartEvent(t.blockIdx, block)); err != nil {
			return err
		}
		t.active = blockText
	}
	return t.emit(schema.NewContentBlockDeltaEvent(t.blockIdx, schema.FromTextDelta(schema.TextDelta{Text: text})))
}

func (t *Transducer) handleToolCalls(deltas []schema.ToolCallDelta) error {
	for _, tc := range deltas {
		row, ok := t.toolTable[tc.Index]
		if !ok {
			row = &toolRow{}
			t.toolTable[tc.Index] = row
		}

		if tc.ID != nil && *tc.ID != "" {
			row.id = *tc.ID
		}
		var argsFragment string
		if tc.Function != nil {
			if tc.Function.Name != nil && *tc.Function.Name != "" {
				row.name = *tc.Function.Name
			}
			if tc.Function.Arguments != nil {
				argsFragment = *tc.Function.Arguments
			}
		}
		row.argBuf.WriteString(argsFragment)

		justOpened := false
		if !row.started && row.name != "" {
			if t.active == blockText || t.active == blockTool {
				if err := t.emit(schema.NewContentBlockStopEvent(t.blockIdx)); err != nil {
					return err
				}
				t.blockIdx++
			}

			row.anthropicIndex = t.blockIdx
			row.started = true
			t.sawToolCalls = true
			t.active = blockTool

			id := row.id
			if id == "" {
				id = fmt.Sprintf("toolu_%d", t.nextToolSeq)
				t.nextToolSeq++
			}
			block, err := schema.FromToolUseBlock(schema.ToolUseBlock{
				ID:    id,
				Name:  row.name,
				Input: json.RawMessage("{}"),
			})
			if err != nil {
				return err
			}
			if err := t.emit(schema.NewContentBlockStartEvent(row.anthropicIndex, block)); err != nil {
				return err
			}
			justOpened = true
		}

		if !row.started {
			continue // arguments buffered ahead of the name; replayed once the block opens
		}

		var payload string
		if justOpened {
			payload = row.argBuf.String()
			row.argBuf.Reset()
		} else {
			payload = argsFragment
		}
		if payload == "" {
			continue
		}
		delta := schema.FromInputJSONDelta(schema.InputJSONDelta{PartialJSON: payload})
		if err := t.emit(schema.NewContentBlockDeltaEvent(row.anthropicIndex, delta)); err != nil {
			return err
		}
	}
	return nil
}

// finalize closes any open block, emits the terminal message_delta and
// message_stop, and marks the transducer stopped. finishReason is the
// upstream's own finish_reason string, or "" when synthesizing a
// finalization for a stream that ended without one.
func (t *Transducer) finalize(finishReason string) error {
	if t.stopped {
		return nil
	}

	if t.active == blockText || t.active == blockTool {
		if err := t.emit(schema.NewContentBlockStopEvent(t.blockIdx)); err != nil {
			return err
		}
	}

	var stopReason schema.StopReason
	switch {
	case finishReason == "length":
		stopReason = schema.StopReasonMaxTokens
	case t.sawToolCalls:
		stopReason = schema.StopReasonToolUse
	default:
		stopReason = schema.StopReasonEndTurn
	}

	if err := t.emit(schema.NewMessageDeltaEvent(stopReason, t.lastUsage)); err != nil {
		return err
	}
	if err := t.emit(schema.NewMessageStopEvent()); err != nil {
		return err
	}

	t.stopped = true
	return nil
}
