package transform

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nilsharvey/anthrogate/internal/apierror"
	"github.com/nilsharvey/anthrogate/internal/schema"
)

// finishReasonToStopReason maps OpenAI's finish_reason values onto the
// Anthropic stop_reason taxonomy. Unrecognized values fall back to
// end_turn, matching the teacher's tolerant mapping-table style elsewhere.
var finishReasonToStopReason = map[string]schema.StopReason{
	"stop":           schema.StopReasonEndTurn,
	"length":         schema.StopReasonMaxTokens,
	"tool_calls":     schema.StopReasonToolUse,
	"function_call":  schema.StopReasonToolUse,
	"content_filter": schema.StopReasonEndTurn,
}

// Response converts a non-streaming OpenAI-compatible reply into an
// Anthropic Messages API response. Per §4.3, the upstream's own model name
// is echoed back verbatim; fallbackModel (the configured upstream model) is
// used only if the upstream response omitted it.
func Response(resp *schema.ChatCompletionResponse, fallbackModel string) (*schema.Response, *apierror.Error) {
	if len(resp.Choices) == 0 {
		return nil, apierror.MalformedUpstream(fmt.Errorf("response has no choices"))
	}
	choice := resp.Choices[0]

	var blocks []schema.ContentBlock

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		tb, err := schema.FromTextBlock(schema.TextBlock{Text: *choice.Message.Content})
		if err != nil {
			return nil, apierror.Internal(err)
		}
		blocks = append(blocks, tb)
	}

	for _, tc := range choice.Message.ToolCalls {
		var args json.RawMessage
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, apierror.MalformedToolArguments(fmt.Errorf("tool call %s: %w", tc.ID, err))
		}
		tu, err := schema.FromToolUseBlock(schema.ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: args,
		})
		if err != nil {
			return nil, apierror.Internal(err)
		}
		blocks = append(blocks, tu)
	}

	if len(blocks) == 0 {
		tb, err := schema.FromTextBlock(schema.TextBlock{Text: ""})
		if err != nil {
			return nil, apierror.Internal(err)
		}
		blocks = append(blocks, tb)
	}

	stopReason, ok := finishReasonToStopReason[choice.FinishReason]
	if !ok {
		stopReason = schema.StopReasonEndTurn
	}

	id := resp.ID
	if id == "" {
		id = "msg_" + uuid.NewString()
	}

	model := resp.Model
	if model == "" {
		model = fallbackModel
	}

	return &schema.Response{
		ID:         id,
		Type:       "message",
		Role:       schema.RoleAssistant,
		Model:      model,
		Content:    blocks,
		StopReason: stopReason,
		Usage: schema.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
