// Package transform implements the pure request and non-streaming response
// transformers between the Anthropic and OpenAI-compatible wire shapes,
// grounded on the teacher's anthropicclaude/messages.go and generation.go
// (same bucketing/parameter-copy technique, reversed direction).
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

// maxUpstreamTokens is the hard ceiling the request transformer clamps
// max_tokens to, regardless of what the client requested.
const maxUpstreamTokens = 8192

// Request converts a validated Anthropic request into the flat OpenAI
// request sent upstream. model is the configured upstream model name; the
// incoming Anthropic model is never forwarded (per design, upstream
// providers do not understand Anthropic model names).
func Request(req *schema.Request, model string) (*schema.ChatCompletionRequest, error) {
	out := &schema.ChatCompletionRequest{
		Model: model,
	}

	systemText, err := req.SystemText()
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}
	if systemText != "" {
		content := schema.ChatMessageContentFromString(systemText)
		out.Messages = append(out.Messages, schema.ChatMessage{
			Role:    schema.ChatRoleSystem,
			Content: &content,
		})
	}

	for i, msg := range req.Messages {
		transformed, err := transformMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("messages.%d: %w", i, err)
		}
		out.Messages = append(out.Messages, transformed...)
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]schema.ChatTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, schema.ChatTool{
				Type: "function",
				Function: schema.FunctionDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
		choice := toolChoice(req.ToolChoice)
		out.ToolChoice = &choice
	}

	if req.Temperature != nil {
		out.Temperature = req.Temperature
	}
	if req.TopP != nil {
		out.TopP = req.TopP
	}

	maxTokens := req.MaxTokens
	if maxTokens > maxUpstreamTokens {
		maxTokens = maxUpstreamTokens
	}
	out.MaxTokens = &maxTokens

	if len(req.StopSequences) == 1 {
		stop := schema.StopFieldFromString(req.StopSequences[0])
		out.Stop = &stop
	} else if len(req.StopSequences) > 1 {
		stop := schema.StopFieldFromSlice(req.StopSequences)
		out.Stop = &stop
	}

	out.Stream = req.Stream

	if req.Metadata != nil && req.Metadata.UserID != "" {
		out.User = req.Metadata.UserID
	}

	return out, nil
}

// toolChoice maps the Anthropic tool_choice onto its OpenAI-compatible
// equivalent, defaulting to "auto" per §4.2.3 when the client did not
// specify one.
func toolChoice(tc *schema.ToolChoice) schema.ToolChoiceField {
	if tc == nil {
		return schema.ToolChoiceFromString("auto")
	}
	switch tc.Type {
	case schema.ToolChoiceTypeAny:
		return schema.ToolChoiceFromString("required")
	case schema.ToolChoiceTypeNone:
		return schema.ToolChoiceFromString("none")
	case schema.ToolChoiceTypeTool:
		return schema.ToolChoiceFromFunctionName(tc.Name)
	default:
		return schema.ToolChoiceFromString("auto")
	}
}

// HasCacheControl reports whether any cache-control annotation is present in
// the request, governing whether the egress call carries the
// anthropic-beta: prompt-caching-2024-07-31 header.
func HasCacheControl(req *schema.Request) bool {
	if blocks, err := req.System.AsBlocks(); err == nil {
		for _, b := range blocks {
			if b.CacheControl != nil {
				return true
			}
		}
	}
	for _, msg := range req.Messages {
		blocks, err := msg.Content.AsBlocks()
		if err != nil {
			continue
		}
		for _, block := range blocks {
			kind, err := block.Discriminator()
			if err != nil || kind != schema.ContentBlockTypeText {
				continue
			}
			tb, err := block.AsTextBlock()
			if err == nil && tb.CacheControl != nil {
				return true
			}
		}
	}
	return false
}

// transformMessage converts one Anthropic message into zero or more OpenAI
// messages: string content maps 1:1; block content is partitioned into a
// text/image bucket (rendered on the original message), a tool_use bucket
// (becomes tool_calls on the original message), and a tool_result bucket
// (each becomes its own separate "tool" message).
func transformMessage(msg schema.Message) ([]schema.ChatMessage, error) {
	role := schema.ChatRole(msg.Role)

	if msg.Content.IsString() {
		text, err := msg.Content.AsString()
		if err != nil {
			return nil, fmt.Errorf("content: %w", err)
		}
		content := schema.ChatMessageContentFromString(text)
		return []schema.ChatMessage{{Role: role, Content: &content}}, nil
	}

	blocks, err := msg.Content.AsBlocks()
	if err != nil {
		return nil, fmt.Errorf("content: must be a string or a content block sequence: %w", err)
	}

	var textAndImage []schema.ContentBlock
	var toolUse []schema.ToolUseBlock
	var toolResults []schema.ToolResultBlock

	for i, block := range blocks {
		kind, err := block.Discriminator()
		if err != nil {
			return nil, fmt.Errorf("content.%d: %w", i, err)
		}
		switch kind {
		case schema.ContentBlockTypeText, schema.ContentBlockTypeImage:
			textAndImage = append(textAndImage, block)
		case schema.ContentBlockTypeToolUse:
			tu, err := block.AsToolUseBlock()
			if err != nil {
				return nil, fmt.Errorf("content.%d: %w", i, err)
			}
			toolUse = append(toolUse, tu)
		case schema.ContentBlockTypeToolResult:
			tr, err := block.AsToolResultBlock()
			if err != nil {
				return nil, fmt.Errorf("content.%d: %w", i, err)
			}
			toolResults = append(toolResults, tr)
		case schema.ContentBlockTypeThinking:
			// Thinking blocks carry no OpenAI-side equivalent; dropped.
		default:
			return nil, fmt.Errorf("content.%d: unknown content block type %q", i, kind)
		}
	}

	var out []schema.ChatMessage

	primary := schema.ChatMessage{Role: role}
	if len(textAndImage) > 0 {
		content, err := renderTextAndImage(textAndImage)
		if err != nil {
			return nil, err
		}
		primary.Content = content
	}
	if len(toolUse) > 0 {
		primary.ToolCalls = make([]schema.ToolCall, 0, len(toolUse))
		for _, tu := range toolUse {
			primary.ToolCalls = append(primary.ToolCalls, schema.ToolCall{
				ID:   tu.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      tu.Name,
					Arguments: string(tu.Input),
				},
			})
		}
	}
	if primary.Content != nil || len(primary.ToolCalls) > 0 {
		out = append(out, primary)
	}

	for _, tr := range toolResults {
		content, err := renderToolResult(tr)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.ChatMessage{
			Role:       schema.ChatRoleTool,
			ToolCallID: tr.ToolUseID,
			Content:    content,
		})
	}

	return out, nil
}

// renderTextAndImage collapses a text/image block sequence into either a
// joined string (text-only) or a sequence of OpenAI content parts.
func renderTextAndImage(blocks []schema.ContentBlock) (*schema.ChatMessageContent, error) {
	onlyText := true
	for _, block := range blocks {
		if kind, err := block.Discriminator(); err == nil && kind != schema.ContentBlockTypeText {
			onlyText = false
			break
		}
	}

	if onlyText {
		var lines []string
		for _, block := range blocks {
			tb, err := block.AsTextBlock()
			if err != nil {
				return nil, fmt.Errorf("text block: %w", err)
			}
			lines = append(lines, tb.Text)
		}
		joined := strings.TrimSpace(strings.Join(lines, "\n"))
		content := schema.ChatMessageContentFromString(joined)
		return &content, nil
	}

	parts := make([]schema.ChatContentPart, 0, len(blocks))
	for _, block := range blocks {
		kind, err := block.Discriminator()
		if err != nil {
			return nil, err
		}
		switch kind {
		case schema.ContentBlockTypeText:
			tb, err := block.AsTextBlock()
			if err != nil {
				return nil, fmt.Errorf("text block: %w", err)
			}
			parts = append(parts, schema.FromChatTextPart(schema.ChatTextPart{Text: tb.Text}))
		case schema.ContentBlockTypeImage:
			ib, err := block.AsImageBlock()
			if err != nil {
				return nil, fmt.Errorf("image block: %w", err)
			}
			dataURL := fmt.Sprintf("data:%s;base64,%s", ib.Source.MediaType, ib.Source.Data)
			parts = append(parts, schema.FromChatImagePart(schema.ChatImagePart{
				ImageURL: schema.ChatImageURL{URL: dataURL},
			}))
		}
	}
	content := schema.ChatMessageContentFromParts(parts)
	return &content, nil
}

// renderToolResult renders a tool_result block's content into the string
// body of the corresponding OpenAI tool message.
func renderToolResult(tr schema.ToolResultBlock) (*schema.ChatMessageContent, error) {
	if tr.Content.IsString() {
		text, err := tr.Content.AsString()
		if err != nil {
			return nil, fmt.Errorf("tool_result content: %w", err)
		}
		content := schema.ChatMessageContentFromString(text)
		return &content, nil
	}

	encoded, err := json.Marshal(tr.Content)
	if err != nil {
		return nil, fmt.Errorf("tool_result content: %w", err)
	}
	content := schema.ChatMessageContentFromString(string(encoded))
	return &content, nil
}
