// Package validate implements ingress validation of Anthropic Messages API
// requests, grounded on the teacher's Config.Validate (internal/app) use of
// go-playground/validator/v10 struct tags, extended with hand-written checks
// for the union-shaped fields struct tags cannot express.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/nilsharvey/anthrogate/internal/apierror"
	"github.com/nilsharvey/anthrogate/internal/schema"
)

var structValidator = validator.New()

// errRemoteImageSource marks an image block whose source is not base64 —
// not a defined ingress shape, reported to the client as InvalidImageSource
// rather than a generic validation failure.
var errRemoteImageSource = errors.New("only base64 image sources are accepted on ingress")

// Request decodes and totally validates an incoming Anthropic request body.
// On any failure it returns a structured invalid_request_error naming the
// first offending path; it never partially accepts a request.
func Request(body []byte) (*schema.Request, *apierror.Error) {
	var req schema.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apierror.InvalidRequest(fmt.Sprintf("invalid JSON: %v", err), "")
	}

	if err := structValidator.Struct(&req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return nil, apierror.InvalidRequest(fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()), fieldPath(fe.Namespace()))
		}
		return nil, apierror.InvalidRequest(err.Error(), "")
	}

	if param, err := validateMessages(req.Messages); err != nil {
		if errors.Is(err, errRemoteImageSource) {
			return nil, apierror.InvalidImageSource()
		}
		return nil, apierror.InvalidRequest(err.Error(), param)
	}

	if _, err := req.SystemText(); err != nil {
		return nil, apierror.InvalidRequest(err.Error(), "system")
	}

	return &req, nil
}

// fieldPath strips the root struct name from a validator namespace, e.g.
// "Request.Tools[0].Name" becomes "Tools[0].Name". Go field names and
// bracketed indices are kept as they are; they are not rewritten to the
// JSON names and dotted indices used by the hand-written checks below.
func fieldPath(namespace string) string {
	// The namespace is prefixed with the (unexported) root struct name; the
	// exact root name is not meaningful to a client, so it's dropped.
	for i, r := range namespace {
		if r == '.' {
			return namespace[i+1:]
		}
	}
	return namespace
}

func validateMessages(messages []schema.Message) (param string, err error) {
	for i, msg := range messages {
		if msg.Role != schema.RoleUser && msg.Role != schema.RoleAssistant {
			return fmt.Sprintf("messages.%d.role", i), fmt.Errorf("messages.%d.role: must be user or assistant", i)
		}

		if msg.Content.IsString() {
			continue
		}
		blocks, blockErr := msg.Content.AsBlocks()
		if blockErr != nil {
			return fmt.Sprintf("messages.%d.content", i), fmt.Errorf("messages.%d.content: must be a string or a content block sequence", i)
		}
		for j, block := range blocks {
			if param, err := validateContentBlock(i, j, block); err != nil {
				return param, err
			}
		}
	}
	return "", nil
}

func validateContentBlock(msgIndex, blockIndex int, block schema.ContentBlock) (param string, err error) {
	path := fmt.Sprintf("messages.%d.content.%d", msgIndex, blockIndex)

	kind, discErr := block.Discriminator()
	if discErr != nil {
		return path + ".type", fmt.Errorf("%s.type: missing or invalid content block type", path)
	}

	switch kind {
	case schema.ContentBlockTypeText:
		v, convErr := block.AsTextBlock()
		if convErr != nil {
			return path, fmt.Errorf("%s: malformed text block", path)
		}
		if err := validateCacheControl(v.CacheControl); err != nil {
			return path + ".cache_control", fmt.Errorf("%s.cache_control: %w", path, err)
		}
	case schema.ContentBlockTypeImage:
		v, convErr := block.AsImageBlock()
		if convErr != nil {
			return path, fmt.Errorf("%s: malformed image block", path)
		}
		if v.Source.Type != "base64" {
			return path + ".source.type", fmt.Errorf("%s.source.type: %w", path, errRemoteImageSource)
		}
		if v.Source.MediaType == "" || v.Source.Data == "" {
			return path + ".source", fmt.Errorf("%s.source: media_type and data are required", path)
		}
	case schema.ContentBlockTypeToolUse:
		v, convErr := block.AsToolUseBlock()
		if convErr != nil {
			return path, fmt.Errorf("%s: malformed tool_use block", path)
		}
		if v.ID == "" || v.Name == "" {
			return path, fmt.Errorf("%s: tool_use requires id and name", path)
		}
	case schema.ContentBlockTypeToolResult:
		v, convErr := block.AsToolResultBlock()
		if convErr != nil {
			return path, fmt.Errorf("%s: malformed tool_result block", path)
		}
		if v.ToolUseID == "" {
			return path + ".tool_use_id", fmt.Errorf("%s.tool_use_id: required", path)
		}
	case schema.ContentBlockTypeThinking:
		if _, convErr := block.AsThinkingBlock(); convErr != nil {
			return path, fmt.Errorf("%s: malformed thinking block", path)
		}
	default:
		return path + ".type", fmt.Errorf("%s.type: unknown content block type %q", path, kind)
	}

	return "", nil
}

func validateCacheControl(cc *schema.CacheControl) error {
	if cc == nil || cc.TTL == nil {
		return nil
	}
	if *cc.TTL < 60 || *cc.TTL > 3600 {
		return fmt.Errorf("ttl must be in [60, 3600] seconds, got %d", *cc.TTL)
	}
	return nil
}
