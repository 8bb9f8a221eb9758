// Package transducer implements the stateful OpenAI-chunk-to-Anthropic-event
// streaming transformer: the core of the gateway. It is grounded on the
// block-index-tracking, tool-call-accumulator style found across the
// retrieval pack's openai-to-anthropic stream adaptors (most directly
// tingly-dev/tingly-box's pkg/adaptor stream_openai_to_anthropic.go), with
// the dynamic map[string]interface{} event payloads there replaced by this
// repository's tagged schema types, per the union discipline in
// internal/schema.
package transducer
