// Package upstream implements the egress HTTP client that sends the
// transformed OpenAI-compatible request to the configured chat-completions
// endpoint, grounded on the teacher's proxy.DefaultTransport and its
// per-request transport-injection pattern in anthropicclaude/chat_completion.go.
package upstream
