// Package schema declares the wire contracts this gateway translates between:
// the Anthropic Messages request/response/event shapes on ingress, and the
// OpenAI Chat Completions request/response/chunk shapes on egress.
//
// Fields that are one of several shapes on the wire (Anthropic content
// blocks, message content that is either a string or a block sequence,
// OpenAI tool-choice, and so on) are modeled as closed tagged unions rather
// than reshaped dynamically: each union type carries its raw JSON and
// exposes a Discriminator method plus one AsXxx/FromXxx pair per variant, so
// every call site switches over a named, exhaustively-checked type instead
// of probing an untyped value.
package schema
