// Package wire enumerates the request/response wire formats the gateway
// speaks and classifies incoming request bodies.
//
// A wire format describes the JSON shape a client or provider expects:
// the request schema, the streaming event schema, the error schema, and
// the names of the usage fields. The gateway accepts four client-facing
// formats (OpenAI Chat Completions, Anthropic Messages, Google Gemini,
// OpenAI Responses) and additionally targets several provider dialects
// (Kiro, Copilot, Antigravity, Qwen, iFlow) on the upstream side.
//
// Detection is deterministic and side-effect-free: the same body and
// headers always classify to the same format, and ambiguous bodies
// default to OpenAI Chat Completions.
package wire
