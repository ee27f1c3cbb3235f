// Package executor performs the upstream provider calls. Each provider
// is a strategy value implementing Executor: it builds the provider's
// URL and headers, transforms the outgoing body where the provider
// needs it, issues the HTTP request, and knows how to refresh the
// provider's OAuth credentials.
//
// A registry keyed by provider id dispatches requests. Providers the
// registry does not know are treated as user-added OpenAI- or
// Anthropic-compatible nodes and served by a default executor
// parameterized with the connection's base URL and api type.
//
// The Kiro executor is special: AWS CodeWhisperer answers with binary
// EventStream frames, which the executor converts into OpenAI-style SSE
// chunks before they reach the stream pipeline.
package executor
