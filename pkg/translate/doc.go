// Package translate converts chat-completion requests and streaming
// responses between wire formats.
//
// The package maintains two directed tables keyed by (source, target)
// format: one for request bodies and one for streaming response chunks.
// OpenAI Chat Completions acts as the hub format: when no direct edge is
// registered for a pair, the registry composes source->OpenAI->target.
// Direct edges exist only where hub traversal would lose information.
//
// Translators are pure: the same input body always yields the same
// output body. The only stateful pieces are the streaming translators,
// which carry per-request accumulation (assistant role emitted once,
// tool-call index assignment, argument fragments, usage totals) across
// chunks of a single response.
//
// Some upstream targets restrict tool identifiers. Request translators
// for those targets rewrite tool names and return a ToolNameMap so the
// response path can restore the originals.
package translate
