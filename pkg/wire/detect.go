package wire

import (
	"github.com/tidwall/gjson"
)

// DetectOptions carries request context that influences classification
// beyond the body itself.
type DetectOptions struct {
	// AnthropicVersionHeader is true when the request carried an
	// anthropic-version header.
	AnthropicVersionHeader bool
}

// Detect classifies a request body into one of the client-facing wire
// formats. Rules are evaluated in order:
//
//  1. An "input" array together with "instructions" or
//     "previous_response_id" is the OpenAI Responses format.
//  2. A "contents" array (top level or nested one level down) is Gemini.
//  3. A "messages" array with Anthropic markers (string or block-list
//     "system", the anthropic-version header, or tool_use/tool_result
//     content blocks) is Anthropic Messages.
//  4. Any other "messages" array is OpenAI Chat Completions.
//
// Ambiguous or unrecognized bodies default to OpenAI.
func Detect(body []byte, opts DetectOptions) Format {
	if !gjson.ValidBytes(body) {
		return FormatOpenAI
	}

	if gjson.GetBytes(body, "input").IsArray() {
		if gjson.GetBytes(body, "instructions").Exists() || gjson.GetBytes(body, "previous_response_id").Exists() {
			return FormatOpenAIResponses
		}
	}

	if hasContentsArray(body) {
		return FormatGemini
	}

	if gjson.GetBytes(body, "messages").IsArray() {
		if isClaudeBody(body, opts) {
			return FormatClaude
		}
		return FormatOpenAI
	}

	return FormatOpenAI
}

// hasContentsArray reports whether the body carries a Gemini "contents"
// array, either at the top level or nested one level down (the Gemini
// CLI wraps the generation request in a "request" envelope).
func hasContentsArray(body []byte) bool {
	if gjson.GetBytes(body, "contents").IsArray() {
		return true
	}
	nested := false
	gjson.ParseBytes(body).ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() && value.Get("contents").IsArray() {
			nested = true
			return false
		}
		return true
	})
	return nested
}

// isClaudeBody reports whether a messages-style body is Anthropic
// Messages rather than OpenAI Chat Completions.
func isClaudeBody(body []byte, opts DetectOptions) bool {
	if opts.AnthropicVersionHeader {
		return true
	}

	// Anthropic "system" is a top-level string or list of blocks;
	// OpenAI carries the system prompt as a message.
	system := gjson.GetBytes(body, "system")
	if system.Type == gjson.String || system.IsArray() {
		return true
	}

	// Anthropic content blocks use tool_use / tool_result types.
	found := false
	gjson.GetBytes(body, "messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		if !content.IsArray() {
			return true
		}
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "tool_use", "tool_result":
				found = true
				return false
			}
			return true
		})
		return !found
	})
	return found
}

// StreamRequested reports whether the body asks for a streaming
// response. OpenAI, Anthropic and Responses carry a boolean "stream"
// flag; Gemini signals streaming through the URL, so the caller decides
// for that format and this returns false.
func StreamRequested(format Format, body []byte) bool {
	switch format {
	case FormatOpenAI, FormatClaude, FormatOpenAIResponses:
		return gjson.GetBytes(body, "stream").Bool()
	default:
		return false
	}
}
