package translate

import "encoding/json"

// OpenAIRequest is the OpenAI Chat Completions request shape. It is the
// hub representation every other format translates through.
type OpenAIRequest struct {
	Model            string          `json:"model"`
	Messages         []OpenAIMessage `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	StreamOptions    *StreamOptions  `json:"stream_options,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	Tools            []OpenAITool    `json:"tools,omitempty"`
	ToolChoice       interface{}     `json:"tool_choice,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	User             string          `json:"user,omitempty"`
}

// StreamOptions controls streaming extras in the OpenAI format.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// OpenAIMessage is a single conversation turn. Content is either a
// string or an array of content parts (multimodal requests).
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    interface{}      `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// OpenAIToolCall is a tool invocation requested by the model.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
	// Index is only present in streaming deltas.
	Index *int `json:"index,omitempty"`
}

// OpenAIFunctionCall carries the function name and JSON-encoded
// arguments of a tool call.
type OpenAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// OpenAITool is a tool definition offered to the model.
type OpenAITool struct {
	Type     string               `json:"type"`
	Function OpenAIFunctionSchema `json:"function"`
}

// OpenAIFunctionSchema defines a callable function.
type OpenAIFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// OpenAIResponse is the non-streaming Chat Completions response.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   *OpenAIUsage   `json:"usage,omitempty"`
}

// OpenAIChoice is one completion choice of a response.
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIChunk is one streaming chunk of a Chat Completions response.
type OpenAIChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []OpenAIChunkChoice `json:"choices"`
	Usage   *OpenAIUsage        `json:"usage,omitempty"`
}

// OpenAIChunkChoice is one choice within a streaming chunk.
type OpenAIChunkChoice struct {
	Index        int         `json:"index"`
	Delta        OpenAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// OpenAIDelta is the incremental payload of a streaming chunk.
type OpenAIDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIUsage carries OpenAI-shaped token counts.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`

	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

// ToolNameMap maps a rewritten upstream tool name back to the name the
// client originally supplied. It is request-scoped and never persisted.
type ToolNameMap map[string]string

// Restore returns the client-facing name for an upstream tool name, or
// the name unchanged when no mapping was recorded.
func (m ToolNameMap) Restore(name string) string {
	if m == nil {
		return name
	}
	if original, ok := m[name]; ok {
		return original
	}
	return name
}

// Credentials is the slice of connection state translators may need:
// dialect targets embed provider-specific identifiers into the request.
type Credentials struct {
	// AuthType is "apikey" or "oauth".
	AuthType string

	// ProfileArn is the CodeWhisperer profile (Kiro requests).
	ProfileArn string

	// ProjectID is the cloud project (Antigravity requests).
	ProjectID string
}

// contentToText flattens OpenAI message content into plain text. Parts
// without a textual representation are inlined as placeholders rather
// than dropped.
func contentToText(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var out string
		for _, part := range v {
			m, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			switch m["type"] {
			case "text", "input_text", "output_text":
				if s, ok := m["text"].(string); ok {
					out += s
				}
			case "image_url", "image":
				out += "[image omitted]"
			default:
				if s, ok := m["text"].(string); ok {
					out += s
				}
			}
		}
		return out
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
