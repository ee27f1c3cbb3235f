package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Anthropic Messages request/response types.

// ClaudeRequest is the Anthropic Messages request shape.
type ClaudeRequest struct {
	Model         string          `json:"model"`
	Messages      []ClaudeMessage `json:"messages"`
	System        interface{}     `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []ClaudeTool    `json:"tools,omitempty"`
	ToolChoice    interface{}     `json:"tool_choice,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
}

// ClaudeMessage is one turn; Content is a string or []ClaudeBlock.
type ClaudeMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ClaudeBlock is a typed content block.
type ClaudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use fields
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result fields
	ToolUseID string      `json:"tool_use_id,omitempty"`
	Content   interface{} `json:"content,omitempty"`
	IsError   bool        `json:"is_error,omitempty"`
}

// ClaudeTool is an Anthropic tool definition.
type ClaudeTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ClaudeResponse is the non-streaming Messages response.
type ClaudeResponse struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         string        `json:"role"`
	Model        string        `json:"model"`
	Content      []ClaudeBlock `json:"content"`
	StopReason   string        `json:"stop_reason"`
	StopSequence string        `json:"stop_sequence,omitempty"`
	Usage        ClaudeUsage   `json:"usage"`
}

// ClaudeUsage carries Anthropic-shaped token counts.
type ClaudeUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

const claudeDefaultMaxTokens = 4096

// claudeToOpenAIRequest converts an Anthropic Messages request into the
// OpenAI hub shape.
func claudeToOpenAIRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in ClaudeRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse claude request: %w", err)
	}

	out := OpenAIRequest{
		Model:       req.Model,
		Temperature: in.Temperature,
		TopP:        in.TopP,
		Stream:      req.Stream,
		Stop:        in.StopSequences,
	}
	if in.MaxTokens > 0 {
		mt := in.MaxTokens
		out.MaxTokens = &mt
	}

	if system := claudeSystemText(in.System); system != "" {
		out.Messages = append(out.Messages, OpenAIMessage{Role: "system", Content: system})
	}

	for _, msg := range in.Messages {
		converted, err := claudeMessageToOpenAI(msg)
		if err != nil {
			return nil, nil, err
		}
		out.Messages = append(out.Messages, converted...)
	}

	for _, tool := range in.Tools {
		out.Tools = append(out.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIFunctionSchema{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	if in.ToolChoice != nil {
		out.ToolChoice = claudeToolChoiceToOpenAI(in.ToolChoice)
	}

	raw, err := json.Marshal(out)
	return raw, nil, err
}

// claudeMessageToOpenAI expands one Anthropic message into one or more
// OpenAI messages: tool_result blocks become standalone tool messages.
func claudeMessageToOpenAI(msg ClaudeMessage) ([]OpenAIMessage, error) {
	if text, ok := msg.Content.(string); ok {
		return []OpenAIMessage{{Role: msg.Role, Content: text}}, nil
	}

	raw, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal claude content: %w", err)
	}
	var blocks []ClaudeBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("parse claude content blocks: %w", err)
	}

	var out []OpenAIMessage
	var text strings.Builder
	var toolCalls []OpenAIToolCall

	for _, block := range blocks {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "image":
			text.WriteString("[image omitted]")
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("marshal tool input: %w", err)
			}
			toolCalls = append(toolCalls, OpenAIToolCall{
				ID:   block.ID,
				Type: "function",
				Function: OpenAIFunctionCall{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		case "tool_result":
			out = append(out, OpenAIMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    claudeResultText(block.Content),
			})
		}
	}

	if text.Len() > 0 || len(toolCalls) > 0 {
		// Tool results answer the preceding assistant turn, so they stay
		// ahead of any new user text in the expansion.
		out = append(out, OpenAIMessage{Role: msg.Role, Content: text.String(), ToolCalls: toolCalls})
	}
	if len(out) == 0 {
		out = append(out, OpenAIMessage{Role: msg.Role, Content: ""})
	}
	return out, nil
}

// claudeSystemText flattens the Anthropic system field (string or block
// list) to plain text.
func claudeSystemText(system interface{}) string {
	switch v := system.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if s, ok := m["text"].(string); ok {
					b.WriteString(s)
				}
			}
		}
		return b.String()
	}
	return ""
}

// claudeResultText flattens a tool_result content value to text.
func claudeResultText(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return contentToText(content)
	}
}

func claudeToolChoiceToOpenAI(choice interface{}) interface{} {
	m, ok := choice.(map[string]interface{})
	if !ok {
		return nil
	}
	switch m["type"] {
	case "auto", "any":
		return "auto"
	case "none":
		return "none"
	case "tool":
		if name, ok := m["name"].(string); ok {
			return map[string]interface{}{
				"type":     "function",
				"function": map[string]interface{}{"name": name},
			}
		}
	}
	return nil
}

// openAIToClaudeRequest converts an OpenAI hub request into Anthropic
// Messages. When the connection authenticates with OAuth the upstream
// restricts tool identifiers, so names are rewritten and the map of
// rewrites is returned for the response path.
func openAIToClaudeRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in OpenAIRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse openai request: %w", err)
	}

	out := ClaudeRequest{
		Model:         req.Model,
		MaxTokens:     claudeDefaultMaxTokens,
		Temperature:   in.Temperature,
		TopP:          in.TopP,
		Stream:        req.Stream,
		StopSequences: in.Stop,
	}
	if in.MaxTokens != nil && *in.MaxTokens > 0 {
		out.MaxTokens = *in.MaxTokens
	}

	var names ToolNameMap
	rename := func(name string) string { return name }
	if req.Credentials.AuthType == "oauth" {
		names = make(ToolNameMap)
		rename = func(name string) string {
			safe := sanitizeToolName(name)
			if safe != name {
				names[safe] = name
			}
			return safe
		}
	}

	var system strings.Builder
	for _, msg := range in.Messages {
		switch msg.Role {
		case "system", "developer":
			system.WriteString(contentToText(msg.Content))
		case "tool":
			out.Messages = append(out.Messages, ClaudeMessage{
				Role: "user",
				Content: []ClaudeBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   contentToText(msg.Content),
				}},
			})
		case "assistant":
			blocks := make([]ClaudeBlock, 0, 1+len(msg.ToolCalls))
			if text := contentToText(msg.Content); text != "" {
				blocks = append(blocks, ClaudeBlock{Type: "text", Text: text})
			}
			for _, call := range msg.ToolCalls {
				input := map[string]interface{}{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
						input = map[string]interface{}{"raw": call.Function.Arguments}
					}
				}
				blocks = append(blocks, ClaudeBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  rename(call.Function.Name),
					Input: input,
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, ClaudeBlock{Type: "text", Text: ""})
			}
			out.Messages = append(out.Messages, ClaudeMessage{Role: "assistant", Content: blocks})
		default:
			out.Messages = append(out.Messages, ClaudeMessage{
				Role:    "user",
				Content: contentToText(msg.Content),
			})
		}
	}
	if system.Len() > 0 {
		out.System = system.String()
	}

	for _, tool := range in.Tools {
		schema := tool.Function.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out.Tools = append(out.Tools, ClaudeTool{
			Name:        rename(tool.Function.Name),
			Description: tool.Function.Description,
			InputSchema: schema,
		})
	}

	if in.ToolChoice != nil {
		out.ToolChoice = openAIToolChoiceToClaude(in.ToolChoice, rename)
	}

	if len(names) == 0 {
		names = nil
	}
	raw, err := json.Marshal(out)
	return raw, names, err
}

func openAIToolChoiceToClaude(choice interface{}, rename func(string) string) interface{} {
	switch v := choice.(type) {
	case string:
		switch v {
		case "auto":
			return map[string]interface{}{"type": "auto"}
		case "none":
			return nil
		case "required":
			return map[string]interface{}{"type": "any"}
		}
	case map[string]interface{}:
		if fn, ok := v["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok {
				return map[string]interface{}{"type": "tool", "name": rename(name)}
			}
		}
	}
	return nil
}

// sanitizeToolName rewrites a tool name to the restricted identifier
// set some OAuth upstreams accept: [A-Za-z0-9_-], at most 64 runes.
func sanitizeToolName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if safe == "" {
		safe = "tool"
	}
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return safe
}

// claudeStopReason maps OpenAI finish reasons onto Anthropic stop
// reasons and back.
func claudeStopReason(finish string) string {
	switch finish {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	}
	return "end_turn"
}

func openAIFinishReason(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	}
	return "stop"
}

// claudeToOpenAIResponse converts a complete Messages response to a
// Chat Completions response.
func claudeToOpenAIResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in ClaudeResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse claude response: %w", err)
	}

	msg := OpenAIMessage{Role: "assistant"}
	var text strings.Builder
	for _, block := range in.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("marshal tool input: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, OpenAIToolCall{
				ID:   block.ID,
				Type: "function",
				Function: OpenAIFunctionCall{
					Name:      names.Restore(block.Name),
					Arguments: string(args),
				},
			})
		}
	}
	msg.Content = text.String()

	out := OpenAIResponse{
		ID:      "chatcmpl-" + strings.TrimPrefix(in.ID, "msg_"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   in.Model,
		Choices: []OpenAIChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: openAIFinishReason(in.StopReason),
		}},
		Usage: &OpenAIUsage{
			PromptTokens:     in.Usage.InputTokens,
			CompletionTokens: in.Usage.OutputTokens,
			TotalTokens:      in.Usage.InputTokens + in.Usage.OutputTokens,
		},
	}
	return json.Marshal(out)
}

// openAIToClaudeResponse converts a complete Chat Completions response
// to a Messages response.
func openAIToClaudeResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in OpenAIResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}
	if len(in.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := in.Choices[0]

	var blocks []ClaudeBlock
	if text := contentToText(choice.Message.Content); text != "" {
		blocks = append(blocks, ClaudeBlock{Type: "text", Text: text})
	}
	for _, call := range choice.Message.ToolCalls {
		input := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				input = map[string]interface{}{"raw": call.Function.Arguments}
			}
		}
		blocks = append(blocks, ClaudeBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  names.Restore(call.Function.Name),
			Input: input,
		})
	}
	if blocks == nil {
		blocks = []ClaudeBlock{{Type: "text", Text: ""}}
	}

	out := ClaudeResponse{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      in.Model,
		Content:    blocks,
		StopReason: claudeStopReason(choice.FinishReason),
	}
	if in.Usage != nil {
		out.Usage = ClaudeUsage{
			InputTokens:  in.Usage.PromptTokens,
			OutputTokens: in.Usage.CompletionTokens,
		}
	}
	return json.Marshal(out)
}
