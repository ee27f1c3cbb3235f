package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenAI Responses request/response types. Input items are polymorphic,
// so the item struct is a union of the message, function_call and
// function_call_output shapes.

// ResponsesRequest is the /v1/responses request shape.
type ResponsesRequest struct {
	Model              string          `json:"model"`
	Input              interface{}     `json:"input,omitempty"`
	Instructions       string          `json:"instructions,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Tools              []ResponsesTool `json:"tools,omitempty"`
	ToolChoice         interface{}     `json:"tool_choice,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
}

// ResponsesItem is one input or output item.
type ResponsesItem struct {
	Type    string      `json:"type,omitempty"`
	Role    string      `json:"role,omitempty"`
	Content interface{} `json:"content,omitempty"`

	// function_call fields
	ID        string `json:"id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output fields
	Output string `json:"output,omitempty"`

	// message output fields
	Status string `json:"status,omitempty"`
}

// ResponsesTool is a flat tool definition (the Responses API does not
// nest the function under a "function" key).
type ResponsesTool struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ResponsesResponse is the non-streaming /v1/responses response.
type ResponsesResponse struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	CreatedAt int64           `json:"created_at"`
	Status    string          `json:"status"`
	Model     string          `json:"model"`
	Output    []ResponsesItem `json:"output"`
	Usage     *ResponsesUsage `json:"usage,omitempty"`
}

// ResponsesUsage carries Responses-shaped token counts.
type ResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// responsesToOpenAIRequest converts a Responses request to the OpenAI
// hub shape.
func responsesToOpenAIRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in ResponsesRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse responses request: %w", err)
	}

	out := OpenAIRequest{
		Model:       req.Model,
		Temperature: in.Temperature,
		TopP:        in.TopP,
		MaxTokens:   in.MaxOutputTokens,
		Stream:      req.Stream,
	}

	if in.Instructions != "" {
		out.Messages = append(out.Messages, OpenAIMessage{Role: "system", Content: in.Instructions})
	}

	switch input := in.Input.(type) {
	case string:
		out.Messages = append(out.Messages, OpenAIMessage{Role: "user", Content: input})
	case []interface{}:
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal responses input: %w", err)
		}
		var items []ResponsesItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("parse responses input items: %w", err)
		}
		for _, item := range items {
			out.Messages = append(out.Messages, responsesItemToMessages(item)...)
		}
	}

	for _, tool := range in.Tools {
		if tool.Type != "function" {
			continue
		}
		out.Tools = append(out.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIFunctionSchema{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	out.ToolChoice = in.ToolChoice

	raw, err := json.Marshal(out)
	return raw, nil, err
}

func responsesItemToMessages(item ResponsesItem) []OpenAIMessage {
	switch item.Type {
	case "function_call":
		return []OpenAIMessage{{
			Role: "assistant",
			ToolCalls: []OpenAIToolCall{{
				ID:       item.CallID,
				Type:     "function",
				Function: OpenAIFunctionCall{Name: item.Name, Arguments: item.Arguments},
			}},
		}}
	case "function_call_output":
		return []OpenAIMessage{{
			Role:       "tool",
			ToolCallID: item.CallID,
			Content:    item.Output,
		}}
	default:
		// A message item; role defaults to user.
		role := item.Role
		if role == "" {
			role = "user"
		}
		return []OpenAIMessage{{Role: role, Content: contentToText(item.Content)}}
	}
}

// openAIToResponsesRequest converts an OpenAI hub request to the
// Responses shape.
func openAIToResponsesRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in OpenAIRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse openai request: %w", err)
	}

	out := ResponsesRequest{
		Model:           req.Model,
		Temperature:     in.Temperature,
		TopP:            in.TopP,
		MaxOutputTokens: in.MaxTokens,
		Stream:          req.Stream,
	}

	var items []ResponsesItem
	var instructions strings.Builder
	for _, msg := range in.Messages {
		switch msg.Role {
		case "system", "developer":
			instructions.WriteString(contentToText(msg.Content))
		case "assistant":
			if text := contentToText(msg.Content); text != "" {
				items = append(items, ResponsesItem{
					Type: "message",
					Role: "assistant",
					Content: []map[string]interface{}{
						{"type": "output_text", "text": text},
					},
				})
			}
			for _, call := range msg.ToolCalls {
				items = append(items, ResponsesItem{
					Type:      "function_call",
					CallID:    call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
		case "tool":
			items = append(items, ResponsesItem{
				Type:   "function_call_output",
				CallID: msg.ToolCallID,
				Output: contentToText(msg.Content),
			})
		default:
			items = append(items, ResponsesItem{
				Type: "message",
				Role: "user",
				Content: []map[string]interface{}{
					{"type": "input_text", "text": contentToText(msg.Content)},
				},
			})
		}
	}
	out.Instructions = instructions.String()
	out.Input = items

	for _, tool := range in.Tools {
		out.Tools = append(out.Tools, ResponsesTool{
			Type:        "function",
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	out.ToolChoice = in.ToolChoice

	raw, err := json.Marshal(out)
	return raw, nil, err
}

// responsesToOpenAIResponse converts a complete Responses response to a
// Chat Completions response.
func responsesToOpenAIResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in ResponsesResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse responses response: %w", err)
	}

	msg := OpenAIMessage{Role: "assistant"}
	var text strings.Builder
	for _, item := range in.Output {
		switch item.Type {
		case "message":
			text.WriteString(contentToText(item.Content))
		case "function_call":
			msg.ToolCalls = append(msg.ToolCalls, OpenAIToolCall{
				ID:       item.CallID,
				Type:     "function",
				Function: OpenAIFunctionCall{Name: names.Restore(item.Name), Arguments: item.Arguments},
			})
		}
	}
	msg.Content = text.String()

	finish := "stop"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}

	out := OpenAIResponse{
		ID:      "chatcmpl-" + strings.TrimPrefix(in.ID, "resp_"),
		Object:  "chat.completion",
		Created: in.CreatedAt,
		Model:   in.Model,
		Choices: []OpenAIChoice{{Index: 0, Message: msg, FinishReason: finish}},
	}
	if in.Usage != nil {
		out.Usage = &OpenAIUsage{
			PromptTokens:     in.Usage.InputTokens,
			CompletionTokens: in.Usage.OutputTokens,
			TotalTokens:      in.Usage.TotalTokens,
		}
	}
	return json.Marshal(out)
}

// openAIToResponsesResponse converts a complete Chat Completions
// response to a Responses response.
func openAIToResponsesResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in OpenAIResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}
	if len(in.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := in.Choices[0]

	var output []ResponsesItem
	if text := contentToText(choice.Message.Content); text != "" {
		output = append(output, ResponsesItem{
			Type:   "message",
			Role:   "assistant",
			Status: "completed",
			Content: []map[string]interface{}{
				{"type": "output_text", "text": text},
			},
		})
	}
	for _, call := range choice.Message.ToolCalls {
		output = append(output, ResponsesItem{
			Type:      "function_call",
			ID:        "fc_" + uuid.NewString(),
			CallID:    call.ID,
			Name:      names.Restore(call.Function.Name),
			Arguments: call.Function.Arguments,
			Status:    "completed",
		})
	}

	out := ResponsesResponse{
		ID:        "resp_" + uuid.NewString(),
		Object:    "response",
		CreatedAt: time.Now().Unix(),
		Status:    "completed",
		Model:     in.Model,
		Output:    output,
	}
	if in.Usage != nil {
		out.Usage = &ResponsesUsage{
			InputTokens:  in.Usage.PromptTokens,
			OutputTokens: in.Usage.CompletionTokens,
			TotalTokens:  in.Usage.TotalTokens,
		}
	}
	return json.Marshal(out)
}
