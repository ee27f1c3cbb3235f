package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// Provider dialect request shapes. These targets are only reached from
// the OpenAI hub.

// KiroRequest is the AWS CodeWhisperer generateAssistantResponse
// request.
type KiroRequest struct {
	ProfileArn        string                `json:"profileArn,omitempty"`
	ConversationState KiroConversationState `json:"conversationState"`
}

// KiroConversationState carries the current message plus the folded
// conversation history.
type KiroConversationState struct {
	ChatTriggerType string        `json:"chatTriggerType"`
	ConversationID  string        `json:"conversationId"`
	CurrentMessage  KiroMessage   `json:"currentMessage"`
	History         []KiroMessage `json:"history,omitempty"`
}

// KiroMessage is either a user input message or an assistant response
// message.
type KiroMessage struct {
	UserInputMessage         *KiroUserInput         `json:"userInputMessage,omitempty"`
	AssistantResponseMessage *KiroAssistantResponse `json:"assistantResponseMessage,omitempty"`
}

// KiroUserInput is the user side of a CodeWhisperer turn.
type KiroUserInput struct {
	Content string           `json:"content"`
	ModelID string           `json:"modelId,omitempty"`
	Origin  string           `json:"origin,omitempty"`
	Context *KiroUserContext `json:"userInputMessageContext,omitempty"`
}

// KiroUserContext carries tool specifications and tool results.
type KiroUserContext struct {
	Tools       []KiroTool       `json:"tools,omitempty"`
	ToolResults []KiroToolResult `json:"toolResults,omitempty"`
}

// KiroTool wraps a tool specification.
type KiroTool struct {
	ToolSpecification KiroToolSpec `json:"toolSpecification"`
}

// KiroToolSpec declares one tool.
type KiroToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema KiroToolSchema `json:"inputSchema"`
}

// KiroToolSchema nests the JSON Schema under a "json" key.
type KiroToolSchema struct {
	JSON map[string]interface{} `json:"json"`
}

// KiroToolResult answers a prior tool use.
type KiroToolResult struct {
	ToolUseID string                   `json:"toolUseId"`
	Status    string                   `json:"status"`
	Content   []map[string]interface{} `json:"content"`
}

// KiroAssistantResponse is the assistant side of a turn.
type KiroAssistantResponse struct {
	Content  string        `json:"content"`
	ToolUses []KiroToolUse `json:"toolUses,omitempty"`
}

// KiroToolUse is a tool invocation recorded in history.
type KiroToolUse struct {
	ToolUseID string                 `json:"toolUseId"`
	Name      string                 `json:"name"`
	Input     map[string]interface{} `json:"input,omitempty"`
}

// openAIToKiroRequest folds an OpenAI conversation into the
// CodeWhisperer conversation-state shape: the last user turn becomes
// the current message, every earlier turn lands in history, and the
// system prompt is prepended to the first user content.
func openAIToKiroRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in OpenAIRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse openai request: %w", err)
	}

	var tools []KiroTool
	for _, tool := range in.Tools {
		schema := tool.Function.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		tools = append(tools, KiroTool{ToolSpecification: KiroToolSpec{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: KiroToolSchema{JSON: schema},
		}})
	}

	var system string
	var turns []KiroMessage
	var pendingResults []KiroToolResult

	flushUser := func(content string) {
		input := &KiroUserInput{
			Content: content,
			ModelID: req.Model,
			Origin:  "AI_EDITOR",
		}
		if len(pendingResults) > 0 {
			input.Context = &KiroUserContext{ToolResults: pendingResults}
			pendingResults = nil
		}
		turns = append(turns, KiroMessage{UserInputMessage: input})
	}

	for _, msg := range in.Messages {
		switch msg.Role {
		case "system", "developer":
			system += contentToText(msg.Content)
		case "user":
			flushUser(contentToText(msg.Content))
		case "tool":
			pendingResults = append(pendingResults, KiroToolResult{
				ToolUseID: msg.ToolCallID,
				Status:    "success",
				Content:   []map[string]interface{}{{"text": contentToText(msg.Content)}},
			})
		case "assistant":
			resp := &KiroAssistantResponse{Content: contentToText(msg.Content)}
			for _, call := range msg.ToolCalls {
				input := map[string]interface{}{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
						input = map[string]interface{}{"raw": call.Function.Arguments}
					}
				}
				resp.ToolUses = append(resp.ToolUses, KiroToolUse{
					ToolUseID: call.ID,
					Name:      call.Function.Name,
					Input:     input,
				})
			}
			turns = append(turns, KiroMessage{AssistantResponseMessage: resp})
		}
	}
	// Tool results with no following user turn still have to ride on a
	// user input message.
	if len(pendingResults) > 0 {
		flushUser("")
	}
	if len(turns) == 0 || turns[len(turns)-1].UserInputMessage == nil {
		flushUser("")
	}

	current := turns[len(turns)-1]
	history := turns[:len(turns)-1]

	if system != "" {
		// CodeWhisperer has no system field; prepend to the first user
		// content in the conversation.
		first := current.UserInputMessage
		for _, turn := range history {
			if turn.UserInputMessage != nil {
				first = turn.UserInputMessage
				break
			}
		}
		first.Content = system + "\n\n" + first.Content
	}
	if len(tools) > 0 {
		if current.UserInputMessage.Context == nil {
			current.UserInputMessage.Context = &KiroUserContext{}
		}
		current.UserInputMessage.Context.Tools = tools
	}

	out := KiroRequest{
		ProfileArn: req.Credentials.ProfileArn,
		ConversationState: KiroConversationState{
			ChatTriggerType: "MANUAL",
			ConversationID:  uuid.NewString(),
			CurrentMessage:  current,
			History:         history,
		},
	}
	raw, err := json.Marshal(out)
	return raw, nil, err
}

// openAIToCopilotRequest keeps the OpenAI body shape and strips the
// fields the Copilot endpoint rejects.
func openAIToCopilotRequest(req *Request) ([]byte, ToolNameMap, error) {
	return stripOpenAIFields(req, "stream_options", "user")
}

// openAIToQwenRequest keeps the OpenAI body shape; Qwen rejects the
// penalty knobs and stream options.
func openAIToQwenRequest(req *Request) ([]byte, ToolNameMap, error) {
	return stripOpenAIFields(req, "stream_options", "presence_penalty", "frequency_penalty")
}

// openAIToIFlowRequest keeps the OpenAI body shape minus stream
// options.
func openAIToIFlowRequest(req *Request) ([]byte, ToolNameMap, error) {
	return stripOpenAIFields(req, "stream_options")
}

// stripOpenAIFields rewrites the model and stream flag and deletes the
// listed top-level fields, leaving the rest of the body untouched.
func stripOpenAIFields(req *Request, fields ...string) ([]byte, ToolNameMap, error) {
	body := req.Body
	var err error
	if body, err = sjson.SetBytes(body, "model", req.Model); err != nil {
		return nil, nil, fmt.Errorf("set model: %w", err)
	}
	if body, err = sjson.SetBytes(body, "stream", req.Stream); err != nil {
		return nil, nil, fmt.Errorf("set stream: %w", err)
	}
	for _, field := range fields {
		if body, err = sjson.DeleteBytes(body, field); err != nil {
			return nil, nil, fmt.Errorf("delete %s: %w", field, err)
		}
	}
	return body, nil, nil
}

// openAIToAntigravityRequest wraps a translated Gemini body in the
// Gemini-CLI envelope with the connection's cloud project.
func openAIToAntigravityRequest(req *Request) ([]byte, ToolNameMap, error) {
	geminiBody, names, err := openAIToGeminiRequest(req)
	if err != nil {
		return nil, nil, err
	}

	envelope := map[string]interface{}{
		"model":   req.Model,
		"request": json.RawMessage(geminiBody),
	}
	if req.Credentials.ProjectID != "" {
		envelope["project"] = req.Credentials.ProjectID
	}
	if req.Stream {
		envelope["user_prompt_id"] = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	raw, err := json.Marshal(envelope)
	return raw, names, err
}
