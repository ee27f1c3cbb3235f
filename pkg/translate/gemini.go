package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Google Gemini generateContent request/response types.

// GeminiRequest is the generateContent request shape.
type GeminiRequest struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	Tools             []GeminiToolGroup `json:"tools,omitempty"`
	ToolConfig        *GeminiToolConfig `json:"toolConfig,omitempty"`
	GenerationConfig  *GeminiGenConfig  `json:"generationConfig,omitempty"`
}

// GeminiContent is one conversation turn composed of parts.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single content part: text, a function call, or a
// function response.
type GeminiPart struct {
	Text             string                  `json:"text,omitempty"`
	Thought          bool                    `json:"thought,omitempty"`
	FunctionCall     *GeminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResponse `json:"functionResponse,omitempty"`
}

// GeminiFunctionCall is a model-issued tool invocation.
type GeminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// GeminiFunctionResponse answers a prior function call. Gemini pairs by
// name, not id.
type GeminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// GeminiToolGroup wraps function declarations.
type GeminiToolGroup struct {
	FunctionDeclarations []GeminiFunctionDecl `json:"functionDeclarations,omitempty"`
}

// GeminiFunctionDecl declares one callable function.
type GeminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// GeminiToolConfig controls function calling mode.
type GeminiToolConfig struct {
	FunctionCallingConfig *GeminiFunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

// GeminiFunctionCallingConfig selects AUTO/ANY/NONE plus an optional
// allow-list.
type GeminiFunctionCallingConfig struct {
	Mode                 string   `json:"mode,omitempty"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GeminiGenConfig maps onto OpenAI sampling parameters.
type GeminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GeminiResponse is the non-streaming generateContent response. The
// streaming chunks share the same shape.
type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates,omitempty"`
	UsageMetadata *GeminiUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
}

// GeminiCandidate is one generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

// GeminiUsage carries Gemini-shaped token counts.
type GeminiUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
}

// geminiToOpenAIRequest converts a generateContent request to the
// OpenAI hub shape. Gemini pairs function responses to calls by name;
// synthetic call ids are generated and paired through a per-request
// name map, so tool-call ids are reassigned but pairing is preserved.
func geminiToOpenAIRequest(req *Request) ([]byte, ToolNameMap, error) {
	in, err := parseGeminiRequest(req.Body)
	if err != nil {
		return nil, nil, err
	}

	out := OpenAIRequest{Model: req.Model, Stream: req.Stream}
	if gc := in.GenerationConfig; gc != nil {
		out.Temperature = gc.Temperature
		out.TopP = gc.TopP
		out.MaxTokens = gc.MaxOutputTokens
		out.Stop = gc.StopSequences
	}

	if in.SystemInstruction != nil {
		if text := geminiPartsText(in.SystemInstruction.Parts); text != "" {
			out.Messages = append(out.Messages, OpenAIMessage{Role: "system", Content: text})
		}
	}

	callIDs := map[string]string{} // function name -> last issued call id
	seq := 0
	for _, content := range in.Contents {
		role := "user"
		if content.Role == "model" {
			role = "assistant"
		}

		var text strings.Builder
		var toolCalls []OpenAIToolCall
		var toolMsgs []OpenAIMessage

		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				seq++
				id := fmt.Sprintf("call_%04d_%s", seq, part.FunctionCall.Name)
				callIDs[part.FunctionCall.Name] = id
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, nil, fmt.Errorf("marshal function args: %w", err)
				}
				toolCalls = append(toolCalls, OpenAIToolCall{
					ID:   id,
					Type: "function",
					Function: OpenAIFunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					},
				})
			case part.FunctionResponse != nil:
				result, err := json.Marshal(part.FunctionResponse.Response)
				if err != nil {
					return nil, nil, fmt.Errorf("marshal function response: %w", err)
				}
				toolMsgs = append(toolMsgs, OpenAIMessage{
					Role:       "tool",
					ToolCallID: callIDs[part.FunctionResponse.Name],
					Content:    string(result),
				})
			case part.Thought:
				// Thought parts have no hub representation.
			default:
				text.WriteString(part.Text)
			}
		}

		if text.Len() > 0 || len(toolCalls) > 0 {
			out.Messages = append(out.Messages, OpenAIMessage{
				Role:      role,
				Content:   text.String(),
				ToolCalls: toolCalls,
			})
		}
		out.Messages = append(out.Messages, toolMsgs...)
	}

	for _, group := range in.Tools {
		for _, decl := range group.FunctionDeclarations {
			out.Tools = append(out.Tools, OpenAITool{
				Type: "function",
				Function: OpenAIFunctionSchema{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  decl.Parameters,
				},
			})
		}
	}

	raw, err := json.Marshal(out)
	return raw, nil, err
}

// parseGeminiRequest accepts both the bare generateContent body and the
// CLI envelope that nests it under "request".
func parseGeminiRequest(body []byte) (*GeminiRequest, error) {
	var in GeminiRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse gemini request: %w", err)
	}
	if len(in.Contents) > 0 {
		return &in, nil
	}

	var envelope struct {
		Request *GeminiRequest `json:"request"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Request != nil && len(envelope.Request.Contents) > 0 {
		return envelope.Request, nil
	}
	return &in, nil
}

// openAIToGeminiRequest converts an OpenAI hub request to
// generateContent. Tool parameter schemas are rewritten to the subset
// Gemini accepts.
func openAIToGeminiRequest(req *Request) ([]byte, ToolNameMap, error) {
	var in OpenAIRequest
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, nil, fmt.Errorf("parse openai request: %w", err)
	}

	out := GeminiRequest{}
	if in.Temperature != nil || in.TopP != nil || in.MaxTokens != nil || len(in.Stop) > 0 {
		out.GenerationConfig = &GeminiGenConfig{
			Temperature:     in.Temperature,
			TopP:            in.TopP,
			MaxOutputTokens: in.MaxTokens,
			StopSequences:   in.Stop,
		}
	}

	callNames := map[string]string{} // tool call id -> function name
	for _, msg := range in.Messages {
		switch msg.Role {
		case "system", "developer":
			text := contentToText(msg.Content)
			if out.SystemInstruction == nil {
				out.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: text}}}
			} else {
				out.SystemInstruction.Parts = append(out.SystemInstruction.Parts, GeminiPart{Text: text})
			}
		case "assistant":
			content := GeminiContent{Role: "model"}
			if text := contentToText(msg.Content); text != "" {
				content.Parts = append(content.Parts, GeminiPart{Text: text})
			}
			for _, call := range msg.ToolCalls {
				callNames[call.ID] = call.Function.Name
				args := map[string]interface{}{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
						args = map[string]interface{}{"raw": call.Function.Arguments}
					}
				}
				content.Parts = append(content.Parts, GeminiPart{
					FunctionCall: &GeminiFunctionCall{Name: call.Function.Name, Args: args},
				})
			}
			if len(content.Parts) > 0 {
				out.Contents = append(out.Contents, content)
			}
		case "tool":
			name := callNames[msg.ToolCallID]
			response := map[string]interface{}{}
			text := contentToText(msg.Content)
			if err := json.Unmarshal([]byte(text), &response); err != nil {
				response = map[string]interface{}{"result": text}
			}
			out.Contents = append(out.Contents, GeminiContent{
				Role: "user",
				Parts: []GeminiPart{{
					FunctionResponse: &GeminiFunctionResponse{Name: name, Response: response},
				}},
			})
		default:
			out.Contents = append(out.Contents, GeminiContent{
				Role:  "user",
				Parts: []GeminiPart{{Text: contentToText(msg.Content)}},
			})
		}
	}

	if len(in.Tools) > 0 {
		group := GeminiToolGroup{}
		for _, tool := range in.Tools {
			group.FunctionDeclarations = append(group.FunctionDeclarations, GeminiFunctionDecl{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  SanitizeSchema(tool.Function.Parameters),
			})
		}
		out.Tools = []GeminiToolGroup{group}
	}

	if in.ToolChoice != nil {
		out.ToolConfig = openAIToolChoiceToGemini(in.ToolChoice)
	}

	raw, err := json.Marshal(out)
	return raw, nil, err
}

func openAIToolChoiceToGemini(choice interface{}) *GeminiToolConfig {
	cfg := &GeminiFunctionCallingConfig{Mode: "AUTO"}
	switch v := choice.(type) {
	case string:
		switch v {
		case "none":
			cfg.Mode = "NONE"
		case "required":
			cfg.Mode = "ANY"
		}
	case map[string]interface{}:
		if fn, ok := v["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok {
				cfg.Mode = "ANY"
				cfg.AllowedFunctionNames = []string{name}
			}
		}
	}
	return &GeminiToolConfig{FunctionCallingConfig: cfg}
}

func geminiPartsText(parts []GeminiPart) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// geminiFinishReason maps Gemini finish reasons onto OpenAI values and
// back.
func geminiFinishReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT":
		return "content_filter"
	}
	return "stop"
}

func geminiReasonFromOpenAI(finish string) string {
	switch finish {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	}
	return "STOP"
}

// geminiToOpenAIResponse converts a complete generateContent response
// to a Chat Completions response.
func geminiToOpenAIResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in GeminiResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	msg := OpenAIMessage{Role: "assistant"}
	finish := "stop"
	if len(in.Candidates) > 0 {
		cand := in.Candidates[0]
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, fmt.Errorf("marshal function args: %w", err)
				}
				msg.ToolCalls = append(msg.ToolCalls, OpenAIToolCall{
					ID:   "call_" + uuid.NewString(),
					Type: "function",
					Function: OpenAIFunctionCall{
						Name:      names.Restore(part.FunctionCall.Name),
						Arguments: string(args),
					},
				})
			case part.Thought:
				// No hub representation.
			default:
				text.WriteString(part.Text)
			}
		}
		msg.Content = text.String()
		finish = geminiFinishReason(cand.FinishReason, len(msg.ToolCalls) > 0)
	}

	out := OpenAIResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   in.ModelVersion,
		Choices: []OpenAIChoice{{Index: 0, Message: msg, FinishReason: finish}},
	}
	if u := in.UsageMetadata; u != nil {
		out.Usage = openAIUsageFromGemini(u)
	}
	return json.Marshal(out)
}

// openAIToGeminiResponse converts a complete Chat Completions response
// to a generateContent response.
func openAIToGeminiResponse(body []byte, names ToolNameMap) ([]byte, error) {
	var in OpenAIResponse
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}
	if len(in.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := in.Choices[0]

	content := GeminiContent{Role: "model"}
	if text := contentToText(choice.Message.Content); text != "" {
		content.Parts = append(content.Parts, GeminiPart{Text: text})
	}
	for _, call := range choice.Message.ToolCalls {
		args := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{"raw": call.Function.Arguments}
			}
		}
		content.Parts = append(content.Parts, GeminiPart{
			FunctionCall: &GeminiFunctionCall{Name: names.Restore(call.Function.Name), Args: args},
		})
	}

	out := GeminiResponse{
		Candidates: []GeminiCandidate{{
			Content:      content,
			FinishReason: geminiReasonFromOpenAI(choice.FinishReason),
		}},
		ModelVersion: in.Model,
	}
	if in.Usage != nil {
		out.UsageMetadata = &GeminiUsage{
			PromptTokenCount:     in.Usage.PromptTokens,
			CandidatesTokenCount: in.Usage.CompletionTokens,
			TotalTokenCount:      in.Usage.TotalTokens,
		}
	}
	return json.Marshal(out)
}

// openAIUsageFromGemini maps Gemini usage metadata to the OpenAI shape.
func openAIUsageFromGemini(u *GeminiUsage) *OpenAIUsage {
	out := &OpenAIUsage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
	if u.CachedContentTokenCount > 0 {
		out.PromptTokensDetails = &struct {
			CachedTokens int `json:"cached_tokens"`
		}{CachedTokens: u.CachedContentTokenCount}
	}
	if u.ThoughtsTokenCount > 0 {
		out.CompletionTokensDetails = &struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		}{ReasoningTokens: u.ThoughtsTokenCount}
	}
	return out
}
