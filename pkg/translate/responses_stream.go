package translate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Responses streaming event payloads. Only the fields the translators
// read are declared.

type responsesStreamEvent struct {
	Type     string             `json:"type"`
	Delta    string             `json:"delta"`
	Item     *ResponsesItem     `json:"item,omitempty"`
	Response *ResponsesResponse `json:"response,omitempty"`

	OutputIndex int `json:"output_index"`
}

// responsesToOpenAIStream converts Responses events into Chat
// Completions chunks.
type responsesToOpenAIStream struct {
	model string
	names ToolNameMap

	id      string
	created int64

	roleEmitted bool
	// itemTools maps a Responses output index to the OpenAI tool call
	// index it was assigned.
	itemTools map[int]int
	nextTool  int

	finishEmitted bool
	usage         *OpenAIUsage
}

func newResponsesToOpenAIStream(model string, names ToolNameMap) StreamTranslator {
	return &responsesToOpenAIStream{
		model:     model,
		names:     names,
		id:        "chatcmpl-" + uuid.NewString(),
		created:   time.Now().Unix(),
		itemTools: map[int]int{},
	}
}

func (s *responsesToOpenAIStream) chunk(choices []OpenAIChunkChoice, usage *OpenAIUsage) Frame {
	data, _ := json.Marshal(OpenAIChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: choices,
		Usage:   usage,
	})
	return Frame{Data: data}
}

func (s *responsesToOpenAIStream) role() []Frame {
	if s.roleEmitted {
		return nil
	}
	s.roleEmitted = true
	return []Frame{s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{Role: "assistant"}}}, nil)}
}

func (s *responsesToOpenAIStream) Next(event string, payload []byte) ([]Frame, error) {
	var ev responsesStreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parse responses stream event: %w", err)
	}
	kind := ev.Type
	if kind == "" {
		kind = event
	}

	switch kind {
	case "response.created":
		return s.role(), nil

	case "response.output_item.added":
		if ev.Item == nil || ev.Item.Type != "function_call" {
			return s.role(), nil
		}
		frames := s.role()
		idx := s.nextTool
		s.nextTool++
		s.itemTools[ev.OutputIndex] = idx
		i := idx
		return append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{
			ToolCalls: []OpenAIToolCall{{
				Index: &i,
				ID:    ev.Item.CallID,
				Type:  "function",
				Function: OpenAIFunctionCall{
					Name: s.names.Restore(ev.Item.Name),
				},
			}},
		}}}, nil)), nil

	case "response.output_text.delta":
		if ev.Delta == "" {
			return nil, nil
		}
		frames := s.role()
		return append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{Content: ev.Delta}}}, nil)), nil

	case "response.function_call_arguments.delta":
		idx, ok := s.itemTools[ev.OutputIndex]
		if !ok {
			return nil, nil
		}
		i := idx
		return []Frame{s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{
			ToolCalls: []OpenAIToolCall{{
				Index:    &i,
				Function: OpenAIFunctionCall{Arguments: ev.Delta},
			}},
		}}}, nil)}, nil

	case "response.completed":
		if ev.Response != nil && ev.Response.Usage != nil {
			s.usage = &OpenAIUsage{
				PromptTokens:     ev.Response.Usage.InputTokens,
				CompletionTokens: ev.Response.Usage.OutputTokens,
				TotalTokens:      ev.Response.Usage.TotalTokens,
			}
		}
		return s.emitFinish(), nil
	}

	return nil, nil
}

func (s *responsesToOpenAIStream) emitFinish() []Frame {
	if s.finishEmitted {
		return nil
	}
	s.finishEmitted = true
	finish := "stop"
	if s.nextTool > 0 {
		finish = "tool_calls"
	}
	frames := []Frame{s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{}, FinishReason: &finish}}, nil)}
	if s.usage != nil {
		frames = append(frames, s.chunk([]OpenAIChunkChoice{}, s.usage))
	}
	return frames
}

func (s *responsesToOpenAIStream) Finish() []Frame {
	frames := s.emitFinish()
	return append(frames, Frame{Data: []byte("[DONE]")})
}

func (s *responsesToOpenAIStream) Usage() *OpenAIUsage {
	return s.usage
}

// openAIToResponsesStream converts Chat Completions chunks into
// Responses events.
type openAIToResponsesStream struct {
	model string
	names ToolNameMap

	id      string
	started bool

	textOpen  bool
	nextItem  int
	textItem  int
	textSoFar string

	// toolItems maps an OpenAI tool call index to its Responses output
	// index; openItem is the item awaiting output_item.done, -1 if none.
	toolItems map[int]int
	toolCalls map[int]*pendingCall
	toolIDs   map[int]string
	openItem  int

	finishReason string
	usage        *OpenAIUsage
	done         bool
}

func newOpenAIToResponsesStream(model string, names ToolNameMap) StreamTranslator {
	return &openAIToResponsesStream{
		model:     model,
		names:     names,
		id:        "resp_" + uuid.NewString(),
		toolItems: map[int]int{},
		toolCalls: map[int]*pendingCall{},
		toolIDs:   map[int]string{},
		openItem:  -1,
	}
}

func responsesFrame(event string, payload interface{}) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Event: event, Data: data}
}

func (s *openAIToResponsesStream) start() []Frame {
	if s.started {
		return nil
	}
	s.started = true
	return []Frame{responsesFrame("response.created", map[string]interface{}{
		"type": "response.created",
		"response": map[string]interface{}{
			"id":         s.id,
			"object":     "response",
			"created_at": time.Now().Unix(),
			"status":     "in_progress",
			"model":      s.model,
			"output":     []interface{}{},
		},
	})}
}

func (s *openAIToResponsesStream) closeItem() []Frame {
	if s.openItem < 0 {
		return nil
	}
	idx := s.openItem
	s.openItem = -1
	if s.textOpen && idx == s.textItem {
		s.textOpen = false
		return []Frame{responsesFrame("response.output_item.done", map[string]interface{}{
			"type":         "response.output_item.done",
			"output_index": idx,
			"item": map[string]interface{}{
				"type":   "message",
				"role":   "assistant",
				"status": "completed",
				"content": []interface{}{
					map[string]interface{}{"type": "output_text", "text": s.textSoFar},
				},
			},
		})}
	}
	for toolIdx, item := range s.toolItems {
		if item != idx {
			continue
		}
		call := s.toolCalls[toolIdx]
		return []Frame{responsesFrame("response.output_item.done", map[string]interface{}{
			"type":         "response.output_item.done",
			"output_index": idx,
			"item": map[string]interface{}{
				"type":      "function_call",
				"id":        "fc_" + uuid.NewString(),
				"call_id":   s.toolIDs[toolIdx],
				"name":      s.names.Restore(call.name),
				"arguments": call.args,
				"status":    "completed",
			},
		})}
	}
	return nil
}

func (s *openAIToResponsesStream) Next(event string, payload []byte) ([]Frame, error) {
	if string(payload) == "[DONE]" {
		return nil, nil
	}
	var chunk OpenAIChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("parse openai chunk: %w", err)
	}

	frames := s.start()
	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return frames, nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if !s.textOpen {
			frames = append(frames, s.closeItem()...)
			s.textOpen = true
			s.textItem = s.nextItem
			s.nextItem++
			s.openItem = s.textItem
			frames = append(frames, responsesFrame("response.output_item.added", map[string]interface{}{
				"type":         "response.output_item.added",
				"output_index": s.textItem,
				"item": map[string]interface{}{
					"type":    "message",
					"role":    "assistant",
					"status":  "in_progress",
					"content": []interface{}{},
				},
			}))
		}
		s.textSoFar += choice.Delta.Content
		frames = append(frames, responsesFrame("response.output_text.delta", map[string]interface{}{
			"type":         "response.output_text.delta",
			"output_index": s.textItem,
			"delta":        choice.Delta.Content,
		}))
	}

	for _, call := range choice.Delta.ToolCalls {
		idx := 0
		if call.Index != nil {
			idx = *call.Index
		}
		if call.ID != "" || call.Function.Name != "" {
			frames = append(frames, s.closeItem()...)
			item := s.nextItem
			s.nextItem++
			s.openItem = item
			s.toolItems[idx] = item
			s.toolCalls[idx] = &pendingCall{name: call.Function.Name}
			id := call.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			s.toolIDs[idx] = id
			frames = append(frames, responsesFrame("response.output_item.added", map[string]interface{}{
				"type":         "response.output_item.added",
				"output_index": item,
				"item": map[string]interface{}{
					"type":      "function_call",
					"call_id":   id,
					"name":      s.names.Restore(call.Function.Name),
					"arguments": "",
					"status":    "in_progress",
				},
			}))
		}
		if call.Function.Arguments != "" {
			item, ok := s.toolItems[idx]
			if !ok {
				continue
			}
			s.toolCalls[idx].args += call.Function.Arguments
			frames = append(frames, responsesFrame("response.function_call_arguments.delta", map[string]interface{}{
				"type":         "response.function_call_arguments.delta",
				"output_index": item,
				"delta":        call.Function.Arguments,
			}))
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finishReason = *choice.FinishReason
	}
	return frames, nil
}

func (s *openAIToResponsesStream) Finish() []Frame {
	if s.done {
		return nil
	}
	s.done = true
	frames := s.start()
	frames = append(frames, s.closeItem()...)

	response := map[string]interface{}{
		"id":         s.id,
		"object":     "response",
		"created_at": time.Now().Unix(),
		"status":     "completed",
		"model":      s.model,
	}
	if s.usage != nil {
		response["usage"] = ResponsesUsage{
			InputTokens:  s.usage.PromptTokens,
			OutputTokens: s.usage.CompletionTokens,
			TotalTokens:  s.usage.TotalTokens,
		}
	}
	frames = append(frames, responsesFrame("response.completed", map[string]interface{}{
		"type":     "response.completed",
		"response": response,
	}))
	return frames
}

func (s *openAIToResponsesStream) Usage() *OpenAIUsage {
	return s.usage
}
