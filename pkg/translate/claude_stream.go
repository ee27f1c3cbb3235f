package translate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Anthropic streaming event payloads. Only the fields the translators
// read are declared.

type claudeStreamEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message *struct {
		ID    string      `json:"id"`
		Model string      `json:"model"`
		Usage ClaudeUsage `json:"usage"`
	} `json:"message,omitempty"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *ClaudeUsage `json:"usage,omitempty"`
}

// claudeToOpenAIStream converts Anthropic Messages events into Chat
// Completions chunks.
type claudeToOpenAIStream struct {
	model string
	names ToolNameMap

	id      string
	created int64

	// blockTools maps an Anthropic content block index to the OpenAI
	// tool call index it was assigned.
	blockTools map[int]int
	nextTool   int

	finishReason   string
	finishEmitted  bool
	usage          OpenAIUsage
	sawUpstreamUse bool
}

func newClaudeToOpenAIStream(model string, names ToolNameMap) StreamTranslator {
	return &claudeToOpenAIStream{
		model:      model,
		names:      names,
		id:         "chatcmpl-" + uuid.NewString(),
		created:    time.Now().Unix(),
		blockTools: map[int]int{},
	}
}

func (s *claudeToOpenAIStream) chunk(choice OpenAIChunkChoice) Frame {
	data, _ := json.Marshal(OpenAIChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []OpenAIChunkChoice{choice},
	})
	return Frame{Data: data}
}

func (s *claudeToOpenAIStream) Next(event string, payload []byte) ([]Frame, error) {
	var ev claudeStreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parse claude stream event: %w", err)
	}
	kind := ev.Type
	if kind == "" {
		kind = event
	}

	switch kind {
	case "message_start":
		if ev.Message != nil {
			s.usage.PromptTokens = ev.Message.Usage.InputTokens
			s.sawUpstreamUse = true
		}
		return []Frame{s.chunk(OpenAIChunkChoice{Delta: OpenAIDelta{Role: "assistant"}})}, nil

	case "content_block_start":
		if ev.ContentBlock == nil || ev.ContentBlock.Type != "tool_use" {
			return nil, nil
		}
		idx := s.nextTool
		s.nextTool++
		s.blockTools[ev.Index] = idx
		i := idx
		return []Frame{s.chunk(OpenAIChunkChoice{Delta: OpenAIDelta{
			ToolCalls: []OpenAIToolCall{{
				Index: &i,
				ID:    ev.ContentBlock.ID,
				Type:  "function",
				Function: OpenAIFunctionCall{
					Name: s.names.Restore(ev.ContentBlock.Name),
				},
			}},
		}})}, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return nil, nil
			}
			return []Frame{s.chunk(OpenAIChunkChoice{Delta: OpenAIDelta{Content: ev.Delta.Text}})}, nil
		case "input_json_delta":
			idx, ok := s.blockTools[ev.Index]
			if !ok {
				return nil, nil
			}
			i := idx
			return []Frame{s.chunk(OpenAIChunkChoice{Delta: OpenAIDelta{
				ToolCalls: []OpenAIToolCall{{
					Index:    &i,
					Function: OpenAIFunctionCall{Arguments: ev.Delta.PartialJSON},
				}},
			}})}, nil
		}
		return nil, nil

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			s.finishReason = openAIFinishReason(ev.Delta.StopReason)
		}
		if ev.Usage != nil {
			s.usage.CompletionTokens = ev.Usage.OutputTokens
			s.sawUpstreamUse = true
		}
		return nil, nil

	case "message_stop":
		return s.emitFinish(), nil
	}

	// ping and unknown event types carry nothing downstream.
	return nil, nil
}

func (s *claudeToOpenAIStream) emitFinish() []Frame {
	if s.finishEmitted {
		return nil
	}
	s.finishEmitted = true
	finish := s.finishReason
	if finish == "" {
		finish = "stop"
	}
	frames := []Frame{s.chunk(OpenAIChunkChoice{Delta: OpenAIDelta{}, FinishReason: &finish})}
	if s.sawUpstreamUse {
		s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens
		data, _ := json.Marshal(OpenAIChunk{
			ID:      s.id,
			Object:  "chat.completion.chunk",
			Created: s.created,
			Model:   s.model,
			Choices: []OpenAIChunkChoice{},
			Usage:   &s.usage,
		})
		frames = append(frames, Frame{Data: data})
	}
	return frames
}

func (s *claudeToOpenAIStream) Finish() []Frame {
	frames := s.emitFinish()
	return append(frames, Frame{Data: []byte("[DONE]")})
}

func (s *claudeToOpenAIStream) Usage() *OpenAIUsage {
	if !s.sawUpstreamUse {
		return nil
	}
	u := s.usage
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return &u
}

// openAIToClaudeStream converts Chat Completions chunks into Anthropic
// Messages events. Content blocks are opened lazily and closed when the
// delta switches between text and tool calls.
type openAIToClaudeStream struct {
	model string
	names ToolNameMap

	id      string
	started bool

	blockOpen bool
	blockIdx  int
	// toolBlocks maps an OpenAI tool call index to its Anthropic
	// content block index; -1 marks the open text block.
	toolBlocks  map[int]int
	currentTool int

	finishReason string
	usage        OpenAIUsage
	sawUsage     bool
	done         bool
}

func newOpenAIToClaudeStream(model string, names ToolNameMap) StreamTranslator {
	return &openAIToClaudeStream{
		model:       model,
		names:       names,
		id:          "msg_" + uuid.NewString(),
		blockIdx:    -1,
		toolBlocks:  map[int]int{},
		currentTool: -1,
	}
}

func claudeFrame(event string, payload interface{}) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Event: event, Data: data}
}

func (s *openAIToClaudeStream) start() []Frame {
	if s.started {
		return nil
	}
	s.started = true
	return []Frame{claudeFrame("message_start", map[string]interface{}{
		"type": "message_start",
		"message": map[string]interface{}{
			"id":            s.id,
			"type":          "message",
			"role":          "assistant",
			"model":         s.model,
			"content":       []interface{}{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 0, "output_tokens": 0},
		},
	})}
}

func (s *openAIToClaudeStream) closeBlock() []Frame {
	if !s.blockOpen {
		return nil
	}
	s.blockOpen = false
	return []Frame{claudeFrame("content_block_stop", map[string]interface{}{
		"type":  "content_block_stop",
		"index": s.blockIdx,
	})}
}

func (s *openAIToClaudeStream) openTextBlock() []Frame {
	if s.blockOpen && s.currentTool == -1 {
		return nil
	}
	frames := s.closeBlock()
	s.blockIdx++
	s.blockOpen = true
	s.currentTool = -1
	return append(frames, claudeFrame("content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         s.blockIdx,
		"content_block": map[string]interface{}{"type": "text", "text": ""},
	}))
}

func (s *openAIToClaudeStream) Next(event string, payload []byte) ([]Frame, error) {
	if string(payload) == "[DONE]" {
		return nil, nil
	}
	var chunk OpenAIChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("parse openai chunk: %w", err)
	}

	frames := s.start()
	if chunk.Usage != nil {
		s.usage = *chunk.Usage
		s.sawUsage = true
	}
	if len(chunk.Choices) == 0 {
		return frames, nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		frames = append(frames, s.openTextBlock()...)
		frames = append(frames, claudeFrame("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": s.blockIdx,
			"delta": map[string]interface{}{"type": "text_delta", "text": choice.Delta.Content},
		}))
	}

	for _, call := range choice.Delta.ToolCalls {
		idx := 0
		if call.Index != nil {
			idx = *call.Index
		}
		if call.ID != "" || call.Function.Name != "" {
			// A new tool call begins.
			frames = append(frames, s.closeBlock()...)
			s.blockIdx++
			s.blockOpen = true
			s.currentTool = idx
			s.toolBlocks[idx] = s.blockIdx
			id := call.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			frames = append(frames, claudeFrame("content_block_start", map[string]interface{}{
				"type":  "content_block_start",
				"index": s.blockIdx,
				"content_block": map[string]interface{}{
					"type":  "tool_use",
					"id":    id,
					"name":  s.names.Restore(call.Function.Name),
					"input": map[string]interface{}{},
				},
			}))
		}
		if call.Function.Arguments != "" {
			block, ok := s.toolBlocks[idx]
			if !ok {
				continue
			}
			frames = append(frames, claudeFrame("content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": block,
				"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": call.Function.Arguments},
			}))
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finishReason = *choice.FinishReason
	}
	return frames, nil
}

func (s *openAIToClaudeStream) Finish() []Frame {
	if s.done {
		return nil
	}
	s.done = true
	frames := s.start()
	frames = append(frames, s.closeBlock()...)

	finish := s.finishReason
	if finish == "" {
		finish = "stop"
	}
	frames = append(frames, claudeFrame("message_delta", map[string]interface{}{
		"type": "message_delta",
		"delta": map[string]interface{}{
			"stop_reason":   claudeStopReason(finish),
			"stop_sequence": nil,
		},
		"usage": map[string]int{"output_tokens": s.usage.CompletionTokens},
	}))
	frames = append(frames, claudeFrame("message_stop", map[string]interface{}{
		"type": "message_stop",
	}))
	return frames
}

func (s *openAIToClaudeStream) Usage() *OpenAIUsage {
	if !s.sawUsage {
		return nil
	}
	u := s.usage
	return &u
}
