package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"helios-hq/helios/pkg/translate"
)

// Collect reads an OpenAI-shaped chunk stream to completion and folds
// it into one non-streaming response. It serves clients that asked for
// a plain answer from a provider that only streams.
func Collect(upstream io.Reader) (*translate.OpenAIResponse, error) {
	reader := NewReader(upstream)

	resp := &translate.OpenAIResponse{
		Object: "chat.completion",
	}
	var content string
	var role string
	var finish string
	tools := map[int]*translate.OpenAIToolCall{}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk stream: %w", err)
		}
		if string(event.Data) == "[DONE]" {
			break
		}

		var chunk translate.OpenAIChunk
		if err := json.Unmarshal(event.Data, &chunk); err != nil {
			// Non-chunk noise between frames is skipped.
			continue
		}

		if chunk.ID != "" {
			resp.ID = chunk.ID
		}
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.Created != 0 {
			resp.Created = chunk.Created
		}
		if chunk.Usage != nil {
			resp.Usage = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Role != "" {
				role = choice.Delta.Role
			}
			content += choice.Delta.Content
			if choice.FinishReason != nil {
				finish = *choice.FinishReason
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc, ok := tools[idx]
				if !ok {
					acc = &translate.OpenAIToolCall{Type: "function"}
					tools[idx] = acc
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				if tc.Function.Name != "" {
					acc.Function.Name = tc.Function.Name
				}
				acc.Function.Arguments += tc.Function.Arguments
			}
		}
	}

	if role == "" {
		role = "assistant"
	}
	msg := translate.OpenAIMessage{Role: role, Content: content}

	if len(tools) > 0 {
		indexes := make([]int, 0, len(tools))
		for idx := range tools {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			msg.ToolCalls = append(msg.ToolCalls, *tools[idx])
		}
		if finish == "" {
			finish = "tool_calls"
		}
	}
	if finish == "" {
		finish = "stop"
	}

	resp.Choices = []translate.OpenAIChoice{{Message: msg, FinishReason: finish}}
	return resp, nil
}
