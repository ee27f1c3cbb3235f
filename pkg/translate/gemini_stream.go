package translate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gemini streaming chunks reuse the GeminiResponse shape; the chunks
// may also arrive wrapped in the CLI "response" envelope.

// geminiToOpenAIStream converts streamGenerateContent chunks into Chat
// Completions chunks.
type geminiToOpenAIStream struct {
	model string
	names ToolNameMap

	id      string
	created int64

	roleEmitted   bool
	nextTool      int
	finishReason  string
	finishEmitted bool
	usage         *OpenAIUsage
}

func newGeminiToOpenAIStream(model string, names ToolNameMap) StreamTranslator {
	return &geminiToOpenAIStream{
		model:   model,
		names:   names,
		id:      "chatcmpl-" + uuid.NewString(),
		created: time.Now().Unix(),
	}
}

func (s *geminiToOpenAIStream) chunk(choices []OpenAIChunkChoice, usage *OpenAIUsage) Frame {
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

func (s *geminiToOpenAIStream) Next(event string, payload []byte) ([]Frame, error) {
	var in GeminiResponse
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("parse gemini stream chunk: %w", err)
	}
	if len(in.Candidates) == 0 && in.UsageMetadata == nil {
		// CLI envelope; unwrap and retry.
		var envelope struct {
			Response *GeminiResponse `json:"response"`
		}
		if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Response != nil {
			in = *envelope.Response
		}
	}

	if in.UsageMetadata != nil {
		s.usage = openAIUsageFromGemini(in.UsageMetadata)
	}

	var frames []Frame
	if !s.roleEmitted {
		s.roleEmitted = true
		frames = append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{Role: "assistant"}}}, nil))
	}

	if len(in.Candidates) == 0 {
		return frames, nil
	}
	cand := in.Candidates[0]

	hasCalls := false
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			hasCalls = true
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("marshal function args: %w", err)
			}
			idx := s.nextTool
			s.nextTool++
			i := idx
			frames = append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{
				ToolCalls: []OpenAIToolCall{{
					Index: &i,
					ID:    "call_" + uuid.NewString(),
					Type:  "function",
					Function: OpenAIFunctionCall{
						Name:      s.names.Restore(part.FunctionCall.Name),
						Arguments: string(args),
					},
				}},
			}}}, nil))
		case part.Thought:
			// Not represented downstream.
		case part.Text != "":
			frames = append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{Content: part.Text}}}, nil))
		}
	}

	if cand.FinishReason != "" {
		s.finishReason = geminiFinishReason(cand.FinishReason, hasCalls || s.nextTool > 0)
	}
	return frames, nil
}

func (s *geminiToOpenAIStream) Finish() []Frame {
	var frames []Frame
	if !s.finishEmitted {
		s.finishEmitted = true
		finish := s.finishReason
		if finish == "" {
			finish = "stop"
		}
		frames = append(frames, s.chunk([]OpenAIChunkChoice{{Delta: OpenAIDelta{}, FinishReason: &finish}}, nil))
		if s.usage != nil {
			frames = append(frames, s.chunk([]OpenAIChunkChoice{}, s.usage))
		}
	}
	return append(frames, Frame{Data: []byte("[DONE]")})
}

func (s *geminiToOpenAIStream) Usage() *OpenAIUsage {
	return s.usage
}

// openAIToGeminiStream converts Chat Completions chunks into
// streamGenerateContent chunks. Tool call argument fragments are
// buffered until complete because Gemini emits whole function calls.
type openAIToGeminiStream struct {
	model string
	names ToolNameMap

	// pending accumulates streamed tool calls by OpenAI index.
	pending map[int]*pendingCall
	order   []int

	finishReason string
	usage        *GeminiUsage
	done         bool
}

type pendingCall struct {
	name string
	args string
}

func newOpenAIToGeminiStream(model string, names ToolNameMap) StreamTranslator {
	return &openAIToGeminiStream{
		model:   model,
		names:   names,
		pending: map[int]*pendingCall{},
	}
}

func (s *openAIToGeminiStream) frame(resp GeminiResponse) Frame {
	data, _ := json.Marshal(resp)
	return Frame{Data: data}
}

func (s *openAIToGeminiStream) Next(event string, payload []byte) ([]Frame, error) {
	if string(payload) == "[DONE]" {
		return nil, nil
	}
	var chunk OpenAIChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("parse openai chunk: %w", err)
	}

	if chunk.Usage != nil {
		s.usage = &GeminiUsage{
			PromptTokenCount:     chunk.Usage.PromptTokens,
			CandidatesTokenCount: chunk.Usage.CompletionTokens,
			TotalTokenCount:      chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}
	choice := chunk.Choices[0]

	var frames []Frame
	if choice.Delta.Content != "" {
		frames = append(frames, s.frame(GeminiResponse{
			Candidates: []GeminiCandidate{{
				Content: GeminiContent{Role: "model", Parts: []GeminiPart{{Text: choice.Delta.Content}}},
			}},
			ModelVersion: s.model,
		}))
	}

	for _, call := range choice.Delta.ToolCalls {
		idx := 0
		if call.Index != nil {
			idx = *call.Index
		}
		p, ok := s.pending[idx]
		if !ok {
			p = &pendingCall{}
			s.pending[idx] = p
			s.order = append(s.order, idx)
		}
		if call.Function.Name != "" {
			p.name = call.Function.Name
		}
		p.args += call.Function.Arguments
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finishReason = *choice.FinishReason
	}
	return frames, nil
}

// Finish flushes buffered function calls and the final chunk carrying
// the finish reason and usage.
func (s *openAIToGeminiStream) Finish() []Frame {
	if s.done {
		return nil
	}
	s.done = true

	var parts []GeminiPart
	for _, idx := range s.order {
		p := s.pending[idx]
		args := map[string]interface{}{}
		if p.args != "" {
			if err := json.Unmarshal([]byte(p.args), &args); err != nil {
				args = map[string]interface{}{"raw": p.args}
			}
		}
		parts = append(parts, GeminiPart{
			FunctionCall: &GeminiFunctionCall{Name: s.names.Restore(p.name), Args: args},
		})
	}

	final := GeminiResponse{
		Candidates: []GeminiCandidate{{
			Content:      GeminiContent{Role: "model", Parts: parts},
			FinishReason: geminiReasonFromOpenAI(s.finishReason),
		}},
		UsageMetadata: s.usage,
		ModelVersion:  s.model,
	}
	return []Frame{s.frame(final)}
}

func (s *openAIToGeminiStream) Usage() *OpenAIUsage {
	if s.usage == nil {
		return nil
	}
	return openAIUsageFromGemini(s.usage)
}
