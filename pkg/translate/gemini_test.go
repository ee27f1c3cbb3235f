package translate

import (
	"encoding/json"
	"testing"
)

func TestGeminiToOpenAIRequestToolPairing(t *testing.T) {
	body := []byte(`{
		"contents": [
			{"role": "user", "parts": [{"text": "weather?"}]},
			{"role": "model", "parts": [{"functionCall": {"name": "get_weather", "args": {"city": "Oslo"}}}]},
			{"role": "user", "parts": [{"functionResponse": {"name": "get_weather", "response": {"forecast": "rain"}}}]}
		],
		"generationConfig": {"temperature": 0.2, "maxOutputTokens": 256}
	}`)

	raw, _, err := geminiToOpenAIRequest(&Request{Model: "gpt-4o", Body: body})
	if err != nil {
		t.Fatal(err)
	}
	var out OpenAIRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("got %d messages: %+v", len(out.Messages), out.Messages)
	}

	call := out.Messages[1].ToolCalls[0]
	if call.ID == "" {
		t.Fatal("synthetic call id missing")
	}
	if out.Messages[2].Role != "tool" || out.Messages[2].ToolCallID != call.ID {
		t.Errorf("function response not paired: call id %q, tool message %+v", call.ID, out.Messages[2])
	}
	if out.Temperature == nil || *out.Temperature != 0.2 {
		t.Errorf("temperature = %v", out.Temperature)
	}
	if out.MaxTokens == nil || *out.MaxTokens != 256 {
		t.Errorf("max_tokens = %v", out.MaxTokens)
	}
}

func TestParseGeminiRequestEnvelope(t *testing.T) {
	bare := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)
	wrapped := []byte(`{"model":"gemini-2.5-pro","request":{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}}`)

	for _, body := range [][]byte{bare, wrapped} {
		req, err := parseGeminiRequest(body)
		if err != nil {
			t.Fatal(err)
		}
		if len(req.Contents) != 1 {
			t.Errorf("contents = %+v", req.Contents)
		}
	}
}

func TestOpenAIToGeminiRequest(t *testing.T) {
	body := []byte(`{
		"model": "m",
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Oslo\"}"}}]},
			{"role": "tool", "tool_call_id": "call_1", "content": "{\"forecast\":\"rain\"}"}
		],
		"tools": [{"type":"function","function":{"name":"get_weather","parameters":{"type":"object","properties":{"city":{"type":"string","minLength":1}}}}}],
		"tool_choice": "required"
	}`)

	raw, _, err := openAIToGeminiRequest(&Request{Model: "gemini-2.5-pro", Body: body})
	if err != nil {
		t.Fatal(err)
	}
	var out GeminiRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}

	if out.SystemInstruction == nil || geminiPartsText(out.SystemInstruction.Parts) != "be brief" {
		t.Errorf("systemInstruction = %+v", out.SystemInstruction)
	}
	if len(out.Contents) != 3 {
		t.Fatalf("contents = %+v", out.Contents)
	}
	fr := out.Contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "get_weather" || fr.Response["forecast"] != "rain" {
		t.Errorf("functionResponse = %+v", fr)
	}

	decl := out.Tools[0].FunctionDeclarations[0]
	city := decl.Parameters["properties"].(map[string]interface{})["city"].(map[string]interface{})
	if _, ok := city["minLength"]; ok {
		t.Error("tool schema not sanitized")
	}
	if out.ToolConfig.FunctionCallingConfig.Mode != "ANY" {
		t.Errorf("mode = %q, want ANY", out.ToolConfig.FunctionCallingConfig.Mode)
	}
}

func TestGeminiToOpenAIResponse(t *testing.T) {
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"text": "thinking...", "thought": true},
				{"text": "rain ahead"}
			]},
			"finishReason": "STOP",
			"index": 0
		}],
		"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10, "thoughtsTokenCount": 2},
		"modelVersion": "gemini-2.5-pro"
	}`)

	raw, err := geminiToOpenAIResponse(body, nil)
	if err != nil {
		t.Fatal(err)
	}
	var out OpenAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	msg := out.Choices[0].Message
	if msg.Content != "rain ahead" {
		t.Errorf("content = %q, thought parts must be dropped", msg.Content)
	}
	if out.Usage.CompletionTokensDetails == nil || out.Usage.CompletionTokensDetails.ReasoningTokens != 2 {
		t.Errorf("reasoning tokens = %+v", out.Usage.CompletionTokensDetails)
	}
}

func TestGeminiFinishReasonMapping(t *testing.T) {
	tests := []struct {
		reason   string
		hasCalls bool
		want     string
	}{
		{"STOP", false, "stop"},
		{"STOP", true, "tool_calls"},
		{"MAX_TOKENS", false, "length"},
		{"SAFETY", false, "content_filter"},
		{"", false, "stop"},
	}
	for _, tt := range tests {
		if got := geminiFinishReason(tt.reason, tt.hasCalls); got != tt.want {
			t.Errorf("geminiFinishReason(%q, %v) = %q, want %q", tt.reason, tt.hasCalls, got, tt.want)
		}
	}
}
