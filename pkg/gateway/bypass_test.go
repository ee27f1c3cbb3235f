package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"helios-hq/helios/pkg/wire"
)

func TestIsProbe(t *testing.T) {
	tests := []struct {
		name      string
		format    wire.Format
		body      string
		userAgent string
		want      bool
	}{
		{
			name:   "openai hi",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"user","content":"hi"}]}`,
			want:   true,
		},
		{
			name:   "openai case and whitespace folded",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"user","content":" Hello "}]}`,
			want:   true,
		},
		{
			name:   "claude block content",
			format: wire.FormatClaude,
			body:   `{"model":"m","messages":[{"role":"user","content":[{"type":"text","text":"ping"}]}]}`,
			want:   true,
		},
		{
			name:   "gemini parts",
			format: wire.FormatGemini,
			body:   `{"contents":[{"role":"user","parts":[{"text":"test"}]}]}`,
			want:   true,
		},
		{
			name:   "responses string input",
			format: wire.FormatOpenAIResponses,
			body:   `{"model":"m","input":"warmup"}`,
			want:   true,
		},
		{
			name:      "warmup user agent wins regardless of body",
			format:    wire.FormatOpenAI,
			body:      `{"model":"m","messages":[{"role":"user","content":"summarize this document"}]}`,
			userAgent: "cli-warmup/1.0",
			want:      true,
		},
		{
			name:   "real question",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"user","content":"what is 2+2?"}]}`,
			want:   false,
		},
		{
			name:   "tools present disqualifies",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"user","content":"hi"}],"tools":[{"type":"function"}]}`,
			want:   false,
		},
		{
			name:   "multi-message conversation",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"},{"role":"user","content":"hi"}]}`,
			want:   false,
		},
		{
			name:   "assistant-only message",
			format: wire.FormatOpenAI,
			body:   `{"model":"m","messages":[{"role":"assistant","content":"hi"}]}`,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isProbe(tt.format, []byte(tt.body), tt.userAgent)
			if got != tt.want {
				t.Errorf("isProbe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteSyntheticNonStreaming(t *testing.T) {
	tests := []struct {
		format wire.Format
		check  string
	}{
		{wire.FormatOpenAI, "choices.0.message.content"},
		{wire.FormatClaude, "content.0.text"},
		{wire.FormatGemini, "candidates.0.content.parts.0.text"},
		{wire.FormatOpenAIResponses, "output.0.content.0.text"},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeSynthetic(rec, tt.format, "test-model", false)

			if rec.Code != 200 {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var parsed map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if !strings.Contains(rec.Body.String(), `"OK"`) {
				t.Errorf("body lacks OK text: %s", rec.Body.String())
			}
		})
	}
}

func TestWriteSyntheticStreaming(t *testing.T) {
	tests := []struct {
		format wire.Format
		wants  []string
	}{
		{wire.FormatOpenAI, []string{"chat.completion.chunk", "[DONE]"}},
		{wire.FormatClaude, []string{"message_start", "content_block_delta", "message_stop"}},
		{wire.FormatGemini, []string{"candidates", "STOP"}},
		{wire.FormatOpenAIResponses, []string{"response.output_text.delta", "response.completed"}},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeSynthetic(rec, tt.format, "test-model", true)

			if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
				t.Fatalf("Content-Type = %q, want text/event-stream", ct)
			}
			body := rec.Body.String()
			for _, want := range tt.wants {
				if !strings.Contains(body, want) {
					t.Errorf("stream lacks %q:\n%s", want, body)
				}
			}
		})
	}
}
