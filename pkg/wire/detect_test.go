package wire

import "testing"

func TestDetect_Formats(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts DetectOptions
		want Format
	}{
		{
			name: "openai chat completions",
			body: `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`,
			want: FormatOpenAI,
		},
		{
			name: "openai responses with instructions",
			body: `{"model":"gpt-4o","input":[{"role":"user","content":"hi"}],"instructions":"be brief"}`,
			want: FormatOpenAIResponses,
		},
		{
			name: "openai responses with previous response id",
			body: `{"model":"gpt-4o","input":[],"previous_response_id":"resp_123"}`,
			want: FormatOpenAIResponses,
		},
		{
			name: "input array without responses markers is openai",
			body: `{"model":"gpt-4o","input":[{"role":"user"}],"messages":[{"role":"user","content":"hi"}]}`,
			want: FormatOpenAI,
		},
		{
			name: "gemini top-level contents",
			body: `{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`,
			want: FormatGemini,
		},
		{
			name: "gemini nested contents",
			body: `{"model":"gemini-2.5-pro","request":{"contents":[{"parts":[{"text":"hi"}]}]}}`,
			want: FormatGemini,
		},
		{
			name: "claude via string system",
			body: `{"model":"claude-sonnet-4","system":"you are terse","messages":[{"role":"user","content":"hi"}]}`,
			want: FormatClaude,
		},
		{
			name: "claude via system block list",
			body: `{"model":"claude-sonnet-4","system":[{"type":"text","text":"hi"}],"messages":[{"role":"user","content":"hi"}]}`,
			want: FormatClaude,
		},
		{
			name: "claude via anthropic-version header",
			body: `{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`,
			opts: DetectOptions{AnthropicVersionHeader: true},
			want: FormatClaude,
		},
		{
			name: "claude via tool_result block",
			body: `{"messages":[{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"42"}]}]}`,
			want: FormatClaude,
		},
		{
			name: "claude via tool_use block",
			body: `{"messages":[{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"get_time","input":{}}]}]}`,
			want: FormatClaude,
		},
		{
			name: "openai array content stays openai",
			body: `{"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`,
			want: FormatOpenAI,
		},
		{
			name: "empty body defaults to openai",
			body: `{}`,
			want: FormatOpenAI,
		},
		{
			name: "invalid json defaults to openai",
			body: `{"model":`,
			want: FormatOpenAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect([]byte(tt.body), tt.opts)
			if got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	body := []byte(`{"model":"claude-sonnet-4","system":"s","messages":[{"role":"user","content":"hi"}]}`)
	first := Detect(body, DetectOptions{})
	for i := 0; i < 10; i++ {
		if got := Detect(body, DetectOptions{}); got != first {
			t.Fatalf("detection not deterministic: got %s then %s", first, got)
		}
	}
}

func TestStreamRequested(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		body   string
		want   bool
	}{
		{"openai stream true", FormatOpenAI, `{"stream":true}`, true},
		{"openai stream false", FormatOpenAI, `{"stream":false}`, false},
		{"openai stream absent", FormatOpenAI, `{}`, false},
		{"claude stream true", FormatClaude, `{"stream":true}`, true},
		{"responses stream true", FormatOpenAIResponses, `{"stream":true}`, true},
		{"gemini decided by url", FormatGemini, `{"stream":true}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StreamRequested(tt.format, []byte(tt.body)); got != tt.want {
				t.Errorf("StreamRequested() = %v, want %v", got, tt.want)
			}
		})
	}
}
