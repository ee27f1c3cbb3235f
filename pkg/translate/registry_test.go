package translate

import (
	"encoding/json"
	"testing"

	"helios-hq/helios/pkg/wire"
)

func TestTranslateRequestIdentity(t *testing.T) {
	r := NewRegistry()
	body := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`)

	out, names, err := r.TranslateRequest(wire.FormatOpenAI, wire.FormatOpenAI, &Request{Body: body})
	if err != nil {
		t.Fatal(err)
	}
	if names != nil {
		t.Errorf("names = %v", names)
	}
	if string(out) != string(body) {
		t.Error("identity translation must return the body unchanged")
	}
}

func TestTranslateRequestComposesThroughHub(t *testing.T) {
	r := NewRegistry()
	body := []byte(`{
		"model": "claude-sonnet-4",
		"max_tokens": 100,
		"messages": [{"role": "user", "content": "weather?"}]
	}`)

	// Claude to Gemini has no direct edge; it must compose via OpenAI.
	out, _, err := r.TranslateRequest(wire.FormatClaude, wire.FormatGemini, &Request{
		Model: "gemini-2.5-pro",
		Body:  body,
	})
	if err != nil {
		t.Fatal(err)
	}
	var gem GeminiRequest
	if err := json.Unmarshal(out, &gem); err != nil {
		t.Fatal(err)
	}
	if len(gem.Contents) != 1 || gem.Contents[0].Role != "user" {
		t.Errorf("contents = %+v", gem.Contents)
	}
	if gem.GenerationConfig == nil || *gem.GenerationConfig.MaxOutputTokens != 100 {
		t.Errorf("generationConfig = %+v", gem.GenerationConfig)
	}
}

func TestTranslateResponseNormalizesDialects(t *testing.T) {
	r := NewRegistry()
	body := []byte(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "m",
		"choices": [{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]
	}`)

	// Copilot speaks OpenAI-shaped responses; translating to an OpenAI
	// client is the identity after normalization.
	out, err := r.TranslateResponse(wire.FormatCopilot, wire.FormatOpenAI, body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(body) {
		t.Error("copilot response to openai client must pass through")
	}

	// And to a Claude client it goes through the OpenAI edge.
	out, err = r.TranslateResponse(wire.FormatQwen, wire.FormatClaude, body, nil)
	if err != nil {
		t.Fatal(err)
	}
	var claude ClaudeResponse
	if err := json.Unmarshal(out, &claude); err != nil {
		t.Fatal(err)
	}
	if claude.Content[0].Text != "ok" {
		t.Errorf("content = %+v", claude.Content)
	}
}

func TestNewStreamTranslatorChained(t *testing.T) {
	r := NewRegistry()

	// Claude upstream, Gemini client: chained through OpenAI.
	tr, err := r.NewStreamTranslator(wire.FormatClaude, wire.FormatGemini, "gemini-2.5-pro", nil)
	if err != nil {
		t.Fatal(err)
	}

	events := []struct{ event, data string }{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":3,"output_tokens":0}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":1}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
	var frames []Frame
	for _, ev := range events {
		out, err := tr.Next(ev.event, []byte(ev.data))
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, out...)
	}
	frames = append(frames, tr.Finish()...)

	var text string
	for _, f := range frames {
		var resp GeminiResponse
		if err := json.Unmarshal(f.Data, &resp); err != nil {
			t.Fatalf("bad gemini frame %s: %v", f.Data, err)
		}
		for _, cand := range resp.Candidates {
			for _, part := range cand.Content.Parts {
				text += part.Text
			}
		}
	}
	if text != "hi" {
		t.Errorf("text = %q, want hi", text)
	}

	// Usage comes from the upstream-adjacent stage.
	if u := tr.Usage(); u == nil || u.PromptTokens != 3 || u.CompletionTokens != 1 {
		t.Errorf("usage = %+v", u)
	}
}

func TestNewStreamTranslatorSameFormat(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewStreamTranslator(wire.FormatOpenAI, wire.FormatOpenAI, "m", nil); err == nil {
		t.Error("same-format stream translation should be rejected")
	}
}

func TestMergeNames(t *testing.T) {
	first := ToolNameMap{"mid": "original"}
	second := ToolNameMap{"final": "mid"}
	merged := mergeNames(first, second)

	if merged.Restore("final") != "original" {
		t.Errorf("Restore(final) = %q, want original", merged.Restore("final"))
	}
	if merged.Restore("mid") != "original" {
		t.Errorf("Restore(mid) = %q, want original", merged.Restore("mid"))
	}
}
