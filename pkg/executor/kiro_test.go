package executor

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"helios-hq/helios/pkg/translate"
)

// runKiroStream feeds raw EventStream bytes through the converter and
// returns the decoded chunks plus whether the stream ended with the
// OpenAI terminator.
func runKiroStream(t *testing.T, raw []byte) ([]translate.OpenAIChunk, bool) {
	t.Helper()
	r := newKiroSSEReader(io.NopCloser(bytes.NewReader(raw)), "claude-sonnet-4", testLogger())
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read converted stream: %v", err)
	}

	var chunks []translate.OpenAIChunk
	done := false
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			done = true
			continue
		}
		var chunk translate.OpenAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			t.Fatalf("malformed chunk %q: %v", data, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, done
}

func TestKiroStreamContent(t *testing.T) {
	var raw bytes.Buffer
	raw.Write(esMessage("assistantResponseEvent", []byte(`{"content":"Hello"}`)))
	raw.Write(esMessage("assistantResponseEvent", []byte(`{"content":", world"}`)))
	raw.Write(esMessage("messageStopEvent", []byte(`{"stop":true}`)))

	chunks, done := runKiroStream(t, raw.Bytes())
	if !done {
		t.Error("missing stream terminator")
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Choices[0].Delta.Role != "assistant" {
		t.Error("first chunk missing role")
	}
	var text strings.Builder
	for _, c := range chunks {
		text.WriteString(c.Choices[0].Delta.Content)
	}
	if text.String() != "Hello, world" {
		t.Errorf("content = %q", text.String())
	}
	last := chunks[len(chunks)-1]
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %v", last.Choices[0].FinishReason)
	}
}

func TestKiroStreamToolUseFragments(t *testing.T) {
	// One tool call split across two frames: the converter must emit one
	// start chunk with empty arguments, then argument fragments, and
	// finish with tool_calls.
	var raw bytes.Buffer
	raw.Write(esMessage("toolUseEvent", []byte(`{"toolUseId":"t1","name":"get_weather","input":"{\"city\":"}`)))
	raw.Write(esMessage("toolUseEvent", []byte(`{"toolUseId":"t1","input":"\"Paris\"}"}`)))
	raw.Write(esMessage("messageStopEvent", []byte(`{}`)))

	chunks, done := runKiroStream(t, raw.Bytes())
	if !done {
		t.Error("missing stream terminator")
	}

	var starts, argFrags int
	var args strings.Builder
	for _, c := range chunks {
		for _, tc := range c.Choices[0].Delta.ToolCalls {
			if tc.ID != "" {
				starts++
				if tc.Function.Name != "get_weather" {
					t.Errorf("tool name = %q", tc.Function.Name)
				}
				if tc.Function.Arguments != "" {
					t.Errorf("start chunk arguments = %q, want empty", tc.Function.Arguments)
				}
				if tc.Index == nil || *tc.Index != 0 {
					t.Errorf("tool index = %v", tc.Index)
				}
			} else {
				argFrags++
				args.WriteString(tc.Function.Arguments)
			}
		}
	}
	if starts != 1 {
		t.Errorf("got %d start chunks, want 1", starts)
	}
	if argFrags != 2 {
		t.Errorf("got %d argument fragments, want 2", argFrags)
	}
	if args.String() != `{"city":"Paris"}` {
		t.Errorf("arguments = %q", args.String())
	}
	last := chunks[len(chunks)-1]
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "tool_calls" {
		t.Errorf("finish reason = %v", last.Choices[0].FinishReason)
	}
}

func TestKiroStreamMultipleTools(t *testing.T) {
	var raw bytes.Buffer
	raw.Write(esMessage("toolUseEvent", []byte(`{"toolUseId":"t1","name":"first","input":"{}"}`)))
	raw.Write(esMessage("toolUseEvent", []byte(`{"toolUseId":"t2","name":"second","input":"{}"}`)))
	raw.Write(esMessage("messageStopEvent", []byte(`{}`)))

	chunks, _ := runKiroStream(t, raw.Bytes())
	indexes := map[string]int{}
	for _, c := range chunks {
		for _, tc := range c.Choices[0].Delta.ToolCalls {
			if tc.ID != "" && tc.Index != nil {
				indexes[tc.ID] = *tc.Index
			}
		}
	}
	if indexes["t1"] != 0 || indexes["t2"] != 1 {
		t.Errorf("tool indexes = %v", indexes)
	}
}

func TestKiroStreamFinishAfterMetering(t *testing.T) {
	// A non-metering event after metering ends the content even without
	// an explicit message stop.
	var raw bytes.Buffer
	raw.Write(esMessage("assistantResponseEvent", []byte(`{"content":"done"}`)))
	raw.Write(esMessage("meteringEvent", []byte(`{"usage":{}}`)))
	raw.Write(esMessage("followupPromptEvent", []byte(`{}`)))

	chunks, done := runKiroStream(t, raw.Bytes())
	if !done {
		t.Error("missing stream terminator")
	}
	var finishes int
	for _, c := range chunks {
		if c.Choices[0].FinishReason != nil {
			finishes++
		}
	}
	if finishes != 1 {
		t.Errorf("got %d finish chunks, want 1", finishes)
	}
}

func TestKiroStreamFinishOnEOF(t *testing.T) {
	// Upstream closing without a stop event still produces a finish
	// chunk and the terminator.
	var raw bytes.Buffer
	raw.Write(esMessage("assistantResponseEvent", []byte(`{"content":"partial"}`)))

	chunks, done := runKiroStream(t, raw.Bytes())
	if !done {
		t.Error("missing stream terminator")
	}
	last := chunks[len(chunks)-1]
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %v", last.Choices[0].FinishReason)
	}
}

func TestKiroStreamCodeEvent(t *testing.T) {
	var raw bytes.Buffer
	raw.Write(esMessage("codeEvent", []byte(`{"content":"func main() {}"}`)))
	raw.Write(esMessage("messageStopEvent", []byte(`{}`)))

	chunks, _ := runKiroStream(t, raw.Bytes())
	if len(chunks) == 0 || chunks[0].Choices[0].Delta.Content != "func main() {}" {
		t.Fatalf("chunks = %+v", chunks)
	}
}

func TestKiroStreamNoDuplicateFinish(t *testing.T) {
	// messageStopEvent followed by EOF must not double-emit the finish.
	var raw bytes.Buffer
	raw.Write(esMessage("assistantResponseEvent", []byte(`{"content":"x"}`)))
	raw.Write(esMessage("messageStopEvent", []byte(`{}`)))
	raw.Write(esMessage("meteringEvent", []byte(`{}`)))

	chunks, _ := runKiroStream(t, raw.Bytes())
	var finishes int
	for _, c := range chunks {
		if c.Choices[0].FinishReason != nil {
			finishes++
		}
	}
	if finishes != 1 {
		t.Errorf("got %d finish chunks, want 1", finishes)
	}
}
