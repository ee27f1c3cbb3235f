package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"helios-hq/helios/pkg/wire"
)

// probeTexts are the canonical warmup messages coding clients send to
// test a connection. A request whose only user message is one of these
// never reaches an upstream.
var probeTexts = map[string]bool{
	"hi":     true,
	"hello":  true,
	"ping":   true,
	"warmup": true,
	"test":   true,
}

// isProbe reports whether the request is a warmup/skip probe: either a
// self-identifying user agent or a single short canonical user message
// with no tools offered.
func isProbe(format wire.Format, body []byte, userAgent string) bool {
	if strings.Contains(strings.ToLower(userAgent), "warmup") {
		return true
	}
	if gjson.GetBytes(body, "tools").Exists() {
		return false
	}

	var messages gjson.Result
	switch format {
	case wire.FormatGemini:
		messages = gjson.GetBytes(body, "contents")
	case wire.FormatOpenAIResponses:
		messages = gjson.GetBytes(body, "input")
		if !messages.IsArray() {
			// Responses input may be a bare string.
			return probeTexts[normalizeProbe(gjson.GetBytes(body, "input").String())]
		}
	default:
		messages = gjson.GetBytes(body, "messages")
	}
	if !messages.IsArray() {
		return false
	}

	arr := messages.Array()
	if len(arr) != 1 {
		return false
	}
	msg := arr[0]
	role := msg.Get("role").String()
	if role != "user" && role != "" {
		return false
	}
	return probeTexts[normalizeProbe(messageText(format, msg))]
}

func normalizeProbe(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func messageText(format wire.Format, msg gjson.Result) string {
	if format == wire.FormatGemini {
		var text string
		msg.Get("parts").ForEach(func(_, part gjson.Result) bool {
			text += part.Get("text").String()
			return true
		})
		return text
	}

	content := msg.Get("content")
	if content.Type == gjson.String {
		return content.String()
	}
	var text string
	content.ForEach(func(_, part gjson.Result) bool {
		text += part.Get("text").String()
		return true
	})
	return text
}

// writeSynthetic answers a probe with a canned OK in the client's
// format, streaming or not, without touching any upstream.
func writeSynthetic(w http.ResponseWriter, format wire.Format, model string, streaming bool) {
	if streaming {
		writeSyntheticStream(w, format, model)
		return
	}
	writeRawJSON(w, http.StatusOK, []byte(syntheticBody(format, model)))
}

func syntheticBody(format wire.Format, model string) string {
	now := time.Now().Unix()
	id := uuid.NewString()
	switch format {
	case wire.FormatClaude:
		return fmt.Sprintf(`{"id":"msg_%s","type":"message","role":"assistant","model":%q,"content":[{"type":"text","text":"OK"}],"stop_reason":"end_turn","usage":{"input_tokens":0,"output_tokens":0}}`, id, model)
	case wire.FormatGemini:
		return `{"candidates":[{"content":{"role":"model","parts":[{"text":"OK"}]},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":0,"candidatesTokenCount":0,"totalTokenCount":0}}`
	case wire.FormatOpenAIResponses:
		return fmt.Sprintf(`{"id":"resp_%s","object":"response","status":"completed","model":%q,"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"OK"}]}],"usage":{"input_tokens":0,"output_tokens":0}}`, id, model)
	default:
		return fmt.Sprintf(`{"id":"chatcmpl-%s","object":"chat.completion","created":%d,"model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"OK"},"finish_reason":"stop"}],"usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}}`, id, now, model)
	}
}

func writeSyntheticStream(w http.ResponseWriter, format wire.Format, model string) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	now := time.Now().Unix()
	id := uuid.NewString()
	switch format {
	case wire.FormatClaude:
		fmt.Fprintf(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_%s\",\"type\":\"message\",\"role\":\"assistant\",\"model\":%q,\"content\":[],\"usage\":{\"input_tokens\":0,\"output_tokens\":0}}}\n\n", id, model)
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"OK\"}}\n\n")
		fmt.Fprint(w, "event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":0}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	case wire.FormatGemini:
		fmt.Fprint(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"OK"}]},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":0,"candidatesTokenCount":0,"totalTokenCount":0}}`+"\n\n")
	case wire.FormatOpenAIResponses:
		fmt.Fprintf(w, "event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"OK\"}\n\n")
		fmt.Fprintf(w, "event: response.completed\ndata: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_%s\",\"status\":\"completed\"}}\n\n", id)
	default:
		fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-%s\",\"object\":\"chat.completion.chunk\",\"created\":%d,\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"OK\"},\"finish_reason\":\"stop\"}]}\n\n", id, now, model)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
