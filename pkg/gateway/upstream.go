package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"helios-hq/helios/pkg/translate"
	"helios-hq/helios/pkg/wire"
)

// upstreamError is the classified result of a failed upstream attempt.
type upstreamError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

// parseUpstreamError extracts a human-readable message and an optional
// server-specified retry delay from an error body. Providers disagree
// on the error shape, so every known field is probed.
func parseUpstreamError(status int, header string, body []byte) upstreamError {
	out := upstreamError{Status: status}

	for _, path := range []string{
		"error.message",
		"error",
		"message",
		"error_description",
	} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			out.Message = v.String()
			break
		}
	}
	if out.Message == "" {
		out.Message = strings.TrimSpace(string(body))
		if len(out.Message) > 200 {
			out.Message = out.Message[:200]
		}
	}

	// Retry-After header (seconds or an HTTP date), then the
	// Antigravity/Google body fields: a millisecond count or an RPC
	// retryDelay like "30s".
	if header != "" {
		if secs, err := time.ParseDuration(header + "s"); err == nil {
			out.RetryAfter = secs
		} else if when, err := http.ParseTime(header); err == nil {
			if d := time.Until(when); d > 0 {
				out.RetryAfter = d
			}
		}
	}
	if out.RetryAfter == 0 {
		if ms := gjson.GetBytes(body, "error.retryAfterMs"); ms.Exists() {
			out.RetryAfter = time.Duration(ms.Int()) * time.Millisecond
		}
	}
	if out.RetryAfter == 0 {
		gjson.GetBytes(body, "error.details").ForEach(func(_, detail gjson.Result) bool {
			if delay := detail.Get("retryDelay").String(); delay != "" {
				if d, err := time.ParseDuration(delay); err == nil {
					out.RetryAfter = d
					return false
				}
			}
			return true
		})
	}
	return out
}

// extractUsage pulls token totals out of a complete non-streaming
// response, per the upstream format's field names. Unknown shapes
// return nil; billing gaps are never fatal.
func extractUsage(format wire.Format, body []byte) *translate.OpenAIUsage {
	switch format {
	case wire.FormatClaude:
		u := gjson.GetBytes(body, "usage")
		if !u.Exists() {
			return nil
		}
		usage := &translate.OpenAIUsage{
			PromptTokens:     int(u.Get("input_tokens").Int()),
			CompletionTokens: int(u.Get("output_tokens").Int()),
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		if cached := u.Get("cache_read_input_tokens"); cached.Exists() {
			usage.PromptTokensDetails = &struct {
				CachedTokens int `json:"cached_tokens"`
			}{CachedTokens: int(cached.Int())}
		}
		return usage

	case wire.FormatGemini, wire.FormatAntigravity:
		u := gjson.GetBytes(body, "usageMetadata")
		if !u.Exists() {
			u = gjson.GetBytes(body, "response.usageMetadata")
		}
		if !u.Exists() {
			return nil
		}
		usage := &translate.OpenAIUsage{
			PromptTokens:     int(u.Get("promptTokenCount").Int()),
			CompletionTokens: int(u.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(u.Get("totalTokenCount").Int()),
		}
		if thoughts := u.Get("thoughtsTokenCount"); thoughts.Exists() {
			usage.CompletionTokensDetails = &struct {
				ReasoningTokens int `json:"reasoning_tokens"`
			}{ReasoningTokens: int(thoughts.Int())}
		}
		return usage

	default:
		u := gjson.GetBytes(body, "usage")
		if !u.Exists() {
			return nil
		}
		usage := &translate.OpenAIUsage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
		// The Responses format names them input/output instead.
		if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
			usage.PromptTokens = int(u.Get("input_tokens").Int())
			usage.CompletionTokens = int(u.Get("output_tokens").Int())
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
		if cached := u.Get("prompt_tokens_details.cached_tokens"); cached.Exists() {
			usage.PromptTokensDetails = &struct {
				CachedTokens int `json:"cached_tokens"`
			}{CachedTokens: int(cached.Int())}
		}
		return usage
	}
}
