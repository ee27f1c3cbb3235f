package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/sjson"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/wire"
)

// defaultExecutor serves every provider that speaks plain JSON over
// HTTP: the OpenAI, Anthropic, and Gemini families plus user-added
// compatible nodes.
type defaultExecutor struct {
	info   ProviderInfo
	client *http.Client
	log    *slog.Logger
}

func newDefaultExecutor(info ProviderInfo, client *http.Client, log *slog.Logger) *defaultExecutor {
	return &defaultExecutor{info: info, client: client, log: log}
}

func (e *defaultExecutor) Provider() string {
	return e.info.ID
}

func (e *defaultExecutor) Target() wire.Format {
	return e.info.Target
}

// BuildURL composes the endpoint per family. The connection's base URL
// overrides the catalog's; urlIndex selects an alternate when set.
func (e *defaultExecutor) BuildURL(model string, stream bool, urlIndex int, conn *credentials.Connection) string {
	base := e.info.BaseURL
	if urlIndex > 0 && urlIndex <= len(e.info.AltBaseURLs) {
		base = e.info.AltBaseURLs[urlIndex-1]
	}
	if conn != nil && conn.BaseURL != "" {
		base = conn.BaseURL
	}

	switch e.info.Family {
	case familyAnthropic:
		return base + "?beta=true"
	case familyGemini:
		if stream {
			return fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", base, model)
		}
		return fmt.Sprintf("%s/%s:generateContent", base, model)
	case familyResponses:
		return base + "/responses"
	default:
		return base + "/chat/completions"
	}
}

// BuildHeaders selects auth headers per family. Gemini takes
// x-goog-api-key for keys and a bearer token for OAuth; the Anthropic
// family takes x-api-key or a bearer token (some providers accept only
// x-api-key); everything else is a bearer token.
func (e *defaultExecutor) BuildHeaders(conn *credentials.Connection, stream bool) map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if stream {
		headers["Accept"] = "text/event-stream"
	}

	token := conn.AccessToken
	switch e.info.Family {
	case familyGemini:
		if conn.AuthType == credentials.AuthAPIKey {
			headers["x-goog-api-key"] = conn.APIKey
		} else {
			headers["Authorization"] = "Bearer " + token
		}
	case familyAnthropic:
		headers["anthropic-version"] = "2023-06-01"
		switch {
		case e.info.APIKeyHeader:
			headers["x-api-key"] = conn.APIKey
		case conn.AuthType == credentials.AuthAPIKey:
			headers["x-api-key"] = conn.APIKey
		default:
			headers["Authorization"] = "Bearer " + token
			headers["anthropic-beta"] = "oauth-2025-04-20"
		}
	default:
		if conn.AuthType == credentials.AuthAPIKey {
			token = conn.APIKey
		}
		headers["Authorization"] = "Bearer " + token
	}
	return headers
}

// TransformRequest pins the model and stream flag into the translated
// body. Gemini carries both in the URL instead.
func (e *defaultExecutor) TransformRequest(model string, body []byte, stream bool, conn *credentials.Connection) ([]byte, error) {
	if e.info.Family == familyGemini {
		return body, nil
	}
	var err error
	if body, err = sjson.SetBytes(body, "model", model); err != nil {
		return nil, fmt.Errorf("set model: %w", err)
	}
	if body, err = sjson.SetBytes(body, "stream", stream); err != nil {
		return nil, fmt.Errorf("set stream: %w", err)
	}
	return body, nil
}

// Execute issues one upstream call. Non-2xx responses come back as a
// Result, not an error; only transport failures error out.
func (e *defaultExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	body, err := e.TransformRequest(req.Model, req.Body, req.Stream, req.Conn)
	if err != nil {
		return nil, err
	}
	url := e.BuildURL(req.Model, req.Stream, 0, req.Conn)
	headers := e.BuildHeaders(req.Conn, req.Stream)
	return doRequest(ctx, e.client, e.info.ID, url, headers, body, req.Stream, e.log)
}

// doRequest is the shared HTTP call used by every executor. A
// non-streaming attempt is bounded by the default timeout and its body
// is fully read before returning; a streaming attempt's body stays open
// and lives until the caller's context cancels.
func doRequest(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body []byte, stream bool, log *slog.Logger) (*Result, error) {
	var cancel context.CancelFunc
	if !stream {
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Message: "build request", Cause: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Provider: provider, Timeout: defaultTimeout}
		}
		return nil, &ProviderError{Provider: provider, Message: "upstream request failed", Cause: err}
	}

	if !stream {
		// Read eagerly so the attempt deadline covers the whole body
		// and the caller is free of the request context.
		raw, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: "read upstream body", Cause: err}
		}
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}

	log.Debug("upstream response",
		"provider", provider,
		"status", resp.StatusCode,
		"stream", stream)

	return &Result{
		Response: resp,
		URL:      url,
		Headers:  redactHeaders(headers),
		Body:     body,
	}, nil
}

// redactHeaders masks credential-bearing header values for the debug
// log.
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch k {
		case "Authorization", "x-api-key", "x-goog-api-key":
			out[k] = mask(v)
		default:
			out[k] = v
		}
	}
	return out
}

func mask(v string) string {
	if len(v) <= 12 {
		return "***"
	}
	return v[:8] + "..." + v[len(v)-4:]
}
