package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/wire"
)

// copilotTokenURL exchanges a GitHub OAuth token for a short-lived
// Copilot API token.
const copilotTokenURL = "https://api.github.com/copilot_internal/v2/token"

// copilotExecutor serves GitHub Copilot. The API is OpenAI-shaped but
// authenticates with a short-lived token exchanged from the stored
// GitHub token and wants editor-identifying headers.
type copilotExecutor struct {
	info   ProviderInfo
	client *http.Client
	log    *slog.Logger
}

func newCopilotExecutor(info ProviderInfo, client *http.Client, log *slog.Logger) *copilotExecutor {
	return &copilotExecutor{info: info, client: client, log: log}
}

func (e *copilotExecutor) Provider() string {
	return e.info.ID
}

func (e *copilotExecutor) Target() wire.Format {
	return e.info.Target
}

func (e *copilotExecutor) BuildURL(model string, stream bool, urlIndex int, conn *credentials.Connection) string {
	base := e.info.BaseURL
	if conn != nil && conn.BaseURL != "" {
		base = conn.BaseURL
	}
	return base + "/chat/completions"
}

func (e *copilotExecutor) BuildHeaders(conn *credentials.Connection, stream bool) map[string]string {
	headers := map[string]string{
		"Content-Type":           "application/json",
		"Authorization":          "Bearer " + conn.AccessToken,
		"Editor-Version":         "vscode/1.99.0",
		"Editor-Plugin-Version":  "copilot-chat/0.26.0",
		"Copilot-Integration-Id": "vscode-chat",
	}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	return headers
}

// TransformRequest pins model and stream like the OpenAI family; the
// translator already stripped the fields Copilot rejects.
func (e *copilotExecutor) TransformRequest(model string, body []byte, stream bool, conn *credentials.Connection) ([]byte, error) {
	d := defaultExecutor{info: e.info}
	return d.TransformRequest(model, body, stream, conn)
}

func (e *copilotExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	body, err := e.TransformRequest(req.Model, req.Body, req.Stream, req.Conn)
	if err != nil {
		return nil, err
	}
	url := e.BuildURL(req.Model, req.Stream, 0, req.Conn)
	headers := e.BuildHeaders(req.Conn, req.Stream)
	return doRequest(ctx, e.client, e.info.ID, url, headers, body, req.Stream, e.log)
}

// RefreshCredentials exchanges the stored GitHub OAuth token (kept in
// RefreshToken) for a Copilot API token. The exchange is a GET with the
// GitHub token in a "token" Authorization scheme.
func (e *copilotExecutor) RefreshCredentials(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error) {
	if conn.RefreshToken == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, copilotTokenURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+conn.RefreshToken)
	req.Header.Set("Editor-Version", "vscode/1.99.0")
	req.Header.Set("Editor-Plugin-Version", "copilot-chat/0.26.0")

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Warn("token exchange failed", "provider", e.info.ID, "connection", conn.ID, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.log.Warn("token exchange declined",
			"provider", e.info.ID,
			"connection", conn.ID,
			"status", resp.StatusCode,
			"body", string(body))
		return nil, nil
	}

	var out struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.log.Warn("token exchange response malformed", "provider", e.info.ID, "error", err)
		return nil, nil
	}

	tokens := &credentials.Tokens{AccessToken: out.Token}
	if out.ExpiresAt > 0 {
		tokens.ExpiresIn = time.Until(time.Unix(out.ExpiresAt, 0))
	}
	return tokens, nil
}
