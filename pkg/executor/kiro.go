package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/translate"
	"helios-hq/helios/pkg/wire"
)

// ssoOIDCTokenURL serves the social-auth Kiro variant.
const ssoOIDCTokenURL = "https://oidc.us-east-1.amazonaws.com/token"

// kiroExecutor talks to AWS CodeWhisperer. Requests go out as JSON;
// responses come back as binary EventStream frames, which the executor
// converts to OpenAI-style SSE chunks so the rest of the pipeline can
// treat Kiro as an OpenAI-shaped stream.
type kiroExecutor struct {
	info   ProviderInfo
	client *http.Client
	log    *slog.Logger

	// ssoURL is the SSO-OIDC token endpoint for social-auth connections.
	ssoURL string
}

func newKiroExecutor(info ProviderInfo, client *http.Client, log *slog.Logger) *kiroExecutor {
	return &kiroExecutor{info: info, client: client, log: log, ssoURL: ssoOIDCTokenURL}
}

func (e *kiroExecutor) Provider() string {
	return e.info.ID
}

func (e *kiroExecutor) Target() wire.Format {
	return e.info.Target
}

// BuildURL ignores model and stream: CodeWhisperer has one endpoint and
// always streams.
func (e *kiroExecutor) BuildURL(model string, stream bool, urlIndex int, conn *credentials.Connection) string {
	if conn != nil && conn.BaseURL != "" {
		return conn.BaseURL
	}
	return e.info.BaseURL
}

func (e *kiroExecutor) BuildHeaders(conn *credentials.Connection, stream bool) map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/x-amz-json-1.0",
		"Authorization": "Bearer " + conn.AccessToken,
	}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	return headers
}

// TransformRequest is the identity: the translator already produced the
// conversation-state body with the profile ARN embedded.
func (e *kiroExecutor) TransformRequest(model string, body []byte, stream bool, conn *credentials.Connection) ([]byte, error) {
	return body, nil
}

// Execute posts the JSON body and, on success, replaces the response
// body with a converter that turns EventStream frames into OpenAI SSE
// chunks. Error responses pass through untouched for classification.
func (e *kiroExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	url := e.BuildURL(req.Model, req.Stream, 0, req.Conn)
	headers := e.BuildHeaders(req.Conn, true)

	result, err := doRequest(ctx, e.client, e.info.ID, url, headers, req.Body, true, e.log)
	if err != nil {
		return nil, err
	}

	resp := result.Response
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		resp.Body = newKiroSSEReader(resp.Body, req.Model, e.log)
		resp.Header.Set("Content-Type", "text/event-stream")
	}
	return result, nil
}

// RefreshCredentials refreshes the Kiro token. The desktop variant
// posts {refreshToken} to the Kiro auth service; the social variant
// goes through AWS SSO-OIDC with the connection's registered client.
func (e *kiroExecutor) RefreshCredentials(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error) {
	if conn.RefreshToken == "" {
		return nil, nil
	}

	url := e.info.TokenURL
	body := map[string]string{"refreshToken": conn.RefreshToken}
	if conn.AuthMethod == "social" {
		url = e.ssoURL
		body = map[string]string{
			"clientId":     conn.ClientID,
			"clientSecret": conn.ClientSecret,
			"refreshToken": conn.RefreshToken,
			"grantType":    "refresh_token",
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
		ProfileArn   string `json:"profileArn"`
	}
	if !postJSON(ctx, e.client, url, nil, payload, &out, e.log, e.info.ID, conn.ID) {
		return nil, nil
	}
	return &credentials.Tokens{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    time.Duration(out.ExpiresIn) * time.Second,
		ProfileArn:   out.ProfileArn,
	}, nil
}

// kiroSSEReader converts EventStream frames into OpenAI chat-completion
// SSE chunks via an in-process pipe.
func newKiroSSEReader(upstream io.ReadCloser, model string, log *slog.Logger) io.ReadCloser {
	pr, pw := io.Pipe()
	conv := &kiroConverter{
		model:   model,
		id:      "chatcmpl-" + uuid.NewString(),
		created: time.Now().Unix(),
		log:     log,
	}

	go func() {
		defer upstream.Close()
		parser := &esParser{}
		buf := make([]byte, 4096)
		for {
			n, readErr := upstream.Read(buf)
			if n > 0 {
				parser.Feed(buf[:n])
				for {
					frame, err := parser.Next()
					if err != nil {
						log.Warn("eventstream parse error", "error", err)
						pw.CloseWithError(&ParseError{Provider: "kiro", Cause: err})
						return
					}
					if frame == nil {
						break
					}
					if err := conv.handle(frame, pw); err != nil {
						pw.CloseWithError(&StreamError{Provider: "kiro", Cause: err})
						return
					}
				}
			}
			if readErr != nil {
				// EOF or upstream failure: finish the stream cleanly
				// either way.
				conv.finish(pw)
				if readErr == io.EOF {
					pw.Close()
				} else {
					pw.CloseWithError(&StreamError{Provider: "kiro", Cause: readErr})
				}
				return
			}
		}
	}()
	return pr
}

// kiroConverter is the per-stream emission state machine.
type kiroConverter struct {
	model   string
	id      string
	created int64
	log     *slog.Logger

	roleEmitted   bool
	hasToolCalls  bool
	meteringSeen  bool
	finishEmitted bool

	// tools records toolUseIds in arrival order; a tool call's index is
	// its position here.
	tools []string
}

// kiroEvent is the JSON payload of a content-bearing frame.
type kiroEvent struct {
	Content   string `json:"content"`
	ToolUseID string `json:"toolUseId"`
	Name      string `json:"name"`
	Input     string `json:"input"`
	Stop      bool   `json:"stop"`
}

func (c *kiroConverter) handle(frame *esFrame, w io.Writer) error {
	switch frame.EventType {
	case "assistantResponseEvent", "codeEvent":
		var ev kiroEvent
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			c.log.Warn("kiro event payload malformed", "event", frame.EventType, "error", err)
			return nil
		}
		if ev.Content == "" {
			return nil
		}
		delta := translate.OpenAIDelta{Content: ev.Content}
		if !c.roleEmitted {
			c.roleEmitted = true
			delta.Role = "assistant"
		}
		return c.writeChunk(w, translate.OpenAIChunkChoice{Delta: delta})

	case "toolUseEvent":
		var ev kiroEvent
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			c.log.Warn("kiro event payload malformed", "event", frame.EventType, "error", err)
			return nil
		}
		if ev.ToolUseID == "" {
			return nil
		}
		c.hasToolCalls = true

		idx := c.toolIndex(ev.ToolUseID)
		if idx < 0 {
			// First sighting: allocate the next index and emit the
			// start chunk with empty arguments.
			idx = len(c.tools)
			c.tools = append(c.tools, ev.ToolUseID)
			i := idx
			start := translate.OpenAIChunkChoice{Delta: translate.OpenAIDelta{
				ToolCalls: []translate.OpenAIToolCall{{
					Index:    &i,
					ID:       ev.ToolUseID,
					Type:     "function",
					Function: translate.OpenAIFunctionCall{Name: ev.Name, Arguments: ""},
				}},
			}}
			if !c.roleEmitted {
				c.roleEmitted = true
				start.Delta.Role = "assistant"
			}
			if err := c.writeChunk(w, start); err != nil {
				return err
			}
		}
		if ev.Input == "" {
			return nil
		}
		i := idx
		return c.writeChunk(w, translate.OpenAIChunkChoice{Delta: translate.OpenAIDelta{
			ToolCalls: []translate.OpenAIToolCall{{
				Index:    &i,
				Function: translate.OpenAIFunctionCall{Arguments: ev.Input},
			}},
		}})

	case "messageStopEvent":
		return c.emitFinish(w)

	case "meteringEvent", "contextUsageEvent":
		c.meteringSeen = true
		return nil

	default:
		// Any non-metering event after metering marks end of content.
		if c.meteringSeen {
			return c.emitFinish(w)
		}
		return nil
	}
}

func (c *kiroConverter) toolIndex(toolUseID string) int {
	for i, id := range c.tools {
		if id == toolUseID {
			return i
		}
	}
	return -1
}

func (c *kiroConverter) emitFinish(w io.Writer) error {
	if c.finishEmitted {
		return nil
	}
	c.finishEmitted = true
	finish := "stop"
	if c.hasToolCalls {
		finish = "tool_calls"
	}
	return c.writeChunk(w, translate.OpenAIChunkChoice{
		Delta:        translate.OpenAIDelta{},
		FinishReason: &finish,
	})
}

// finish closes the stream: a finish chunk if none was emitted, then
// the OpenAI terminator.
func (c *kiroConverter) finish(w io.Writer) {
	_ = c.emitFinish(w)
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func (c *kiroConverter) writeChunk(w io.Writer, choice translate.OpenAIChunkChoice) error {
	chunk := translate.OpenAIChunk{
		ID:      c.id,
		Object:  "chat.completion.chunk",
		Created: c.created,
		Model:   c.model,
		Choices: []translate.OpenAIChunkChoice{choice},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal kiro chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
