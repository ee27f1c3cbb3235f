package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/executor"
	"helios-hq/helios/pkg/requestlog"
	"helios-hq/helios/pkg/stream"
	"helios-hq/helios/pkg/translate"
	"helios-hq/helios/pkg/usage"
	"helios-hq/helios/pkg/wire"
)

// refreshAttempts bounds the 401/403 recovery loop.
const refreshAttempts = 3

// attemptInput is everything one upstream attempt needs.
type attemptInput struct {
	w         http.ResponseWriter
	r         *http.Request
	body      []byte
	src       wire.Format
	streaming bool
	tgt       target
	conn      *credentials.Connection
	overrides map[string]string
	pricing   map[string]usage.Pricing
}

// attempt runs one account attempt end to end. When delivered is true
// the response (success or committed stream) already went to the
// client; otherwise fail describes the upstream error for the fallback
// policy, and nothing was written downstream.
func (g *Gateway) attempt(in *attemptInput) (delivered bool, fail upstreamError) {
	ctx := in.r.Context()

	targetFormat := g.targetFormat(in)
	model := in.tgt.model
	if in.conn.DefaultModel != "" {
		model = in.conn.DefaultModel
	}

	translated, names, err := g.translator.TranslateRequest(in.src, targetFormat, &translate.Request{
		Model:    model,
		Body:     in.body,
		Stream:   in.streaming,
		Provider: in.tgt.provider,
		Credentials: translate.Credentials{
			AuthType:   in.conn.AuthType,
			ProfileArn: in.conn.ProfileArn,
			ProjectID:  in.conn.ProjectID,
		},
	})
	if err != nil {
		return false, upstreamError{Status: http.StatusBadRequest, Message: fmt.Sprintf("translate request: %v", err)}
	}

	snap := &requestlog.Snapshot{
		ID:           RequestIDFromContext(ctx),
		Provider:     in.tgt.provider,
		Model:        model,
		ClientBody:   in.body,
		SourceFormat: in.src.String(),
		TargetFormat: targetFormat.String(),
		UpstreamBody: translated,
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	account := in.conn.Name
	if account == "" {
		account = in.conn.ID
	}

	done := g.inflight.Start(in.tgt.provider, in.conn.ID, model)
	defer done()
	g.lineLog.Append(time.Now(), model, in.tgt.provider, account, 0, 0, "PENDING")

	started := time.Now()
	exec := g.executors.For(in.conn)
	req := &executor.Request{Model: model, Body: translated, Stream: in.streaming, Conn: in.conn}

	result, err := exec.Execute(ctx, req)
	if err != nil {
		fail = transportFailure(err)
		g.finishFailed(in, snap, account, model, fail, started)
		return false, fail
	}

	// One refresh-with-retry cycle on an auth rejection, then a single
	// re-execution with the new token.
	if result.Response.StatusCode == http.StatusUnauthorized || result.Response.StatusCode == http.StatusForbidden {
		drainResult(result)
		if refreshed := g.refreshWithRetry(ctx, in.conn); refreshed != nil {
			in.conn = refreshed
			req.Conn = refreshed
			result, err = exec.Execute(ctx, req)
			if err != nil {
				fail = transportFailure(err)
				g.finishFailed(in, snap, account, model, fail, started)
				return false, fail
			}
		} else {
			fail = upstreamError{Status: result.Response.StatusCode, Message: "authentication failed and refresh did not recover"}
			g.finishFailed(in, snap, account, model, fail, started)
			return false, fail
		}
	}

	snap.UpstreamURL = result.URL
	snap.UpstreamHeaders = flattenHeaders(result.Headers)

	resp := result.Response
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		fail = parseUpstreamError(resp.StatusCode, resp.Header.Get("Retry-After"), raw)
		snap.Response = raw
		g.finishFailed(in, snap, account, model, fail, started)
		return false, fail
	}

	// Response handling follows the format the request was translated
	// to, which a target override may have changed from the executor's
	// default.
	upstreamFormat := targetFormat
	if in.streaming {
		g.serveStream(in, snap, account, model, upstreamFormat, names, resp, started)
		return true, upstreamError{}
	}

	body, err := g.collectBody(resp)
	if err != nil {
		fail = upstreamError{Status: http.StatusBadGateway, Message: fmt.Sprintf("read upstream response: %v", err)}
		g.finishFailed(in, snap, account, model, fail, started)
		return false, fail
	}

	u := extractUsage(upstreamFormat, body)
	out, err := g.translator.TranslateResponse(upstreamFormat, in.src, body, names)
	if err != nil {
		fail = upstreamError{Status: http.StatusBadGateway, Message: fmt.Sprintf("translate response: %v", err)}
		g.finishFailed(in, snap, account, model, fail, started)
		return false, fail
	}

	snap.Response = out
	snap.Status = http.StatusOK
	g.saveSnapshot(ctx, snap)
	g.recordSuccess(in, account, model, u, started, false)
	writeRawJSON(in.w, http.StatusOK, out)
	return true, upstreamError{}
}

// serveStream pipes the upstream stream to the client, translating when
// the formats differ. The response is committed here; later failures
// can only end the stream, not change the status.
func (g *Gateway) serveStream(in *attemptInput, snap *requestlog.Snapshot, account, model string, upstreamFormat wire.Format, names translate.ToolNameMap, resp *http.Response, started time.Time) {
	ctx := in.r.Context()

	p := &stream.Pipeline{Log: g.log}
	if wire.Normalize(upstreamFormat) == wire.Normalize(in.src) {
		format := upstreamFormat
		p.Extract = func(event string, data []byte) *translate.OpenAIUsage {
			return extractUsage(format, data)
		}
	} else {
		tr, err := g.translator.NewStreamTranslator(upstreamFormat, in.src, model, names)
		if err != nil {
			// No translator edge; fall back to passthrough rather than
			// dropping a committed request.
			g.log.Error("no stream translator", "from", upstreamFormat, "to", in.src, "error", err)
		} else {
			p.Translator = tr
		}
	}

	var recorded *translate.OpenAIUsage
	p.OnUsage = func(u *translate.OpenAIUsage) {
		recorded = u
	}

	err := p.Run(ctx, resp.Body, in.w)
	_ = resp.Body.Close()

	status := http.StatusOK
	statusLine := "200"
	if err == stream.ErrClientGone {
		status = 499
		statusLine = "499"
		g.log.Info("client disconnected mid-stream",
			"provider", in.tgt.provider,
			"model", model,
			"request_id", RequestIDFromContext(ctx))
	} else if err != nil {
		g.log.Warn("upstream stream broke", "provider", in.tgt.provider, "error", err)
	}

	sent, recv := usageTokens(recorded)
	g.lineLog.Append(time.Now(), model, in.tgt.provider, account, sent, recv, statusLine)
	g.recordMetrics(in.tgt.provider, model, statusLine, started)
	g.persistUsage(in, model, recorded, status, started, true)
	if status == http.StatusOK {
		g.selector.ClearError(in.conn)
	}

	snap.Status = status
	snap.Response = []byte("(streamed)")
	g.saveSnapshot(ctx, snap)
}

// collectBody reads a non-streaming upstream body. A provider that only
// streams (Kiro) answers with SSE chunks even for non-streaming
// clients; those are folded into one response first.
func (g *Gateway) collectBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		collected, err := stream.Collect(resp.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(collected)
	}
	return io.ReadAll(resp.Body)
}

func (g *Gateway) targetFormat(in *attemptInput) wire.Format {
	if in.overrides != nil {
		if name, ok := in.overrides[in.tgt.provider+"/"+in.tgt.model]; ok {
			return wire.Format(name)
		}
	}
	return executor.TargetFormat(in.tgt.provider, in.conn.APIType)
}

// refreshWithRetry drives the provider refresh up to refreshAttempts
// times with a short backoff, returning the refreshed connection or
// nil. Providers without a refresh flow give up immediately.
func (g *Gateway) refreshWithRetry(ctx context.Context, conn *credentials.Connection) *credentials.Connection {
	if g.executors.Refresher(conn.Provider) == nil {
		return nil
	}
	for i := 0; i < refreshAttempts; i++ {
		if refreshed := g.selector.Refresh(ctx, conn); refreshed != nil {
			g.metrics.RecordRefresh(conn.Provider, "success")
			return refreshed
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(i+1) * 250 * time.Millisecond):
		}
	}
	g.metrics.RecordRefresh(conn.Provider, "error")
	return nil
}

func (g *Gateway) finishFailed(in *attemptInput, snap *requestlog.Snapshot, account, model string, fail upstreamError, started time.Time) {
	statusLine := strconv.Itoa(fail.Status)
	if fail.Status == 0 {
		statusLine = "FAILED"
	}
	g.lineLog.Append(time.Now(), model, in.tgt.provider, account, 0, 0, statusLine)
	g.recordMetrics(in.tgt.provider, model, statusLine, started)

	snap.Status = fail.Status
	snap.Error = fail.Message
	g.saveSnapshot(in.r.Context(), snap)
}

func (g *Gateway) recordSuccess(in *attemptInput, account, model string, u *translate.OpenAIUsage, started time.Time, streamed bool) {
	sent, recv := usageTokens(u)
	g.lineLog.Append(time.Now(), model, in.tgt.provider, account, sent, recv, "200")
	g.recordMetrics(in.tgt.provider, model, "200", started)
	g.persistUsage(in, model, u, http.StatusOK, started, streamed)
	g.selector.ClearError(in.conn)
}

// persistUsage writes the usage entry exactly once per request.
func (g *Gateway) persistUsage(in *attemptInput, model string, u *translate.OpenAIUsage, status int, started time.Time, streamed bool) {
	tokens := toTokens(u)
	cost := usage.Cost(in.pricing, in.tgt.provider, model, tokens)
	g.metrics.RecordTokens(in.tgt.provider, model, tokens.Prompt, tokens.Completion)
	g.metrics.RecordCost(in.tgt.provider, model, cost)
	g.recorder.Add(usage.Record{
		Provider:     in.tgt.provider,
		ConnectionID: in.conn.ID,
		Model:        model,
		Tokens:       tokens,
		Cost:         cost,
		Status:       status,
		DurationMS:   time.Since(started).Milliseconds(),
		Stream:       streamed,
	})
}

func (g *Gateway) recordMetrics(provider, model, status string, started time.Time) {
	g.metrics.RecordRequest(provider, model, status, time.Since(started))
}

func (g *Gateway) saveSnapshot(ctx context.Context, snap *requestlog.Snapshot) {
	if g.snapshots == nil || !g.store.Settings().RequestLogs {
		return
	}
	if err := g.snapshots.Save(context.WithoutCancel(ctx), snap); err != nil {
		g.log.Warn("snapshot save failed", "id", snap.ID, "error", err)
	}
}

func transportFailure(err error) upstreamError {
	if _, ok := err.(*executor.TimeoutError); ok {
		return upstreamError{Status: http.StatusGatewayTimeout, Message: err.Error()}
	}
	return upstreamError{Status: 0, Message: err.Error()}
}

func drainResult(result *executor.Result) {
	if result != nil && result.Response != nil && result.Response.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(result.Response.Body, 4096))
		_ = result.Response.Body.Close()
	}
}

func flattenHeaders(headers map[string]string) string {
	var sb strings.Builder
	for k, v := range headers {
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
	}
	return sb.String()
}

func usageTokens(u *translate.OpenAIUsage) (sent, recv int) {
	if u == nil {
		return 0, 0
	}
	return u.PromptTokens, u.CompletionTokens
}

func toTokens(u *translate.OpenAIUsage) usage.Tokens {
	if u == nil {
		return usage.Tokens{}
	}
	t := usage.Tokens{
		Prompt:     u.PromptTokens,
		Completion: u.CompletionTokens,
	}
	if u.PromptTokensDetails != nil {
		t.Cached = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		t.Reasoning = u.CompletionTokensDetails.ReasoningTokens
	}
	return t
}
