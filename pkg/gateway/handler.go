package gateway

import (
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/usage"
	"helios-hq/helios/pkg/wire"
)

// maxBodySize bounds client request bodies.
const maxBodySize = 20 << 20

// handleChat serves the OpenAI, Anthropic, and Responses chat paths.
// The body is classified by shape, so a Claude-format request posted to
// /v1/chat/completions still routes correctly.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	src := wire.Detect(body, wire.DetectOptions{
		AnthropicVersionHeader: r.Header.Get("anthropic-version") != "",
	})
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		writeError(w, http.StatusBadRequest, "missing required field: model")
		return
	}
	streaming := wire.StreamRequested(src, body)

	g.serveChat(w, r, body, src, model, streaming)
}

// handleGeminiChat serves /v1beta/models/{model}:generateContent and
// :streamGenerateContent. Gemini puts the model and the streaming
// choice in the URL rather than the body.
func (g *Gateway) handleGeminiChat(w http.ResponseWriter, r *http.Request) {
	modelAction := r.PathValue("modelAction")
	model, action, ok := strings.Cut(modelAction, ":")
	if !ok || model == "" {
		writeError(w, http.StatusBadRequest, "expected models/{model}:generateContent")
		return
	}

	var streaming bool
	switch action {
	case "generateContent":
	case "streamGenerateContent":
		streaming = true
	default:
		writeError(w, http.StatusNotFound, "unknown action "+action)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	g.serveChat(w, r, body, wire.FormatGemini, model, streaming)
}

// serveChat is the shared chat core: probe bypass, model resolution,
// then the target and account fallback loops.
func (g *Gateway) serveChat(w http.ResponseWriter, r *http.Request, body []byte, src wire.Format, model string, streaming bool) {
	if isProbe(src, body, r.Header.Get("User-Agent")) {
		g.log.Debug("probe bypassed", "model", model, "format", src)
		writeSynthetic(w, src, model, streaming)
		return
	}

	targets, err := resolveModel(model, g.store.Aliases(), g.store.Combos())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings := g.store.Settings()
	pricing := g.store.PricingTable()

	var last upstreamError
	seen := false

	for i, tgt := range targets {
		outcome := g.serveTarget(w, r, body, src, streaming, tgt, settings.TargetOverrides, pricing)
		if outcome.delivered {
			return
		}
		if outcome.tried {
			seen = true
			last = outcome.fail
			if outcome.fatal {
				// A caller-fault error cannot be cured by another target.
				writeError(w, outcome.fail.Status, outcome.fail.Message)
				return
			}
		}
		if i < len(targets)-1 {
			g.log.Info("falling back to next target",
				"model", model,
				"provider", tgt.provider,
				"request_id", RequestIDFromContext(r.Context()))
		}
	}

	if !seen {
		writeError(w, http.StatusServiceUnavailable, "no available connection for model "+model)
		return
	}
	writeError(w, http.StatusServiceUnavailable, last.Message)
}

// targetOutcome is the result of exhausting one target's accounts.
// tried is false when no account was available at all; fatal marks a
// caller-fault error that fallback cannot cure.
type targetOutcome struct {
	delivered bool
	tried     bool
	fatal     bool
	fail      upstreamError
}

// serveTarget walks the eligible accounts of one (provider, model)
// target, cooling down each failed connection per the fallback policy.
func (g *Gateway) serveTarget(w http.ResponseWriter, r *http.Request, body []byte, src wire.Format, streaming bool, tgt target, overrides map[string]string, pricing map[string]usage.Pricing) targetOutcome {
	ctx := r.Context()
	out := targetOutcome{}

	for {
		conn := g.selector.Pick(ctx, tgt.provider, "", tgt.model)
		if conn == nil {
			return out
		}
		out.tried = true

		in := &attemptInput{
			w:         w,
			r:         r,
			body:      body,
			src:       src,
			streaming: streaming,
			tgt:       tgt,
			conn:      conn,
			overrides: overrides,
			pricing:   pricing,
		}
		delivered, fail := g.attempt(in)
		if delivered {
			out.delivered = true
			return out
		}
		out.fail = fail

		decision := credentials.Classify(fail.Status, fail.RetryAfter, conn.Failures)
		if !decision.ShouldFallback {
			out.fatal = true
			return out
		}

		g.selector.MarkUnavailable(conn, fail.Status, fail.Message, decision.Cooldown)
		g.metrics.RecordFallback(tgt.provider, fallbackReason(fail.Status))

		if ctx.Err() != nil {
			return out
		}
		// The cooled-down connection is no longer eligible; Pick moves
		// on to the next account.
	}
}

func fallbackReason(status int) string {
	switch {
	case status == 0:
		return "network"
	case status == 429:
		return "rate_limit"
	case status == 401 || status == 403:
		return "auth"
	case status == 402 || status == 451:
		return "quota"
	case status >= 500:
		return "upstream"
	default:
		return "other"
	}
}
