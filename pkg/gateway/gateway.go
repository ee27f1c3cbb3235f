package gateway

import (
	"log/slog"
	"net/http"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/executor"
	"helios-hq/helios/pkg/requestlog"
	"helios-hq/helios/pkg/state"
	"helios-hq/helios/pkg/telemetry/metrics"
	"helios-hq/helios/pkg/translate"
	"helios-hq/helios/pkg/usage"
)

// Deps are the collaborators the gateway composes. Snapshots may be
// nil when request logging is disabled.
type Deps struct {
	Store      *state.Store
	Selector   *credentials.Selector
	Executors  *executor.Registry
	Translator *translate.Registry
	Recorder   *usage.Recorder
	Inflight   *usage.Inflight
	LineLog    *requestlog.LineLog
	Snapshots  *requestlog.SnapshotStore
	Metrics    *metrics.Collector
	Log        *slog.Logger
}

// Gateway serves the chat and admin endpoints.
type Gateway struct {
	store      *state.Store
	selector   *credentials.Selector
	executors  *executor.Registry
	translator *translate.Registry
	recorder   *usage.Recorder
	inflight   *usage.Inflight
	lineLog    *requestlog.LineLog
	snapshots  *requestlog.SnapshotStore
	metrics    *metrics.Collector
	log        *slog.Logger
}

// New builds the gateway.
func New(d Deps) *Gateway {
	return &Gateway{
		store:      d.Store,
		selector:   d.Selector,
		executors:  d.Executors,
		translator: d.Translator,
		recorder:   d.Recorder,
		inflight:   d.Inflight,
		lineLog:    d.LineLog,
		snapshots:  d.Snapshots,
		metrics:    d.Metrics,
		log:        d.Log,
	}
}

// Routes returns the full handler with middleware applied.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()

	// Chat endpoints: one handler, dispatched by format detection.
	mux.HandleFunc("POST /v1/chat/completions", g.handleChat)
	mux.HandleFunc("POST /v1/messages", g.handleChat)
	mux.HandleFunc("POST /v1/responses", g.handleChat)
	mux.HandleFunc("POST /v1beta/models/{modelAction}", g.handleGeminiChat)

	mux.HandleFunc("GET /v1/models", g.handleModels)
	mux.HandleFunc("GET /healthz", g.handleHealth)
	if g.metrics != nil {
		mux.Handle("GET /metrics", g.metrics.Handler())
	}

	// Admin surface.
	mux.HandleFunc("GET /admin/connections", g.handleListConnections)
	mux.HandleFunc("POST /admin/connections", g.handleAddConnection)
	mux.HandleFunc("PUT /admin/connections/{id}", g.handleUpdateConnection)
	mux.HandleFunc("DELETE /admin/connections/{id}", g.handleDeleteConnection)

	mux.HandleFunc("GET /admin/aliases", g.handleListAliases)
	mux.HandleFunc("PUT /admin/aliases/{name}", g.handleSetAlias)
	mux.HandleFunc("DELETE /admin/aliases/{name}", g.handleDeleteAlias)

	mux.HandleFunc("GET /admin/combos", g.handleListCombos)
	mux.HandleFunc("PUT /admin/combos/{name}", g.handleSetCombo)
	mux.HandleFunc("DELETE /admin/combos/{name}", g.handleDeleteCombo)

	mux.HandleFunc("GET /admin/pricing", g.handleListPricing)
	mux.HandleFunc("PUT /admin/pricing/{key...}", g.handleSetPricing)
	mux.HandleFunc("DELETE /admin/pricing/{key...}", g.handleDeletePricing)

	mux.HandleFunc("GET /admin/settings", g.handleGetSettings)
	mux.HandleFunc("PUT /admin/settings", g.handleUpdateSettings)
	mux.HandleFunc("POST /admin/password", g.handleSetPassword)
	mux.HandleFunc("POST /admin/password/verify", g.handleVerifyPassword)

	mux.HandleFunc("GET /admin/usage", g.handleUsage)
	mux.HandleFunc("GET /admin/inflight", g.handleInflight)
	mux.HandleFunc("GET /admin/logs", g.handleLogs)
	mux.HandleFunc("GET /admin/requests", g.handleRequestSnapshots)

	return chain(mux,
		recoveryMiddleware(g.log),
		requestIDMiddleware,
		corsMiddleware,
	)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
