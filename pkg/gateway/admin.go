package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/state"
	"helios-hq/helios/pkg/usage"
)

// Connections.

func (g *Gateway) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns := g.store.AllConnections()
	out := make([]*credentials.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var conn credentials.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeError(w, http.StatusBadRequest, "decode connection: "+err.Error())
		return
	}
	if conn.Provider == "" {
		writeError(w, http.StatusBadRequest, "missing required field: provider")
		return
	}
	if conn.AuthType == "" {
		conn.AuthType = credentials.AuthAPIKey
	}
	conn.IsActive = true
	if err := g.store.AddConnection(&conn); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	g.log.Info("connection added", "provider", conn.Provider, "connection", conn.ID)
	writeJSON(w, http.StatusCreated, conn.Redacted())
}

// handleUpdateConnection merges the request body over the stored
// record, so omitted secrets survive an edit from the dashboard.
func (g *Gateway) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing := g.store.Connection(id)
	if existing == nil {
		writeError(w, http.StatusNotFound, "connection "+id+" not found")
		return
	}

	updated := existing.Clone()
	if err := json.NewDecoder(r.Body).Decode(updated); err != nil {
		writeError(w, http.StatusBadRequest, "decode connection: "+err.Error())
		return
	}
	updated.ID = id
	if err := g.store.Update(updated); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated.Redacted())
}

func (g *Gateway) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := g.store.DeleteConnection(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	g.log.Info("connection deleted", "connection", id)
	w.WriteHeader(http.StatusNoContent)
}

// Aliases.

func (g *Gateway) handleListAliases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.store.Aliases())
}

func (g *Gateway) handleSetAlias(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode alias: "+err.Error())
		return
	}
	if !strings.Contains(body.Target, "/") {
		writeError(w, http.StatusBadRequest, `alias target must be "provider/model"`)
		return
	}
	if err := g.store.SetAlias(name, body.Target); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{name: body.Target})
}

func (g *Gateway) handleDeleteAlias(w http.ResponseWriter, r *http.Request) {
	if err := g.store.DeleteAlias(r.PathValue("name")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Combos.

func (g *Gateway) handleListCombos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.store.Combos())
}

func (g *Gateway) handleSetCombo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode combo: "+err.Error())
		return
	}
	if len(body.Models) == 0 {
		writeError(w, http.StatusBadRequest, "combo needs at least one model")
		return
	}
	if err := g.store.SetCombo(name, body.Models); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{name: body.Models})
}

func (g *Gateway) handleDeleteCombo(w http.ResponseWriter, r *http.Request) {
	if err := g.store.DeleteCombo(r.PathValue("name")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pricing. The key path segment is "provider/model", so the route uses
// a trailing wildcard.

func (g *Gateway) handleListPricing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.store.PricingTable())
}

func (g *Gateway) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var p usage.Pricing
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "decode pricing: "+err.Error())
		return
	}
	if err := g.store.SetPricing(key, p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]usage.Pricing{key: p})
}

func (g *Gateway) handleDeletePricing(w http.ResponseWriter, r *http.Request) {
	if err := g.store.DeletePricing(r.PathValue("key")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Settings.

func (g *Gateway) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings := g.store.Settings()
	settings.PasswordHash = ""
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings replaces the settings block except the password
// hash, which only the password endpoints touch.
func (g *Gateway) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings state.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "decode settings: "+err.Error())
		return
	}
	settings.PasswordHash = g.store.Settings().PasswordHash
	if err := g.store.UpdateSettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	settings.PasswordHash = ""
	writeJSON(w, http.StatusOK, settings)
}

// Password.

func (g *Gateway) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode password: "+err.Error())
		return
	}
	if body.Password == "" {
		writeError(w, http.StatusBadRequest, "password must not be empty")
		return
	}
	if err := g.store.SetPassword(body.Password); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode password: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": g.store.CheckPassword(body.Password)})
}

// Observability.

func (g *Gateway) handleUsage(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since duration: "+raw)
			return
		}
		window = d
	}
	since := time.Now().Add(-window)
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  since,
		"totals": g.recorder.Summary(since),
	})
}

func (g *Gateway) handleInflight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.inflight.ByModel())
}

func (g *Gateway) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"lines": g.lineLog.Lines()})
}

func (g *Gateway) handleRequestSnapshots(w http.ResponseWriter, r *http.Request) {
	if g.snapshots == nil {
		writeError(w, http.StatusNotFound, "request logging is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}
	snaps, err := g.snapshots.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}
