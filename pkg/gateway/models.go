package gateway

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// handleModels lists the model names the gateway will route: every
// alias, every combo, and the default models of active connections.
func (g *Gateway) handleModels(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()
	entries := map[string]modelEntry{}

	for name, target := range g.store.Aliases() {
		provider, _, _ := strings.Cut(target, "/")
		entries[name] = modelEntry{ID: name, Object: "model", Created: now, OwnedBy: provider}
	}
	for name := range g.store.Combos() {
		entries[name] = modelEntry{ID: name, Object: "model", Created: now, OwnedBy: "combo"}
	}
	for _, conn := range g.store.AllConnections() {
		if !conn.IsActive || conn.DefaultModel == "" {
			continue
		}
		id := conn.Provider + "/" + conn.DefaultModel
		entries[id] = modelEntry{ID: id, Object: "model", Created: now, OwnedBy: conn.Provider}
	}

	out := modelList{Object: "list", Data: make([]modelEntry, 0, len(entries))}
	for _, e := range entries {
		out.Data = append(out.Data, e)
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].ID < out.Data[j].ID })

	writeJSON(w, http.StatusOK, out)
}
