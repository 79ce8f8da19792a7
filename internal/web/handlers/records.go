package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/override"
	"github.com/psgc-shape/internal/validation"
)

// UnmatchedResponse is one side of a tier's final unmatched report.
type UnmatchedResponse struct {
	Side  engine.Side  `json:"side"`
	Total int          `json:"total"`
	Rows  []engine.Row `json:"rows"`
}

// GetUnmatched returns the final unmatched rows of one side, sorted by name.
// ?name= keeps rows whose name contains the value; ?limit= caps the rows.
func (h *APIHandler) GetUnmatched(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}

	var rows []engine.Row
	side := engine.Side(mux.Vars(r)["side"])
	switch side {
	case engine.SideCanonical:
		rows = tr.Result.UnmatchedCanonical
	case engine.SideGeometry:
		rows = tr.Result.UnmatchedGeometry
	default:
		writeError(w, http.StatusBadRequest, "side must be canonical or geometry")
		return
	}

	query := r.URL.Query()
	if name := strings.ToLower(query.Get("name")); name != "" {
		var filtered []engine.Row
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Name), name) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	total := len(rows)
	if limit := parseIntParam(query.Get("limit"), total); limit < total {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []engine.Row{}
	}

	writeJSON(w, http.StatusOK, UnmatchedResponse{Side: side, Total: total, Rows: rows})
}

// GetAmbiguities returns every ambiguity logged for a tier.
func (h *APIHandler) GetAmbiguities(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}
	ambiguities := tr.Result.Ambiguities
	if ambiguities == nil {
		ambiguities = []engine.Ambiguity{}
	}
	writeJSON(w, http.StatusOK, ambiguities)
}

// OverrideResponse is an override outcome with its stale flag spelled out.
type OverrideResponse struct {
	override.Outcome
	Stale bool `json:"stale"`
}

// GetOverrides returns the outcome of every override rule of a tier.
// ?stale=true keeps only rules that found nothing.
func (h *APIHandler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}
	staleOnly := r.URL.Query().Get("stale") == "true"

	resp := []OverrideResponse{}
	for _, o := range tr.Result.Overrides {
		if staleOnly && !o.Stale() {
			continue
		}
		resp = append(resp, OverrideResponse{Outcome: o, Stale: o.Stale()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFindings returns the validation findings of a tier's joined table.
func (h *APIHandler) GetFindings(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}
	findings := tr.Findings
	if findings == nil {
		findings = []validation.Finding{}
	}
	writeJSON(w, http.StatusOK, findings)
}
