package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/psgc-shape/internal/etl"
	"github.com/psgc-shape/internal/normalize"
)

// APIHandler serves a Report
type APIHandler struct {
	Report *etl.Report
}

// LevelSummary is the headline of one tier.
type LevelSummary struct {
	Level              string `json:"level"`
	Adm                int    `json:"adm"`
	Canonical          int    `json:"canonical"`
	Geometry           int    `json:"geometry"`
	Matched            int    `json:"matched"`
	UnmatchedCanonical int    `json:"unmatched_canonical"`
	UnmatchedGeometry  int    `json:"unmatched_geometry"`
	Ambiguities        int    `json:"ambiguities"`
	StaleOverrides     int    `json:"stale_overrides"`
	Findings           int    `json:"findings"`
}

// LevelsResponse lists every reconciled tier.
type LevelsResponse struct {
	Label       string         `json:"label"`
	GeneratedAt time.Time      `json:"generated_at"`
	Levels      []LevelSummary `json:"levels"`
}

// GetLevels returns a summary per tier in tier order.
func (h *APIHandler) GetLevels(w http.ResponseWriter, r *http.Request) {
	resp := LevelsResponse{Label: h.Report.Label, GeneratedAt: h.Report.GeneratedAt, Levels: []LevelSummary{}}

	for t := normalize.TierRegion; t <= normalize.TierBarangay; t++ {
		tr, ok := h.Report.Tiers[t]
		if !ok {
			continue
		}
		final := tr.Result.Final()
		resp.Levels = append(resp.Levels, LevelSummary{
			Level:              t.String(),
			Adm:                int(t),
			Canonical:          len(tr.Result.Canonical),
			Geometry:           len(tr.Result.Geometry),
			Matched:            final.Matched,
			UnmatchedCanonical: final.UnmatchedCanonical,
			UnmatchedGeometry:  final.UnmatchedGeometry,
			Ambiguities:        len(tr.Result.Ambiguities),
			StaleOverrides:     len(tr.Result.StaleOverrides()),
			Findings:           len(tr.Findings),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetStages returns the snapshot taken after every stage of a tier.
func (h *APIHandler) GetStages(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tr.Result.Stages)
}

// Health reports whether a report is loaded.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Report == nil || len(h.Report.Tiers) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no report loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tier resolves the {level} route variable, writing a 404 when the tier was
// not reconciled.
func (h *APIHandler) tier(w http.ResponseWriter, r *http.Request) (*etl.TierReport, bool) {
	level := mux.Vars(r)["level"]
	t, ok := normalize.ParseTier(level)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown level "+strconv.Quote(level))
		return nil, false
	}
	tr, ok := h.Report.Tiers[t]
	if !ok {
		writeError(w, http.StatusNotFound, t.String()+" was not reconciled")
		return nil, false
	}
	return tr, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if val, err := strconv.Atoi(s); err == nil && val > 0 {
		return val
	}
	return defaultVal
}
