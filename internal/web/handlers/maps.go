package handlers

import (
	"net/http"

	"github.com/psgc-shape/internal/export"
	"github.com/psgc-shape/internal/hierarchy"
)

// GetGeoJSON returns the tier's joined boundaries as a FeatureCollection.
// ?status=matched or ?status=unmatched narrows the features.
func (h *APIHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.tier(w, r)
	if !ok {
		return
	}

	rows := tr.Rows
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "matched", "unmatched":
		rows = filterRows(rows, status == "matched")
	default:
		writeError(w, http.StatusBadRequest, "status must be matched or unmatched")
		return
	}

	data, err := export.FeatureCollection(tr.Result.Tier, rows).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode features")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func filterRows(rows []hierarchy.Row, matched bool) []hierarchy.Row {
	var out []hierarchy.Row
	for i := range rows {
		if rows[i].Matched() == matched {
			out = append(out, rows[i])
		}
	}
	return out
}
