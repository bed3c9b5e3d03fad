package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// GetDiversionHandler предлагает ближайший незагруженный источник
func (h *Handlers) GetDiversionHandler(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["source_id"]

	div, ok := h.statuses.NearestClear(sourceID)
	if !ok {
		http.Error(w, "Crowded source not found or inactive", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, div)
}
