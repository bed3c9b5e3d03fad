package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// GetAllStatusHandler отдаёт текущее состояние всех активных источников
func (h *Handlers) GetAllStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statuses.GetAll())
}

// GetStatusHandler отдаёт текущее состояние одного источника
func (h *Handlers) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sourceID := vars["source_id"]

	st, ok := h.statuses.GetOne(sourceID)
	if !ok {
		http.Error(w, "Source not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, st)
}
