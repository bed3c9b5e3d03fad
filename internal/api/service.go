package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// StatusReader is the read side of the live status cache.
type StatusReader interface {
	GetAll() map[string]models.LiveStatus
	GetOne(sourceID string) (models.LiveStatus, bool)
	NearestClear(sourceID string) (models.Diversion, bool)
}

type Handlers struct {
	statuses StatusReader
}

func NewHandlers(statuses StatusReader) *Handlers {
	return &Handlers{statuses: statuses}
}

// NewRouter registers the read API. metrics may be nil.
func NewRouter(h *Handlers, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", h.GetAllStatusHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/status/{source_id}", h.GetStatusHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/diversion/{source_id}", h.GetDiversionHandler).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
