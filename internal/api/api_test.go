package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/livestatus"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

func newTestRouter(t *testing.T) (*livestatus.Cache, http.Handler) {
	t.Helper()

	cache := livestatus.New()
	require.NoError(t, cache.UpsertConfig("plaza", models.SourceConfig{
		Name: "Plaza", AreaName: "North", Mode: models.ModeGeneral, CrowdThreshold: 10, AreaSqMeters: 50, IsActive: true,
	}))
	require.NoError(t, cache.UpsertConfig("door", models.SourceConfig{
		Name: "Door", Mode: models.ModeTripwire, OccupancyThreshold: 5, IsActive: true,
	}))
	require.NoError(t, cache.UpsertConfig("attic", models.SourceConfig{
		Mode: models.ModeGeneral, IsActive: false,
	}))
	cache.UpdateStatus("plaza", 12, 0.24, 0)

	m := metrics.New()
	m.FrameProcessed("plaza")
	return cache, NewRouter(NewHandlers(cache), m.Handler())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetAllStatus(t *testing.T) {
	_, router := newTestRouter(t)

	rec := get(t, router, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]models.LiveStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Len(t, body, 2)
	assert.Equal(t, 12, body["plaza"].PersonCount)
	assert.True(t, body["plaza"].IsOverThreshold)
	assert.Equal(t, "North", body["plaza"].AreaName)
	assert.NotContains(t, body, "attic")
}

func TestGetOneStatus(t *testing.T) {
	_, router := newTestRouter(t)

	rec := get(t, router, "/api/status/door")
	require.Equal(t, http.StatusOK, rec.Code)

	var st models.LiveStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "door", st.SourceID)
	assert.Equal(t, models.ModeTripwire, st.Mode)
	assert.False(t, st.IsOverThreshold)
}

func TestGetOneStatusNotFound(t *testing.T) {
	_, router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/status/attic").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/status/nowhere").Code)
}

func TestStatusWriteIsRejected(t *testing.T) {
	_, router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status/door", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := newTestRouter(t)

	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crowdflow_frames_processed_total{source_id="plaza"} 1`)
}

func TestGetDiversion(t *testing.T) {
	cache, router := newTestRouter(t)

	lat, lon := 55.75, 37.62
	plaza, ok := cache.Config("plaza")
	require.True(t, ok)
	plaza.Latitude, plaza.Longitude = &lat, &lon
	require.NoError(t, cache.UpsertConfig("plaza", plaza))

	doorLat, doorLon := 55.751, 37.621
	door, ok := cache.Config("door")
	require.True(t, ok)
	door.Latitude, door.Longitude = &doorLat, &doorLon
	require.NoError(t, cache.UpsertConfig("door", door))

	rec := get(t, router, "/api/diversion/plaza")
	require.Equal(t, http.StatusOK, rec.Code)

	var div models.Diversion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &div))
	assert.Equal(t, "plaza", div.Crowded.SourceID)
	require.NotNil(t, div.Target)
	assert.Equal(t, "door", div.Target.SourceID)
	assert.Equal(t, "Divert from Plaza towards Door.", div.Message)
}

func TestGetDiversionNotFound(t *testing.T) {
	_, router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/diversion/attic").Code)
}
