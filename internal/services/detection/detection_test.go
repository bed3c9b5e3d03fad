package detection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/track", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "cam-7", r.FormValue("source_id"))

		if file, _, err := r.FormFile("file"); assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			assert.Equal(t, []byte("jpeg"), data)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[
			{"track_id": 4, "class": "person", "score": 0.91, "box": [10, 20, 30, 60]},
			{"track_id": null, "class": "person", "score": 0.4, "box": [0, 0, 5, 5]},
			{"track_id": 5, "class": "person", "score": 0.8, "box": [1, 2]}
		]}`))
	}))
	defer srv.Close()

	d := NewClient(srv.URL, time.Second).ForSource("cam-7")
	obs, err := d.Detect(context.Background(), models.Frame{Data: []byte("jpeg")})
	require.NoError(t, err)

	assert.Equal(t, []models.Observation{
		{TrackID: 4, Centroid: geometry.Point{X: 20, Y: 40}},
	}, obs)
}

func TestDetectUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ForSource("cam-7").Detect(context.Background(), models.Frame{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewClient("http://127.0.0.1:1", time.Second).ForSource("cam-7").Detect(context.Background(), models.Frame{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestObservationsEmpty(t *testing.T) {
	assert.Empty(t, Observations(nil))
}
