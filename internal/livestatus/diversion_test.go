package livestatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

func located(id string, lat, lon float64) models.SourceConfig {
	cfg := generalConfig(id)
	cfg.Latitude = &lat
	cfg.Longitude = &lon
	return cfg
}

func diversionCache(t *testing.T) *Cache {
	t.Helper()
	c := New()

	require.NoError(t, c.UpsertConfig("plaza", located("plaza", 55.7500, 37.6200)))
	require.NoError(t, c.UpsertConfig("near", located("near", 55.7510, 37.6210)))
	require.NoError(t, c.UpsertConfig("far", located("far", 55.8000, 37.7000)))
	require.NoError(t, c.UpsertConfig("closest-but-crowded", located("closest-but-crowded", 55.7501, 37.6201)))

	off := located("closest-but-off", 55.7500, 37.6202)
	off.IsActive = false
	require.NoError(t, c.UpsertConfig("closest-but-off", off))
	require.NoError(t, c.UpsertConfig("nowhere", generalConfig("nowhere")))

	c.UpdateStatus("plaza", 25, 1.25, 0)
	c.UpdateStatus("closest-but-crowded", 11, 0.55, 0)
	c.UpdateStatus("near", 3, 0.15, 0)
	return c
}

func TestNearestClearSkipsCrowdedInactiveAndUnlocated(t *testing.T) {
	c := diversionCache(t)

	div, ok := c.NearestClear("plaza")
	require.True(t, ok)

	assert.Equal(t, "plaza", div.Crowded.SourceID)
	require.NotNil(t, div.Target)
	assert.Equal(t, "near", div.Target.SourceID)
	assert.InDelta(t, 0.128, div.DistanceKm, 0.01)
	assert.Equal(t, "Divert from Gate plaza towards Gate near.", div.Message)
}

func TestNearestClearFallsBackWhenNothingQualifies(t *testing.T) {
	c := diversionCache(t)
	c.UpdateStatus("near", 30, 1.5, 0)
	c.UpdateStatus("far", 30, 1.5, 0)

	div, ok := c.NearestClear("plaza")
	require.True(t, ok)

	assert.Nil(t, div.Target)
	assert.Equal(t, noDiversionMessage, div.Message)
}

func TestNearestClearWithoutOwnLocation(t *testing.T) {
	c := diversionCache(t)

	div, ok := c.NearestClear("nowhere")
	require.True(t, ok)
	assert.Nil(t, div.Target)
}

func TestNearestClearUnknownOrInactive(t *testing.T) {
	c := diversionCache(t)

	_, ok := c.NearestClear("missing")
	assert.False(t, ok)

	_, ok = c.NearestClear("closest-but-off")
	assert.False(t, ok)
}
