package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
)

var horizontal = geometry.Segment{
	A: geometry.Point{X: 0, Y: 0},
	B: geometry.Point{X: 100, Y: 0},
}

func feed(tr *Tracker, id int64, ys ...float64) []CrossingEvent {
	events := make([]CrossingEvent, 0, len(ys))
	for _, y := range ys {
		events = append(events, tr.Update(id, geometry.Point{X: 50, Y: y}, horizontal))
	}
	return events
}

func count(events []CrossingEvent, want CrossingEvent) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

func TestFirstObservationHasNoDirection(t *testing.T) {
	tr := NewTracker(DefaultThresholds)

	assert.Equal(t, None, tr.Update(1, geometry.Point{X: 50, Y: 5}, horizontal))

	st, ok := tr.State(1)
	require.True(t, ok)
	assert.Equal(t, StatusNone, st.Status)
}

func TestSingleEntry(t *testing.T) {
	tr := NewTracker(DefaultThresholds)

	events := feed(tr, 7, -20, -5, 5, 20)

	assert.Equal(t, []CrossingEvent{None, None, Entry, None}, events)
	st, _ := tr.State(7)
	assert.Equal(t, StatusEntered, st.Status)
	assert.Equal(t, geometry.Point{X: 50, Y: 20}, st.Centroid)
}

func TestReversedLineSwapsDirection(t *testing.T) {
	tr := NewTracker(DefaultThresholds)
	reversed := geometry.Segment{A: horizontal.B, B: horizontal.A}

	tr.Update(1, geometry.Point{X: 50, Y: -5}, reversed)
	assert.Equal(t, Exit, tr.Update(1, geometry.Point{X: 50, Y: 5}, reversed))
}

func TestCrossBackAfterMovingAway(t *testing.T) {
	tr := NewTracker(DefaultThresholds)

	events := feed(tr, 3, -20, -5, 5, 20, 30, 5, -5, -30)

	assert.Equal(t, 1, count(events, Entry))
	assert.Equal(t, 1, count(events, Exit))
	assert.Equal(t, Exit, events[6])
}

func TestSignFlipFarFromLineIsIgnored(t *testing.T) {
	tr := NewTracker(DefaultThresholds)

	// jumps over the line but lands outside the proximity band
	events := feed(tr, 1, -30, 30)
	assert.Equal(t, 0, count(events, Entry)+count(events, Exit))

	// crossing beyond the segment end is far from the segment itself
	tr.Update(2, geometry.Point{X: 150, Y: -5}, horizontal)
	assert.Equal(t, None, tr.Update(2, geometry.Point{X: 150, Y: 5}, horizontal))
}

func TestLingeringOnTheLineCountsOnce(t *testing.T) {
	tr := NewTracker(DefaultThresholds)

	// crosses, then wobbles back through the line itself and over again
	// without ever leaving the proximity band
	events := feed(tr, 1, -5, 5, 3, 0, -4, 6, 0, -2, 4, 8)

	assert.Equal(t, 1, count(events, Entry))
	assert.Equal(t, 0, count(events, Exit))
}

func TestOneCrossingRegardlessOfSampling(t *testing.T) {
	paths := [][]float64{
		{-9, 9},
		{-15, -9, -3, 3, 9, 15},
		{-18, -14, -10, -6, -2, 2, 6, 10, 14, 18},
		{-19, -17, -15, -13, -11, -9, -7, -5, -3, -1, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19},
	}

	for _, path := range paths {
		tr := NewTracker(DefaultThresholds)
		events := feed(tr, 1, path...)
		assert.Equal(t, 1, count(events, Entry), "path %v", path)
		assert.Equal(t, 0, count(events, Exit), "path %v", path)
	}
}

func TestReconcile(t *testing.T) {
	tr := NewTracker(DefaultThresholds)
	for id := int64(1); id <= 5; id++ {
		tr.Update(id, geometry.Point{X: float64(id), Y: 50}, horizontal)
	}
	require.Equal(t, 5, tr.Len())

	tr.Reconcile([]int64{2, 4, 9})

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.State(2)
	assert.True(t, ok)
	_, ok = tr.State(4)
	assert.True(t, ok)
	_, ok = tr.State(1)
	assert.False(t, ok)

	tr.Reconcile(nil)
	assert.Zero(t, tr.Len())
}

func TestReturningTrackStartsFresh(t *testing.T) {
	tr := NewTracker(DefaultThresholds)
	feed(tr, 1, -5, 5)
	tr.Reconcile(nil)

	// history is gone, so the first sample back cannot produce an event
	assert.Equal(t, None, tr.Update(1, geometry.Point{X: 50, Y: -5}, horizontal))
}

func TestRegistryIsolatesSources(t *testing.T) {
	reg := NewRegistry(DefaultThresholds)

	a := reg.Tracker("cam-a")
	b := reg.Tracker("cam-b")
	require.NotSame(t, a, b)
	assert.Same(t, a, reg.Tracker("cam-a"))

	a.Update(1, geometry.Point{X: 50, Y: -5}, horizontal)
	// same track id on another source has no history
	assert.Equal(t, None, b.Update(1, geometry.Point{X: 50, Y: 5}, horizontal))
	assert.Equal(t, Entry, a.Update(1, geometry.Point{X: 50, Y: 5}, horizontal))

	assert.Equal(t, []string{"cam-a", "cam-b"}, reg.Sources())

	reg.Remove("cam-a")
	assert.Equal(t, []string{"cam-b"}, reg.Sources())
	assert.Zero(t, reg.Tracker("cam-a").Len())
}
