package alerting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

func TestGateCooldown(t *testing.T) {
	g := NewGate(DefaultCooldown)
	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	assert.True(t, g.ShouldFire("cam-1", t0))
	assert.False(t, g.ShouldFire("cam-1", t0.Add(30*time.Second)))
	assert.False(t, g.ShouldFire("cam-1", t0.Add(59*time.Second)))
	assert.True(t, g.ShouldFire("cam-1", t0.Add(60*time.Second)))
	assert.False(t, g.ShouldFire("cam-1", t0.Add(61*time.Second)))
}

func TestGateIsPerSource(t *testing.T) {
	g := NewGate(DefaultCooldown)
	t0 := time.Now()

	assert.True(t, g.ShouldFire("cam-1", t0))
	assert.True(t, g.ShouldFire("cam-2", t0))
	assert.False(t, g.ShouldFire("cam-2", t0.Add(time.Second)))
}

func TestGateSuppressedCallDoesNotExtendWindow(t *testing.T) {
	g := NewGate(10 * time.Second)
	t0 := time.Now()

	require.True(t, g.ShouldFire("cam-1", t0))
	require.False(t, g.ShouldFire("cam-1", t0.Add(9*time.Second)))
	assert.True(t, g.ShouldFire("cam-1", t0.Add(10*time.Second)))
}

func TestGateConcurrentCallersOnlyOnePasses(t *testing.T) {
	g := NewGate(DefaultCooldown)
	now := time.Now()

	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.ShouldFire("cam-1", now) {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), passed.Load())
}

func TestNewAlert(t *testing.T) {
	now := time.Now()

	general := models.SourceConfig{ID: "cam-1", Name: "Gate", AreaName: "Plaza", Mode: models.ModeGeneral, CrowdThreshold: 10}
	a := NewAlert(general, 12, 0, now)
	assert.Equal(t, "Crowd threshold exceeded (12/10)", a.Message)
	assert.Equal(t, 12.0, a.CurrentValue)
	assert.Equal(t, 10.0, a.ThresholdValue)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Plaza", a.AreaName)

	door := models.SourceConfig{ID: "door", Mode: models.ModeTripwire, OccupancyThreshold: 5}
	b := NewAlert(door, 2, 6, now)
	assert.Equal(t, "Occupancy threshold exceeded (6/5)", b.Message)
	assert.Equal(t, 6.0, b.CurrentValue)
	assert.Equal(t, 5.0, b.ThresholdValue)
	assert.NotEqual(t, a.ID, b.ID)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
	fail   bool
	block  chan struct{}
}

func (n *recordingNotifier) Dispatch(ctx context.Context, alert models.Alert) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func TestDispatcherDeliversAndSurvivesFailures(t *testing.T) {
	n := &recordingNotifier{fail: true}
	d := NewDispatcher(n, 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	require.NoError(t, d.Dispatch(ctx, models.Alert{ID: "1"}))
	require.NoError(t, d.Dispatch(ctx, models.Alert{ID: "2"}))

	assert.Eventually(t, func() bool { return n.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherNeverBlocksCaller(t *testing.T) {
	n := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(n, 1, 0)

	// no worker running: the first alert fills the queue, the next is dropped
	require.NoError(t, d.Dispatch(context.Background(), models.Alert{ID: "1"}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), models.Alert{ID: "2"}), ErrQueueFull)
}
