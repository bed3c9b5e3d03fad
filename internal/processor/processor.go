package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/alerting"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/tracking"
)

const (
	DiagnosticDetectorUnavailable = "detector unavailable"
	DiagnosticNoTripwire          = "tripwire line not configured"
)

// Detector returns the tracked objects visible in a frame.
type Detector interface {
	Detect(ctx context.Context, frame models.Frame) ([]models.Observation, error)
}

// StatusSink receives the metrics of every processed frame.
type StatusSink interface {
	UpdateStatus(sourceID string, count int, density float64, occupancy int)
}

// AlertGate decides whether a breach may be announced now.
type AlertGate interface {
	ShouldFire(sourceID string, now time.Time) bool
}

type Deps struct {
	Detector Detector
	Tracker  *tracking.Tracker
	Statuses StatusSink
	Gate     AlertGate
	Notifier alerting.Notifier
	Metrics  *metrics.Metrics
}

// Result is what one frame produced.
type Result struct {
	SourceID   string
	Count      int
	Density    float64
	Entries    int
	Exits      int
	Occupancy  int
	Breach     bool
	AlertFired bool
	Message    string
	Diagnostic string
	Overlay    []Overlay
}

// Processor runs the per-frame pipeline of one source. It keeps the running
// occupancy between frames and is owned by a single source loop.
type Processor struct {
	sourceID  string
	deps      Deps
	occupancy int
	now       func() time.Time
}

// New creates a processor whose occupancy starts at seedOccupancy.
func New(sourceID string, seedOccupancy int, deps Deps) *Processor {
	if deps.Tracker == nil {
		deps.Tracker = tracking.NewTracker(tracking.DefaultThresholds)
	}
	return &Processor{
		sourceID:  sourceID,
		deps:      deps,
		occupancy: seedOccupancy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Occupancy is the running occupancy after the last processed frame.
func (p *Processor) Occupancy() int {
	return p.occupancy
}

// Process runs detection, crossing or density logic, status publication and
// the alert decision for one frame. It never fails: a detector outage yields a
// zero count result carrying a diagnostic.
func (p *Processor) Process(ctx context.Context, cfg models.SourceConfig, frame models.Frame) Result {
	res := Result{SourceID: p.sourceID, Occupancy: p.occupancy}
	p.deps.Metrics.FrameProcessed(p.sourceID)

	observations, err := p.deps.Detector.Detect(ctx, frame)
	if err != nil {
		log.Warn().Err(err).Str("source_id", p.sourceID).Int("frame", frame.Index).Msg("Detection failed")
		p.deps.Metrics.DetectorFailed(p.sourceID)

		// An outage is a frame with nobody in it.
		p.deps.Tracker.Reconcile(nil)

		res.Diagnostic = DiagnosticDetectorUnavailable
		res.Overlay = append(res.Overlay, label(DiagnosticDetectorUnavailable))
		p.deps.Statuses.UpdateStatus(p.sourceID, 0, 0, p.reportedOccupancy(cfg))

		res.Breach = cfg.Breached(0, res.Occupancy)
		if res.Breach {
			p.raise(ctx, cfg, &res)
		}
		return res
	}

	res.Count = len(observations)
	res.Overlay = append(res.Overlay, lo.Map(observations, func(o models.Observation, _ int) Overlay {
		return Overlay{Kind: OverlayCentroid, Points: []geometry.Point{o.Centroid}, TrackID: o.TrackID}
	})...)

	switch cfg.Mode {
	case models.ModeGeneral:
		p.deps.Tracker.Reconcile(nil)
		res.Density = cfg.Density(res.Count)
		res.Overlay = append(res.Overlay,
			label(fmt.Sprintf("Persons: %d", res.Count)),
			label(fmt.Sprintf("Density: %.2f p/m2", res.Density)),
		)
	case models.ModeTripwire:
		p.countCrossings(cfg, observations, &res)
		res.Overlay = append(res.Overlay,
			label(fmt.Sprintf("In: %d", res.Entries)),
			label(fmt.Sprintf("Out: %d", res.Exits)),
			label(fmt.Sprintf("Occupancy: %d", res.Occupancy)),
		)
	}

	p.deps.Statuses.UpdateStatus(p.sourceID, res.Count, res.Density, p.reportedOccupancy(cfg))

	res.Breach = cfg.Breached(res.Count, res.Occupancy)
	if res.Breach {
		p.raise(ctx, cfg, &res)
	}

	return res
}

func (p *Processor) countCrossings(cfg models.SourceConfig, observations []models.Observation, res *Result) {
	line, ok := cfg.Tripwire()
	if !ok {
		res.Diagnostic = DiagnosticNoTripwire
		return
	}
	res.Overlay = append(res.Overlay, Overlay{Kind: OverlayTripwire, Points: []geometry.Point{line.A, line.B}})

	for _, o := range observations {
		prev, seen := p.deps.Tracker.State(o.TrackID)

		switch p.deps.Tracker.Update(o.TrackID, o.Centroid, line) {
		case tracking.Entry:
			res.Entries++
			if seen {
				res.Overlay = append(res.Overlay, crossing(OverlayEntry, o, prev.Centroid))
			}
		case tracking.Exit:
			res.Exits++
			if seen {
				res.Overlay = append(res.Overlay, crossing(OverlayExit, o, prev.Centroid))
			}
		}
	}

	p.deps.Tracker.Reconcile(lo.Map(observations, func(o models.Observation, _ int) int64 {
		return o.TrackID
	}))

	p.occupancy += res.Entries - res.Exits
	res.Occupancy = p.occupancy
	p.deps.Metrics.Crossings(p.sourceID, res.Entries, res.Exits)
}

func (p *Processor) raise(ctx context.Context, cfg models.SourceConfig, res *Result) {
	now := p.now()
	alert := alerting.NewAlert(cfg, res.Count, res.Occupancy, now)
	res.Message = alert.Message
	res.Overlay = append(res.Overlay, label("ALERT: "+alert.Message))

	if !p.deps.Gate.ShouldFire(p.sourceID, now) {
		p.deps.Metrics.AlertSuppressed(p.sourceID)
		return
	}

	res.AlertFired = true
	p.deps.Metrics.AlertFired(p.sourceID)
	if err := p.deps.Notifier.Dispatch(ctx, alert); err != nil {
		log.Error().Err(err).Str("source_id", p.sourceID).Str("alert_id", alert.ID).Msg("Failed to dispatch alert")
	}
}

// reportedOccupancy is what the status cache sees: general mode sources have
// no occupancy.
func (p *Processor) reportedOccupancy(cfg models.SourceConfig) int {
	if cfg.Mode == models.ModeTripwire {
		return p.occupancy
	}
	return 0
}
