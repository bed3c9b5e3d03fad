// Package supervisor runs the frame loop of a single source: it pulls frames,
// hands them to the processor, recovers from stream failures and periodically
// persists a summary.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/framesource"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/processor"
)

// Persistence stores the periodic summary of a source.
type Persistence interface {
	SaveSummary(ctx context.Context, rec models.SummaryRecord) error
}

// ConfigSource gives the loop the current config of its source. A source that
// was removed or deactivated is reported as missing.
type ConfigSource interface {
	Config(sourceID string) (models.SourceConfig, bool)
}

// flushTimeout bounds the final summary write of a stopping loop.
const flushTimeout = 5 * time.Second

type Settings struct {
	FrameDelay      time.Duration
	ReopenDelay     time.Duration
	SummaryInterval int
}

type Supervisor struct {
	sourceID string
	opener   framesource.Opener
	configs  ConfigSource
	proc     *processor.Processor
	store    Persistence
	metrics  *metrics.Metrics
	settings Settings

	// OnResult, when set, observes every processed frame.
	OnResult func(processor.Result)
}

func New(sourceID string, opener framesource.Opener, configs ConfigSource, proc *processor.Processor,
	store Persistence, m *metrics.Metrics, settings Settings) *Supervisor {
	if settings.SummaryInterval <= 0 {
		settings.SummaryInterval = 1
	}
	return &Supervisor{
		sourceID: sourceID,
		opener:   opener,
		configs:  configs,
		proc:     proc,
		store:    store,
		metrics:  m,
		settings: settings,
	}
}

// summary accumulates the crossings seen since the last persisted record.
type summary struct {
	frames  int
	unsaved int
	entries int
	exits   int
	last    processor.Result
}

// Run blocks until the source is exhausted, its stream fails for good, it is
// removed or deactivated, or ctx is done. Only stream failures are returned;
// the caller logs them. Frames processed since the last summary are flushed on
// the way out.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, ok := s.configs.Config(s.sourceID)
	if !ok {
		log.Info().Str("source_id", s.sourceID).Msg("Source is not active, nothing to run")
		return nil
	}

	stream, err := s.opener.Open(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Source, err)
	}
	opened := cfg.Source

	s.metrics.StreamStarted()
	defer s.metrics.StreamStopped()
	defer func() {
		if stream != nil {
			_ = stream.Close()
		}
	}()

	log.Info().Str("source_id", s.sourceID).Str("source", opened).Str("mode", string(cfg.Mode)).Msg("Source loop started")

	var acc summary
	last := cfg
	defer func() {
		if acc.unsaved == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		s.persist(flushCtx, last, &acc)
	}()

	for {
		if ctx.Err() != nil {
			log.Debug().Str("source_id", s.sourceID).Msg("Source loop stopping")
			return nil
		}

		cfg, ok = s.configs.Config(s.sourceID)
		if !ok {
			log.Info().Str("source_id", s.sourceID).Msg("Source removed or deactivated, stopping loop")
			return nil
		}
		last = cfg

		if cfg.Source != opened {
			log.Info().Str("source_id", s.sourceID).Str("source", cfg.Source).Msg("Frame source changed, reopening")
			_ = stream.Close()
			stream, err = s.opener.Open(ctx, cfg.Source)
			if err != nil {
				return fmt.Errorf("open %s: %w", cfg.Source, err)
			}
			opened = cfg.Source
		}

		frame, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, framesource.ErrEndOfStream) {
				log.Info().Str("source_id", s.sourceID).Int("frames", acc.frames).Msg("Frame source exhausted")
				return nil
			}
			if !stream.Reconnectable() {
				return fmt.Errorf("read frame: %w", err)
			}

			log.Warn().Err(err).Str("source_id", s.sourceID).Dur("retry_in", s.settings.ReopenDelay).Msg("Frame read failed, reopening stream")
			_ = stream.Close()
			stream = nil
			if !sleep(ctx, s.settings.ReopenDelay) {
				return nil
			}

			stream, err = s.opener.Open(ctx, opened)
			if err != nil {
				return fmt.Errorf("reopen %s: %w", opened, err)
			}
			s.metrics.StreamReopened(s.sourceID)
			continue
		}

		if res, ok := s.process(ctx, cfg, frame); ok {
			acc.frames++
			acc.unsaved++
			acc.entries += res.Entries
			acc.exits += res.Exits
			acc.last = res

			if acc.frames%s.settings.SummaryInterval == 0 {
				s.persist(ctx, cfg, &acc)
			}
		}

		if !sleep(ctx, s.settings.FrameDelay) {
			return nil
		}
	}
}

// process runs one frame and keeps a panic inside it from ending the loop.
func (s *Supervisor) process(ctx context.Context, cfg models.SourceConfig, frame models.Frame) (res processor.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("source_id", s.sourceID).
				Int("frame", frame.Index).
				Msg("Frame processing panic recovered")
			ok = false
		}
	}()

	res = s.proc.Process(ctx, cfg, frame)
	if s.OnResult != nil {
		s.OnResult(res)
	}
	return res, true
}

func (s *Supervisor) persist(ctx context.Context, cfg models.SourceConfig, acc *summary) {
	rec := models.SummaryRecord{
		SourceID:    s.sourceID,
		AreaName:    cfg.AreaName,
		Mode:        cfg.Mode,
		PersonCount: acc.last.Count,
		Density:     acc.last.Density,
		EntryCount:  acc.entries,
		ExitCount:   acc.exits,
		Timestamp:   time.Now().UTC(),
	}
	if cfg.Mode == models.ModeTripwire {
		rec.Occupancy = s.proc.Occupancy()
	}

	acc.entries, acc.exits, acc.unsaved = 0, 0, 0

	if s.store == nil {
		return
	}
	if err := s.store.SaveSummary(ctx, rec); err != nil {
		log.Error().Err(err).Str("source_id", s.sourceID).Msg("Failed to save summary")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
