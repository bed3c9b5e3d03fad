package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/alerting"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/framesource"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/livestatus"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/processor"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/supervisor"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/tracking"
)

const defaultSyncInterval = 30 * time.Second

// Commands is the stream of source configuration commands.
type Commands interface {
	Messages() <-chan kafka.Message
}

// Store is the durable side of the runner: the source table it syncs from and
// the summary log its loops write to.
type Store interface {
	GetActiveSources(ctx context.Context) ([]models.SourceConfig, error)
	GetSource(ctx context.Context, sourceID string) (*models.SourceConfig, error)
	SaveSummary(ctx context.Context, rec models.SummaryRecord) error
}

// DetectorFactory binds a detector to one source.
type DetectorFactory func(sourceID string) processor.Detector

type Deps struct {
	Cache     *livestatus.Cache
	Trackers  *tracking.Registry
	Gate      *alerting.Gate
	Notifier  alerting.Notifier
	Detectors DetectorFactory
	Opener    framesource.Opener
	Store     Store
	Commands  Commands
	Metrics   *metrics.Metrics
}

type Settings struct {
	Loop         supervisor.Settings
	SyncInterval time.Duration
}

type job struct {
	cancel context.CancelFunc
}

// Runner owns one source loop per active source and keeps the set of loops in
// line with configuration commands and the source table.
type Runner struct {
	deps     Deps
	settings Settings

	activeRunners map[string]*job
	mu            sync.Mutex
	wg            sync.WaitGroup
}

func New(deps Deps, settings Settings) *Runner {
	if deps.Trackers == nil {
		deps.Trackers = tracking.NewRegistry(tracking.DefaultThresholds)
	}
	if settings.SyncInterval <= 0 {
		settings.SyncInterval = defaultSyncInterval
	}
	return &Runner{
		deps:          deps,
		settings:      settings,
		activeRunners: make(map[string]*job),
	}
}

func (r *Runner) ListenAndRun(ctx context.Context) {
	log.Info().Msg("Runner: listening for source commands")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Runner: shutting down")
			return
		case msg, ok := <-r.deps.Commands.Messages():
			if !ok {
				log.Info().Msg("Runner: command stream closed")
				return
			}

			cmd, err := msg.Command()
			if err != nil {
				log.Error().Err(err).Msg("Invalid message format")
				// Не подтверждаем сообщение при ошибке парсинга
				continue
			}
			log.Info().Str("source_id", cmd.SourceID).Str("action", string(cmd.Action)).Msg("Runner: received source command")

			if err := r.Apply(ctx, cmd); err != nil {
				log.Error().Err(err).Str("source_id", cmd.SourceID).Msg("Error processing command")
				// Не подтверждаем сообщение при ошибке обработки
				continue
			}

			// Подтверждаем сообщение только после успешной обработки
			msg.Ack()
		}
	}
}

// Apply brings the cache and the running loops in line with one command.
func (r *Runner) Apply(ctx context.Context, cmd models.SourceCommand) error {
	if cmd.SourceID == "" {
		return errors.New("command without source id")
	}

	switch cmd.Action {
	case models.CommandUpsert:
		cfg := cmd.Config
		if cfg == nil {
			// A bare upsert means "reload from the source table".
			stored, err := r.deps.Store.GetSource(ctx, cmd.SourceID)
			if err != nil {
				return fmt.Errorf("load %s: %w", cmd.SourceID, err)
			}
			if stored == nil {
				r.deps.Cache.RemoveConfig(cmd.SourceID)
				r.Stop(cmd.SourceID)
				return nil
			}
			cfg = stored
		}
		if err := r.deps.Cache.UpsertConfig(cmd.SourceID, *cfg); err != nil {
			return fmt.Errorf("upsert %s: %w", cmd.SourceID, err)
		}
		if cfg.IsActive {
			r.Start(ctx, cmd.SourceID)
		} else {
			r.Stop(cmd.SourceID)
		}
	case models.CommandRemove:
		r.deps.Cache.RemoveConfig(cmd.SourceID)
		r.Stop(cmd.SourceID)
	default:
		return fmt.Errorf("unknown command %q", cmd.Action)
	}

	return nil
}

// Start launches the loop of sourceID unless one is already running. The
// source must already be in the cache.
func (r *Runner) Start(ctx context.Context, sourceID string) bool {
	cfg, ok := r.deps.Cache.Config(sourceID)
	if !ok {
		return false
	}

	r.mu.Lock()
	if _, running := r.activeRunners[sourceID]; running {
		r.mu.Unlock()
		return false
	}

	childCtx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel}
	r.activeRunners[sourceID] = j
	r.mu.Unlock()

	r.deps.Trackers.Remove(sourceID)
	proc := processor.New(sourceID, cfg.CurrentOccupancy, processor.Deps{
		Detector: r.deps.Detectors(sourceID),
		Tracker:  r.deps.Trackers.Tracker(sourceID),
		Statuses: r.deps.Cache,
		Gate:     r.deps.Gate,
		Notifier: r.deps.Notifier,
		Metrics:  r.deps.Metrics,
	})
	sup := supervisor.New(sourceID, r.deps.Opener, r.deps.Cache, proc, r.deps.Store, r.deps.Metrics, r.settings.Loop)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			if r.activeRunners[sourceID] == j {
				delete(r.activeRunners, sourceID)
				r.deps.Trackers.Remove(sourceID)
			}
			r.mu.Unlock()
			cancel()

			log.Info().Str("source_id", sourceID).Msg("Runner finished")
		}()

		if err := sup.Run(childCtx); err != nil {
			log.Error().Err(err).Str("source_id", sourceID).Msg("Source loop failed")
		}
	}()

	log.Info().Str("source_id", sourceID).Msg("Runner created")
	return true
}

// Stop cancels the loop of sourceID. It does not wait for the loop to exit.
func (r *Runner) Stop(sourceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.activeRunners[sourceID]
	if !ok {
		return false
	}

	delete(r.activeRunners, sourceID)
	r.deps.Trackers.Remove(sourceID)
	j.cancel()
	log.Info().Str("source_id", sourceID).Msg("Runner stopped")
	return true
}

// Running lists the sources with a live loop.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := lo.Keys(r.activeRunners)
	sort.Strings(ids)
	return ids
}

// Wait blocks until every started loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Watch re-syncs with the source table every sync interval until ctx is done.
func (r *Runner) Watch(ctx context.Context) {
	ticker := time.NewTicker(r.settings.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Source sync stopped")
			return
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to sync sources")
			}
		}
	}
}

// Sync loads the active sources, refreshes their configs, starts loops for
// sources without one and drops sources that are no longer active.
func (r *Runner) Sync(ctx context.Context) error {
	configs, err := r.deps.Store.GetActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("get active sources: %w", err)
	}

	active := make(map[string]struct{}, len(configs))
	started := 0
	for _, cfg := range configs {
		if err := r.deps.Cache.UpsertConfig(cfg.ID, cfg); err != nil {
			log.Warn().Err(err).Str("source_id", cfg.ID).Msg("Skipping source config")
			continue
		}
		active[cfg.ID] = struct{}{}
		if r.Start(ctx, cfg.ID) {
			started++
		}
	}

	stale := lo.Uniq(append(r.deps.Cache.SourceIDs(), r.Running()...))
	stopped := 0
	for _, id := range stale {
		if _, ok := active[id]; ok {
			continue
		}
		r.deps.Cache.RemoveConfig(id)
		if r.Stop(id) {
			stopped++
		}
	}

	log.Debug().Int("active", len(active)).Int("started", started).Int("stopped", stopped).Msg("Sources synced")
	return nil
}
