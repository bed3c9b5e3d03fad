package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// ErrQueueFull is returned when an alert is dropped because the delivery
// queue is saturated.
var ErrQueueFull = errors.New("alert queue full")

// Notifier delivers a prepared alert, e.g. to email, chat or a broker.
type Notifier interface {
	Dispatch(ctx context.Context, alert models.Alert) error
}

// Dispatcher decouples source loops from slow notification channels: Dispatch
// only enqueues, and a single worker started with Run does the delivery.
// Delivery failures are logged and dropped.
type Dispatcher struct {
	notifier Notifier
	queue    chan models.Alert
	timeout  time.Duration
	done     chan struct{}
}

func NewDispatcher(notifier Notifier, buffer int, timeout time.Duration) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan models.Alert, buffer),
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Dispatch enqueues alert without blocking.
func (d *Dispatcher) Dispatch(_ context.Context, alert models.Alert) error {
	select {
	case d.queue <- alert:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	log.Info().Msg("Alert dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Alert dispatcher stopped")
			return
		case alert := <-d.queue:
			d.deliver(ctx, alert)
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) deliver(ctx context.Context, alert models.Alert) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.Dispatch(ctx, alert); err != nil {
		log.Error().Err(err).
			Str("source_id", alert.SourceID).
			Str("alert_id", alert.ID).
			Msg("Failed to deliver alert")
		return
	}

	log.Info().
		Str("source_id", alert.SourceID).
		Str("alert_id", alert.ID).
		Str("message", alert.Message).
		Msg("Alert delivered")
}
