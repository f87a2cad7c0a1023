package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

// AlertWriter is the accounting surface the dispatcher needs from the store.
type AlertWriter interface {
	IncAlertSent(ctx context.Context, id string) error
	IncAlertError(ctx context.Context, id string) error
	InsertAlertError(ctx context.Context, e *model.AlertError) error
}

// Dispatcher runs deliveries on a worker pool off the request path. Each
// delivery retries transient failures with exponential backoff; permanent
// failures and exhausted retries are recorded against the alert.
type Dispatcher struct {
	registry *Registry
	store    AlertWriter

	queue       chan Delivery
	maxAttempts int
	backoff     time.Duration

	// sleepFn is swapped in tests so retry timing is immediate.
	sleepFn func(ctx context.Context, d time.Duration)

	wg sync.WaitGroup
}

func NewDispatcher(reg *Registry, store AlertWriter, queueSize, maxAttempts int, backoff time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Dispatcher{
		registry:    reg,
		store:       store,
		queue:       make(chan Delivery, queueSize),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleepFn:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Start launches the worker pool. Workers drain the queue until ctx is
// cancelled; Wait blocks until they exit.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case delivery := <-d.queue:
					d.deliver(ctx, delivery)
				}
			}
		}()
	}
}

func (d *Dispatcher) Wait() { d.wg.Wait() }

// Enqueue hands a delivery to the pool. A full queue is an error the caller
// can surface rather than silent loss.
func (d *Dispatcher) Enqueue(delivery Delivery) error {
	select {
	case d.queue <- delivery:
		return nil
	default:
		return fmt.Errorf("notification queue full, dropping %s delivery to %s", delivery.Kind, delivery.Target)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, delivery Delivery) {
	notifier, err := d.registry.Get(delivery.Kind)
	if err != nil {
		d.recordFailure(ctx, delivery, err)
		return
	}

	backoff := d.backoff
	for attempt := 1; ; attempt++ {
		err = notifier.Send(ctx, delivery.Target, delivery.Data)
		if err == nil {
			if ierr := d.store.IncAlertSent(ctx, delivery.AlertID); ierr != nil {
				log.Error().Err(ierr).Str("alert", delivery.AlertID).Msg("failed to count sent delivery")
			}
			log.Info().Str("kind", delivery.Kind).Str("target", delivery.Target).
				Str("alert", delivery.AlertID).Msg("delivered notification")
			return
		}
		if !retryable(err) || attempt >= d.maxAttempts {
			d.recordFailure(ctx, delivery, err)
			return
		}
		log.Warn().Err(err).Str("kind", delivery.Kind).Str("target", delivery.Target).
			Int("attempt", attempt).Msg("delivery failed, retrying")
		d.sleepFn(ctx, backoff)
		backoff *= 2
		if ctx.Err() != nil {
			d.recordFailure(ctx, delivery, ctx.Err())
			return
		}
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, delivery Delivery, cause error) {
	log.Error().Err(cause).Str("kind", delivery.Kind).Str("target", delivery.Target).
		Str("alert", delivery.AlertID).Msg("delivery failed permanently")

	if err := d.store.IncAlertError(ctx, delivery.AlertID); err != nil {
		log.Error().Err(err).Str("alert", delivery.AlertID).Msg("failed to count delivery error")
	}
	entry := &model.AlertError{
		AlertID: delivery.AlertID,
		Created: time.Now().UTC(),
		Kind:    delivery.Kind,
		Target:  delivery.Target,
		Message: cause.Error(),
	}
	if err := d.store.InsertAlertError(ctx, entry); err != nil {
		log.Error().Err(err).Str("alert", delivery.AlertID).Msg("failed to record delivery error")
	}
}

// retryable classifies delivery failures. Rate limiting and upstream
// gateway/availability errors are transient; every other HTTP status is
// permanent. Transport-level timeouts retry.
func retryable(err error) bool {
	var statusErr *util.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
