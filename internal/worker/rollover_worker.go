package worker

import (
	"context"
	"errors"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/log"
	"dompet/internal/services"

	"golang.org/x/sync/errgroup"
)

// Roller runs one rollover pass.
type Roller interface {
	Run(ctx context.Context, now time.Time) (services.RolloverResult, error)
}

// RequestSource delivers on-demand rollover requests.
type RequestSource interface {
	ConsumeRolloverRequests(ctx context.Context, handler func(context.Context, *amqp.RolloverRequestMessage) error) error
}

const (
	consumeRetryDelay    = 5 * time.Second
	maxConsumeRetryDelay = 5 * time.Minute
)

// RolloverWorker triggers the rollover at startup, on every tick and on every
// request received from the broker. It logs through the logger carried by the
// context (see log.WithLogger).
type RolloverWorker struct {
	roller     Roller
	requests   RequestSource
	interval   time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

// NewRolloverWorker creates the worker. requests may be nil when no broker is
// configured.
func NewRolloverWorker(roller Roller, requests RequestSource, interval time.Duration) *RolloverWorker {
	return &RolloverWorker{
		roller:     roller,
		requests:   requests,
		interval:   interval,
		retryDelay: consumeRetryDelay,
		now:        time.Now,
	}
}

func (w *RolloverWorker) logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker)
}

// RunOnce runs a rollover pass and logs its outcome. Failures are logged and
// left for the next trigger to resume.
func (w *RolloverWorker) RunOnce(ctx context.Context, trigger string) services.RolloverResult {
	start := time.Now()
	res, err := w.roller.Run(ctx, w.now())
	fields := log.NewFields().
		WithOperation(log.OpRollover).
		WithRollover(trigger, string(res.Status), len(res.Created), time.Since(start).Milliseconds())
	logger := w.logger(ctx)
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "Rollover failed", fields.WithError(err).ToSlice()...)
	case res.Status == services.Partial:
		logger.WarnContext(ctx, "Rollover stopped at the per-run cap, resuming on next trigger", fields.ToSlice()...)
	default:
		logger.InfoContext(ctx, "Rollover complete", fields.ToSlice()...)
	}
	return res
}

// HandleRolloverRequest runs a pass for a broker request. The message is
// acknowledged even when the pass fails, so a broken store cannot spin the queue.
func (w *RolloverWorker) HandleRolloverRequest(ctx context.Context, msg *amqp.RolloverRequestMessage) error {
	w.logger(ctx).InfoContext(ctx, "Rollover requested",
		log.FieldRequestedBy, msg.Reason,
		"requested_at", msg.RequestedAt.Format(time.RFC3339))
	w.RunOnce(ctx, log.TriggerMessage)
	return ctx.Err()
}

// Start runs the startup pass and then serves ticks and requests until ctx is
// cancelled.
func (w *RolloverWorker) Start(ctx context.Context) error {
	w.RunOnce(ctx, log.TriggerStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				w.RunOnce(gctx, log.TriggerTicker)
			}
		}
	})
	if w.requests != nil {
		g.Go(func() error {
			w.consume(gctx)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// consume serves broker requests until ctx is done. The broker is optional, so
// a failing consumer is retried with backoff while the ticker keeps running.
func (w *RolloverWorker) consume(ctx context.Context) {
	delay := w.retryDelay
	for {
		err := w.requests.ConsumeRolloverRequests(ctx, w.HandleRolloverRequest)
		if ctx.Err() != nil {
			return
		}
		w.logger(ctx).WarnContext(ctx, "Rollover request consumer stopped, retrying",
			log.FieldError, err,
			"retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxConsumeRetryDelay)
	}
}
