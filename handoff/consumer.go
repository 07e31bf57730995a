package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-leadgen/adapters/gojob"
	"github.com/goliatone/go-leadgen/core"
)

// Handler performs the downstream work for one queue item.
type Handler func(ctx context.Context, item core.QueueItem) error

type ConsumerConfig struct {
	// Backoff is the fixed pause after any failure before waiting again.
	Backoff time.Duration
	// Wait pauses for d or until ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error
	Now  func() time.Time
	Hook worker.Hook
}

// Consumer pops queue items one at a time and hands them to a Handler.
type Consumer struct {
	dequeuer queue.Dequeuer
	handler  Handler
	config   ConsumerConfig
	logger   core.Logger
}

func NewConsumer(dequeuer queue.Dequeuer, handler Handler, cfg ConsumerConfig, logger core.Logger) *Consumer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = core.DefaultQueueBackoff
	}
	if cfg.Wait == nil {
		cfg.Wait = sleepContext
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	resolved := core.ResolveLogger("leadgen.handoff.consumer", nil, logger)
	if cfg.Hook == nil {
		cfg.Hook = gojob.NewLoggingHook(resolved)
	}
	return &Consumer{
		dequeuer: dequeuer,
		handler:  handler,
		config:   cfg,
		logger:   resolved,
	}
}

// Run consumes until ctx is cancelled. Every failure is followed by the
// configured backoff; there is no retry limit.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.handler == nil {
		return fmt.Errorf("handoff: consumer is not configured")
	}
	core.LogEvent(ctx, c.logger, "info", "lead consumer started", nil)
	for {
		if err := ctx.Err(); err != nil {
			core.LogEvent(context.Background(), c.logger, "info", "lead consumer stopped", nil)
			return nil
		}
		if err := c.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			core.LogEvent(ctx, c.logger, "error", "lead queue processing failed", map[string]any{
				"error":   err.Error(),
				"backoff": c.config.Backoff.String(),
			})
			_ = c.config.Wait(ctx, c.config.Backoff)
		}
	}
}

// ProcessOne blocks for one item and processes it.
func (c *Consumer) ProcessOne(ctx context.Context) error {
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	item, err := gojob.FromExecutionMessage(msg)
	if err != nil {
		_ = delivery.Nack(ctx, queue.NackOptions{Reason: err.Error()})
		return err
	}

	startedAt := c.config.Now()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: 1, StartedAt: startedAt}
	c.config.Hook.OnStart(ctx, event)

	handleErr := c.handler(ctx, item)
	event.Duration = c.config.Now().Sub(startedAt)
	if handleErr != nil {
		event.Err = handleErr
		c.config.Hook.OnFailure(ctx, event)
		if nackErr := delivery.Nack(ctx, queue.NackOptions{Reason: handleErr.Error()}); nackErr != nil {
			return errors.Join(handleErr, nackErr)
		}
		return handleErr
	}
	if err := delivery.Ack(ctx); err != nil {
		return err
	}
	c.config.Hook.OnSuccess(ctx, event)
	return nil
}

// MarkProcessed returns a Handler that logs the lead and moves it to the
// processed status.
func MarkProcessed(leads core.LeadStore, logger core.Logger) Handler {
	logger = core.ResolveLogger("leadgen.handoff.worker", nil, logger)
	return func(ctx context.Context, item core.QueueItem) error {
		if leads == nil {
			return fmt.Errorf("handoff: lead store is not configured")
		}
		if item.LeadID == "" {
			return core.NewValidationError("leadId", "lead id is required")
		}
		core.LogEvent(ctx, logger, "info", "processing lead", map[string]any{
			"lead_id":    item.LeadID,
			"leadgen_id": item.LeadgenID,
			"page_id":    item.PageExternalID,
		})
		return leads.MarkProcessed(ctx, item.LeadID)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
