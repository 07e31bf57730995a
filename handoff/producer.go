// Package handoff moves persisted leads to the downstream worker through a
// durable FIFO queue.
package handoff

import (
	"context"

	"github.com/goliatone/go-leadgen/core"
)

// Producer pushes queue items and drops them on failure. The lead row is
// already persisted, so a lost item is recoverable from storage.
type Producer struct {
	queue  core.LeadQueue
	logger core.Logger
}

func NewProducer(queue core.LeadQueue, logger core.Logger) *Producer {
	return &Producer{
		queue:  queue,
		logger: core.ResolveLogger("leadgen.handoff.producer", nil, logger),
	}
}

// Enqueue never returns an error; failures are logged and dropped.
func (p *Producer) Enqueue(ctx context.Context, item core.QueueItem) error {
	if p == nil || p.queue == nil {
		return nil
	}
	if err := p.queue.Enqueue(ctx, item); err != nil {
		core.LogEvent(ctx, p.logger, "error", "lead enqueue failed, dropping", map[string]any{
			"lead_id":    item.LeadID,
			"leadgen_id": item.LeadgenID,
			"error":      err.Error(),
		})
		return nil
	}
	core.LogEvent(ctx, p.logger, "info", "lead enqueued", map[string]any{
		"lead_id":    item.LeadID,
		"leadgen_id": item.LeadgenID,
	})
	return nil
}

var _ core.LeadQueue = (*Producer)(nil)
