package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-leadgen/core"
)

// ListBackend is a durable FIFO of opaque payloads.
type ListBackend interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// ListQueue stores lead handoff messages on a ListBackend using the queue
// item JSON shape, so non-Go consumers can read the list directly.
type ListQueue struct {
	backend ListBackend
}

func NewListQueue(backend ListBackend) *ListQueue {
	return &ListQueue{backend: backend}
}

func (q *ListQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if q == nil || q.backend == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: list backend is not configured")
	}
	item, err := FromExecutionMessage(msg)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: encode queue item: %w", err)
	}
	if err := q.backend.Push(ctx, payload); err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return queue.EnqueueReceipt{
		DispatchID: uuid.NewString(),
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Dequeue blocks until a payload is available. A payload that is not valid
// JSON is returned as an error and is not requeued.
func (q *ListQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil || q.backend == nil {
		return nil, fmt.Errorf("gojob: list backend is not configured")
	}
	payload, err := q.backend.Pop(ctx)
	if err != nil {
		return nil, err
	}
	var item core.QueueItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, core.NewValidationError("payload", fmt.Sprintf("queue item is not valid JSON: %v", err))
	}
	return &listDelivery{
		backend: q.backend,
		payload: payload,
		message: ToExecutionMessage(item),
	}, nil
}

type listDelivery struct {
	backend ListBackend
	payload []byte
	message *job.ExecutionMessage
}

func (d *listDelivery) Message() *job.ExecutionMessage {
	return d.message
}

// Ack is a no-op; the pop already removed the payload.
func (d *listDelivery) Ack(context.Context) error {
	return nil
}

// Nack pushes the payload back to the tail for a retry disposition and drops
// it otherwise.
func (d *listDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	if opts.Disposition != queue.NackDispositionRetry {
		return nil
	}
	return d.backend.Push(ctx, d.payload)
}

var (
	_ queue.Enqueuer = (*ListQueue)(nil)
	_ queue.Dequeuer = (*ListQueue)(nil)
	_ queue.Delivery = (*listDelivery)(nil)
)
