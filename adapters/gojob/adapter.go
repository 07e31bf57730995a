package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-leadgen/core"
)

const JobIDLeadHandoff = "leadgen.lead.handoff"

const (
	paramLeadID    = "leadId"
	paramLeadgenID = "leadgen_id"
	paramPageID    = "page_id"
	paramFieldData = "field_data"
)

// ToExecutionMessage maps a queue item to a go-job message keyed by the
// leadgen id.
func ToExecutionMessage(item core.QueueItem) *job.ExecutionMessage {
	params := map[string]any{
		paramLeadID:    strings.TrimSpace(item.LeadID),
		paramLeadgenID: strings.TrimSpace(item.LeadgenID),
		paramPageID:    strings.TrimSpace(item.PageExternalID),
	}
	if len(item.FieldData) > 0 {
		params[paramFieldData] = append(json.RawMessage(nil), item.FieldData...)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDLeadHandoff,
		ScriptPath:     JobIDLeadHandoff,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(item.LeadgenID),
	}
}

// FromExecutionMessage maps a go-job message back to a queue item.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.QueueItem, error) {
	if msg == nil {
		return core.QueueItem{}, fmt.Errorf("gojob: execution message is required")
	}
	item := core.QueueItem{
		LeadID:         readString(msg.Parameters, paramLeadID),
		LeadgenID:      readString(msg.Parameters, paramLeadgenID),
		PageExternalID: readString(msg.Parameters, paramPageID),
	}
	if item.LeadgenID == "" {
		item.LeadgenID = strings.TrimSpace(msg.IdempotencyKey)
	}
	fieldData, err := readRaw(msg.Parameters, paramFieldData)
	if err != nil {
		return core.QueueItem{}, err
	}
	item.FieldData = fieldData
	return item, nil
}

// LeadQueueAdapter exposes a go-job enqueuer as a core.LeadQueue.
type LeadQueueAdapter struct {
	enqueuer queue.Enqueuer
}

func NewLeadQueueAdapter(enqueuer queue.Enqueuer) *LeadQueueAdapter {
	return &LeadQueueAdapter{enqueuer: enqueuer}
}

func (a *LeadQueueAdapter) Enqueue(ctx context.Context, item core.QueueItem) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	_, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(item))
	return err
}

// LoggingHook reports worker lifecycle events through the leadgen logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: core.ResolveLogger("leadgen.worker", nil, logger)}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "lead handoff started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "lead handoff processed", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "lead handoff failed", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "lead handoff retry scheduled", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, message string, event worker.Event) {
	if h == nil {
		return
	}
	fields := eventFields(event)
	core.LogEvent(ctx, h.logger, level, message, fields)
}

func eventFields(event worker.Event) map[string]any {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	fields := map[string]any{
		"attempt": event.Attempt,
	}
	if msg != nil {
		fields["job_id"] = msg.JobID
		fields["leadgen_id"] = strings.TrimSpace(msg.IdempotencyKey)
		if leadID := readString(msg.Parameters, paramLeadID); leadID != "" {
			fields["lead_id"] = leadID
		}
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.Delay > 0 {
		fields["delay"] = event.Delay.String()
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	return fields
}

func readString(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	raw, ok := params[key]
	if !ok || raw == nil {
		return ""
	}
	if value, ok := raw.(string); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func readRaw(params map[string]any, key string) (json.RawMessage, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch typed := raw.(type) {
	case json.RawMessage:
		return append(json.RawMessage(nil), typed...), nil
	case []byte:
		return append(json.RawMessage(nil), typed...), nil
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil, nil
		}
		return json.RawMessage(typed), nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("gojob: encode %s: %w", key, err)
		}
		return encoded, nil
	}
}

var (
	_ core.LeadQueue = (*LeadQueueAdapter)(nil)
	_ worker.Hook    = (*LoggingHook)(nil)
)
