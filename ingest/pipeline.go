// Package ingest turns leadgen webhook changes into persisted leads.
package ingest

import (
	"context"
	"strings"

	"github.com/goliatone/go-leadgen/core"
)

// Pipeline resolves the owning page, fetches the lead, stores it once and
// queues fresh inserts for the downstream worker.
type Pipeline struct {
	pages  core.PageReader
	graph  core.GraphAPI
	leads  core.LeadStore
	queue  core.LeadQueue
	logger core.Logger
}

func NewPipeline(
	pages core.PageReader,
	graph core.GraphAPI,
	leads core.LeadStore,
	queue core.LeadQueue,
	logger core.Logger,
) *Pipeline {
	return &Pipeline{
		pages:  pages,
		graph:  graph,
		leads:  leads,
		queue:  queue,
		logger: core.ResolveLogger("leadgen.ingest", nil, logger),
	}
}

// Ingest processes one leadgen change. Failures are logged with the leadgen
// id and never returned.
func (p *Pipeline) Ingest(ctx context.Context, event core.LeadgenEvent) {
	fields := map[string]any{
		"leadgen_id": event.LeadgenID,
		"page_id":    event.PageExternalID,
		"form_id":    event.FormID,
	}
	if p == nil || p.pages == nil || p.graph == nil || p.leads == nil {
		core.LogEvent(ctx, loggerOf(p), "error", "lead ingestion is not configured", fields)
		return
	}
	if strings.TrimSpace(event.LeadgenID) == "" {
		core.LogEvent(ctx, p.logger, "warn", "leadgen change without leadgen_id, skipping", fields)
		return
	}

	page, err := p.pages.GetByExternalID(ctx, event.PageExternalID)
	if err != nil {
		if core.IsNotFound(err) {
			core.LogEvent(ctx, p.logger, "warn", "page not connected, skipping lead", fields)
			return
		}
		p.fail(ctx, "page lookup failed", fields, err)
		return
	}
	if strings.TrimSpace(page.AccessToken) == "" {
		core.LogEvent(ctx, p.logger, "warn", "page has no access token, skipping lead", fields)
		return
	}

	details, err := p.graph.FetchLeadDetails(ctx, event.LeadgenID, page.AccessToken)
	if err != nil {
		p.fail(ctx, "lead details fetch failed", fields, err)
		return
	}

	lead, created, err := p.leads.InsertIfAbsent(ctx, core.InsertLeadInput{
		LeadgenID:   event.LeadgenID,
		PageID:      page.ID,
		FormID:      event.FormID,
		CreatedTime: event.CreatedAt(),
		FieldData:   details.FieldData,
	})
	if err != nil {
		p.fail(ctx, "lead persistence failed", fields, err)
		return
	}
	fields["lead_id"] = lead.ID
	if !created {
		core.LogEvent(ctx, p.logger, "info", "lead already stored, skipping", fields)
		return
	}
	core.LogEvent(ctx, p.logger, "info", "lead stored", fields)

	if p.queue == nil {
		return
	}
	if err := p.queue.Enqueue(ctx, core.QueueItem{
		LeadID:         lead.ID,
		LeadgenID:      lead.LeadgenID,
		PageExternalID: page.ExternalID,
		FieldData:      lead.FieldData,
	}); err != nil {
		p.fail(ctx, "lead enqueue failed", fields, err)
	}
}

func (p *Pipeline) fail(ctx context.Context, message string, fields map[string]any, err error) {
	out := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		out[key] = value
	}
	out["error"] = err.Error()
	core.LogEvent(ctx, p.logger, "error", message, out)
}

func loggerOf(p *Pipeline) core.Logger {
	if p == nil || p.logger == nil {
		return core.ResolveLogger("leadgen.ingest", nil, nil)
	}
	return p.logger
}

var _ core.LeadIngester = (*Pipeline)(nil)
