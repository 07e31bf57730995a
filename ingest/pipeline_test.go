package ingest_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/ingest"
	"github.com/goliatone/go-leadgen/providers/meta/graph/graphtest"
	sqlstore "github.com/goliatone/go-leadgen/store/sql"
	"github.com/goliatone/go-leadgen/store/sql/sqltest"
)

type recordingQueue struct {
	mu    sync.Mutex
	items []core.QueueItem
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, item core.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, item)
	return nil
}

func (q *recordingQueue) snapshot() []core.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]core.QueueItem(nil), q.items...)
}

func fieldDataGraph() *graphtest.Stub {
	return &graphtest.Stub{
		FetchLeadDetailsFn: func(_ context.Context, leadgenID string, _ string) (core.LeadDetails, error) {
			return core.LeadDetails{
				FieldData: json.RawMessage(`[{"name":"email","values":["` + leadgenID + `@example.com"]}]`),
			}, nil
		},
	}
}

func seedPage(t *testing.T, factory *sqlstore.RepositoryFactory, externalID string) core.Page {
	t.Helper()
	ctx := context.Background()
	owner, err := factory.UserStore().Upsert(ctx, core.UpsertUserInput{ExternalID: "fb_owner", Name: "Owner", LongLivedToken: "user-token"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	page, err := factory.PageStore().Upsert(ctx, core.UpsertPageInput{
		ExternalID:  externalID,
		Name:        "Acme",
		AccessToken: "page-token",
		OwnerUserID: owner.ID,
	})
	if err != nil {
		t.Fatalf("seed page: %v", err)
	}
	return page
}

func countLeads(t *testing.T, factory *sqlstore.RepositoryFactory) int {
	t.Helper()
	var count int
	if err := factory.DB().NewRaw("SELECT COUNT(*) FROM leads").Scan(context.Background(), &count); err != nil {
		t.Fatalf("count leads: %v", err)
	}
	return count
}

func TestIngest_StoresAndEnqueuesFreshLead(t *testing.T) {
	factory := sqltest.NewFactory(t)
	seedPage(t, factory, "p1")
	queue := &recordingQueue{}
	pipeline := ingest.NewPipeline(factory.PageStore(), fieldDataGraph(), factory.LeadStore(), queue, nil)

	pipeline.Ingest(context.Background(), core.LeadgenEvent{LeadgenID: "lg_1", PageExternalID: "p1", FormID: "f1", CreatedTime: 1700000000})

	lead, err := factory.LeadStore().GetByLeadgenID(context.Background(), "lg_1")
	if err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if lead.FormID != "f1" || lead.Status != core.LeadStatusNew || lead.CreatedTime == nil {
		t.Fatalf("unexpected lead %#v", lead)
	}
	items := queue.snapshot()
	if len(items) != 1 {
		t.Fatalf("expected one queue item, got %d", len(items))
	}
	if items[0].LeadID != lead.ID || items[0].LeadgenID != "lg_1" || items[0].PageExternalID != "p1" {
		t.Fatalf("unexpected queue item %#v", items[0])
	}
	if len(items[0].FieldData) == 0 {
		t.Fatalf("expected field data in queue item")
	}
}

func TestIngest_RedeliveryIsNoop(t *testing.T) {
	factory := sqltest.NewFactory(t)
	seedPage(t, factory, "p1")
	queue := &recordingQueue{}
	pipeline := ingest.NewPipeline(factory.PageStore(), fieldDataGraph(), factory.LeadStore(), queue, nil)
	event := core.LeadgenEvent{LeadgenID: "lg_1", PageExternalID: "p1"}

	pipeline.Ingest(context.Background(), event)
	pipeline.Ingest(context.Background(), event)

	if count := countLeads(t, factory); count != 1 {
		t.Fatalf("expected one lead row, got %d", count)
	}
	if len(queue.snapshot()) != 1 {
		t.Fatalf("expected one queue item, got %d", len(queue.snapshot()))
	}
}

func TestIngest_ConcurrentRedeliveryIsNoop(t *testing.T) {
	factory := sqltest.NewFactory(t)
	seedPage(t, factory, "p1")
	queue := &recordingQueue{}
	pipeline := ingest.NewPipeline(factory.PageStore(), fieldDataGraph(), factory.LeadStore(), queue, nil)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pipeline.Ingest(context.Background(), core.LeadgenEvent{LeadgenID: "lg_dup", PageExternalID: "p1"})
		}()
	}
	wg.Wait()

	if count := countLeads(t, factory); count != 1 {
		t.Fatalf("expected one lead row, got %d", count)
	}
	if len(queue.snapshot()) != 1 {
		t.Fatalf("expected one queue item, got %d", len(queue.snapshot()))
	}
}

func TestIngest_UnknownPageIsSkipped(t *testing.T) {
	factory := sqltest.NewFactory(t)
	graph := fieldDataGraph()
	queue := &recordingQueue{}
	pipeline := ingest.NewPipeline(factory.PageStore(), graph, factory.LeadStore(), queue, nil)

	pipeline.Ingest(context.Background(), core.LeadgenEvent{LeadgenID: "lg_1", PageExternalID: "unknown"})

	if count := countLeads(t, factory); count != 0 {
		t.Fatalf("expected zero leads, got %d", count)
	}
	if len(queue.snapshot()) != 0 || graph.CallCount("FetchLeadDetails") != 0 {
		t.Fatalf("expected no fetch and no queue entries")
	}
}

func TestIngest_DetailFailureIsContained(t *testing.T) {
	factory := sqltest.NewFactory(t)
	seedPage(t, factory, "p1")
	graph := &graphtest.Stub{
		FetchLeadDetailsFn: func(context.Context, string, string) (core.LeadDetails, error) {
			return core.LeadDetails{}, core.NewUpstreamError(stderrors.New("timeout"), "graph: lead details failed", nil)
		},
	}
	queue := &recordingQueue{}
	pipeline := ingest.NewPipeline(factory.PageStore(), graph, factory.LeadStore(), queue, nil)

	pipeline.Ingest(context.Background(), core.LeadgenEvent{LeadgenID: "lg_1", PageExternalID: "p1"})

	if count := countLeads(t, factory); count != 0 {
		t.Fatalf("expected zero leads, got %d", count)
	}
	if len(queue.snapshot()) != 0 {
		t.Fatalf("expected no queue entries")
	}
}

func TestIngest_EnqueueFailureKeepsLead(t *testing.T) {
	factory := sqltest.NewFactory(t)
	seedPage(t, factory, "p1")
	queue := &recordingQueue{err: stderrors.New("redis down")}
	pipeline := ingest.NewPipeline(factory.PageStore(), fieldDataGraph(), factory.LeadStore(), queue, nil)

	pipeline.Ingest(context.Background(), core.LeadgenEvent{LeadgenID: "lg_1", PageExternalID: "p1"})

	if count := countLeads(t, factory); count != 1 {
		t.Fatalf("expected persisted lead despite enqueue failure, got %d", count)
	}
}
