package leadgen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	leadgen "github.com/goliatone/go-leadgen"
	"github.com/goliatone/go-leadgen/adapters/gocommand"
	"github.com/goliatone/go-leadgen/adapters/gojob"
	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/providers/meta/graph/graphtest"
	"github.com/goliatone/go-leadgen/store/sql/sqltest"
	"github.com/goliatone/go-leadgen/webhooks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryQueue struct {
	mu    sync.Mutex
	items []core.QueueItem
}

func (q *memoryQueue) Enqueue(_ context.Context, item core.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type singleDelivery struct {
	item  core.QueueItem
	taken bool
	acked bool
}

func (d *singleDelivery) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if d.taken {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d.taken = true
	return d, nil
}

func (d *singleDelivery) Message() *job.ExecutionMessage { return gojob.ToExecutionMessage(d.item) }

func (d *singleDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *singleDelivery) Nack(context.Context, queue.NackOptions) error { return nil }

func platformStub() *graphtest.Stub {
	return &graphtest.Stub{
		ExchangeTokenFn: func(context.Context, string) (core.ExchangedToken, error) {
			return core.ExchangedToken{AccessToken: "long-token"}, nil
		},
		FetchProfileFn: func(_ context.Context, token string) (core.Profile, error) {
			if token != "long-token" {
				return core.Profile{}, core.NewUpstreamAuthError(nil, "graph: invalid token", nil)
			}
			return core.Profile{ExternalID: "fb_1", Name: "Ana"}, nil
		},
		FetchDirectPagesFn: func(context.Context, string) ([]core.DiscoveredPage, error) {
			return []core.DiscoveredPage{{ExternalID: "p1", Name: "Acme", AccessToken: "page-token"}}, nil
		},
		FetchPageTokenFn: func(context.Context, string, string) (string, error) {
			return "page-token", nil
		},
		FetchLeadDetailsFn: func(context.Context, string, string) (core.LeadDetails, error) {
			return core.LeadDetails{FieldData: json.RawMessage(`[{"name":"email","values":["a@example.com"]}]`)}, nil
		},
	}
}

func request(t *testing.T, router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRuntime_LoginConnectIngestList(t *testing.T) {
	cfg := leadgen.DefaultConfig()
	cfg.Webhook.VerifyToken = "verify"
	leads := &memoryQueue{}
	factory := sqltest.NewFactory(t)

	rt, err := leadgen.NewRuntime(cfg,
		leadgen.WithRepositoryFactory(factory),
		leadgen.WithGraphAPI(platformStub()),
		leadgen.WithLeadQueue(leads),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	router := rt.Router()

	rec := request(t, router, http.MethodPost, "/api/auth/login", `{"accessToken":"short"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.AccessToken != "long-token" {
		t.Fatalf("unexpected login body %s", rec.Body.String())
	}

	rec = request(t, router, http.MethodGet, "/api/auth/pages", "", login.AccessToken)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "page-token") {
		t.Fatalf("pages: %d %s", rec.Code, rec.Body.String())
	}

	rec = request(t, router, http.MethodPost, "/api/auth/pages/p1/connect", `{"pageName":"Acme"}`, login.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect: %d %s", rec.Code, rec.Body.String())
	}

	delivery := `{"object":"page","entry":[{"id":"p1","time":1700000000,"changes":[{"field":"leadgen","value":{"leadgen_id":"lg_1","page_id":"p1","form_id":"f1","created_time":1700000000}}]}]}`
	for range 2 {
		rec = request(t, router, http.MethodPost, "/webhooks", delivery, "")
		if rec.Code != http.StatusOK || rec.Body.String() != webhooks.EventReceivedAck {
			t.Fatalf("webhook: %d %s", rec.Code, rec.Body.String())
		}
	}
	if leads.len() != 1 {
		t.Fatalf("expected one queued lead after redelivery, got %d", leads.len())
	}

	rec = request(t, router, http.MethodGet, "/api/leads", "", login.AccessToken)
	var listed struct {
		Leads []struct {
			LeadgenID string `json:"leadgen_id"`
			PageName  string `json:"page_name"`
		} `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode leads: %v", err)
	}
	if len(listed.Leads) != 1 || listed.Leads[0].LeadgenID != "lg_1" || listed.Leads[0].PageName != "Acme" {
		t.Fatalf("unexpected leads %s", rec.Body.String())
	}
}

func TestRuntime_RouterThroughDispatcher(t *testing.T) {
	rt, err := leadgen.NewRuntime(leadgen.DefaultConfig(),
		leadgen.WithRepositoryFactory(sqltest.NewFactory(t)),
		leadgen.WithGraphAPI(platformStub()),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	bus := gocommand.NewBus(nil)
	defer bus.Close()
	if err := rt.UseDispatcher(bus); err != nil {
		t.Fatalf("use dispatcher: %v", err)
	}
	router := rt.Router()

	rec := request(t, router, http.MethodPost, "/api/auth/login", `{"accessToken":"short"}`, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "long-token") {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	rec = request(t, router, http.MethodGet, "/api/auth/pages", "", "long-token")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pages"`) {
		t.Fatalf("pages: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRuntime_ConsumerMarksLeadProcessed(t *testing.T) {
	factory := sqltest.NewFactory(t)
	rt, err := leadgen.NewRuntime(leadgen.DefaultConfig(),
		leadgen.WithRepositoryFactory(factory),
		leadgen.WithGraphAPI(platformStub()),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	ctx := context.Background()
	owner, err := factory.UserStore().Upsert(ctx, core.UpsertUserInput{ExternalID: "fb_1", Name: "Ana", LongLivedToken: "long-token"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	page, err := factory.PageStore().Upsert(ctx, core.UpsertPageInput{ExternalID: "p1", Name: "Acme", AccessToken: "page-token", OwnerUserID: owner.ID})
	if err != nil {
		t.Fatalf("seed page: %v", err)
	}
	lead, _, err := factory.LeadStore().InsertIfAbsent(ctx, core.InsertLeadInput{LeadgenID: "lg_1", PageID: page.ID})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}

	dequeuer := &singleDelivery{item: core.QueueItem{LeadID: lead.ID, LeadgenID: "lg_1", PageExternalID: "p1"}}
	if err := rt.NewConsumer(dequeuer).ProcessOne(ctx); err != nil {
		t.Fatalf("process one: %v", err)
	}
	stored, err := factory.LeadStore().GetByLeadgenID(ctx, "lg_1")
	if err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if stored.Status != core.LeadStatusProcessed {
		t.Fatalf("expected processed status, got %q", stored.Status)
	}
	if !dequeuer.acked {
		t.Fatalf("expected delivery ack")
	}
}

func TestNewRuntime_RequiresStorage(t *testing.T) {
	if _, err := leadgen.NewRuntime(leadgen.DefaultConfig()); err == nil {
		t.Fatalf("expected storage requirement error")
	}
}

func TestLoadConfig_LayersValues(t *testing.T) {
	cfg, err := leadgen.LoadConfig(context.Background(), map[string]any{
		"graph":   map[string]any{"app_id": "app"},
		"webhook": map[string]any{"verify_token": "verify"},
		"queue":   map[string]any{"backoff": 2 * time.Second},
	}, leadgen.Config{HTTP: core.HTTPConfig{Addr: ":8080"}})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Graph.AppID != "app" || cfg.Webhook.VerifyToken != "verify" {
		t.Fatalf("expected loaded values, got %#v", cfg)
	}
	if cfg.Queue.Backoff != 2*time.Second || cfg.Queue.Name != core.DefaultQueueName {
		t.Fatalf("unexpected queue config %#v", cfg.Queue)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected runtime override, got %q", cfg.HTTP.Addr)
	}
	if cfg.Graph.APIVersion != core.DefaultGraphAPIVersion {
		t.Fatalf("expected default api version, got %q", cfg.Graph.APIVersion)
	}
}
