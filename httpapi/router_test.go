package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-leadgen/command"
	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/query"
	"github.com/goliatone/go-leadgen/webhooks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	user core.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, header string) (core.User, error) {
	if header != "Bearer good" {
		return core.User{}, core.NewUnauthorizedError("token expired or invalid", nil)
	}
	return s.user, nil
}

type commandFunc[T any] func(context.Context, T) error

func (f commandFunc[T]) Execute(ctx context.Context, msg T) error { return f(ctx, msg) }

type queryFunc[T any, R any] func(context.Context, T) (R, error)

func (f queryFunc[T, R]) Query(ctx context.Context, msg T) (R, error) { return f(ctx, msg) }

func storeLogin(ctx context.Context, result command.LoginResult) {
	if collector := gocmd.ResultFromContext[command.LoginResult](ctx); collector != nil {
		collector.Store(result)
	}
}

func perform(router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRouter_Health(t *testing.T) {
	rec := perform(NewRouter(Handlers{}), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_WebhookHandshake(t *testing.T) {
	router := NewRouter(Handlers{Webhooks: webhooks.NewGateway(webhooks.GatewayConfig{VerifyToken: "tok"}, nil, nil)})

	rec := perform(router, http.MethodGet, "/webhooks?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=xyz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "xyz" {
		t.Fatalf("expected challenge, got %d %q", rec.Code, rec.Body.String())
	}
	rec = perform(router, http.MethodGet, "/webhooks?hub.mode=subscribe&hub.verify_token=bad&hub.challenge=xyz", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = perform(router, http.MethodGet, "/webhooks?hub.verify_token=tok", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouter_WebhookDelivery(t *testing.T) {
	router := NewRouter(Handlers{Webhooks: webhooks.NewGateway(webhooks.GatewayConfig{VerifyToken: "tok"}, nil, nil)})

	rec := perform(router, http.MethodPost, "/webhooks", `{"object":"page","entry":[]}`, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != webhooks.EventReceivedAck {
		t.Fatalf("expected EVENT_RECEIVED, got %d %q", rec.Code, rec.Body.String())
	}
	rec = perform(router, http.MethodPost, "/webhooks", `{"object":"instagram"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = perform(router, http.MethodPost, "/webhooks", `{"object":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouter_WebhookBodyLimit(t *testing.T) {
	router := NewRouter(Handlers{
		Webhooks:            webhooks.NewGateway(webhooks.GatewayConfig{VerifyToken: "tok"}, nil, nil),
		MaxWebhookBodyBytes: 32,
	})

	rec := perform(router, http.MethodPost, "/webhooks", `{"object":"page","entry":[]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected body under the limit to be accepted, got %d", rec.Code)
	}
	oversized := `{"object":"page","entry":[` + strings.Repeat(`{"id":"1"},`, 16) + `{"id":"1"}]}`
	rec = perform(router, http.MethodPost, "/webhooks", oversized, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestRouter_Login(t *testing.T) {
	login := commandFunc[command.LoginMessage](func(ctx context.Context, msg command.LoginMessage) error {
		if msg.AccessToken != "short" {
			return core.NewAuthenticationFailedError(stderrors.New("platform said: token secret-abc invalid"), "auth: token exchange rejected by platform")
		}
		storeLogin(ctx, command.LoginResult{
			AccessToken: "long",
			User:        core.User{ID: "u1", Name: "Ana", ExternalID: "fb_1"},
		})
		return nil
	})
	router := NewRouter(Handlers{Login: login})

	rec := perform(router, http.MethodPost, "/api/auth/login", `{"accessToken":"short"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	user, _ := body["user"].(map[string]any)
	if body["success"] != true || body["access_token"] != "long" || user["facebook_id"] != "fb_1" || user["id"] != "u1" {
		t.Fatalf("unexpected login body %#v", body)
	}

	rec = perform(router, http.MethodPost, "/api/auth/login", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %d", rec.Code)
	}

	rec = perform(router, http.MethodPost, "/api/auth/login", `{"accessToken":"other"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failed login, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-abc") {
		t.Fatalf("upstream detail leaked: %s", rec.Body.String())
	}
	if decode(t, rec)["code"] != core.ErrorAuthenticationFailed {
		t.Fatalf("expected machine-readable code, got %s", rec.Body.String())
	}
}

func TestRouter_SecuredRoutesRequireBearer(t *testing.T) {
	router := NewRouter(Handlers{
		Authenticator: stubAuthenticator{user: core.User{ID: "u1", LongLivedToken: "long"}},
		ListLeads: queryFunc[query.ListLeadsMessage, []core.OwnedLead](func(context.Context, query.ListLeadsMessage) ([]core.OwnedLead, error) {
			return nil, nil
		}),
	})

	for _, header := range []string{"", "Token good", "Bearer bad"} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		rec := perform(router, http.MethodGet, "/api/leads", "", headers)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}

	rec := perform(router, http.MethodGet, "/api/leads", "", map[string]string{"Authorization": "Bearer good"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	leads, ok := decode(t, rec)["leads"].([]any)
	if !ok || len(leads) != 0 {
		t.Fatalf("expected empty leads array, got %s", rec.Body.String())
	}
}

func TestRouter_PagesAndForms(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer good"}
	router := NewRouter(Handlers{
		Authenticator: stubAuthenticator{user: core.User{ID: "u1", LongLivedToken: "long"}},
		ListPages: queryFunc[query.ListPagesMessage, []core.DiscoveredPage](func(_ context.Context, msg query.ListPagesMessage) ([]core.DiscoveredPage, error) {
			if msg.User.ID != "u1" {
				t.Fatalf("expected authenticated user, got %#v", msg.User)
			}
			return []core.DiscoveredPage{{ExternalID: "p1", Name: "Acme"}}, nil
		}),
		ListPageForms: queryFunc[query.ListPageFormsMessage, []core.LeadForm](func(_ context.Context, msg query.ListPageFormsMessage) ([]core.LeadForm, error) {
			if msg.PageExternalID != "p1" {
				return nil, core.NewNotFoundError("page not found or not connected to this user", nil)
			}
			return []core.LeadForm{{ID: "f1"}}, nil
		}),
		ConnectPage: commandFunc[command.ConnectPageMessage](func(ctx context.Context, msg command.ConnectPageMessage) error {
			if msg.Name != "Acme" || msg.UserToken != "long" || msg.OwnerUserID != "u1" {
				t.Fatalf("unexpected connect message %#v", msg)
			}
			if collector := gocmd.ResultFromContext[core.Page](ctx); collector != nil {
				collector.Store(core.Page{ID: "page_1", ExternalID: msg.PageExternalID, Name: msg.Name, AccessToken: "page-secret"})
			}
			return nil
		}),
	})

	rec := perform(router, http.MethodGet, "/api/auth/pages", "", auth)
	pages, _ := decode(t, rec)["pages"].([]any)
	if rec.Code != http.StatusOK || len(pages) != 1 {
		t.Fatalf("unexpected pages response %d %s", rec.Code, rec.Body.String())
	}

	rec = perform(router, http.MethodGet, "/api/auth/pages/p1/forms", "", auth)
	if rec.Code != http.StatusOK || decode(t, rec)["success"] != true {
		t.Fatalf("unexpected forms response %d %s", rec.Code, rec.Body.String())
	}
	rec = perform(router, http.MethodGet, "/api/auth/pages/other/forms", "", auth)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign page, got %d", rec.Code)
	}

	rec = perform(router, http.MethodPost, "/api/auth/pages/p1/connect", `{"pageName":"Acme"}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "page-secret") {
		t.Fatalf("page token leaked: %s", rec.Body.String())
	}
	if decode(t, rec)["message"] != "Page connected successfully" {
		t.Fatalf("unexpected connect body %s", rec.Body.String())
	}
}
