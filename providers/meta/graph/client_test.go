package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(core.GraphConfig{
		AppID:      "app_1",
		AppSecret:  "app_secret",
		APIVersion: "v18.0",
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
	}, server.Client())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestExchangeToken_SendsAppCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v18.0/oauth/access_token" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("grant_type") != "fb_exchange_token" ||
			query.Get("client_id") != "app_1" ||
			query.Get("client_secret") != "app_secret" ||
			query.Get("fb_exchange_token") != "short" {
			t.Errorf("unexpected exchange query %q", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "long", "expires_in": 3600})
	})

	token, err := client.ExchangeToken(context.Background(), "short")
	if err != nil {
		t.Fatalf("exchange token: %v", err)
	}
	if token.AccessToken != "long" || token.ExpiresIn != time.Hour {
		t.Fatalf("unexpected exchanged token %#v", token)
	}
}

func TestExchangeToken_OmittedExpiryIsZero(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "long"})
	})

	token, err := client.ExchangeToken(context.Background(), "short")
	if err != nil {
		t.Fatalf("exchange token: %v", err)
	}
	if token.ExpiresIn != 0 {
		t.Fatalf("expected zero expiry when omitted, got %s", token.ExpiresIn)
	}
}

func TestExchangeToken_RejectionIsUpstreamAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message":    "Invalid OAuth access token.",
			"type":       "OAuthException",
			"code":       1,
			"fbtrace_id": "trace_1",
		}})
	})

	_, err := client.ExchangeToken(context.Background(), "short")
	if !core.IsUpstreamAuth(err) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	graphErr, ok := rich.Metadata["graph_error"].(map[string]any)
	if !ok {
		t.Fatalf("expected graph error metadata, got %#v", rich.Metadata)
	}
	if graphErr["fbtrace_id"] != "trace_1" {
		t.Fatalf("expected upstream body on error metadata, got %#v", graphErr)
	}
}

func TestFetchProfile_InvalidTokenIsUpstreamAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fields") != "id,name" {
			t.Errorf("unexpected fields %q", r.URL.Query().Get("fields"))
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message": "Error validating access token",
			"type":    "OAuthException",
			"code":    190,
		}})
	})

	_, err := client.FetchProfile(context.Background(), "expired")
	if !core.IsUpstreamAuth(err) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}
}

func TestFetchDirectPages_NonAuthFailureIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{
			"message": "An unexpected error has occurred.",
			"code":    2,
		}})
	})

	_, err := client.FetchDirectPages(context.Background(), "token")
	if err == nil {
		t.Fatalf("expected error")
	}
	if core.IsUpstreamAuth(err) {
		t.Fatalf("did not expect auth classification for %v", err)
	}
	if !core.HasTextCode(err, core.ErrorUpstreamFailure) {
		t.Fatalf("expected upstream failure text code, got %v", err)
	}
}

func TestFetchPagesAndBusinesses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			if r.URL.Query().Get("fields") != "id,name,access_token,category,tasks" {
				t.Errorf("unexpected direct page fields %q", r.URL.Query().Get("fields"))
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": "p1", "name": "Page One", "access_token": "pt1", "category": "Shop", "tasks": []string{"ADVERTISE"}},
			}})
		case "/v18.0/me/businesses":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "b1", "name": "Agency"}}})
		case "/v18.0/b1/client_pages":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "p2", "name": "Client Page"}}})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	direct, err := client.FetchDirectPages(context.Background(), "token")
	if err != nil {
		t.Fatalf("fetch direct pages: %v", err)
	}
	if len(direct) != 1 || direct[0].ExternalID != "p1" || direct[0].AccessToken != "pt1" || direct[0].Tasks[0] != "ADVERTISE" {
		t.Fatalf("unexpected direct pages %#v", direct)
	}

	businesses, err := client.FetchOwnedBusinesses(context.Background(), "token")
	if err != nil {
		t.Fatalf("fetch businesses: %v", err)
	}
	if len(businesses) != 1 || businesses[0].ID != "b1" {
		t.Fatalf("unexpected businesses %#v", businesses)
	}

	pages, err := client.FetchBusinessPages(context.Background(), "b1", "token")
	if err != nil {
		t.Fatalf("fetch business pages: %v", err)
	}
	if len(pages) != 1 || pages[0].ExternalID != "p2" {
		t.Fatalf("unexpected business pages %#v", pages)
	}
}

func TestFetchPageTokenAndSubscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v18.0/p1":
			if r.URL.Query().Get("access_token") != "user_token" {
				t.Errorf("expected user token on page token request")
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "access_token": "page_token"})
		case r.Method == http.MethodPost && r.URL.Path == "/v18.0/p1/subscribed_apps":
			if r.URL.Query().Get("subscribed_fields") != "leadgen" {
				t.Errorf("expected leadgen subscription, got %q", r.URL.RawQuery)
			}
			if r.URL.Query().Get("access_token") != "page_token" {
				t.Errorf("expected page token on subscribe request")
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	token, err := client.FetchPageToken(context.Background(), "p1", "user_token")
	if err != nil {
		t.Fatalf("fetch page token: %v", err)
	}
	if token != "page_token" {
		t.Fatalf("unexpected page token %q", token)
	}
	ok, err := client.SubscribeWebhook(context.Background(), "p1", token)
	if err != nil {
		t.Fatalf("subscribe webhook: %v", err)
	}
	if !ok {
		t.Fatalf("expected subscription success")
	}
}

func TestFetchLeadDetails_ExtractsFieldData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v18.0/lg_1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           "lg_1",
			"created_time": "2024-01-01T00:00:00+0000",
			"field_data": []map[string]any{
				{"name": "email", "values": []string{"a@example.com"}},
			},
		})
	})

	details, err := client.FetchLeadDetails(context.Background(), "lg_1", "page_token")
	if err != nil {
		t.Fatalf("fetch lead details: %v", err)
	}
	if !strings.Contains(string(details.FieldData), "a@example.com") {
		t.Fatalf("expected field data, got %s", string(details.FieldData))
	}
	if details.Raw["id"] != "lg_1" {
		t.Fatalf("expected raw payload, got %#v", details.Raw)
	}
}

func TestFetchPageForms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v18.0/p1/leadgen_forms" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("fields") != "id,name,status,leadgen_export_csv_url,locale,created_time" {
			t.Errorf("unexpected fields %q", r.URL.Query().Get("fields"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": "f1", "name": "Signup", "status": "ACTIVE", "locale": "en_US"},
		}})
	})

	forms, err := client.FetchPageForms(context.Background(), "p1", "page_token")
	if err != nil {
		t.Fatalf("fetch page forms: %v", err)
	}
	if len(forms) != 1 || forms[0].ID != "f1" || forms[0].Status != "ACTIVE" {
		t.Fatalf("unexpected forms %#v", forms)
	}
}

func TestRateLimit_PageThrottleBlocksFollowUpCalls(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message": "(#32) Page request limit reached",
			"code":    32,
		}})
	})
	client.WithRateLimit(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()))

	if _, err := client.FetchLeadDetails(context.Background(), "lg_1", "page-token"); !core.HasTextCode(err, core.ErrorUpstreamFailure) {
		t.Fatalf("expected upstream failure for the throttled response, got %v", err)
	}
	_, err := client.FetchLeadDetails(context.Background(), "lg_2", "page-token")
	if !core.HasTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected local rate limit error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the throttled call to stay local, got %d upstream calls", calls)
	}

	// other tokens are unaffected
	if _, err := client.FetchLeadDetails(context.Background(), "lg_3", "other-token"); core.HasTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected other token to reach the platform, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected second upstream call, got %d", calls)
	}
}

func TestRateLimit_AppUsageHeaderBlocksAllTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-App-Usage", `{"call_count":100,"total_time":12,"total_cputime":9}`)
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "name": "Ada"})
	})
	client.WithRateLimit(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()))

	if _, err := client.FetchProfile(context.Background(), "token-a"); err != nil {
		t.Fatalf("first profile call: %v", err)
	}
	if _, err := client.FetchProfile(context.Background(), "token-b"); !core.HasTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected app throttle, got %v", err)
	}
}
