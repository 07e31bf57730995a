package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/ratelimit"
	"github.com/goliatone/go-leadgen/transport"
)

const (
	fieldsProfile       = "id,name"
	fieldsDirectPages   = "id,name,access_token,category,tasks"
	fieldsBusinesses    = "id,name"
	fieldsBusinessPages = "name,access_token,id,tasks"
	fieldsPageToken     = "access_token"
	fieldsLeadForms     = "id,name,status,leadgen_export_csv_url,locale,created_time"
	subscribedFields    = "leadgen"
	grantTypeExchange   = "fb_exchange_token"
)

// Client calls the Graph API. It holds app credentials only; every call
// receives the token it should use.
type Client struct {
	appID      string
	appSecret  string
	apiVersion string
	baseURL    string
	transport  *transport.Client
	limiter    *ratelimit.AdaptivePolicy
}

func New(cfg core.GraphConfig, doer transport.HTTPDoer) *Client {
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = core.DefaultGraphAPIVersion
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultGraphBaseURL
	}
	client := transport.NewClient(doer)
	client.Timeout = cfg.Timeout
	return &Client{
		appID:      strings.TrimSpace(cfg.AppID),
		appSecret:  strings.TrimSpace(cfg.AppSecret),
		apiVersion: apiVersion,
		baseURL:    baseURL,
		transport:  client,
	}
}

// WithRateLimit makes the client refuse calls locally while the platform
// throttles the app or the calling token.
func (c *Client) WithRateLimit(policy *ratelimit.AdaptivePolicy) *Client {
	c.limiter = policy
	return c
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type pageTokenResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

type subscribeResponse struct {
	Success bool `json:"success"`
}

func (c *Client) ExchangeToken(ctx context.Context, shortLivedToken string) (core.ExchangedToken, error) {
	shortLivedToken = strings.TrimSpace(shortLivedToken)
	if shortLivedToken == "" {
		return core.ExchangedToken{}, core.NewValidationError("access_token", "short-lived token is required")
	}
	var out exchangeResponse
	err := c.get(ctx, "exchange_token", "/oauth/access_token", url.Values{
		"grant_type":        {grantTypeExchange},
		"client_id":         {c.appID},
		"client_secret":     {c.appSecret},
		"fb_exchange_token": {shortLivedToken},
	}, rejectClientErrors, &out)
	if err != nil {
		return core.ExchangedToken{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return core.ExchangedToken{}, core.NewUpstreamAuthError(nil, "graph: token exchange returned no access token", map[string]any{
			"operation": "exchange_token",
		})
	}
	exchanged := core.ExchangedToken{AccessToken: strings.TrimSpace(out.AccessToken)}
	if out.ExpiresIn > 0 {
		exchanged.ExpiresIn = secondsToDuration(out.ExpiresIn)
	}
	return exchanged, nil
}

func (c *Client) FetchProfile(ctx context.Context, accessToken string) (core.Profile, error) {
	var out profileResponse
	err := c.get(ctx, "fetch_profile", "/me", url.Values{
		"fields":       {fieldsProfile},
		"access_token": {accessToken},
	}, rejectClientErrors, &out)
	if err != nil {
		return core.Profile{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return core.Profile{}, core.NewUpstreamAuthError(nil, "graph: profile response has no id", map[string]any{
			"operation": "fetch_profile",
		})
	}
	return core.Profile{ExternalID: strings.TrimSpace(out.ID), Name: out.Name}, nil
}

func (c *Client) FetchDirectPages(ctx context.Context, accessToken string) ([]core.DiscoveredPage, error) {
	var out listResponse[core.DiscoveredPage]
	err := c.get(ctx, "fetch_direct_pages", "/me/accounts", url.Values{
		"fields":       {fieldsDirectPages},
		"access_token": {accessToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) FetchOwnedBusinesses(ctx context.Context, accessToken string) ([]core.Business, error) {
	var out listResponse[core.Business]
	err := c.get(ctx, "fetch_businesses", "/me/businesses", url.Values{
		"fields":       {fieldsBusinesses},
		"access_token": {accessToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) FetchBusinessPages(ctx context.Context, businessID string, accessToken string) ([]core.DiscoveredPage, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, core.NewValidationError("business_id", "business id is required")
	}
	var out listResponse[core.DiscoveredPage]
	err := c.get(ctx, "fetch_business_pages", "/"+url.PathEscape(businessID)+"/client_pages", url.Values{
		"fields":       {fieldsBusinessPages},
		"access_token": {accessToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) FetchPageToken(ctx context.Context, pageExternalID string, userToken string) (string, error) {
	pageExternalID = strings.TrimSpace(pageExternalID)
	if pageExternalID == "" {
		return "", core.NewValidationError("page_id", "page id is required")
	}
	var out pageTokenResponse
	err := c.get(ctx, "fetch_page_token", "/"+url.PathEscape(pageExternalID), url.Values{
		"fields":       {fieldsPageToken},
		"access_token": {userToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(out.AccessToken)
	if token == "" {
		return "", core.NewUpstreamError(nil, "graph: page token not returned", map[string]any{
			"operation": "fetch_page_token",
			"page_id":   pageExternalID,
		})
	}
	return token, nil
}

func (c *Client) SubscribeWebhook(ctx context.Context, pageExternalID string, pageToken string) (bool, error) {
	pageExternalID = strings.TrimSpace(pageExternalID)
	if pageExternalID == "" {
		return false, core.NewValidationError("page_id", "page id is required")
	}
	var out subscribeResponse
	err := c.call(ctx, http.MethodPost, "subscribe_webhook", "/"+url.PathEscape(pageExternalID)+"/subscribed_apps", url.Values{
		"subscribed_fields": {subscribedFields},
		"access_token":      {pageToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *Client) FetchLeadDetails(ctx context.Context, leadgenID string, pageToken string) (core.LeadDetails, error) {
	leadgenID = strings.TrimSpace(leadgenID)
	if leadgenID == "" {
		return core.LeadDetails{}, core.NewValidationError("leadgen_id", "leadgen id is required")
	}
	var raw map[string]any
	err := c.get(ctx, "fetch_lead_details", "/"+url.PathEscape(leadgenID), url.Values{
		"access_token": {pageToken},
	}, rejectTokenErrors, &raw)
	if err != nil {
		return core.LeadDetails{}, err
	}
	details := core.LeadDetails{Raw: raw}
	if fieldData, ok := raw["field_data"]; ok && fieldData != nil {
		encoded, err := json.Marshal(fieldData)
		if err != nil {
			return core.LeadDetails{}, core.NewUpstreamError(err, "graph: encode lead field data", map[string]any{
				"operation":  "fetch_lead_details",
				"leadgen_id": leadgenID,
			})
		}
		details.FieldData = encoded
	}
	return details, nil
}

func (c *Client) FetchPageForms(ctx context.Context, pageExternalID string, pageToken string) ([]core.LeadForm, error) {
	pageExternalID = strings.TrimSpace(pageExternalID)
	if pageExternalID == "" {
		return nil, core.NewValidationError("page_id", "page id is required")
	}
	var out listResponse[core.LeadForm]
	err := c.get(ctx, "fetch_page_forms", "/"+url.PathEscape(pageExternalID)+"/leadgen_forms", url.Values{
		"fields":       {fieldsLeadForms},
		"access_token": {pageToken},
	}, rejectTokenErrors, &out)
	if err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) get(
	ctx context.Context,
	operation string,
	path string,
	query url.Values,
	policy authPolicy,
	target any,
) error {
	return c.call(ctx, http.MethodGet, operation, path, query, policy, target)
}

func (c *Client) call(
	ctx context.Context,
	method string,
	operation string,
	path string,
	query url.Values,
	policy authPolicy,
	target any,
) error {
	if c == nil || c.transport == nil {
		return core.NewInternalError(nil, "graph: client is not configured")
	}
	appKey := ratelimit.Key{Scope: ratelimit.ScopeApp}
	tokenKey := ratelimit.Key{Scope: ratelimit.ScopeToken, ID: tokenFingerprint(query.Get("access_token"))}
	if c.limiter != nil {
		if err := c.limiter.BeforeCall(ctx, appKey, tokenKey); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				mapped := throttled.ToServiceError()
				mapped.Metadata["operation"] = operation
				return mapped
			}
			return core.NewInternalError(err, "graph: rate limit state unavailable")
		}
	}
	res, err := c.transport.Do(ctx, transport.Request{
		Method: method,
		URL:    c.endpoint(path),
		Query:  query,
	})
	if err != nil {
		return core.NewUpstreamError(err, "graph: "+operation+" request failed", map[string]any{
			"operation": operation,
		})
	}
	if c.limiter != nil {
		// state errors must not fail a call the platform already answered
		_ = c.limiter.AfterCall(ctx, appKey, tokenKey, ratelimit.Observation{
			StatusCode: res.StatusCode,
			Headers:    res.Headers,
			ErrorCode:  graphErrorCode(res),
		})
	}
	if !res.Success() {
		return classifyFailure(operation, res, policy)
	}
	if err := res.DecodeJSON(target); err != nil {
		return core.NewUpstreamError(err, "graph: "+operation+" returned an unreadable body", map[string]any{
			"operation":   operation,
			"status_code": res.StatusCode,
		})
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + c.apiVersion + path
}

// tokenFingerprint keys throttle state without keeping the token itself.
func tokenFingerprint(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

var _ core.GraphAPI = (*Client)(nil)
