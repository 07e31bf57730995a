// Package graphtest provides a programmable core.GraphAPI for tests.
package graphtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-leadgen/core"
)

// Stub implements core.GraphAPI with optional per-call functions. Calls
// without a function succeed with zero values, except SubscribeWebhook
// which reports true. Every call is recorded.
type Stub struct {
	ExchangeTokenFn        func(ctx context.Context, shortLivedToken string) (core.ExchangedToken, error)
	FetchProfileFn         func(ctx context.Context, accessToken string) (core.Profile, error)
	FetchDirectPagesFn     func(ctx context.Context, accessToken string) ([]core.DiscoveredPage, error)
	FetchOwnedBusinessesFn func(ctx context.Context, accessToken string) ([]core.Business, error)
	FetchBusinessPagesFn   func(ctx context.Context, businessID string, accessToken string) ([]core.DiscoveredPage, error)
	FetchPageTokenFn       func(ctx context.Context, pageExternalID string, userToken string) (string, error)
	SubscribeWebhookFn     func(ctx context.Context, pageExternalID string, pageToken string) (bool, error)
	FetchLeadDetailsFn     func(ctx context.Context, leadgenID string, pageToken string) (core.LeadDetails, error)
	FetchPageFormsFn       func(ctx context.Context, pageExternalID string, pageToken string) ([]core.LeadForm, error)

	mu    sync.Mutex
	calls []string
}

var _ core.GraphAPI = (*Stub)(nil)

// Calls returns the recorded calls as "Method:arg" strings.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts recorded calls to method.
func (s *Stub) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	prefix := method + ":"
	for _, call := range s.calls {
		if strings.HasPrefix(call, prefix) {
			count++
		}
	}
	return count
}

func (s *Stub) record(method string, arg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("%s:%s", method, arg))
}

func (s *Stub) ExchangeToken(ctx context.Context, shortLivedToken string) (core.ExchangedToken, error) {
	s.record("ExchangeToken", shortLivedToken)
	if s.ExchangeTokenFn == nil {
		return core.ExchangedToken{}, nil
	}
	return s.ExchangeTokenFn(ctx, shortLivedToken)
}

func (s *Stub) FetchProfile(ctx context.Context, accessToken string) (core.Profile, error) {
	s.record("FetchProfile", accessToken)
	if s.FetchProfileFn == nil {
		return core.Profile{}, nil
	}
	return s.FetchProfileFn(ctx, accessToken)
}

func (s *Stub) FetchDirectPages(ctx context.Context, accessToken string) ([]core.DiscoveredPage, error) {
	s.record("FetchDirectPages", accessToken)
	if s.FetchDirectPagesFn == nil {
		return nil, nil
	}
	return s.FetchDirectPagesFn(ctx, accessToken)
}

func (s *Stub) FetchOwnedBusinesses(ctx context.Context, accessToken string) ([]core.Business, error) {
	s.record("FetchOwnedBusinesses", accessToken)
	if s.FetchOwnedBusinessesFn == nil {
		return nil, nil
	}
	return s.FetchOwnedBusinessesFn(ctx, accessToken)
}

func (s *Stub) FetchBusinessPages(ctx context.Context, businessID string, accessToken string) ([]core.DiscoveredPage, error) {
	s.record("FetchBusinessPages", businessID)
	if s.FetchBusinessPagesFn == nil {
		return nil, nil
	}
	return s.FetchBusinessPagesFn(ctx, businessID, accessToken)
}

func (s *Stub) FetchPageToken(ctx context.Context, pageExternalID string, userToken string) (string, error) {
	s.record("FetchPageToken", pageExternalID)
	if s.FetchPageTokenFn == nil {
		return "", nil
	}
	return s.FetchPageTokenFn(ctx, pageExternalID, userToken)
}

func (s *Stub) SubscribeWebhook(ctx context.Context, pageExternalID string, pageToken string) (bool, error) {
	s.record("SubscribeWebhook", pageExternalID)
	if s.SubscribeWebhookFn == nil {
		return true, nil
	}
	return s.SubscribeWebhookFn(ctx, pageExternalID, pageToken)
}

func (s *Stub) FetchLeadDetails(ctx context.Context, leadgenID string, pageToken string) (core.LeadDetails, error) {
	s.record("FetchLeadDetails", leadgenID)
	if s.FetchLeadDetailsFn == nil {
		return core.LeadDetails{}, nil
	}
	return s.FetchLeadDetailsFn(ctx, leadgenID, pageToken)
}

func (s *Stub) FetchPageForms(ctx context.Context, pageExternalID string, pageToken string) ([]core.LeadForm, error) {
	s.record("FetchPageForms", pageExternalID)
	if s.FetchPageFormsFn == nil {
		return nil, nil
	}
	return s.FetchPageFormsFn(ctx, pageExternalID, pageToken)
}
