package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// GraphAPI is the set of platform calls the core depends on. Every call
// takes an explicit token; implementations hold no per-user state.
type GraphAPI interface {
	ExchangeToken(ctx context.Context, shortLivedToken string) (ExchangedToken, error)
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)
	FetchDirectPages(ctx context.Context, accessToken string) ([]DiscoveredPage, error)
	FetchOwnedBusinesses(ctx context.Context, accessToken string) ([]Business, error)
	FetchBusinessPages(ctx context.Context, businessID string, accessToken string) ([]DiscoveredPage, error)
	FetchPageToken(ctx context.Context, pageExternalID string, userToken string) (string, error)
	SubscribeWebhook(ctx context.Context, pageExternalID string, pageToken string) (bool, error)
	FetchLeadDetails(ctx context.Context, leadgenID string, pageToken string) (LeadDetails, error)
	FetchPageForms(ctx context.Context, pageExternalID string, pageToken string) ([]LeadForm, error)
}

type UserStore interface {
	Upsert(ctx context.Context, in UpsertUserInput) (User, error)
	GetByExternalID(ctx context.Context, externalID string) (User, error)
}

type PageReader interface {
	GetByExternalID(ctx context.Context, externalID string) (Page, error)
}

type PageStore interface {
	PageReader
	Upsert(ctx context.Context, in UpsertPageInput) (Page, error)
	GetOwned(ctx context.Context, externalID string, ownerUserID string) (Page, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Page, error)
}

type LeadStore interface {
	// InsertIfAbsent inserts the lead unless its leadgen id already exists.
	// created is false when an existing row was found.
	InsertIfAbsent(ctx context.Context, in InsertLeadInput) (lead Lead, created bool, err error)
	GetByLeadgenID(ctx context.Context, leadgenID string) (Lead, error)
	MarkProcessed(ctx context.Context, leadID string) error
	ListByOwner(ctx context.Context, ownerUserID string) ([]OwnedLead, error)
}

// LeadQueue accepts ingested lead summaries for asynchronous processing.
type LeadQueue interface {
	Enqueue(ctx context.Context, item QueueItem) error
}

// LeadIngester processes one leadgen change. Failures are handled inside.
type LeadIngester interface {
	Ingest(ctx context.Context, event LeadgenEvent)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
