package query

import (
	"context"

	"github.com/goliatone/go-leadgen/core"
)

type PageLister interface {
	ListAllPages(ctx context.Context, userToken string) ([]core.DiscoveredPage, error)
}

type FormLister interface {
	ListForms(ctx context.Context, pageExternalID string, ownerUserID string) ([]core.LeadForm, error)
}

type LeadLister interface {
	ListByOwner(ctx context.Context, ownerUserID string) ([]core.OwnedLead, error)
}

type ListPagesQuery struct {
	pages PageLister
}

func NewListPagesQuery(pages PageLister) *ListPagesQuery {
	return &ListPagesQuery{pages: pages}
}

// Query returns the merged page directory for the user. Page tokens are
// stripped before the result leaves the query.
func (q *ListPagesQuery) Query(ctx context.Context, msg ListPagesMessage) ([]core.DiscoveredPage, error) {
	if q == nil || q.pages == nil {
		return nil, queryDependencyError("query: page lister is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	pages, err := q.pages.ListAllPages(ctx, msg.User.LongLivedToken)
	if err != nil {
		return nil, err
	}
	out := make([]core.DiscoveredPage, len(pages))
	for i, page := range pages {
		page.AccessToken = ""
		out[i] = page
	}
	return out, nil
}

type ListPageFormsQuery struct {
	forms FormLister
}

func NewListPageFormsQuery(forms FormLister) *ListPageFormsQuery {
	return &ListPageFormsQuery{forms: forms}
}

func (q *ListPageFormsQuery) Query(ctx context.Context, msg ListPageFormsMessage) ([]core.LeadForm, error) {
	if q == nil || q.forms == nil {
		return nil, queryDependencyError("query: form lister is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.forms.ListForms(ctx, msg.PageExternalID, msg.OwnerUserID)
}

type ListLeadsQuery struct {
	leads LeadLister
}

func NewListLeadsQuery(leads LeadLister) *ListLeadsQuery {
	return &ListLeadsQuery{leads: leads}
}

// Query returns the owner's leads, newest first.
func (q *ListLeadsQuery) Query(ctx context.Context, msg ListLeadsMessage) ([]core.OwnedLead, error) {
	if q == nil || q.leads == nil {
		return nil, queryDependencyError("query: lead lister is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.leads.ListByOwner(ctx, msg.OwnerUserID)
}
