package directory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-leadgen/core"
)

// PageTokenResolver fetches a fresh page-scoped token for a user token.
type PageTokenResolver interface {
	ResolvePageToken(ctx context.Context, pageExternalID string, userToken string) (string, error)
}

type Config struct {
	// BusinessConcurrency caps concurrent per-business page fetches.
	BusinessConcurrency int
}

// Directory consolidates the pages a user can administer and connects
// them for lead delivery.
type Directory struct {
	graph  core.GraphAPI
	tokens PageTokenResolver
	pages  core.PageStore
	config Config
	logger core.Logger
}

func New(graph core.GraphAPI, tokens PageTokenResolver, pages core.PageStore, cfg Config, logger core.Logger) *Directory {
	if cfg.BusinessConcurrency <= 0 {
		cfg.BusinessConcurrency = core.DefaultBusinessConcurrency
	}
	return &Directory{
		graph:  graph,
		tokens: tokens,
		pages:  pages,
		config: cfg,
		logger: core.ResolveLogger("leadgen.directory", nil, logger),
	}
}

// ListAllPages returns direct pages followed by business-owned pages, with
// duplicates removed in favor of the first occurrence. Only a failure of the
// direct listing is returned; business failures yield no pages.
func (d *Directory) ListAllPages(ctx context.Context, userToken string) ([]core.DiscoveredPage, error) {
	if d == nil || d.graph == nil {
		return nil, fmt.Errorf("directory: graph client is not configured")
	}

	var direct []core.DiscoveredPage
	var business []core.DiscoveredPage

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		pages, err := d.graph.FetchDirectPages(groupCtx, userToken)
		if err != nil {
			return err
		}
		direct = pages
		return nil
	})
	group.Go(func() error {
		business = d.businessPages(groupCtx, userToken)
		return nil
	})
	if err := group.Wait(); err != nil {
		core.LogEvent(ctx, d.logger, "error", "direct page listing failed", map[string]any{
			"error": err.Error(),
		})
		if core.IsUpstreamAuth(err) {
			return nil, err
		}
		return nil, core.NewUpstreamError(err, "directory: failed to list pages", nil)
	}

	merged := make([]core.DiscoveredPage, 0, len(direct)+len(business))
	merged = append(merged, direct...)
	merged = append(merged, business...)
	return dedupeFirst(merged), nil
}

func (d *Directory) businessPages(ctx context.Context, userToken string) []core.DiscoveredPage {
	businesses, err := d.graph.FetchOwnedBusinesses(ctx, userToken)
	if err != nil {
		core.LogEvent(ctx, d.logger, "warn", "business listing failed", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if len(businesses) == 0 {
		return nil
	}

	// one slot per business keeps the concatenation in listing order
	results := make([][]core.DiscoveredPage, len(businesses))
	group := new(errgroup.Group)
	group.SetLimit(d.config.BusinessConcurrency)
	for index, business := range businesses {
		group.Go(func() error {
			pages, err := d.graph.FetchBusinessPages(ctx, business.ID, userToken)
			if err != nil {
				core.LogEvent(ctx, d.logger, "warn", "business page listing failed", map[string]any{
					"business_id":   business.ID,
					"business_name": business.Name,
					"error":         err.Error(),
				})
				return nil
			}
			results[index] = pages
			return nil
		})
	}
	_ = group.Wait()

	var out []core.DiscoveredPage
	for _, pages := range results {
		out = append(out, pages...)
	}
	return out
}

func dedupeFirst(pages []core.DiscoveredPage) []core.DiscoveredPage {
	seen := make(map[string]struct{}, len(pages))
	out := make([]core.DiscoveredPage, 0, len(pages))
	for _, page := range pages {
		id := strings.TrimSpace(page.ExternalID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, page)
	}
	return out
}

// ConnectPage stores a page for the owner with a fresh page token. A failed
// webhook subscription is logged and does not abort the connect.
func (d *Directory) ConnectPage(
	ctx context.Context,
	pageExternalID string,
	displayName string,
	userToken string,
	ownerUserID string,
) (core.Page, error) {
	if d == nil || d.tokens == nil || d.pages == nil || d.graph == nil {
		return core.Page{}, fmt.Errorf("directory: connect dependencies are not configured")
	}
	pageExternalID = strings.TrimSpace(pageExternalID)
	if pageExternalID == "" {
		return core.Page{}, core.NewValidationError("pageId", "page id is required")
	}

	pageToken, err := d.tokens.ResolvePageToken(ctx, pageExternalID, userToken)
	if err != nil {
		return core.Page{}, err
	}

	subscribed, subscribeErr := d.graph.SubscribeWebhook(ctx, pageExternalID, pageToken)
	if subscribeErr != nil || !subscribed {
		fields := map[string]any{"page_id": pageExternalID}
		if subscribeErr != nil {
			fields["error"] = subscribeErr.Error()
		}
		core.LogEvent(ctx, d.logger, "warn", "could not subscribe page to webhooks", fields)
	}

	page, err := d.pages.Upsert(ctx, core.UpsertPageInput{
		ExternalID:  pageExternalID,
		Name:        strings.TrimSpace(displayName),
		AccessToken: pageToken,
		OwnerUserID: ownerUserID,
	})
	if err != nil {
		return core.Page{}, err
	}
	core.LogEvent(ctx, d.logger, "info", "page connected", map[string]any{
		"page_id":    page.ExternalID,
		"owner_id":   page.OwnerUserID,
		"subscribed": subscribed && subscribeErr == nil,
	})
	return page, nil
}

// ListForms returns the lead forms of a page owned by ownerUserID.
func (d *Directory) ListForms(ctx context.Context, pageExternalID string, ownerUserID string) ([]core.LeadForm, error) {
	if d == nil || d.pages == nil || d.graph == nil {
		return nil, fmt.Errorf("directory: forms dependencies are not configured")
	}
	page, err := d.pages.GetOwned(ctx, strings.TrimSpace(pageExternalID), ownerUserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NewNotFoundError("page not found or not connected to this user", map[string]any{
				"page_id": pageExternalID,
			})
		}
		return nil, err
	}
	return d.graph.FetchPageForms(ctx, page.ExternalID, page.AccessToken)
}
