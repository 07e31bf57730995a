package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-leadgen/core"
)

type PageStore struct {
	db   *bun.DB
	repo repository.Repository[*pageRecord]
}

func NewPageStore(db *bun.DB) (*PageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*pageRecord](db, pageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid page repository wiring: %w", err)
		}
	}
	return &PageStore{db: db, repo: repo}, nil
}

// Upsert creates the page or overwrites its name, token and owner by
// external page id.
func (s *PageStore) Upsert(ctx context.Context, in core.UpsertPageInput) (core.Page, error) {
	if s == nil || s.db == nil {
		return core.Page{}, fmt.Errorf("sqlstore: page store is not configured")
	}
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.Name = strings.TrimSpace(in.Name)
	in.AccessToken = strings.TrimSpace(in.AccessToken)
	in.OwnerUserID = strings.TrimSpace(in.OwnerUserID)
	if in.ExternalID == "" {
		return core.Page{}, fmt.Errorf("sqlstore: page external id is required")
	}
	if in.OwnerUserID == "" {
		return core.Page{}, fmt.Errorf("sqlstore: page owner user id is required")
	}
	if in.AccessToken == "" {
		return core.Page{}, fmt.Errorf("sqlstore: page access token is required")
	}
	record := newPageRecord(in, time.Now().UTC())
	record.ID = uuid.NewString()
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (page_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("access_token = EXCLUDED.access_token").
		Set("user_id = EXCLUDED.user_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.Page{}, err
	}
	return s.GetByExternalID(ctx, in.ExternalID)
}

func (s *PageStore) GetByExternalID(ctx context.Context, externalID string) (core.Page, error) {
	if s == nil || s.db == nil {
		return core.Page{}, fmt.Errorf("sqlstore: page store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	record := &pageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.page_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Page{}, core.NewNotFoundError("sqlstore: page not found", map[string]any{
				"page_id": externalID,
			})
		}
		return core.Page{}, err
	}
	return record.toDomain(), nil
}

// GetOwned returns the page only when ownerUserID owns it.
func (s *PageStore) GetOwned(ctx context.Context, externalID string, ownerUserID string) (core.Page, error) {
	if s == nil || s.db == nil {
		return core.Page{}, fmt.Errorf("sqlstore: page store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	record := &pageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.page_id = ?", externalID).
		Where("?TableAlias.user_id = ?", ownerUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Page{}, core.NewNotFoundError("sqlstore: page not found", map[string]any{
				"page_id": externalID,
				"user_id": ownerUserID,
			})
		}
		return core.Page{}, err
	}
	return record.toDomain(), nil
}

func (s *PageStore) ListByOwner(ctx context.Context, ownerUserID string) ([]core.Page, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: page store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(ownerUserID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Page, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
