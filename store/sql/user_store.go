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

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	return &UserStore{db: db, repo: repo}, nil
}

// Upsert creates the user or overwrites its name and token by external id.
func (s *UserStore) Upsert(ctx context.Context, in core.UpsertUserInput) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.Name = strings.TrimSpace(in.Name)
	in.LongLivedToken = strings.TrimSpace(in.LongLivedToken)
	if in.ExternalID == "" {
		return core.User{}, fmt.Errorf("sqlstore: user external id is required")
	}
	record := newUserRecord(in, time.Now().UTC())
	record.ID = uuid.NewString()
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (external_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("long_lived_token = EXCLUDED.long_lived_token").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.User{}, err
	}
	return s.GetByExternalID(ctx, in.ExternalID)
}

func (s *UserStore) GetByExternalID(ctx context.Context, externalID string) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.User{}, core.NewNotFoundError("sqlstore: user not found", map[string]any{
				"external_id": externalID,
			})
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) Get(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.User{}, err
	}
	return record.toDomain(), nil
}
