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

type LeadStore struct {
	db   *bun.DB
	repo repository.Repository[*leadRecord]
}

func NewLeadStore(db *bun.DB) (*LeadStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*leadRecord](db, leadHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead repository wiring: %w", err)
		}
	}
	return &LeadStore{db: db, repo: repo}, nil
}

// InsertIfAbsent relies on the unique leadgen_id constraint. A conflicting
// insert is a no-op and the existing row is returned with created=false.
func (s *LeadStore) InsertIfAbsent(ctx context.Context, in core.InsertLeadInput) (core.Lead, bool, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, false, fmt.Errorf("sqlstore: lead store is not configured")
	}
	in.LeadgenID = strings.TrimSpace(in.LeadgenID)
	in.PageID = strings.TrimSpace(in.PageID)
	in.FormID = strings.TrimSpace(in.FormID)
	if in.LeadgenID == "" {
		return core.Lead{}, false, fmt.Errorf("sqlstore: leadgen id is required")
	}
	if in.PageID == "" {
		return core.Lead{}, false, fmt.Errorf("sqlstore: lead page id is required")
	}

	record := newLeadRecord(in, time.Now().UTC())
	record.ID = uuid.NewString()
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (leadgen_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		if !isUniqueViolation(err) {
			return core.Lead{}, false, err
		}
	} else if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected > 0 {
		return record.toDomain(), true, nil
	}

	existing, err := s.GetByLeadgenID(ctx, in.LeadgenID)
	if err != nil {
		return core.Lead{}, false, err
	}
	return existing, false, nil
}

func (s *LeadStore) GetByLeadgenID(ctx context.Context, leadgenID string) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	leadgenID = strings.TrimSpace(leadgenID)
	record := &leadRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.leadgen_id = ?", leadgenID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Lead{}, core.NewNotFoundError("sqlstore: lead not found", map[string]any{
				"leadgen_id": leadgenID,
			})
		}
		return core.Lead{}, err
	}
	return record.toDomain(), nil
}

// MarkProcessed moves a lead from new to processed. Already processed leads
// are left untouched.
func (s *LeadStore) MarkProcessed(ctx context.Context, leadID string) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: lead store is not configured")
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return fmt.Errorf("sqlstore: lead id is required")
	}
	record := &leadRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", leadID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.NewNotFoundError("sqlstore: lead not found", map[string]any{"lead_id": leadID})
		}
		return err
	}
	if record.Status == string(core.LeadStatusProcessed) {
		return nil
	}
	record.Status = string(core.LeadStatusProcessed)
	record.UpdatedAt = time.Now().UTC()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(leadID))
	return err
}

// ListByOwner returns the leads of every page owned by ownerUserID, newest
// first.
func (s *LeadStore) ListByOwner(ctx context.Context, ownerUserID string) ([]core.OwnedLead, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: lead store is not configured")
	}
	rows := []ownedLeadRow{}
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableAlias.*").
		ColumnExpr("p.name AS page_name").
		ColumnExpr("p.page_id AS page_external_id").
		Join("JOIN pages AS p ON p.id = ?TableAlias.page_id").
		Where("p.user_id = ?", strings.TrimSpace(ownerUserID)).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.OwnedLead, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
