package sqlstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-leadgen/core"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             string     `bun:"id,pk"`
	ExternalID     string     `bun:"external_id,notnull"`
	Name           string     `bun:"name,notnull"`
	LongLivedToken string     `bun:"long_lived_token,nullzero"`
	TokenExpiresAt *time.Time `bun:"token_expires_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type pageRecord struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	ID          string    `bun:"id,pk"`
	ExternalID  string    `bun:"page_id,notnull"`
	Name        string    `bun:"name,notnull"`
	AccessToken string    `bun:"access_token,notnull"`
	OwnerUserID string    `bun:"user_id,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type leadRecord struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID          string     `bun:"id,pk"`
	LeadgenID   string     `bun:"leadgen_id,notnull"`
	PageID      string     `bun:"page_id,notnull"`
	FormID      string     `bun:"form_id,nullzero"`
	CreatedTime *time.Time `bun:"created_time,nullzero"`
	FieldData   string     `bun:"field_data,nullzero"`
	Status      string     `bun:"status,notnull"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type ownedLeadRow struct {
	leadRecord `bun:",extend"`

	PageName       string `bun:"page_name"`
	PageExternalID string `bun:"page_external_id"`
}

func newUserRecord(in core.UpsertUserInput, now time.Time) *userRecord {
	return &userRecord{
		ExternalID:     in.ExternalID,
		Name:           in.Name,
		LongLivedToken: in.LongLivedToken,
		TokenExpiresAt: cloneTime(in.TokenExpiresAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:             r.ID,
		ExternalID:     r.ExternalID,
		Name:           r.Name,
		LongLivedToken: r.LongLivedToken,
		TokenExpiresAt: cloneTime(r.TokenExpiresAt),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newPageRecord(in core.UpsertPageInput, now time.Time) *pageRecord {
	return &pageRecord{
		ExternalID:  in.ExternalID,
		Name:        in.Name,
		AccessToken: in.AccessToken,
		OwnerUserID: in.OwnerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *pageRecord) toDomain() core.Page {
	if r == nil {
		return core.Page{}
	}
	return core.Page{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		AccessToken: r.AccessToken,
		OwnerUserID: r.OwnerUserID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newLeadRecord(in core.InsertLeadInput, now time.Time) *leadRecord {
	return &leadRecord{
		LeadgenID:   in.LeadgenID,
		PageID:      in.PageID,
		FormID:      in.FormID,
		CreatedTime: cloneTime(in.CreatedTime),
		FieldData:   strings.TrimSpace(string(in.FieldData)),
		Status:      string(core.LeadStatusNew),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *leadRecord) toDomain() core.Lead {
	if r == nil {
		return core.Lead{}
	}
	lead := core.Lead{
		ID:          r.ID,
		LeadgenID:   r.LeadgenID,
		PageID:      r.PageID,
		FormID:      r.FormID,
		CreatedTime: cloneTime(r.CreatedTime),
		Status:      core.LeadStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.FieldData != "" {
		lead.FieldData = json.RawMessage(r.FieldData)
	}
	return lead
}

func (r *ownedLeadRow) toDomain() core.OwnedLead {
	return core.OwnedLead{
		Lead:           r.leadRecord.toDomain(),
		PageName:       r.PageName,
		PageExternalID: r.PageExternalID,
	}
}

func cloneTime(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
