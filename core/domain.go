package core

import (
	"encoding/json"
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusProcessed LeadStatus = "processed"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusProcessed:
		return true
	default:
		return false
	}
}

// User is a platform account known to this system.
type User struct {
	ID             string
	ExternalID     string
	Name           string
	LongLivedToken string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasToken reports whether the user holds a long-lived token.
func (u User) HasToken() bool {
	return strings.TrimSpace(u.LongLivedToken) != ""
}

// Page is a connected tenant page. ExternalID is unique across all users.
type Page struct {
	ID          string
	ExternalID  string
	Name        string
	AccessToken string
	OwnerUserID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Lead is one captured lead-generation event. LeadgenID is the sole
// deduplication key.
type Lead struct {
	ID          string
	LeadgenID   string
	PageID      string
	FormID      string
	CreatedTime *time.Time
	FieldData   json.RawMessage
	Status      LeadStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedLead is a lead joined with the page that received it.
type OwnedLead struct {
	Lead
	PageName       string
	PageExternalID string
}

type Profile struct {
	ExternalID string
	Name       string
}

type ExchangedToken struct {
	AccessToken string
	// ExpiresIn is zero when the platform omitted expires_in.
	ExpiresIn time.Duration
}

// DiscoveredPage is a page listed by the platform for a user token, either
// directly administered or owned through a business account.
type DiscoveredPage struct {
	ExternalID  string   `json:"id"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tasks       []string `json:"tasks,omitempty"`
}

type Business struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LeadDetails struct {
	FieldData json.RawMessage
	Raw       map[string]any
}

type LeadForm struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Status              string `json:"status"`
	LeadgenExportCSVURL string `json:"leadgen_export_csv_url,omitempty"`
	Locale              string `json:"locale,omitempty"`
	CreatedTime         string `json:"created_time,omitempty"`
}

// LeadgenEvent is the value of one leadgen change inside a webhook batch.
type LeadgenEvent struct {
	LeadgenID      string
	PageExternalID string
	FormID         string
	CreatedTime    int64
}

// CreatedAt converts the platform epoch seconds into a timestamp. A zero
// value yields nil.
func (e LeadgenEvent) CreatedAt() *time.Time {
	if e.CreatedTime <= 0 {
		return nil
	}
	value := time.Unix(e.CreatedTime, 0).UTC()
	return &value
}

// QueueItem is the summary handed to the downstream worker.
type QueueItem struct {
	LeadID         string          `json:"leadId"`
	LeadgenID      string          `json:"leadgen_id"`
	PageExternalID string          `json:"page_id"`
	FieldData      json.RawMessage `json:"field_data,omitempty"`
}

type TokenGrant struct {
	AccessToken string
	ExpiresAt   time.Time
	Profile     Profile
}

type UpsertUserInput struct {
	ExternalID     string
	Name           string
	LongLivedToken string
	TokenExpiresAt *time.Time
}

type UpsertPageInput struct {
	ExternalID  string
	Name        string
	AccessToken string
	OwnerUserID string
}

type InsertLeadInput struct {
	LeadgenID   string
	PageID      string
	FormID      string
	CreatedTime *time.Time
	FieldData   json.RawMessage
}
