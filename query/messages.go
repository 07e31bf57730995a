package query

import (
	"strings"

	"github.com/goliatone/go-leadgen/core"
)

const (
	TypeListPages     = "leadgen.query.pages.list"
	TypeListPageForms = "leadgen.query.page_forms.list"
	TypeListLeads     = "leadgen.query.leads.list"
)

// ListPagesMessage lists every page the authenticated user can connect.
type ListPagesMessage struct {
	User core.User
}

func (ListPagesMessage) Type() string { return TypeListPages }

func (m ListPagesMessage) Validate() error {
	if !m.User.HasToken() {
		return core.NewUnauthorizedError("user has no platform token", nil)
	}
	return nil
}

type ListPageFormsMessage struct {
	PageExternalID string
	OwnerUserID    string
}

func (ListPageFormsMessage) Type() string { return TypeListPageForms }

func (m ListPageFormsMessage) Validate() error {
	if strings.TrimSpace(m.PageExternalID) == "" {
		return queryValidationError("pageId", "page id is required")
	}
	if strings.TrimSpace(m.OwnerUserID) == "" {
		return queryValidationError("ownerUserId", "owner user id is required")
	}
	return nil
}

type ListLeadsMessage struct {
	OwnerUserID string
}

func (ListLeadsMessage) Type() string { return TypeListLeads }

func (m ListLeadsMessage) Validate() error {
	if strings.TrimSpace(m.OwnerUserID) == "" {
		return queryValidationError("ownerUserId", "owner user id is required")
	}
	return nil
}
