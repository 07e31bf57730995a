package command

import (
	"strings"
)

const (
	TypeLogin       = "leadgen.command.auth.login"
	TypeConnectPage = "leadgen.command.page.connect"
)

// LoginMessage carries the short-lived token submitted by the login page.
type LoginMessage struct {
	AccessToken string
}

func (LoginMessage) Type() string { return TypeLogin }

func (m LoginMessage) Validate() error {
	if strings.TrimSpace(m.AccessToken) == "" {
		return commandValidationError("accessToken", "access token is required")
	}
	return nil
}

type ConnectPageMessage struct {
	PageExternalID string
	Name           string
	UserToken      string
	OwnerUserID    string
}

func (ConnectPageMessage) Type() string { return TypeConnectPage }

func (m ConnectPageMessage) Validate() error {
	if strings.TrimSpace(m.PageExternalID) == "" {
		return commandValidationError("pageId", "page id is required")
	}
	if strings.TrimSpace(m.OwnerUserID) == "" {
		return commandValidationError("ownerUserId", "owner user id is required")
	}
	if strings.TrimSpace(m.UserToken) == "" {
		return commandValidationError("userToken", "user has no platform token")
	}
	return nil
}
