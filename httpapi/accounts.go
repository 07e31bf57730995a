package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-leadgen/command"
	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/query"
)

type accountHandlers struct {
	h      Handlers
	logger core.Logger
}

type loginRequest struct {
	AccessToken string `json:"accessToken"`
}

type connectPageRequest struct {
	PageName string `json:"pageName"`
}

type userView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FacebookID string `json:"facebook_id"`
}

type pageView struct {
	ID          string    `json:"id"`
	PageID      string    `json:"page_id"`
	Name        string    `json:"name"`
	OwnerUserID string    `json:"user_id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type leadView struct {
	ID          string     `json:"id"`
	LeadgenID   string     `json:"leadgen_id"`
	PageID      string     `json:"page_id"`
	PageName    string     `json:"page_name"`
	FormID      string     `json:"form_id,omitempty"`
	CreatedTime *time.Time `json:"created_time,omitempty"`
	FieldData   any        `json:"field_data,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (a *accountHandlers) login(c *gin.Context) {
	var req loginRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.AccessToken) == "" {
		renderError(c, core.NewValidationError("accessToken", "access token is required"))
		return
	}

	collector := gocmd.NewResult[command.LoginResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := a.h.Login.Execute(ctx, command.LoginMessage{AccessToken: req.AccessToken}); err != nil {
		core.LogEvent(ctx, a.logger, "error", "login failed", map[string]any{"error": err.Error()})
		renderOpaqueError(c, err, "authentication failed")
		return
	}
	result, ok := collector.Load()
	if !ok {
		renderOpaqueError(c, core.NewInternalError(nil, "login produced no result"), "authentication failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"access_token": result.AccessToken,
		"user": userView{
			ID:         result.User.ID,
			Name:       result.User.Name,
			FacebookID: result.User.ExternalID,
		},
	})
}

func (a *accountHandlers) listPages(c *gin.Context) {
	user, _ := CurrentUser(c)
	pages, err := a.h.ListPages.Query(c.Request.Context(), query.ListPagesMessage{User: user})
	if err != nil {
		renderError(c, err)
		return
	}
	if pages == nil {
		pages = []core.DiscoveredPage{}
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

func (a *accountHandlers) connectPage(c *gin.Context) {
	user, _ := CurrentUser(c)
	var req connectPageRequest
	_ = c.ShouldBindJSON(&req)

	collector := gocmd.NewResult[core.Page]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	err := a.h.ConnectPage.Execute(ctx, command.ConnectPageMessage{
		PageExternalID: c.Param("pageId"),
		Name:           req.PageName,
		UserToken:      user.LongLivedToken,
		OwnerUserID:    user.ID,
	})
	if err != nil {
		core.LogEvent(ctx, a.logger, "error", "page connect failed", map[string]any{
			"page_id": c.Param("pageId"),
			"user_id": user.ID,
			"error":   err.Error(),
		})
		renderOpaqueError(c, err, "failed to connect page")
		return
	}
	page, _ := collector.Load()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Page connected successfully",
		"page": pageView{
			ID:          page.ID,
			PageID:      page.ExternalID,
			Name:        page.Name,
			OwnerUserID: page.OwnerUserID,
			CreatedAt:   page.CreatedAt,
			UpdatedAt:   page.UpdatedAt,
		},
	})
}

func (a *accountHandlers) listPageForms(c *gin.Context) {
	user, _ := CurrentUser(c)
	forms, err := a.h.ListPageForms.Query(c.Request.Context(), query.ListPageFormsMessage{
		PageExternalID: c.Param("pageId"),
		OwnerUserID:    user.ID,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	if forms == nil {
		forms = []core.LeadForm{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "forms": forms})
}

func (a *accountHandlers) listLeads(c *gin.Context) {
	user, _ := CurrentUser(c)
	leads, err := a.h.ListLeads.Query(c.Request.Context(), query.ListLeadsMessage{OwnerUserID: user.ID})
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]leadView, 0, len(leads))
	for _, lead := range leads {
		view := leadView{
			ID:          lead.ID,
			LeadgenID:   lead.LeadgenID,
			PageID:      lead.PageExternalID,
			PageName:    lead.PageName,
			FormID:      lead.FormID,
			CreatedTime: lead.CreatedTime,
			Status:      string(lead.Status),
			CreatedAt:   lead.CreatedAt,
		}
		if len(lead.FieldData) > 0 {
			view.FieldData = lead.FieldData
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "leads": out})
}
