package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leadgen/core"
)

func renderError(c *gin.Context, err error) {
	mapped := core.MapError(err)
	c.AbortWithStatusJSON(mapped.Code, gin.H{
		"success": false,
		"error":   mapped.Message,
		"code":    mapped.TextCode,
	})
}

// renderOpaqueError keeps validation failures as 400 and collapses anything
// else into a 500 with a generic message. Upstream detail stays in the logs.
func renderOpaqueError(c *gin.Context, err error, message string) {
	mapped := core.MapError(err)
	if mapped.Category == goerrors.CategoryValidation || mapped.Category == goerrors.CategoryBadInput {
		renderError(c, mapped)
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   message,
		"code":    mapped.TextCode,
	})
}
