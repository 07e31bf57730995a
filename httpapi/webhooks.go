package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/webhooks"
)

const defaultWebhookBodyLimit int64 = 1 << 20 // 1 MiB

type webhookHandlers struct {
	gateway      WebhookGateway
	maxBodyBytes int64
}

func (h *webhookHandlers) verify(c *gin.Context) {
	result, err := h.gateway.Verify(
		c.Request.Context(),
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		status := statusOf(result, err)
		c.String(status, http.StatusText(status))
		return
	}
	c.String(result.StatusCode, result.Body)
}

func (h *webhookHandlers) receive(c *gin.Context) {
	limit := h.maxBodyBytes
	if limit <= 0 {
		limit = defaultWebhookBodyLimit
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
			return
		}
		c.String(http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for key := range c.Request.Header {
		headers[key] = c.Request.Header.Get(key)
	}

	result, err := h.gateway.Receive(c.Request.Context(), headers, body)
	if err != nil {
		status := statusOf(result, err)
		c.String(status, http.StatusText(status))
		return
	}
	c.String(result.StatusCode, result.Body)
}

func statusOf(result webhooks.Result, err error) int {
	if result.StatusCode != 0 {
		return result.StatusCode
	}
	return core.MapError(err).Code
}
