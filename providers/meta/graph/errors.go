package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/transport"
)

const (
	codeInvalidSession = 102
	codeInvalidToken   = 190
)

type authPolicy int

const (
	// rejectTokenErrors treats only token failures as authentication errors.
	rejectTokenErrors authPolicy = iota
	// rejectClientErrors treats every 4xx as an authentication error.
	rejectClientErrors
)

// APIError is the error object returned by the Graph API.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

func (e APIError) tokenRejected() bool {
	return e.Code == codeInvalidToken || e.Code == codeInvalidSession
}

func classifyFailure(operation string, res transport.Response, policy authPolicy) *goerrors.Error {
	metadata := map[string]any{
		"operation":   operation,
		"status_code": res.StatusCode,
	}

	var envelope errorEnvelope
	var apiErr APIError
	if err := json.Unmarshal(res.Body, &envelope); err == nil && envelope.Error != nil {
		apiErr = *envelope.Error
		metadata["graph_error"] = core.RedactSensitiveMap(map[string]any{
			"message":       apiErr.Message,
			"type":          apiErr.Type,
			"code":          apiErr.Code,
			"error_subcode": apiErr.ErrorSubcode,
			"fbtrace_id":    apiErr.FBTraceID,
		})
	} else if body := strings.TrimSpace(string(res.Body)); body != "" {
		metadata["body"] = truncate(body, 512)
	}

	message := fmt.Sprintf("graph: %s failed with status %d", operation, res.StatusCode)
	if apiErr.Message != "" {
		message = fmt.Sprintf("graph: %s failed: %s", operation, apiErr.Message)
	}

	authFailure := res.StatusCode == http.StatusUnauthorized ||
		res.StatusCode == http.StatusForbidden ||
		apiErr.tokenRejected()
	if policy == rejectClientErrors && res.StatusCode >= 400 && res.StatusCode < 500 {
		authFailure = true
	}
	if authFailure {
		return core.NewUpstreamAuthError(nil, message, metadata)
	}
	return core.NewUpstreamError(nil, message, metadata)
}

func graphErrorCode(res transport.Response) int {
	if res.Success() || len(res.Body) == 0 {
		return 0
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(res.Body, &envelope); err != nil || envelope.Error == nil {
		return 0
	}
	return envelope.Error.Code
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
