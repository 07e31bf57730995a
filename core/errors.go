package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "LEADGEN_BAD_INPUT"
	ErrorValidation           = "LEADGEN_VALIDATION_FAILED"
	ErrorNotFound             = "LEADGEN_NOT_FOUND"
	ErrorUnauthorized         = "LEADGEN_UNAUTHORIZED"
	ErrorForbidden            = "LEADGEN_FORBIDDEN"
	ErrorAuthenticationFailed = "LEADGEN_AUTHENTICATION_FAILED"
	ErrorUpstreamAuth         = "LEADGEN_UPSTREAM_AUTH"
	ErrorUpstreamFailure      = "LEADGEN_UPSTREAM_FAILURE"
	ErrorRateLimited          = "LEADGEN_RATE_LIMITED"
	ErrorInternal             = "LEADGEN_INTERNAL_ERROR"
)

// NewUpstreamAuthError reports a platform rejection of a token (invalid,
// expired or issued for another app). It is never retried.
func NewUpstreamAuthError(source error, message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(source, message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorUpstreamAuth, metadata)
}

// NewUpstreamError reports a transient platform failure the caller may retry.
func NewUpstreamError(source error, message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(source, message, goerrors.CategoryExternal, http.StatusBadGateway, ErrorUpstreamFailure, metadata)
}

// NewRateLimitedError reports a call refused locally while the platform
// throttles the app or token.
func NewRateLimitedError(message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(nil, message, goerrors.CategoryRateLimit, http.StatusTooManyRequests, ErrorRateLimited, metadata)
}

func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(nil, message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound, metadata)
}

func NewUnauthorizedError(message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(nil, message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorUnauthorized, metadata)
}

func NewForbiddenError(message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(nil, message, goerrors.CategoryAuthz, http.StatusForbidden, ErrorForbidden, metadata)
}

func NewAuthenticationFailedError(source error, message string) *goerrors.Error {
	return newEnvelope(source, message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorAuthenticationFailed, nil)
}

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func NewInternalError(source error, message string) *goerrors.Error {
	return newEnvelope(source, message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, nil)
}

func newEnvelope(
	source error,
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// HasTextCode reports whether err carries one of the given text codes.
func HasTextCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	for _, code := range codes {
		if richErr.TextCode == code {
			return true
		}
	}
	return false
}

func IsUpstreamAuth(err error) bool {
	return HasTextCode(err, ErrorUpstreamAuth, ErrorAuthenticationFailed)
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

// MapError converts any error into a go-errors envelope with an HTTP status
// and a stable text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorNotFound))
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(ErrorUnauthorized))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorBadInput))
	}

	return ensureEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorUpstreamFailure
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
