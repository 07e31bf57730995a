package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestUpstreamErrors_CarryStableCodes(t *testing.T) {
	authErr := NewUpstreamAuthError(stderrors.New("code 190"), "graph: token rejected", map[string]any{"status_code": 400})
	if authErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", authErr.Code)
	}
	if authErr.TextCode != ErrorUpstreamAuth {
		t.Fatalf("expected upstream auth text code, got %q", authErr.TextCode)
	}
	if !IsUpstreamAuth(authErr) {
		t.Fatalf("expected IsUpstreamAuth to match")
	}

	upstreamErr := NewUpstreamError(nil, "graph: request failed", nil)
	if upstreamErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", upstreamErr.Category)
	}
	if IsUpstreamAuth(upstreamErr) {
		t.Fatalf("did not expect upstream failure to be treated as auth")
	}
}

func TestNotFoundAndValidationErrors(t *testing.T) {
	if !IsNotFound(NewNotFoundError("page not found", map[string]any{"page_id": "p1"})) {
		t.Fatalf("expected not found error to match")
	}
	if IsNotFound(stderrors.New("page not found")) {
		t.Fatalf("plain errors are not classified as not found")
	}

	validation := NewValidationError("accessToken", "access token is required")
	if validation.Code != http.StatusBadRequest || validation.TextCode != ErrorValidation {
		t.Fatalf("unexpected validation envelope: %d %q", validation.Code, validation.TextCode)
	}
}

func TestMapError_AssignsStatusAndTextCode(t *testing.T) {
	mapped := MapError(stderrors.New("sqlstore: page not found"))
	if mapped.Code != http.StatusNotFound || mapped.TextCode != ErrorNotFound {
		t.Fatalf("expected not found mapping, got %d %q", mapped.Code, mapped.TextCode)
	}

	mapped = MapError(stderrors.New("httpapi: page id is required"))
	if mapped.TextCode != ErrorBadInput {
		t.Fatalf("expected bad input mapping, got %q", mapped.TextCode)
	}

	mapped = MapError(NewUpstreamError(nil, "graph: timeout", nil))
	if mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected rich error code to survive mapping, got %d", mapped.Code)
	}

	mapped = MapError(stderrors.New("boom"))
	if mapped.Code == 0 || mapped.TextCode == "" {
		t.Fatalf("expected fallback envelope, got %#v", mapped)
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}
