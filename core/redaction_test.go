package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"leadgen_id":    "lg_1",
		"page_id":       "p_1",
		"access_token":  "secret-token",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"client_secret": "shh", "external_id": "ext_1"},
		"events":        []any{map[string]any{"fb_exchange_token": "short"}, map[string]any{"form_id": "f_1"}},
	})

	if redacted["leadgen_id"] != "lg_1" || redacted["page_id"] != "p_1" {
		t.Fatalf("expected traceability ids to remain visible, got %#v", redacted)
	}
	if redacted["access_token"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["client_secret"] != RedactedValue || nested["external_id"] != "ext_1" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted events slice")
	}
	if first := events[0].(map[string]any); first["fb_exchange_token"] != RedactedValue {
		t.Fatalf("expected exchange token to be redacted, got %#v", first)
	}
}

func TestRedactToken(t *testing.T) {
	if got := RedactToken(""); got != "" {
		t.Fatalf("expected empty token to stay empty, got %q", got)
	}
	if got := RedactToken("short"); got != RedactedValue {
		t.Fatalf("expected short token to be fully redacted, got %q", got)
	}
	if got := RedactToken("EAABwzLixnjYBO123456"); got != "EAAB..."+RedactedValue {
		t.Fatalf("unexpected token redaction %q", got)
	}
}
