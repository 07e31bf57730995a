package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

// SignatureVerifier checks the HMAC-SHA256 of a delivery body against a
// prefixed hex header.
type SignatureVerifier struct {
	Header string
	Prefix string
	Secret string
}

// NewSignatureVerifier returns a verifier for X-Hub-Signature-256 signed with
// the app secret.
func NewSignatureVerifier(appSecret string) SignatureVerifier {
	return SignatureVerifier{
		Header: SignatureHeader,
		Prefix: SignaturePrefix,
		Secret: strings.TrimSpace(appSecret),
	}
}

func (v SignatureVerifier) Enabled() bool {
	return strings.TrimSpace(v.Secret) != ""
}

func (v SignatureVerifier) Verify(headers map[string]string, body []byte) error {
	header := strings.TrimSpace(headerValue(headers, v.header()))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", v.header())
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	if subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

func (v SignatureVerifier) header() string {
	if header := strings.TrimSpace(v.Header); header != "" {
		return header
	}
	return SignatureHeader
}

// Sign returns the header value for body. Used by tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	if value, ok := headers[key]; ok {
		return value
	}
	for candidate, value := range headers {
		if strings.EqualFold(candidate, key) {
			return value
		}
	}
	return ""
}
