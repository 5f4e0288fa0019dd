package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 signature of the raw webhook
// body, in the form "sha256=<hex digest>".
const SignatureHeader = "X-Webhook-Signature-256"

// Sign computes the signature header value for a body and secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against the shared
// secret using a constant-time comparison. An empty or malformed header
// never verifies.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	received, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(Sign(secret, body), "sha256="))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(received)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
