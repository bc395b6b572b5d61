package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Delivery headers.
const (
	HeaderSignature = "X-Corkboard-Signature"
	HeaderEvent     = "X-Corkboard-Event"
	HeaderBoard     = "X-Corkboard-Board"
	HeaderDelivery  = "X-Corkboard-Delivery"
)

const signaturePrefix = "sha256="

// Sign returns the signature header value for body: "sha256=" followed by the
// hex HMAC-SHA256 of the exact bytes sent.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against body in
// constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
