package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyPOSSignature checks the webhook signature the POS computes as a
// base64 HMAC-SHA256 of the raw request body. Comparison is constant time.
func VerifyPOSSignature(signatureKey string, body []byte, signature string) bool {
	if signatureKey == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signatureKey))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
