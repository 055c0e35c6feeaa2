package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// YooKassaSignature computes the webhook signature: HMAC-SHA256 over the
// canonical string "{notification_type}&{object_id}&{object_status}" keyed by
// the shared webhook secret, hex-encoded. The provider transmits it as a
// bearer token.
func YooKassaSignature(secret, notificationType, objectID, objectStatus string) string {
	canonical := fmt.Sprintf("%s&%s&%s", notificationType, objectID, objectStatus)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyYooKassaWebhookSignature compares the presented token against the
// expected signature in constant time.
func VerifyYooKassaWebhookSignature(secret, notificationType, objectID, objectStatus, token string) bool {
	expected := YooKassaSignature(secret, notificationType, objectID, objectStatus)
	return hmac.Equal([]byte(expected), []byte(token))
}
