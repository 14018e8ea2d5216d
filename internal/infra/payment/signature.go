package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the provider's webhook signature: a hex
// HMAC-SHA256 over the exact raw request body. Re-serializing a parsed body
// is not equivalent and would break verification.
func VerifyWebhookSignature(secret string, rawBody []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(rawBody)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyCheckoutSignature checks the per-transaction signature the payment
// widget hands back to the client: HMAC-SHA256 over "orderID|paymentID" with
// the key secret. Used for UI feedback only, never to grant access.
func VerifyCheckoutSignature(secret, orderID, paymentID, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
