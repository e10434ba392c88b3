package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func SignPayment(secret, orderID, paymentID string) string {
	return SignBody(secret, []byte(orderID+"|"+paymentID))
}

// VerifyPaymentSignature checks a checkout signature in constant time.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := SignPayment(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignBody returns the hex HMAC-SHA256 of body under secret.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBodySignature checks a webhook body signature in constant time.
func VerifyBodySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(SignBody(secret, body)), []byte(signature))
}
