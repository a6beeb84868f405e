package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature recomputes the Razorpay callback signature, an
// HMAC-SHA256 over "orderID|paymentID" keyed by the server-held secret,
// and compares it in constant time.
//
// A bad or missing signature is an expected adversarial input: it yields
// (false, nil), never an error. A missing secret is a configuration bug
// and does error, so a misconfigured deployment cannot silently accept
// everything or reject everything.
func VerifySignature(orderID, paymentID, signature, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingCredentials
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return false, nil
	}

	return hmac.Equal([]byte(SignPayload(orderID, paymentID, secret)), []byte(signature)), nil
}

// SignPayload produces the signature Razorpay would send for the given
// order/payment pair. Exported for tests that need well-formed callbacks.
func SignPayload(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
