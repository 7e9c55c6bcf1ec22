package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks the checkout completion signature: HMAC-SHA256
// over "<order_id>|<payment_id>" with the key secret, hex-encoded.
// Comparison is constant-time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(c.keySecret, orderID, paymentID, signature)
}

func verifySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
