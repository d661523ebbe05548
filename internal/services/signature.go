package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// VerifyShopifySignature сверяет X-Shopify-Hmac-Sha256 (base64 HMAC-SHA256 тела) за постоянное время.
func VerifyShopifySignature(secret string, body []byte, proof string) bool {
	proof = strings.TrimSpace(proof)
	if secret == "" || proof == "" {
		return false
	}
	given, err := base64.StdEncoding.DecodeString(proof)
	if err != nil {
		return false
	}
	return hmac.Equal(given, computeHMAC(secret, body))
}

// SignShopifyBody - подпись так, как её ставит Shopify. Нужна сидеру и тестам.
func SignShopifyBody(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(computeHMAC(secret, body))
}

func computeHMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
