package redis

import "fmt"

// SessionKey holds one admin session (hash: username, created_at).
func SessionKey(token string) string {
	return fmt.Sprintf("catalog:admin:session:%s", token)
}

// CheckoutClaimKey marks an Idempotency-Key as used by an order submission.
func CheckoutClaimKey(idemKey string) string {
	return fmt.Sprintf("catalog:checkout:idem:%s", idemKey)
}

// RateLimitKey scopes a sliding window to one endpoint group and client.
func RateLimitKey(scope, client string) string {
	return fmt.Sprintf("catalog:rate_limit:%s:%s", scope, client)
}
