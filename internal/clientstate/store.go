// Package clientstate is the per-user key/value store behind the
// subscription record, the second-opinion entitlement flag, the in-flight
// payment flag and the legacy blobs. Values are plain JSON with no schema
// versioning; readers must tolerate missing or malformed data by falling
// back to defaults.
package clientstate

import (
	"context"
	"time"
)

// Store is the explicit repository interface over the per-user blobs.
type Store interface {
	// Get unmarshals the value at key into result. The bool reports
	// whether the key was present and well-formed.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set stores the value at key with the given TTL. Zero TTL means
	// no expiry.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Clear removes the key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// Key builders for the namespaced per-user blobs.

// SubscriptionKey is the cached subscription record for a user.
func SubscriptionKey(userUID string) string {
	return "sub:" + userUID
}

// EntitlementKey is the second-opinion entitlement flag for a user.
func EntitlementKey(userUID string) string {
	return "ent:second-opinion:" + userUID
}

// UsageKey is the second-opinion usage counter blob for a user.
func UsageKey(userUID string) string {
	return "usage:second-opinion:" + userUID
}

// InflightPaymentKey is the currently-processing checkout flag for a user.
func InflightPaymentKey(userUID string) string {
	return "payment:inflight:" + userUID
}
