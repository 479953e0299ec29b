package domain

import (
	"context"
	"strings"
	"time"
)

// VerificationCache memoizes completed verification records. A miss is
// (nil, nil); cache failures are reported so callers can decide whether
// to degrade to recomputation.
type VerificationCache interface {
	Get(ctx context.Context, key string) (*VerificationRecord, error)
	Put(ctx context.Context, key string, record VerificationRecord, ttl time.Duration) error
}

// VerificationCacheKey identifies one verification outcome: the same
// receipt verified against a different expected gateway or a different
// decision bundle is a different entry.
func VerificationCacheKey(receiptHash, expectedIdentity, bundleHash string) string {
	return strings.Join([]string{
		"verify",
		receiptHash,
		strings.ToLower(expectedIdentity),
		bundleHash,
	}, ":")
}
