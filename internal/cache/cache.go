package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is how long analysis results stay cached.
const DefaultTTL = time.Hour

// Cache stores serialized values with a TTL. Implementations are fail-open:
// backend errors surface as misses so callers never block on the cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// AnalysisKey derives the cache key for an analysis of the given text.
// Text is normalized so trivially different submissions share a key.
func AnalysisKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return "analysis:" + hex.EncodeToString(sum[:])
}
