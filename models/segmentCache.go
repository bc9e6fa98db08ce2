package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/segments_backend/config"
)

// Redis page cache for segment customer reads. Every key embeds a dataset
// version token, so one delete invalidates all cached pages at once: a
// successful refresh removes the token, the next reader mints a fresh one,
// and the orphaned entries age out by TTL. Redis stays best-effort; a nil
// client degrades to plain reads.

const segmentCacheVersionKey = "segments:customers:version"

func segmentCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_SEGMENT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func segmentCacheTTL() time.Duration {
	// Env: SEGMENT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("SEGMENT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func segmentCacheVersion() string {
	var version string
	if ok, err := config.GetRedisObject(segmentCacheVersionKey, &version); err == nil && ok && version != "" {
		return version
	}
	version = uuid.NewString()
	_ = config.SetRedisObject(segmentCacheVersionKey, version, 0)
	return version
}

// invalidateSegmentCache drops the version token; entries under the old
// version become unreachable and expire on their own.
func invalidateSegmentCache() error {
	return config.RemoveRedisKey(segmentCacheVersionKey)
}

func segmentCustomersCacheKey(version string, segmentId int, page int, limit int) string {
	return fmt.Sprintf("segments:customers:%s:%d:%d:%d", version, segmentId, page, limit)
}

type segmentCustomersPage struct {
	Customers []*SegmentCustomer `json:"customers"`
	Total     int                `json:"total"`
}
