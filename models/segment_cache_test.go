package models

import (
	"testing"
	"time"
)

func TestSegmentCacheEnabledFlag(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{"ON", true},
		{"yes", true},
		{"off", false},
		{"0", false},
	}
	for _, tc := range cases {
		t.Setenv("ENABLE_SEGMENT_CACHE", tc.value)
		if got := segmentCacheEnabled(); got != tc.want {
			t.Errorf("ENABLE_SEGMENT_CACHE=%q: enabled = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestSegmentCacheTTL(t *testing.T) {
	t.Setenv("SEGMENT_CACHE_TTL_SECONDS", "")
	if got := segmentCacheTTL(); got != 120*time.Second {
		t.Fatalf("default ttl = %s, want 120s", got)
	}
	t.Setenv("SEGMENT_CACHE_TTL_SECONDS", "30")
	if got := segmentCacheTTL(); got != 30*time.Second {
		t.Fatalf("ttl = %s, want 30s", got)
	}
	t.Setenv("SEGMENT_CACHE_TTL_SECONDS", "garbage")
	if got := segmentCacheTTL(); got != 120*time.Second {
		t.Fatalf("ttl with bad env = %s, want 120s", got)
	}
}

// Keys must differ across version, segment, page and limit so stale entries
// can never shadow fresh ones.
func TestSegmentCustomersCacheKeyDistinct(t *testing.T) {
	base := segmentCustomersCacheKey("v1", 1, 1, 10)
	for _, other := range []string{
		segmentCustomersCacheKey("v2", 1, 1, 10),
		segmentCustomersCacheKey("v1", 2, 1, 10),
		segmentCustomersCacheKey("v1", 1, 2, 10),
		segmentCustomersCacheKey("v1", 1, 1, 25),
	} {
		if other == base {
			t.Fatalf("key collision: %q", other)
		}
	}
	if again := segmentCustomersCacheKey("v1", 1, 1, 10); again != base {
		t.Fatalf("key not deterministic: %q vs %q", base, again)
	}
}
