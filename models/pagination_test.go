package models

import "testing"

func TestPaginationMetaTotalPages(t *testing.T) {
	cases := []struct {
		page, limit, total int
		wantTotalPages     int
	}{
		{2, 5, 12, 3},
		{1, 5, 10, 2},
		{1, 10, 0, 0},
		{1, 10, 1, 1},
		{1, 3, 7, 3},
	}
	for _, tc := range cases {
		meta := NewPaginationMeta(tc.page, tc.limit, tc.total)
		if meta.TotalPages != tc.wantTotalPages {
			t.Errorf("NewPaginationMeta(%d, %d, %d).TotalPages = %d, want %d",
				tc.page, tc.limit, tc.total, meta.TotalPages, tc.wantTotalPages)
		}
		if meta.Page != tc.page || meta.Limit != tc.limit || meta.Total != tc.total {
			t.Errorf("meta echo mismatch: %+v", meta)
		}
	}
}

func TestNormalizePageLimitDefaults(t *testing.T) {
	cases := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 10},
		{-3, -1, 1, 10},
		{2, 0, 2, 10},
		{0, 25, 1, 25},
		{4, 50, 4, 50},
	}
	for _, tc := range cases {
		page, limit := NormalizePageLimit(tc.page, tc.limit)
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Errorf("NormalizePageLimit(%d, %d) = (%d, %d), want (%d, %d)",
				tc.page, tc.limit, page, limit, tc.wantPage, tc.wantLimit)
		}
	}
}
