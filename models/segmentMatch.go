package models

import (
	"context"
	"sort"
	"strings"

	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// aggregateBounds builds HAVING conditions for grouped order aggregates.
// Bounds compose in a fixed order (count min, count max, sum min, sum max)
// so the generated SQL is deterministic for a given criteria.
type aggregateBounds struct {
	conds []string
	args  []interface{}
}

func (b *aggregateBounds) add(cond string, arg interface{}) {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, arg)
}

func (b *aggregateBounds) clause() (string, []interface{}) {
	return strings.Join(b.conds, " AND "), b.args
}

func (c *SegmentationCriteria) havingBounds() (string, []interface{}) {
	var b aggregateBounds
	if c.MinPurchases != nil {
		b.add("COUNT(*) >= ?", *c.MinPurchases)
	}
	if c.MaxPurchases != nil {
		b.add("COUNT(*) <= ?", *c.MaxPurchases)
	}
	if c.MinRevenue != nil {
		b.add("SUM(orders.total_amount) >= ?", *c.MinRevenue)
	}
	if c.MaxRevenue != nil {
		b.add("SUM(orders.total_amount) <= ?", *c.MaxRevenue)
	}
	return b.clause()
}

// applyOrderFilters narrows an orders query to the criteria's date, category
// and region filters. The enricher reuses this so displayed metrics stay
// consistent with why a customer matched.
func (c *SegmentationCriteria) applyOrderFilters(q *gorm.DB, withCategories bool) *gorm.DB {
	if withCategories && len(c.Categories) > 0 {
		q = q.Joins("JOIN products ON products.product_id = orders.product_id").
			Where("products.category IN ?", c.Categories)
	}
	if len(c.Regions) > 0 {
		q = q.Where("orders.region IN ?", c.Regions)
	}
	return c.applyDateFilter(q)
}

func (c *SegmentationCriteria) applyDateFilter(q *gorm.DB) *gorm.DB {
	if c.StartDate != nil {
		q = q.Where("orders.date_of_sale >= ?", c.StartDate.Time)
	}
	if c.EndDate != nil {
		q = q.Where("orders.date_of_sale <= ?", c.EndDate.Time)
	}
	return q
}

// MatchingCustomerIds resolves a criteria to the set of internal customer ids
// whose grouped orders satisfy every configured bound. Customers with zero
// orders never match: only rows present in the orders table are grouped.
func MatchingCustomerIds(ctx context.Context, criteria *SegmentationCriteria) ([]int, error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Order{}).Group("orders.customer_id")
	q = criteria.applyOrderFilters(q, true)
	if having, args := criteria.havingBounds(); having != "" {
		q = q.Having(having, args...)
	}

	var businessKeys []string
	if err := q.Pluck("orders.customer_id", &businessKeys).Error; err != nil {
		return nil, err
	}
	if len(businessKeys) == 0 {
		return []int{}, nil
	}

	var ids []int
	if err := db.WithContext(ctx).Model(&Customer{}).
		Where("customer_id IN ?", businessKeys).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	ids = utils.UniqueSlice(ids)
	sort.Ints(ids)
	return ids, nil
}

// SegmentCustomer is a matched customer enriched with the derived metrics the
// segment view presents. Metrics are computed under the same date filter used
// for matching.
type SegmentCustomer struct {
	Customer
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	TotalOrders   int             `json:"totalOrders"`
	AvgOrderValue decimal.Decimal `json:"avgOrderValue"`
	Categories    []string        `json:"categories"`
}

type customerOrderStats struct {
	CustomerId  string
	TotalOrders int
	TotalSpent  decimal.Decimal
}

type customerCategory struct {
	CustomerId string
	Category   string
}

// GetSegmentCustomers returns one page of the segment's matched customers with
// derived metrics, plus the total match count. Returns
// utils.ErrorRecordNotFound when the segment id does not resolve. Pages are
// served from the redis cache when it is enabled; a data refresh invalidates
// every cached page.
func GetSegmentCustomers(ctx context.Context, segmentId int, page int, limit int) ([]*SegmentCustomer, int, error) {
	segment, err := GetSegment(ctx, segmentId)
	if err != nil {
		return nil, 0, err
	}
	criteria, err := segment.DecodeCriteria()
	if err != nil {
		return nil, 0, err
	}

	page, limit = NormalizePageLimit(page, limit)

	if segmentCacheEnabled() {
		key := segmentCustomersCacheKey(segmentCacheVersion(), segment.ID, page, limit)
		var cached segmentCustomersPage
		if ok, err := config.GetRedisObject(key, &cached); err == nil && ok && cached.Customers != nil {
			return cached.Customers, cached.Total, nil
		}
		customers, total, err := querySegmentCustomers(ctx, criteria, page, limit)
		if err != nil {
			return nil, 0, err
		}
		_ = config.SetRedisObject(key, segmentCustomersPage{Customers: customers, Total: total}, segmentCacheTTL())
		return customers, total, nil
	}
	return querySegmentCustomers(ctx, criteria, page, limit)
}

func querySegmentCustomers(ctx context.Context, criteria *SegmentationCriteria, page int, limit int) ([]*SegmentCustomer, int, error) {
	ids, err := MatchingCustomerIds(ctx, criteria)
	if err != nil {
		return nil, 0, err
	}
	total := len(ids)

	start := (page - 1) * limit
	if start >= len(ids) {
		return []*SegmentCustomer{}, total, nil
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	customers, err := GetCustomersByIds(ctx, ids[start:end])
	if err != nil {
		return nil, 0, err
	}
	if len(customers) == 0 {
		return []*SegmentCustomer{}, total, nil
	}

	businessKeys := make([]string, 0, len(customers))
	for _, customer := range customers {
		businessKeys = append(businessKeys, customer.CustomerId)
	}

	db := config.GetDB()

	var stats []customerOrderStats
	statsQuery := db.WithContext(ctx).Model(&Order{}).
		Select("orders.customer_id AS customer_id, COUNT(*) AS total_orders, SUM(orders.total_amount) AS total_spent").
		Where("orders.customer_id IN ?", businessKeys).
		Group("orders.customer_id")
	if err := criteria.applyDateFilter(statsQuery).Scan(&stats).Error; err != nil {
		return nil, 0, err
	}
	statsByKey := make(map[string]customerOrderStats, len(stats))
	for _, s := range stats {
		statsByKey[s.CustomerId] = s
	}

	var categoryRows []customerCategory
	categoryQuery := db.WithContext(ctx).Model(&Order{}).
		Select("DISTINCT orders.customer_id AS customer_id, products.category AS category").
		Joins("JOIN products ON products.product_id = orders.product_id").
		Where("orders.customer_id IN ?", businessKeys)
	if err := criteria.applyDateFilter(categoryQuery).Scan(&categoryRows).Error; err != nil {
		return nil, 0, err
	}
	categoriesByKey := make(map[string][]string)
	for _, row := range categoryRows {
		categoriesByKey[row.CustomerId] = append(categoriesByKey[row.CustomerId], row.Category)
	}

	enriched := make([]*SegmentCustomer, 0, len(customers))
	for _, customer := range customers {
		s := statsByKey[customer.CustomerId]
		avg := decimal.Zero
		if s.TotalOrders > 0 {
			avg = s.TotalSpent.DivRound(decimal.NewFromInt(int64(s.TotalOrders)), 4)
		}
		categories := categoriesByKey[customer.CustomerId]
		sort.Strings(categories)
		if categories == nil {
			categories = []string{}
		}
		enriched = append(enriched, &SegmentCustomer{
			Customer:      *customer,
			TotalSpent:    s.TotalSpent,
			TotalOrders:   s.TotalOrders,
			AvgOrderValue: avg,
			Categories:    categories,
		})
	}
	return enriched, total, nil
}
