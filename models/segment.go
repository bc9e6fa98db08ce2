package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerSegment is a named, persisted predicate over orders. The criteria
// column is stored as opaque JSON so new predicate fields stay
// forward-compatible. Segments are immutable once created and names are
// unique; a duplicate name surfaces as a MySQL duplicate-key error.
type CustomerSegment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Criteria    json.RawMessage `gorm:"type:json" json:"criteria"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type NewCustomerSegment struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Criteria    *SegmentationCriteria `json:"criteria" binding:"required"`
}

// SegmentationCriteria is a closed set of optional bounds. A nil field means
// "no constraint", never zero: a segment with no criteria at all matches
// every customer who has placed at least one order. Empty category/region
// sets mean "no filter", not "match nothing".
type SegmentationCriteria struct {
	MinPurchases *int             `json:"minPurchases,omitempty"`
	MaxPurchases *int             `json:"maxPurchases,omitempty"`
	MinRevenue   *decimal.Decimal `json:"minRevenue,omitempty"`
	MaxRevenue   *decimal.Decimal `json:"maxRevenue,omitempty"`
	Categories   []string         `json:"categories,omitempty"`
	Regions      []string         `json:"regions,omitempty"`
	StartDate    *CriteriaDate    `json:"startDate,omitempty"`
	EndDate      *CriteriaDate    `json:"endDate,omitempty"`
}

// CriteriaDate accepts RFC3339 timestamps or plain yyyy-mm-dd dates on the
// wire. Bounds are inclusive against orders.date_of_sale.
type CriteriaDate struct {
	time.Time
}

func (d *CriteriaDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s", string(b))
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

func (d CriteriaDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(time.RFC3339))
}

func CreateSegment(ctx context.Context, input *NewCustomerSegment) (*CustomerSegment, error) {
	criteriaJSON, err := json.Marshal(input.Criteria)
	if err != nil {
		return nil, err
	}

	segment := CustomerSegment{
		Name:        input.Name,
		Description: input.Description,
		Criteria:    criteriaJSON,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&segment).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func GetSegment(ctx context.Context, id int) (*CustomerSegment, error) {
	db := config.GetDB()
	var segment CustomerSegment
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&segment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &segment, nil
}

// DecodeCriteria re-hydrates the opaque criteria column. Unknown fields are
// ignored so segments created by newer writers still evaluate.
func (s *CustomerSegment) DecodeCriteria() (*SegmentationCriteria, error) {
	var criteria SegmentationCriteria
	if len(s.Criteria) == 0 {
		return &criteria, nil
	}
	if err := json.Unmarshal(s.Criteria, &criteria); err != nil {
		return nil, err
	}
	return &criteria, nil
}

func ListSegments(ctx context.Context, page int, limit int) ([]*CustomerSegment, *PaginationMeta, error) {
	page, limit = NormalizePageLimit(page, limit)
	db := config.GetDB()

	var total int64
	if err := db.WithContext(ctx).Model(&CustomerSegment{}).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var segments []*CustomerSegment
	if err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&segments).Error; err != nil {
		return nil, nil, err
	}
	return segments, NewPaginationMeta(page, limit, int(total)), nil
}
