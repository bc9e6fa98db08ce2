package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/segments_backend/config"
)

// Customer is created idempotently during ingestion: rows whose business key
// (CustomerId) already exists are skipped, never merged.
type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CustomerId string    `gorm:"size:100;uniqueIndex;not null" json:"customerId"`
	Name       string    `gorm:"size:100" json:"name"`
	Email      string    `gorm:"size:100" json:"email"`
	Address    string    `gorm:"size:255" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// GetCustomersByIds fetches customers by internal id, ordered by id so that
// offset pagination over a matched set is stable.
func GetCustomersByIds(ctx context.Context, ids []int) ([]*Customer, error) {
	if len(ids) == 0 {
		return []*Customer{}, nil
	}
	db := config.GetDB()
	var customers []*Customer
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
