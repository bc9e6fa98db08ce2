package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ProductId string          `gorm:"size:100;uniqueIndex;not null" json:"productId"`
	Name      string          `gorm:"size:100" json:"name"`
	Category  string          `gorm:"size:100;index" json:"category"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}
