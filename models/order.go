package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order references Customer and Product by business key, not by surrogate id,
// so re-ingestion of overlapping files stays order-independent across chunks.
//
// TotalAmount = quantity * unitPrice * (1 - discount) + shippingCost,
// computed once at ingestion time. It is the authoritative field every
// aggregate criterion reads; it is never re-derived later.
type Order struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OrderId       string          `gorm:"size:100;uniqueIndex;not null" json:"orderId"`
	CustomerId    string          `gorm:"size:100;index;not null" json:"customerId"`
	ProductId     string          `gorm:"size:100;index;not null" json:"productId"`
	Region        string          `gorm:"size:100;index" json:"region"`
	DateOfSale    time.Time       `gorm:"index;not null" json:"dateOfSale"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	ShippingCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shippingCost"`
	PaymentMethod string          `gorm:"size:50" json:"paymentMethod"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalAmount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

// OrderTotalAmount computes the authoritative order total.
func OrderTotalAmount(quantity int, unitPrice, discount, shippingCost decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	return qty.Mul(unitPrice).Mul(decimal.NewFromInt(1).Sub(discount)).Add(shippingCost)
}
