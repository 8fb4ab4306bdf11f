package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine snapshots one product+qty+price inside a purchase. UnitPriceIDR
// is the price at add time (or the negotiated offer price), immutable once
// the purchase leaves draft.
type OrderLine struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID   uuid.UUID  `gorm:"column:purchase_id;type:uuid;not null;index"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	StoreID      uuid.UUID  `gorm:"column:store_id;type:uuid;not null;index"`
	ProductName  string     `gorm:"column:product_name;not null"`
	UnitPriceIDR int64      `gorm:"column:unit_price_idr;not null"`
	Qty          int        `gorm:"column:qty;not null"`
	SubtotalIDR  int64      `gorm:"column:subtotal_idr;not null"`
	WeightGrams  int        `gorm:"column:weight_grams;not null;default:0"`
	OfferID      *uuid.UUID `gorm:"column:offer_id;type:uuid"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}
