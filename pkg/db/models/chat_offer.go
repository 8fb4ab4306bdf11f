package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatOffer records a negotiated price accepted inside a chat thread.
// Order lines originating from an offer snapshot this price, not the
// catalog price.
type ChatOffer struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	BuyerID       uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	OfferPriceIDR int64      `gorm:"column:offer_price_idr;not null"`
	Qty           int        `gorm:"column:qty;not null;default:1"`
	AcceptedAt    *time.Time `gorm:"column:accepted_at"`
	ConsumedAt    *time.Time `gorm:"column:consumed_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
