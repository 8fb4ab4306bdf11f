package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerBalance is the per-seller running balance. AvailableIDR and HeldIDR
// never go negative; every mutation happens under a row lock and writes a
// BalanceEntry journal row in the same transaction.
type SellerBalance struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID     uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex"`
	AvailableIDR int64     `gorm:"column:available_idr;not null;default:0"`
	HeldIDR      int64     `gorm:"column:held_idr;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
