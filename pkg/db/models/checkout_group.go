package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutGroup links one buyer checkout action to the per-store purchases
// it produced. Sibling invoices share the group id so a single gateway
// payment settles the whole group.
type CheckoutGroup struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID     uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	AdminFeeIDR int64      `gorm:"column:admin_fee_idr;not null;default:0"`
	Purchases   []Purchase `gorm:"foreignKey:CheckoutGroupID"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
