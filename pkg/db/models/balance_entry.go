package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// BalanceEntry is the immutable journal row written alongside every seller
// balance mutation.
type BalanceEntry struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID     uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	Type         enums.BalanceEntryType `gorm:"column:type;type:text;not null"`
	AmountIDR    int64                  `gorm:"column:amount_idr;not null"`
	PurchaseID   *uuid.UUID             `gorm:"column:purchase_id;type:uuid"`
	WithdrawalID *uuid.UUID             `gorm:"column:withdrawal_id;type:uuid"`
	ActorID      uuid.UUID              `gorm:"column:actor_id;type:uuid;not null"`
	Note         *string                `gorm:"column:note"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
