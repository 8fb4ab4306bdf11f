package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// WithdrawalRequest is a seller's request to cash out held funds. At most
// one waiting/processing request exists per seller at a time.
type WithdrawalRequest struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountIDR     int64                  `gorm:"column:amount_idr;not null"`
	BankName      string                 `gorm:"column:bank_name;not null"`
	BankAccount   string                 `gorm:"column:bank_account;not null"`
	AccountHolder string                 `gorm:"column:account_holder;not null"`
	Status        enums.WithdrawalStatus `gorm:"column:status;type:text;not null;default:'waiting'"`
	AdminNote     *string                `gorm:"column:admin_note"`
	RequestedAt   time.Time              `gorm:"column:requested_at;not null"`
	ProcessedAt   *time.Time             `gorm:"column:processed_at"`
	CompletedAt   *time.Time             `gorm:"column:completed_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
