package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Invoice is the payable record attached to a purchase. Sibling invoices
// from one multi-store checkout share GroupID; the admin fee is charged on
// exactly one invoice of the group.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID    uuid.UUID           `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex"`
	GroupID       *uuid.UUID          `gorm:"column:group_id;type:uuid;index"`
	ItemTotalIDR  int64               `gorm:"column:item_total_idr;not null"`
	ShippingIDR   int64               `gorm:"column:shipping_idr;not null;default:0"`
	AdminFeeIDR   int64               `gorm:"column:admin_fee_idr;not null;default:0"`
	TotalIDR      int64               `gorm:"column:total_idr;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'gateway'"`
	GatewayRef    *string             `gorm:"column:gateway_ref"`
	GatewayToken  *string             `gorm:"column:gateway_token"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'waiting'"`
	DueAt         time.Time           `gorm:"column:due_at;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether a waiting invoice has passed its deadline.
func (i *Invoice) IsExpired(now time.Time) bool {
	return i.Status == enums.InvoiceStatusWaiting && now.After(i.DueAt)
}
