package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Purchase is the order aggregate for a single store within a checkout.
// A purchase that leaves draft always carries at least one line.
type Purchase struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string               `gorm:"column:code;not null;uniqueIndex"`
	BuyerID         uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	StoreID         uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index"`
	AddressID       uuid.UUID            `gorm:"column:address_id;type:uuid;not null"`
	CheckoutGroupID *uuid.UUID           `gorm:"column:checkout_group_id;type:uuid;index"`
	Status          enums.PurchaseStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	Note            *string              `gorm:"column:note"`
	TrackingNumber  *string              `gorm:"column:tracking_number"`
	Courier         *string              `gorm:"column:courier"`
	ShipmentProof   *string              `gorm:"column:shipment_proof"`
	ArchivedAt      *time.Time           `gorm:"column:archived_at;index"`
	CreatedBy       uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy       uuid.UUID            `gorm:"column:updated_by;type:uuid;not null"`
	Lines           []OrderLine          `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
	Invoice         *Invoice             `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemTotalIDR sums the snapshot subtotals across lines.
func (p *Purchase) ItemTotalIDR() int64 {
	var total int64
	for _, line := range p.Lines {
		total += line.SubtotalIDR
	}
	return total
}
