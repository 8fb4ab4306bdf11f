package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Complaint is a buyer dispute against a shipped or received purchase.
// One complaint per purchase, enforced at creation time.
type Complaint struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID  uuid.UUID             `gorm:"column:purchase_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	Reason      string                `gorm:"column:reason;not null"`
	EvidenceURL *string               `gorm:"column:evidence_url"`
	Status      enums.ComplaintStatus `gorm:"column:status;type:text;not null;default:'waiting'"`
	AdminNote   *string               `gorm:"column:admin_note"`
	ResolvedAt  *time.Time            `gorm:"column:resolved_at"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
