package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// ReturnRequest is a goods return escalated from a processing complaint.
type ReturnRequest struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ComplaintID uuid.UUID          `gorm:"column:complaint_id;type:uuid;not null;index"`
	PurchaseID  uuid.UUID          `gorm:"column:purchase_id;type:uuid;not null"`
	OrderLineID *uuid.UUID         `gorm:"column:order_line_id;type:uuid"`
	Reason      string             `gorm:"column:reason;not null"`
	Status      enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'awaiting_approval'"`
	AdminNote   *string            `gorm:"column:admin_note"`
	CompletedAt *time.Time         `gorm:"column:completed_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
