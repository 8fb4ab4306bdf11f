package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is a seller's storefront. One store per seller user.
type Store struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID          uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`
	Name             string    `gorm:"column:name;not null"`
	Description      *string   `gorm:"column:description"`
	OriginPostalCode string    `gorm:"column:origin_postal_code;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
