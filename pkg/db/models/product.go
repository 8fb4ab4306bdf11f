package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Product is a second-hand listing. Stock is decremented only when the
// owning purchase is confirmed paid, never at cart-add or checkout.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	Name        string              `gorm:"column:name;not null"`
	Description *string             `gorm:"column:description"`
	PriceIDR    int64               `gorm:"column:price_idr;not null"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	WeightGrams int                 `gorm:"column:weight_grams;not null;default:0"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
