package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
)

// Repository persists checkout groups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, group *models.CheckoutGroup) error
	// FindByID loads a group with its purchases and their lines.
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CheckoutGroup, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a checkout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, group *models.CheckoutGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Purchases").Create(group).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error) {
	var group models.CheckoutGroup
	if err := r.db.WithContext(ctx).
		Preload("Purchases").
		Preload("Purchases.Lines").
		Preload("Purchases.Invoice").
		First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CheckoutGroup, error) {
	var rows []models.CheckoutGroup
	if err := r.db.WithContext(ctx).
		Preload("Purchases").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
