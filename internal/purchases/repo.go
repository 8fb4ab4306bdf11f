package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
)

// Repository manages persistence for purchases and their order lines.
// List methods exclude archived rows; archived purchases stay readable
// through FindByID for admin tooling.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindByCode(ctx context.Context, code string) (*models.Purchase, error)
	Save(ctx context.Context, purchase *models.Purchase) error
	CreateLine(ctx context.Context, line *models.OrderLine) error
	CountLines(ctx context.Context, purchaseID uuid.UUID) (int64, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Purchase, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	for i := range purchase.Lines {
		if purchase.Lines[i].ID == uuid.Nil {
			purchase.Lines[i].ID = uuid.New()
		}
		purchase.Lines[i].PurchaseID = purchase.ID
	}
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Invoice").
		First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("purchase_id = ?", id).
		Find(&purchase.Lines).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Invoice").
		First(&purchase, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) Save(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Omit("Lines", "Invoice").Save(purchase).Error
}

func (r *repository) CreateLine(ctx context.Context, line *models.OrderLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) CountLines(ctx context.Context, purchaseID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("purchase_id = ?", purchaseID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Invoice").
		Where("buyer_id = ? AND archived_at IS NULL", buyerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Invoice").
		Where("store_id = ? AND archived_at IS NULL", storeID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Purchase{}, "id = ?", id).Error
}
