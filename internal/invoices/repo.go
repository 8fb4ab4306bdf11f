package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Repository manages persistence for invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Invoice, error)
	ListExpiredWaiting(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
	Save(ctx context.Context, invoice *models.Invoice) error
	// MarkFailedForPurchase fails a still-unpaid invoice when its purchase
	// is cancelled. Satisfies the purchase service's invoice hook.
	MarkFailedForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "purchase_id = ?", purchaseID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Invoice, error) {
	var rows []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListExpiredWaiting(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND due_at < ?", enums.InvoiceStatusWaiting, now).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Invoice
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) MarkFailedForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("purchase_id = ? AND status = ?", purchaseID, enums.InvoiceStatusWaiting).
		Update("status", enums.InvoiceStatusFailed).Error
}
