package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
)

// Repository manages persistence for seller balances and their journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error)
	// FindOrCreateForUpdate loads the seller's balance row under a write
	// lock, creating a zero row first if the seller has none yet.
	FindOrCreateForUpdate(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error)
	Save(ctx context.Context, balance *models.SellerBalance) error
	CreateEntry(ctx context.Context, entry *models.BalanceEntry) error
	ListEntriesBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.BalanceEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	var balance models.SellerBalance
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) FindOrCreateForUpdate(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	var balance models.SellerBalance
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("seller_id = ?", sellerID).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.SellerBalance{ID: uuid.New(), SellerID: sellerID}
	if cerr := r.db.WithContext(ctx).Create(&fresh).Error; cerr != nil {
		// Lost the creation race: another transaction inserted the row,
		// fall through to a locked re-read.
		if !dbpkg.IsUniqueViolation(cerr, "") {
			return nil, cerr
		}
	}
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("seller_id = ?", sellerID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) Save(ctx context.Context, balance *models.SellerBalance) error {
	return r.db.WithContext(ctx).Save(balance).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.BalanceEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntriesBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.BalanceEntry, error) {
	query := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.BalanceEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
