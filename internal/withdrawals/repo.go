package withdrawals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// Repository manages persistence for withdrawal requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	// HasOutstanding reports whether the seller already has a waiting or
	// processing request.
	HasOutstanding(ctx context.Context, sellerID uuid.UUID) (bool, error)
	// HasOtherOutstanding is HasOutstanding minus the request named by
	// excludeID, for re-checking after that request has been inserted.
	HasOtherOutstanding(ctx context.Context, sellerID, excludeID uuid.UUID) (bool, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status enums.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error)
	Save(ctx context.Context, request *models.WithdrawalRequest) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a withdrawal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) HasOutstanding(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	return countAny(r.outstandingQuery(ctx, sellerID))
}

func (r *repository) HasOtherOutstanding(ctx context.Context, sellerID, excludeID uuid.UUID) (bool, error) {
	return countAny(r.outstandingQuery(ctx, sellerID).Where("id <> ?", excludeID))
}

func (r *repository) outstandingQuery(ctx context.Context, sellerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("seller_id = ? AND status IN ?", sellerID, []enums.WithdrawalStatus{
			enums.WithdrawalStatusWaiting,
			enums.WithdrawalStatusProcessing,
		})
}

func countAny(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("requested_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("requested_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.WithdrawalRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}
