package complaints

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
)

// Repository manages persistence for complaints and their returns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	ExistsForPurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Complaint, error)
	Save(ctx context.Context, complaint *models.Complaint) error

	CreateReturn(ctx context.Context, ret *models.ReturnRequest) error
	FindReturnByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindReturnByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindReturnByComplaint(ctx context.Context, complaintID uuid.UUID) (*models.ReturnRequest, error)
	SaveReturn(ctx context.Context, ret *models.ReturnRequest) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a complaint repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == uuid.Nil {
		complaint.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(complaint).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).First(&complaint, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		First(&complaint, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *repository) ExistsForPurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("purchase_id = ?", purchaseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Complaint, error) {
	var rows []models.Complaint
	if err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, complaint *models.Complaint) error {
	return r.db.WithContext(ctx).Save(complaint).Error
}

func (r *repository) CreateReturn(ctx context.Context, ret *models.ReturnRequest) error {
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) FindReturnByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) FindReturnByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) FindReturnByComplaint(ctx context.Context, complaintID uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.WithContext(ctx).
		First(&ret, "complaint_id = ?", complaintID).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) SaveReturn(ctx context.Context, ret *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Save(ret).Error
}
