package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

// Service exposes catalog reads plus the stock decrement that runs when a
// purchase is confirmed paid. Stock is never touched at cart-add or
// checkout time so abandoned carts cannot strand inventory.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Product, error)
	// DecrementStock runs inside the caller's payment transaction, locking
	// each product row before subtracting.
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error)
	// RestoreStock undoes a decrement when a settled payment is rewound,
	// reviving a sold_out listing if stock comes back.
	RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error)
}

type service struct {
	repo Repository
}

// NewService wires a product service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	return s.repo.ListByStore(ctx, storeID)
}

func (s *service) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock decrement")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	product, err := repo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if product.Stock < qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("product %s has %d in stock, %d requested", product.ID, product.Stock, qty))
	}

	product.Stock -= qty
	if product.Stock == 0 {
		product.Status = enums.ProductStatusSoldOut
	}
	if err := repo.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock restore")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	product, err := repo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}

	product.Stock += qty
	if product.Status == enums.ProductStatusSoldOut {
		product.Status = enums.ProductStatusActive
	}
	if err := repo.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}
