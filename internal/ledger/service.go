package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the four balance mutations plus read access. Every
// mutation locks the seller's balance row and writes a journal entry in
// the same transaction. Passing a non-nil tx joins an enclosing
// transaction; passing nil opens one.
type Service interface {
	Hold(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error)
	ReleaseHeld(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error)
	Withdraw(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error)
	Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error)
	GetBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error)
	ListEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.BalanceEntry, error)
}

// MutationInput carries one balance mutation and its journal context.
type MutationInput struct {
	SellerID     uuid.UUID
	AmountIDR    int64
	ActorID      uuid.UUID
	PurchaseID   *uuid.UUID
	WithdrawalID *uuid.UUID
	Note         *string
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a ledger service with the provided transaction runner
// and repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Hold(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error) {
	return s.mutate(ctx, tx, enums.BalanceEntryTypeHold, input)
}

func (s *service) ReleaseHeld(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error) {
	return s.mutate(ctx, tx, enums.BalanceEntryTypeRelease, input)
}

func (s *service) Withdraw(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error) {
	return s.mutate(ctx, tx, enums.BalanceEntryTypeWithdraw, input)
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SellerBalance, error) {
	return s.mutate(ctx, tx, enums.BalanceEntryTypeCredit, input)
}

func (s *service) mutate(ctx context.Context, tx *gorm.DB, entryType enums.BalanceEntryType, input MutationInput) (*models.SellerBalance, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.AmountIDR <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	if tx != nil {
		return s.mutateTx(ctx, tx, entryType, input)
	}
	var result *models.SellerBalance
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, merr := s.mutateTx(ctx, tx, entryType, input)
		if merr != nil {
			return merr
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) mutateTx(ctx context.Context, tx *gorm.DB, entryType enums.BalanceEntryType, input MutationInput) (*models.SellerBalance, error) {
	repo := s.repo.WithTx(tx)

	balance, err := repo.FindOrCreateForUpdate(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}

	switch entryType {
	case enums.BalanceEntryTypeHold:
		if balance.AvailableIDR < input.AmountIDR {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "available balance insufficient for hold")
		}
		balance.AvailableIDR -= input.AmountIDR
		balance.HeldIDR += input.AmountIDR
	case enums.BalanceEntryTypeRelease:
		if balance.HeldIDR < input.AmountIDR {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "held balance insufficient for release")
		}
		balance.HeldIDR -= input.AmountIDR
		balance.AvailableIDR += input.AmountIDR
	case enums.BalanceEntryTypeWithdraw:
		if balance.HeldIDR < input.AmountIDR {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "held balance insufficient for withdrawal")
		}
		balance.HeldIDR -= input.AmountIDR
	case enums.BalanceEntryTypeCredit:
		balance.AvailableIDR += input.AmountIDR
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown balance entry type")
	}

	if err := repo.Save(ctx, balance); err != nil {
		return nil, err
	}

	entry := &models.BalanceEntry{
		SellerID:     input.SellerID,
		Type:         entryType,
		AmountIDR:    input.AmountIDR,
		PurchaseID:   input.PurchaseID,
		WithdrawalID: input.WithdrawalID,
		ActorID:      input.ActorID,
		Note:         input.Note,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *service) GetBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	balance, err := s.repo.FindBySellerID(ctx, sellerID)
	if err == nil {
		return balance, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.SellerBalance{SellerID: sellerID}, nil
	}
	return nil, err
}

func (s *service) ListEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.BalanceEntry, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.repo.ListEntriesBySeller(ctx, sellerID, limit)
}
