package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BulkAction names one admin operation applied across many requests.
type BulkAction string

const (
	BulkApprove  BulkAction = "approve"
	BulkComplete BulkAction = "complete"
	BulkReject   BulkAction = "reject"
)

// Service drives seller payout requests. Creating a request holds the
// amount on the seller ledger; completion converts the hold into a
// permanent withdrawal, rejection releases it.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status enums.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error)
	// Approve moves a waiting request into processing. Idempotent when the
	// request is already processing.
	Approve(ctx context.Context, id, actorID uuid.UUID) (*models.WithdrawalRequest, error)
	// Complete finishes a processing request and removes the held amount
	// from the ledger for good.
	Complete(ctx context.Context, id, actorID uuid.UUID, note *string) (*models.WithdrawalRequest, error)
	// Reject turns down a waiting or processing request and releases the
	// hold back to the seller's available balance.
	Reject(ctx context.Context, id, actorID uuid.UUID, note *string) (*models.WithdrawalRequest, error)
	// Cancel lets the seller withdraw their own request while it is still
	// waiting.
	Cancel(ctx context.Context, id, sellerID uuid.UUID) (*models.WithdrawalRequest, error)
	// BulkProcess applies one action across many requests, one transaction
	// each; a failure on one request does not roll back the others.
	BulkProcess(ctx context.Context, input BulkInput) (*BulkResult, error)
}

// CreateInput is a seller's payout request.
type CreateInput struct {
	SellerID      uuid.UUID
	AmountIDR     int64
	BankName      string
	BankAccount   string
	AccountHolder string
}

// BulkInput applies one action to many requests.
type BulkInput struct {
	IDs     []uuid.UUID
	Action  BulkAction
	ActorID uuid.UUID
	Note    *string
}

// BulkResult reports which requests were processed; Err aggregates the
// per-request failures.
type BulkResult struct {
	Processed []uuid.UUID
	Err       error
}

type service struct {
	tx        txRunner
	repo      Repository
	ledgerSvc ledger.Service
	outbox    outboxPublisher
	logg      *logger.Logger
	cfg       config.WithdrawalConfig
}

// NewService builds the withdrawal service.
func NewService(
	tx txRunner,
	repo Repository,
	ledgerSvc ledger.Service,
	publisher outboxPublisher,
	logg *logger.Logger,
	cfg config.WithdrawalConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal repository required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if cfg.MinimumAmountIDR <= 0 {
		cfg.MinimumAmountIDR = 50000
	}
	return &service{
		tx:        tx,
		repo:      repo,
		ledgerSvc: ledgerSvc,
		outbox:    publisher,
		logg:      logg,
		cfg:       cfg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.AmountIDR < s.cfg.MinimumAmountIDR {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("withdrawal minimum is %d IDR", s.cfg.MinimumAmountIDR))
	}
	if strings.TrimSpace(input.BankName) == "" ||
		strings.TrimSpace(input.BankAccount) == "" ||
		strings.TrimSpace(input.AccountHolder) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank name, account number and holder required")
	}

	var result *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		outstanding, err := repo.HasOutstanding(ctx, input.SellerID)
		if err != nil {
			return err
		}
		if outstanding {
			return pkgerrors.New(pkgerrors.CodeConflict, "seller already has an outstanding withdrawal request")
		}

		request := &models.WithdrawalRequest{
			ID:            uuid.New(),
			SellerID:      input.SellerID,
			AmountIDR:     input.AmountIDR,
			BankName:      strings.TrimSpace(input.BankName),
			BankAccount:   strings.TrimSpace(input.BankAccount),
			AccountHolder: strings.TrimSpace(input.AccountHolder),
			Status:        enums.WithdrawalStatusWaiting,
			RequestedAt:   time.Now(),
		}
		if err := repo.Create(ctx, request); err != nil {
			return err
		}

		// The hold and the request row commit or roll back together, so an
		// insufficient balance leaves no orphan request behind.
		if _, err := s.ledgerSvc.Hold(ctx, tx, ledger.MutationInput{
			SellerID:     input.SellerID,
			AmountIDR:    input.AmountIDR,
			ActorID:      input.SellerID,
			WithdrawalID: &request.ID,
		}); err != nil {
			return err
		}

		// The hold locks the seller's balance row, so concurrent creators
		// reach this point one at a time. Re-check under that lock: a
		// sibling request that committed after the first check is visible
		// now, and the whole transaction rolls back.
		other, err := repo.HasOtherOutstanding(ctx, input.SellerID, request.ID)
		if err != nil {
			return err
		}
		if other {
			return pkgerrors.New(pkgerrors.CodeConflict, "seller already has an outstanding withdrawal request")
		}

		s.emit(ctx, tx, enums.EventWithdrawalRequested, request, input.SellerID)
		result = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, err
	}
	return request, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.WithdrawalRequest, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *service) ListByStatus(ctx context.Context, status enums.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid withdrawal status")
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *service) Approve(ctx context.Context, id, actorID uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.mutate(ctx, id, actorID, func(tx *gorm.DB, request *models.WithdrawalRequest) error {
		if request.Status == enums.WithdrawalStatusProcessing {
			return nil
		}
		if request.Status != enums.WithdrawalStatusWaiting {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot approve a %s withdrawal", request.Status))
		}
		now := time.Now()
		request.Status = enums.WithdrawalStatusProcessing
		request.ProcessedAt = &now
		return nil
	})
}

func (s *service) Complete(ctx context.Context, id, actorID uuid.UUID, note *string) (*models.WithdrawalRequest, error) {
	return s.mutate(ctx, id, actorID, func(tx *gorm.DB, request *models.WithdrawalRequest) error {
		if request.Status != enums.WithdrawalStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot complete a %s withdrawal, approve it first", request.Status))
		}
		now := time.Now()
		request.Status = enums.WithdrawalStatusCompleted
		request.CompletedAt = &now
		request.AdminNote = note

		if _, err := s.ledgerSvc.Withdraw(ctx, tx, ledger.MutationInput{
			SellerID:     request.SellerID,
			AmountIDR:    request.AmountIDR,
			ActorID:      actorID,
			WithdrawalID: &request.ID,
			Note:         note,
		}); err != nil {
			return err
		}
		s.emit(ctx, tx, enums.EventWithdrawalCompleted, request, actorID)
		return nil
	})
}

func (s *service) Reject(ctx context.Context, id, actorID uuid.UUID, note *string) (*models.WithdrawalRequest, error) {
	return s.mutate(ctx, id, actorID, func(tx *gorm.DB, request *models.WithdrawalRequest) error {
		if !request.Status.IsOutstanding() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot reject a %s withdrawal", request.Status))
		}
		now := time.Now()
		request.Status = enums.WithdrawalStatusRejected
		request.ProcessedAt = &now
		request.AdminNote = note

		if _, err := s.ledgerSvc.ReleaseHeld(ctx, tx, ledger.MutationInput{
			SellerID:     request.SellerID,
			AmountIDR:    request.AmountIDR,
			ActorID:      actorID,
			WithdrawalID: &request.ID,
			Note:         note,
		}); err != nil {
			return err
		}
		s.emit(ctx, tx, enums.EventWithdrawalRejected, request, actorID)
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, id, sellerID uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.mutate(ctx, id, sellerID, func(tx *gorm.DB, request *models.WithdrawalRequest) error {
		if request.SellerID != sellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "withdrawal belongs to another seller")
		}
		// Once an admin picks the request up it can no longer be pulled back.
		if request.Status != enums.WithdrawalStatusWaiting {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel a %s withdrawal", request.Status))
		}
		now := time.Now()
		request.Status = enums.WithdrawalStatusRejected
		request.ProcessedAt = &now

		if _, err := s.ledgerSvc.ReleaseHeld(ctx, tx, ledger.MutationInput{
			SellerID:     request.SellerID,
			AmountIDR:    request.AmountIDR,
			ActorID:      sellerID,
			WithdrawalID: &request.ID,
		}); err != nil {
			return err
		}
		s.emit(ctx, tx, enums.EventWithdrawalRejected, request, sellerID)
		return nil
	})
}

func (s *service) BulkProcess(ctx context.Context, input BulkInput) (*BulkResult, error) {
	if len(input.IDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal ids required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var apply func(ctx context.Context, id uuid.UUID) error
	switch input.Action {
	case BulkApprove:
		apply = func(ctx context.Context, id uuid.UUID) error {
			_, err := s.Approve(ctx, id, input.ActorID)
			return err
		}
	case BulkComplete:
		apply = func(ctx context.Context, id uuid.UUID) error {
			_, err := s.Complete(ctx, id, input.ActorID, input.Note)
			return err
		}
	case BulkReject:
		apply = func(ctx context.Context, id uuid.UUID) error {
			_, err := s.Reject(ctx, id, input.ActorID, input.Note)
			return err
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown bulk action %q", input.Action))
	}

	result := &BulkResult{}
	for _, id := range input.IDs {
		if err := apply(ctx, id); err != nil {
			result.Err = multierr.Append(result.Err, fmt.Errorf("withdrawal %s: %w", id, err))
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "withdrawal_id", id.String())
				s.logg.Error(logCtx, "bulk withdrawal processing failed", err)
			}
			continue
		}
		result.Processed = append(result.Processed, id)
	}
	return result, nil
}

// mutate locks the request row, applies fn, and saves.
func (s *service) mutate(
	ctx context.Context,
	id, actorID uuid.UUID,
	fn func(tx *gorm.DB, request *models.WithdrawalRequest) error,
) (*models.WithdrawalRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var result *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return err
		}
		if err := fn(tx, request); err != nil {
			return err
		}
		if err := repo.Save(ctx, request); err != nil {
			return err
		}
		result = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.WithdrawalRequest, actorID uuid.UUID) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWithdrawalRequest,
		AggregateID:   request.ID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: payloads.WithdrawalEvent{
			WithdrawalID: request.ID,
			SellerID:     request.SellerID,
			AmountIDR:    request.AmountIDR,
			Status:       request.Status,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit withdrawal event", err)
	}
}
