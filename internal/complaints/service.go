package complaints

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

// purchaseResolver is the slice of the purchase service complaint handling
// needs: reads plus the two override paths.
type purchaseResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	ForceComplete(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Override(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.PurchaseStatus, actorID uuid.UUID) (*models.Purchase, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives buyer disputes and the goods-return escalation.
type Service interface {
	// File opens a complaint against a shipped or received purchase. One
	// complaint per purchase.
	File(ctx context.Context, input FileInput) (*models.Complaint, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Complaint, error)
	// Process is the admin decision on a waiting complaint: move it into
	// processing, or reject it. Rejection forces the purchase to completed
	// and settles the sellers exactly like a normal completion.
	Process(ctx context.Context, id uuid.UUID, decision enums.ComplaintStatus, actorID uuid.UUID, note *string) (*models.Complaint, error)
	// FileReturn escalates a processing complaint into a goods return.
	FileReturn(ctx context.Context, input ReturnInput) (*models.ReturnRequest, error)
	GetReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	// ProcessReturn is the admin decision on a return. Approval cancels the
	// purchase and completes the complaint; rejection forces the purchase
	// to completed without touching the ledger.
	ProcessReturn(ctx context.Context, id uuid.UUID, decision enums.ReturnStatus, actorID uuid.UUID, note *string) (*models.ReturnRequest, error)
}

// FileInput is a buyer's complaint.
type FileInput struct {
	PurchaseID  uuid.UUID
	BuyerID     uuid.UUID
	Reason      string
	EvidenceURL *string
}

// ReturnInput escalates a complaint into a goods return.
type ReturnInput struct {
	ComplaintID uuid.UUID
	BuyerID     uuid.UUID
	OrderLineID *uuid.UUID
	Reason      string
}

type service struct {
	tx        txRunner
	repo      Repository
	purchases purchaseResolver
	outbox    outboxPublisher
	logg      *logger.Logger
}

// NewService builds the complaint service.
func NewService(
	tx txRunner,
	repo Repository,
	purchases purchaseResolver,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "complaint transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "complaint repository required")
	}
	if purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase service required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		purchases: purchases,
		outbox:    publisher,
		logg:      logg,
	}, nil
}

func (s *service) File(ctx context.Context, input FileInput) (*models.Complaint, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint reason required")
	}

	purchase, err := s.purchases.Get(ctx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase belongs to another buyer")
	}
	if purchase.Status != enums.PurchaseStatusShipped && purchase.Status != enums.PurchaseStatusReceived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("complaints require a shipped or received purchase, got %s", purchase.Status))
	}

	var result *models.Complaint
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Existence check lives inside the transaction to narrow the
		// duplicate-filing window.
		exists, err := repo.ExistsForPurchase(ctx, input.PurchaseID)
		if err != nil {
			return err
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "purchase already has a complaint")
		}

		complaint := &models.Complaint{
			ID:          uuid.New(),
			PurchaseID:  input.PurchaseID,
			BuyerID:     input.BuyerID,
			Reason:      strings.TrimSpace(input.Reason),
			EvidenceURL: input.EvidenceURL,
			Status:      enums.ComplaintStatusWaiting,
		}
		if err := repo.Create(ctx, complaint); err != nil {
			return err
		}
		s.emitComplaint(ctx, tx, enums.EventComplaintFiled, complaint, input.BuyerID)
		result = complaint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint id required")
	}
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
		}
		return nil, err
	}
	return complaint, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Complaint, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListByBuyer(ctx, buyerID)
}

func (s *service) Process(ctx context.Context, id uuid.UUID, decision enums.ComplaintStatus, actorID uuid.UUID, note *string) (*models.Complaint, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if decision != enums.ComplaintStatusProcessing && decision != enums.ComplaintStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint decision must be processing or rejected")
	}

	var result *models.Complaint
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		complaint, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
			}
			return err
		}
		if complaint.Status != enums.ComplaintStatusWaiting {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot decide a %s complaint", complaint.Status))
		}

		complaint.Status = decision
		complaint.AdminNote = note
		if decision == enums.ComplaintStatusRejected {
			now := time.Now()
			complaint.ResolvedAt = &now
			// Rejection means the order stands: force completion, which
			// credits the sellers through the same settlement path a normal
			// completion uses.
			if _, err := s.purchases.ForceComplete(ctx, tx, complaint.PurchaseID, actorID); err != nil {
				return err
			}
		}
		if err := repo.Save(ctx, complaint); err != nil {
			return err
		}
		s.emitComplaint(ctx, tx, enums.EventComplaintResolved, complaint, actorID)
		result = complaint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) FileReturn(ctx context.Context, input ReturnInput) (*models.ReturnRequest, error) {
	if input.ComplaintID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	var result *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		complaint, err := repo.FindByIDForUpdate(ctx, input.ComplaintID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
			}
			return err
		}
		if complaint.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "complaint belongs to another buyer")
		}
		if complaint.Status != enums.ComplaintStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("returns require a processing complaint, got %s", complaint.Status))
		}

		if _, err := repo.FindReturnByComplaint(ctx, complaint.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "complaint already has a return request")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ret := &models.ReturnRequest{
			ID:          uuid.New(),
			ComplaintID: complaint.ID,
			PurchaseID:  complaint.PurchaseID,
			OrderLineID: input.OrderLineID,
			Reason:      strings.TrimSpace(input.Reason),
			Status:      enums.ReturnStatusAwaitingApproval,
		}
		if err := repo.CreateReturn(ctx, ret); err != nil {
			return err
		}
		result = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ret, err := s.repo.FindReturnByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, err
	}
	return ret, nil
}

func (s *service) ProcessReturn(ctx context.Context, id uuid.UUID, decision enums.ReturnStatus, actorID uuid.UUID, note *string) (*models.ReturnRequest, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var result *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.FindReturnByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return err
		}

		switch decision {
		case enums.ReturnStatusApproved:
			if ret.Status != enums.ReturnStatusAwaitingApproval {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot approve a %s return", ret.Status))
			}
			ret.Status = enums.ReturnStatusApproved
			ret.AdminNote = note
			if _, err := s.purchases.Override(ctx, tx, ret.PurchaseID, enums.PurchaseStatusCancelled, actorID); err != nil {
				return err
			}
			if err := s.completeComplaint(ctx, tx, ret.ComplaintID, actorID, note); err != nil {
				return err
			}

		case enums.ReturnStatusRejected:
			if ret.Status != enums.ReturnStatusAwaitingApproval {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot reject a %s return", ret.Status))
			}
			ret.Status = enums.ReturnStatusRejected
			ret.AdminNote = note
			// Rejection closes the order without crediting the ledger. This
			// deliberately differs from complaint rejection, which settles;
			// the two paths stay separate on purpose.
			if _, err := s.purchases.Override(ctx, tx, ret.PurchaseID, enums.PurchaseStatusCompleted, actorID); err != nil {
				return err
			}
			if err := s.completeComplaint(ctx, tx, ret.ComplaintID, actorID, note); err != nil {
				return err
			}

		case enums.ReturnStatusProcessing:
			if ret.Status != enums.ReturnStatusApproved {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot start processing a %s return", ret.Status))
			}
			ret.Status = enums.ReturnStatusProcessing

		case enums.ReturnStatusCompleted:
			if ret.Status != enums.ReturnStatusApproved && ret.Status != enums.ReturnStatusProcessing {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot complete a %s return", ret.Status))
			}
			now := time.Now()
			ret.Status = enums.ReturnStatusCompleted
			ret.CompletedAt = &now

		default:
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid return decision %q", decision))
		}

		if err := repo.SaveReturn(ctx, ret); err != nil {
			return err
		}
		s.emitReturn(ctx, tx, ret, actorID)
		result = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) completeComplaint(ctx context.Context, tx *gorm.DB, complaintID, actorID uuid.UUID, note *string) error {
	repo := s.repo.WithTx(tx)
	complaint, err := repo.FindByIDForUpdate(ctx, complaintID)
	if err != nil {
		return err
	}
	now := time.Now()
	complaint.Status = enums.ComplaintStatusCompleted
	complaint.ResolvedAt = &now
	if note != nil {
		complaint.AdminNote = note
	}
	if err := repo.Save(ctx, complaint); err != nil {
		return err
	}
	s.emitComplaint(ctx, tx, enums.EventComplaintResolved, complaint, actorID)
	return nil
}

func (s *service) emitComplaint(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, complaint *models.Complaint, actorID uuid.UUID) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateComplaint,
		AggregateID:   complaint.ID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: payloads.ComplaintEvent{
			ComplaintID: complaint.ID,
			PurchaseID:  complaint.PurchaseID,
			BuyerID:     complaint.BuyerID,
			Status:      complaint.Status,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit complaint event", err)
	}
}

func (s *service) emitReturn(ctx context.Context, tx *gorm.DB, ret *models.ReturnRequest, actorID uuid.UUID) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventReturnResolved,
		AggregateType: enums.AggregateComplaint,
		AggregateID:   ret.ComplaintID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: payloads.ReturnResolvedEvent{
			ReturnID:    ret.ID,
			ComplaintID: ret.ComplaintID,
			PurchaseID:  ret.PurchaseID,
			Status:      ret.Status,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit return event", err)
	}
}
