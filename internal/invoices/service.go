package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox/payloads"
	"github.com/lokabekas/lokabekas-backend/pkg/payment"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type purchaseCascader interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID, force bool) (*models.Purchase, error)
	RevertPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Cancel(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
}

type gatewayClient interface {
	CreateTransaction(ctx context.Context, params payment.TransactionParams) (*payment.Session, error)
	GetStatus(ctx context.Context, orderRef string) (*payment.TransactionStatus, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns invoice lifecycle and payment reconciliation.
type Service interface {
	CreateForPurchase(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Invoice, error)
	// CreatePaymentSession opens a gateway transaction for a waiting
	// invoice. Each call mints a fresh order ref so gateway-side
	// idempotency never rejects a retry.
	CreatePaymentSession(ctx context.Context, invoiceID uuid.UUID, customer payment.Customer) (*payment.Session, error)
	// GetValid reads an invoice, lazily expiring it (and cancelling its
	// purchase) when the deadline has passed.
	GetValid(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error)
	// ConfirmPayment applies a verified gateway callback. Idempotent for
	// settlement replays; a late authoritative settlement re-opens a
	// locally expired invoice.
	ConfirmPayment(ctx context.Context, payload payment.CallbackPayload, actorID uuid.UUID) (*models.Invoice, error)
	// ManualVerify lets an admin mark an invoice paid without a callback.
	ManualVerify(ctx context.Context, invoiceID, actorID uuid.UUID) (*models.Invoice, error)
	// Override forces an invoice status, applying the cascades implied by
	// the old->new pair.
	Override(ctx context.Context, invoiceID uuid.UUID, next enums.InvoiceStatus, actorID uuid.UUID) (*models.Invoice, error)
	// ExpireDue sweeps waiting invoices past their deadline. Complements
	// the lazy expiry on read.
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// CreateInput carries one invoice creation during checkout.
type CreateInput struct {
	Purchase    *models.Purchase
	ShippingIDR int64
	AdminFeeIDR int64
	GroupID     *uuid.UUID
}

// ComputeTotal is the single place the grand total is derived.
func ComputeTotal(itemTotal, shipping, adminFee int64) int64 {
	return itemTotal + shipping + adminFee
}

type service struct {
	tx        txRunner
	repo      Repository
	purchases purchaseCascader
	gateway   gatewayClient
	outbox    outboxPublisher
	logg      *logger.Logger
	cfg       config.PaymentConfig
	now       func() time.Time
}

// NewService builds the invoice service.
func NewService(
	tx txRunner,
	repo Repository,
	purchases purchaseCascader,
	gateway gatewayClient,
	publisher outboxPublisher,
	logg *logger.Logger,
	cfg config.PaymentConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository required")
	}
	if purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase cascader required")
	}
	if cfg.InvoiceTTL <= 0 {
		cfg.InvoiceTTL = 24 * time.Hour
	}
	return &service{
		tx:        tx,
		repo:      repo,
		purchases: purchases,
		gateway:   gateway,
		outbox:    publisher,
		logg:      logg,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) CreateForPurchase(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Invoice, error) {
	if input.Purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase required")
	}
	if len(input.Purchase.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase has no order lines")
	}
	if input.ShippingIDR < 0 || input.AdminFeeIDR < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees cannot be negative")
	}

	itemTotal := input.Purchase.ItemTotalIDR()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		PurchaseID:    input.Purchase.ID,
		GroupID:       input.GroupID,
		ItemTotalIDR:  itemTotal,
		ShippingIDR:   input.ShippingIDR,
		AdminFeeIDR:   input.AdminFeeIDR,
		TotalIDR:      ComputeTotal(itemTotal, input.ShippingIDR, input.AdminFeeIDR),
		PaymentMethod: enums.PaymentMethodGateway,
		Status:        enums.InvoiceStatusWaiting,
		DueAt:         s.now().Add(s.cfg.InvoiceTTL),
	}
	if err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) CreatePaymentSession(ctx context.Context, invoiceID uuid.UUID, customer payment.Customer) (*payment.Session, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway not configured")
	}
	invoice, err := s.GetValid(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != enums.InvoiceStatusWaiting {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice is %s, payment session requires waiting", invoice.Status))
	}

	purchase, err := s.purchases.Get(ctx, invoice.PurchaseID)
	if err != nil {
		return nil, err
	}
	items := make([]payment.TransactionItem, 0, len(purchase.Lines)+2)
	for _, line := range purchase.Lines {
		items = append(items, payment.TransactionItem{
			ID:       line.ProductID.String(),
			Name:     line.ProductName,
			Price:    line.UnitPriceIDR,
			Quantity: line.Qty,
		})
	}
	if invoice.ShippingIDR > 0 {
		items = append(items, payment.TransactionItem{ID: "shipping", Name: "Ongkos kirim", Price: invoice.ShippingIDR, Quantity: 1})
	}
	if invoice.AdminFeeIDR > 0 {
		items = append(items, payment.TransactionItem{ID: "admin-fee", Name: "Biaya layanan", Price: invoice.AdminFeeIDR, Quantity: 1})
	}

	// Gateway call happens before the local write so a gateway failure
	// leaves no partial state behind.
	orderRef := payment.NewOrderRef(invoice.ID, s.now())
	session, err := s.gateway.CreateTransaction(ctx, payment.TransactionParams{
		OrderRef:    orderRef,
		GrossAmount: invoice.TotalIDR,
		Items:       items,
		Customer:    customer,
	})
	if err != nil {
		return nil, err
	}

	invoice.GatewayRef = &orderRef
	invoice.GatewayToken = &session.Token
	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) GetValid(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, err
	}
	if !invoice.IsExpired(s.now()) {
		return invoice, nil
	}
	return s.expire(ctx, invoice.ID)
}

func (s *service) GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	invoice, err := s.repo.FindByPurchaseID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, err
	}
	if !invoice.IsExpired(s.now()) {
		return invoice, nil
	}
	return s.expire(ctx, invoice.ID)
}

// expire flips one waiting invoice to expired and cancels its purchase.
func (s *service) expire(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var result *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Re-check under lock: a settlement may have landed meanwhile.
		if !invoice.IsExpired(s.now()) {
			result = invoice
			return nil
		}

		invoice.Status = enums.InvoiceStatusExpired
		if err := repo.Save(ctx, invoice); err != nil {
			return err
		}
		if _, err := s.purchases.Cancel(ctx, tx, invoice.PurchaseID, models.SystemActorID); err != nil {
			// The purchase may already sit in a state with no cancel edge;
			// the invoice expiry itself still stands.
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				return err
			}
		}
		s.emit(ctx, tx, enums.EventInvoiceExpired, invoice, payloads.InvoiceExpiredEvent{
			InvoiceID:  invoice.ID,
			PurchaseID: invoice.PurchaseID,
			DueAt:      invoice.DueAt,
		}, nil)
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ConfirmPayment(ctx context.Context, payload payment.CallbackPayload, actorID uuid.UUID) (*models.Invoice, error) {
	invoiceID, err := payment.ParseOrderRef(payload.OrderRef)
	if err != nil {
		return nil, err
	}
	if actorID == uuid.Nil {
		actorID = models.SystemActorID
	}

	switch {
	case payload.IsSettled():
		return s.settle(ctx, invoiceID, actorID)
	case payload.IsFailure():
		return s.fail(ctx, invoiceID, payload.TransactionStatus, actorID)
	default:
		// Pending: no terminal change.
		return s.repoFind(ctx, invoiceID)
	}
}

func (s *service) ManualVerify(ctx context.Context, invoiceID, actorID uuid.UUID) (*models.Invoice, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	return s.settle(ctx, invoiceID, actorID)
}

// settle marks the invoice and its whole checkout group paid. A replayed
// settlement finds everything already paid and changes nothing.
func (s *service) settle(ctx context.Context, invoiceID, actorID uuid.UUID) (*models.Invoice, error) {
	var result *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return err
		}
		if invoice.Status == enums.InvoiceStatusPaid {
			result = invoice
			return nil
		}

		if err := s.markPaidTx(ctx, tx, invoice, actorID); err != nil {
			return err
		}
		// One gateway payment settles every sibling invoice in a
		// multi-store checkout group.
		if invoice.GroupID != nil {
			siblings, err := repo.ListByGroup(ctx, *invoice.GroupID)
			if err != nil {
				return err
			}
			for i := range siblings {
				sibling := &siblings[i]
				if sibling.ID == invoice.ID || sibling.Status == enums.InvoiceStatusPaid {
					continue
				}
				if err := s.markPaidTx(ctx, tx, sibling, actorID); err != nil {
					return err
				}
			}
		}
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) markPaidTx(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, actorID uuid.UUID) error {
	now := s.now()
	invoice.Status = enums.InvoiceStatusPaid
	invoice.PaidAt = &now
	if err := s.repo.WithTx(tx).Save(ctx, invoice); err != nil {
		return err
	}
	// force=true: a late authoritative settlement re-opens a purchase the
	// local expiry already cancelled.
	if _, err := s.purchases.MarkPaid(ctx, tx, invoice.PurchaseID, actorID, true); err != nil {
		return err
	}
	s.emit(ctx, tx, enums.EventPaymentSettled, invoice, payloads.PaymentSettledEvent{
		InvoiceID:  invoice.ID,
		PurchaseID: invoice.PurchaseID,
		GroupID:    invoice.GroupID,
		TotalIDR:   invoice.TotalIDR,
		PaidAt:     now,
	}, &actorID)
	return nil
}

func (s *service) fail(ctx context.Context, invoiceID uuid.UUID, gatewayStatus string, actorID uuid.UUID) (*models.Invoice, error) {
	var result *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return err
		}
		// A settled invoice is never demoted by a late failure callback.
		if invoice.Status == enums.InvoiceStatusPaid {
			result = invoice
			return nil
		}
		if invoice.Status != enums.InvoiceStatusWaiting {
			result = invoice
			return nil
		}

		if gatewayStatus == payment.StatusExpire {
			invoice.Status = enums.InvoiceStatusExpired
		} else {
			invoice.Status = enums.InvoiceStatusFailed
		}
		if err := repo.Save(ctx, invoice); err != nil {
			return err
		}
		if _, err := s.purchases.Cancel(ctx, tx, invoice.PurchaseID, actorID); err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				return err
			}
		}
		s.emit(ctx, tx, enums.EventPaymentFailed, invoice, payloads.PaymentFailedEvent{
			InvoiceID:     invoice.ID,
			PurchaseID:    invoice.PurchaseID,
			InvoiceStatus: invoice.Status,
			Reason:        gatewayStatus,
		}, &actorID)
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Override(ctx context.Context, invoiceID uuid.UUID, next enums.InvoiceStatus, actorID uuid.UUID) (*models.Invoice, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var result *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return err
		}
		prev := invoice.Status
		if prev == next {
			result = invoice
			return nil
		}

		switch {
		case next == enums.InvoiceStatusPaid:
			return s.markPaidTx(ctx, tx, invoice, actorID)
		case prev == enums.InvoiceStatusPaid:
			// Leaving paid: the purchase rewinds (and its stock comes
			// back) only when it still sits in the exact state payment
			// put it in.
			invoice.Status = next
			invoice.PaidAt = nil
			if err := repo.Save(ctx, invoice); err != nil {
				return err
			}
			if _, err := s.purchases.RevertPaid(ctx, tx, invoice.PurchaseID, actorID); err != nil {
				return err
			}
		default:
			invoice.Status = next
			if err := repo.Save(ctx, invoice); err != nil {
				return err
			}
			if next == enums.InvoiceStatusFailed || next == enums.InvoiceStatusExpired {
				if _, err := s.purchases.Cancel(ctx, tx, invoice.PurchaseID, actorID); err != nil {
					if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
						return err
					}
				}
			}
		}
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return s.repoFind(ctx, invoiceID)
	}
	return result, nil
}

func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListExpiredWaiting(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, invoice := range due {
		if _, err := s.expire(ctx, invoice.ID); err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "invoice_id", invoice.ID.String())
				s.logg.Error(logCtx, "invoice expiry sweep failed", err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *service) repoFind(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, err
	}
	return invoice, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, invoice *models.Invoice, data any, actorID *uuid.UUID) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data:          data,
		Version:       1,
	}
	if actorID != nil && *actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: *actorID}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit invoice event", err)
	}
}
