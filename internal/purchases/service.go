package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/ledger"
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

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockKeeper interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error)
	RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error)
}

type offerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChatOffer, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
}

type storeOwnerResolver interface {
	OwnerID(ctx context.Context, storeID uuid.UUID) (uuid.UUID, error)
}

type invoiceFailer interface {
	MarkFailedForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the purchase lifecycle. Mutating operations accept an
// optional enclosing transaction; passing nil opens one.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Purchase, error)
	AddOrderLine(ctx context.Context, tx *gorm.DB, input AddLineInput) (*models.OrderLine, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetByCode(ctx context.Context, code string) (*models.Purchase, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Purchase, error)
	// Submit moves a draft into awaiting_payment; checkout calls this once
	// the invoice for the purchase exists.
	Submit(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	SellerConfirm(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	SellerShip(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID, input ShipmentInput) (*models.Purchase, error)
	BuyerConfirmReceipt(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Complete(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	// ForceComplete bypasses the transition table; it backs the
	// complaint-rejection override and settles sellers the same way a
	// normal completion does.
	ForceComplete(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Cancel(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	// Override forces a status outside the transition table without any
	// settlement side effect. Return processing uses it: approval forces
	// cancelled, rejection forces completed with no ledger credit.
	Override(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.PurchaseStatus, actorID uuid.UUID) (*models.Purchase, error)
	// MarkPaid is invoked by payment reconciliation inside its settlement
	// transaction. Idempotent: a purchase already paid (or further along)
	// is left untouched. force allows a late authoritative settlement to
	// re-open a locally cancelled purchase.
	MarkPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID, force bool) (*models.Purchase, error)
	// RevertPaid is MarkPaid's inverse for admin payment rewinds: the
	// purchase returns to awaiting_payment and the stock MarkPaid
	// decremented comes back. A purchase that already moved past paid is
	// left untouched.
	RevertPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
	Archive(ctx context.Context, id, actorID uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// CreateInput captures a new draft purchase and its initial lines.
type CreateInput struct {
	BuyerID         uuid.UUID
	StoreID         uuid.UUID
	AddressID       uuid.UUID
	CheckoutGroupID *uuid.UUID
	Note            *string
	ActorID         uuid.UUID
	Lines           []LineInput
}

// LineInput is one product+qty pair; OfferID switches the price snapshot
// to the negotiated offer price.
type LineInput struct {
	ProductID uuid.UUID
	Qty       int
	OfferID   *uuid.UUID
}

// AddLineInput appends a line to an existing draft purchase.
type AddLineInput struct {
	PurchaseID uuid.UUID
	ActorID    uuid.UUID
	Line       LineInput
}

// ShipmentInput carries the seller's shipping details.
type ShipmentInput struct {
	TrackingNumber string
	Courier        string
	ProofURL       *string
}

type service struct {
	tx        txRunner
	repo      Repository
	products  productLoader
	stock     stockKeeper
	offers    offerLoader
	stores    storeOwnerResolver
	ledgerSvc ledger.Service
	invoices  invoiceFailer
	outbox    outboxPublisher
	logg      *logger.Logger
}

// NewService builds the purchase service.
func NewService(
	tx txRunner,
	repo Repository,
	products productLoader,
	stock stockKeeper,
	offers offerLoader,
	stores storeOwnerResolver,
	ledgerSvc ledger.Service,
	invoices invoiceFailer,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product loader required")
	}
	if stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock keeper required")
	}
	if stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store resolver required")
	}
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		products:  products,
		stock:     stock,
		offers:    offers,
		stores:    stores,
		ledgerSvc: ledgerSvc,
		invoices:  invoices,
		outbox:    publisher,
		logg:      logg,
	}, nil
}

// NewPurchaseCode builds the human-readable order code.
func NewPurchaseCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV/%s/%s", now.Format("20060102"), suffix)
}

func (s *service) run(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.tx.WithTx(ctx, fn)
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Purchase, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if input.ActorID == uuid.Nil {
		input.ActorID = input.BuyerID
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase requires at least one line")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		purchase := &models.Purchase{
			ID:              uuid.New(),
			Code:            NewPurchaseCode(time.Now()),
			BuyerID:         input.BuyerID,
			StoreID:         input.StoreID,
			AddressID:       input.AddressID,
			CheckoutGroupID: input.CheckoutGroupID,
			Status:          enums.PurchaseStatusDraft,
			Note:            input.Note,
			CreatedBy:       input.ActorID,
			UpdatedBy:       input.ActorID,
		}
		for _, lineInput := range input.Lines {
			line, err := s.buildLine(ctx, tx, input.StoreID, lineInput)
			if err != nil {
				return err
			}
			purchase.Lines = append(purchase.Lines, *line)
		}
		if err := repo.Create(ctx, purchase); err != nil {
			return err
		}

		// Creation of a purchase with zero persisted lines must roll back
		// entirely.
		count, err := repo.CountLines(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeInternal, "purchase persisted without order lines")
		}

		for _, line := range purchase.Lines {
			if line.OfferID != nil && s.offers != nil {
				if err := s.offers.MarkConsumed(ctx, *line.OfferID); err != nil {
					return err
				}
			}
		}

		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) buildLine(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, input LineInput) (*models.OrderLine, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if product.StoreID != storeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product belongs to a different store")
	}
	if product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	// Pre-check only: stock is decremented at payment confirmation, not
	// here, so abandoned checkouts cannot strand inventory.
	if product.Stock < input.Qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("product %s has %d in stock, %d requested", product.ID, product.Stock, input.Qty))
	}

	unitPrice := product.PriceIDR
	if input.OfferID != nil {
		if s.offers == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "offer loader not configured")
		}
		offer, err := s.offers.FindByID(ctx, *input.OfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return nil, err
		}
		if offer.ProductID != product.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer references a different product")
		}
		if offer.AcceptedAt == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer has not been accepted")
		}
		if offer.ConsumedAt != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "offer already used on another purchase")
		}
		unitPrice = offer.OfferPriceIDR
	}

	return &models.OrderLine{
		ID:           uuid.New(),
		ProductID:    product.ID,
		StoreID:      product.StoreID,
		ProductName:  product.Name,
		UnitPriceIDR: unitPrice,
		Qty:          input.Qty,
		SubtotalIDR:  unitPrice * int64(input.Qty),
		WeightGrams:  product.WeightGrams * input.Qty,
		OfferID:      input.OfferID,
	}, nil
}

func (s *service) AddOrderLine(ctx context.Context, tx *gorm.DB, input AddLineInput) (*models.OrderLine, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}

	var result *models.OrderLine
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		purchase, err := repo.FindByIDForUpdate(ctx, input.PurchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}
		if purchase.Status != enums.PurchaseStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order lines can only be added to draft purchases")
		}

		line, err := s.buildLine(ctx, tx, purchase.StoreID, input.Line)
		if err != nil {
			return err
		}
		line.PurchaseID = purchase.ID
		if err := repo.CreateLine(ctx, line); err != nil {
			return err
		}
		if line.OfferID != nil && s.offers != nil {
			if err := s.offers.MarkConsumed(ctx, *line.OfferID); err != nil {
				return err
			}
		}
		result = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	purchase, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, err
	}
	return purchase, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Purchase, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase code required")
	}
	purchase, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, err
	}
	return purchase, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListByBuyer(ctx, buyerID)
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Purchase, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	return s.repo.ListByStore(ctx, storeID)
}

func (s *service) Submit(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusAwaitingPayment, nil, nil)
}

func (s *service) SellerConfirm(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusProcessing, nil, nil)
}

func (s *service) SellerShip(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID, input ShipmentInput) (*models.Purchase, error) {
	if input.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	if input.Courier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier required")
	}
	mutate := func(purchase *models.Purchase) error {
		purchase.TrackingNumber = &input.TrackingNumber
		purchase.Courier = &input.Courier
		purchase.ShipmentProof = input.ProofURL
		return nil
	}
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusShipped, mutate, nil)
}

func (s *service) BuyerConfirmReceipt(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusReceived, nil, nil)
}

func (s *service) Complete(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	after := func(tx *gorm.DB, purchase *models.Purchase) error {
		return s.settlePurchase(ctx, tx, purchase, actorID)
	}
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusCompleted, nil, after)
}

func (s *service) ForceComplete(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}
		if purchase.Status == enums.PurchaseStatusCompleted {
			result = purchase
			return nil
		}

		from := purchase.Status
		purchase.Status = enums.PurchaseStatusCompleted
		purchase.UpdatedBy = actorID
		if err := repo.Save(ctx, purchase); err != nil {
			return err
		}
		if err := s.settlePurchase(ctx, tx, purchase, actorID); err != nil {
			return err
		}
		s.emitStatusEvent(ctx, tx, purchase, from, actorID)
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Cancel(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	after := func(tx *gorm.DB, purchase *models.Purchase) error {
		if s.invoices == nil {
			return nil
		}
		return s.invoices.MarkFailedForPurchase(ctx, tx, purchase.ID)
	}
	return s.transition(ctx, tx, id, actorID, enums.PurchaseStatusCancelled, nil, after)
}

func (s *service) Override(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.PurchaseStatus, actorID uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid purchase status")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}
		if purchase.Status == status {
			result = purchase
			return nil
		}

		from := purchase.Status
		purchase.Status = status
		purchase.UpdatedBy = actorID
		if err := repo.Save(ctx, purchase); err != nil {
			return err
		}
		if status == enums.PurchaseStatusCancelled && s.invoices != nil {
			if err := s.invoices.MarkFailedForPurchase(ctx, tx, purchase.ID); err != nil {
				return err
			}
		}
		s.emitStatusEvent(ctx, tx, purchase, from, actorID)
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID, force bool) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}

		// Idempotency guard: a settlement replay must not decrement stock
		// twice or rewind a purchase that already moved on.
		if purchase.Status != enums.PurchaseStatusAwaitingPayment {
			if purchase.Status == enums.PurchaseStatusCancelled && force {
				// Late authoritative settlement re-opens the purchase.
			} else {
				result = purchase
				return nil
			}
		}

		from := purchase.Status
		purchase.Status = enums.PurchaseStatusPaid
		purchase.UpdatedBy = actorID
		if err := repo.Save(ctx, purchase); err != nil {
			return err
		}
		for _, line := range purchase.Lines {
			if _, err := s.stock.DecrementStock(ctx, tx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}
		s.emitStatusEvent(ctx, tx, purchase, from, actorID)
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RevertPaid(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}

		// Only the exact state MarkPaid left behind gets rewound; a
		// purchase the seller already picked up keeps its stock.
		if purchase.Status != enums.PurchaseStatusPaid {
			result = purchase
			return nil
		}

		for _, line := range purchase.Lines {
			if _, err := s.stock.RestoreStock(ctx, tx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}

		from := purchase.Status
		purchase.Status = enums.PurchaseStatusAwaitingPayment
		purchase.UpdatedBy = actorID
		if err := repo.Save(ctx, purchase); err != nil {
			return err
		}
		s.emitStatusEvent(ctx, tx, purchase, from, actorID)
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Archive(ctx context.Context, id, actorID uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	purchase, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	purchase.ArchivedAt = &now
	purchase.UpdatedBy = actorID
	return s.repo.Save(ctx, purchase)
}

func (s *service) HardDelete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	return s.repo.HardDelete(ctx, id)
}

func (s *service) transition(
	ctx context.Context,
	tx *gorm.DB,
	id, actorID uuid.UUID,
	next enums.PurchaseStatus,
	mutate func(*models.Purchase) error,
	after func(*gorm.DB, *models.Purchase) error,
) (*models.Purchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var result *models.Purchase
	err := s.run(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return err
		}
		if !enums.CanTransition(purchase.Status, next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move purchase from %s to %s", purchase.Status, next))
		}

		from := purchase.Status
		purchase.Status = next
		purchase.UpdatedBy = actorID
		if mutate != nil {
			if err := mutate(purchase); err != nil {
				return err
			}
		}
		if err := repo.Save(ctx, purchase); err != nil {
			return err
		}
		if after != nil {
			if err := after(tx, purchase); err != nil {
				return err
			}
		}
		s.emitStatusEvent(ctx, tx, purchase, from, actorID)
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, from enums.PurchaseStatus, actorID uuid.UUID) {
	if s.outbox == nil {
		return
	}
	eventType, ok := statusEventTypes[purchase.Status]
	if !ok {
		return
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: payloads.PurchaseStatusEvent{
			PurchaseID: purchase.ID,
			BuyerID:    purchase.BuyerID,
			StoreID:    purchase.StoreID,
			From:       from,
			To:         purchase.Status,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit purchase status event", err)
	}
}

var statusEventTypes = map[enums.PurchaseStatus]enums.OutboxEventType{
	enums.PurchaseStatusPaid:      enums.EventPurchasePaid,
	enums.PurchaseStatusShipped:   enums.EventPurchaseShipped,
	enums.PurchaseStatusCompleted: enums.EventPurchaseCompleted,
	enums.PurchaseStatusCancelled: enums.EventPurchaseCancelled,
}
