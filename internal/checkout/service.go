package checkout

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/invoices"
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox/payloads"
	"github.com/lokabekas/lokabekas-backend/pkg/shipping"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type addressLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

type storeLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type shippingQuoter interface {
	GetCost(ctx context.Context, query shipping.CostQuery) ([]shipping.Rate, error)
}

type purchaseCreator interface {
	Create(ctx context.Context, tx *gorm.DB, input purchases.CreateInput) (*models.Purchase, error)
	Submit(ctx context.Context, tx *gorm.DB, id, actorID uuid.UUID) (*models.Purchase, error)
}

type invoiceCreator interface {
	CreateForPurchase(ctx context.Context, tx *gorm.DB, input invoices.CreateInput) (*models.Invoice, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts a buyer's cart into per-store purchases plus invoices.
type Service interface {
	Execute(ctx context.Context, input ExecuteInput) (*models.CheckoutGroup, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error)
	ListGroups(ctx context.Context, buyerID uuid.UUID) ([]models.CheckoutGroup, error)
}

// ExecuteInput is one checkout action. Items may span multiple stores; the
// split into per-store purchases happens here.
type ExecuteInput struct {
	BuyerID   uuid.UUID
	AddressID uuid.UUID
	// Courier, when set, picks that courier's quote for every store;
	// otherwise each store ships with its cheapest rate.
	Courier string
	Note    *string
	Items   []ItemInput
}

// ItemInput mirrors one cart row.
type ItemInput struct {
	ProductID uuid.UUID
	Qty       int
	OfferID   *uuid.UUID
}

// storeCart is the per-store slice of a checkout, priced for shipping.
type storeCart struct {
	storeID     uuid.UUID
	items       []purchases.LineInput
	weightGrams int
	shippingIDR int64
}

type service struct {
	tx        txRunner
	repo      Repository
	products  productLoader
	addresses addressLoader
	stores    storeLoader
	shipping  shippingQuoter
	purchases purchaseCreator
	invoices  invoiceCreator
	outbox    outboxPublisher
	logg      *logger.Logger
	cfg       config.PaymentConfig
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo Repository,
	products productLoader,
	addresses addressLoader,
	stores storeLoader,
	quoter shippingQuoter,
	purchaseSvc purchaseCreator,
	invoiceSvc invoiceCreator,
	publisher outboxPublisher,
	logg *logger.Logger,
	cfg config.PaymentConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product loader required")
	}
	if addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address loader required")
	}
	if stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store loader required")
	}
	if quoter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipping quoter required")
	}
	if purchaseSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase service required")
	}
	if invoiceSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice service required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		products:  products,
		addresses: addresses,
		stores:    stores,
		shipping:  quoter,
		purchases: purchaseSvc,
		invoices:  invoiceSvc,
		outbox:    publisher,
		logg:      logg,
		cfg:       cfg,
	}, nil
}

func (s *service) Execute(ctx context.Context, input ExecuteInput) (*models.CheckoutGroup, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout contains no items")
	}

	address, err := s.addresses.FindByID(ctx, input.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, err
	}
	if address.UserID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}

	// Product reads, store reads and shipping quotes all happen before the
	// transaction opens; the gateway round-trips must not hold row locks.
	carts, err := s.splitByStore(ctx, input)
	if err != nil {
		return nil, err
	}
	for i := range carts {
		if err := s.priceShipping(ctx, &carts[i], address, input.Courier); err != nil {
			return nil, err
		}
	}

	var result *models.CheckoutGroup
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group := &models.CheckoutGroup{
			ID:          uuid.New(),
			BuyerID:     input.BuyerID,
			AdminFeeIDR: s.cfg.AdminFeeIDR,
		}
		if err := s.repo.WithTx(tx).Create(ctx, group); err != nil {
			return err
		}

		purchaseIDs := make([]uuid.UUID, 0, len(carts))
		var totalIDR int64
		for i, cart := range carts {
			purchase, err := s.purchases.Create(ctx, tx, purchases.CreateInput{
				BuyerID:         input.BuyerID,
				StoreID:         cart.storeID,
				AddressID:       input.AddressID,
				CheckoutGroupID: &group.ID,
				Note:            input.Note,
				ActorID:         input.BuyerID,
				Lines:           cart.items,
			})
			if err != nil {
				return err
			}

			// The platform admin fee lands on the first invoice only, so a
			// multi-store group is charged the fee exactly once.
			adminFee := int64(0)
			if i == 0 {
				adminFee = s.cfg.AdminFeeIDR
			}
			invoice, err := s.invoices.CreateForPurchase(ctx, tx, invoices.CreateInput{
				Purchase:    purchase,
				ShippingIDR: cart.shippingIDR,
				AdminFeeIDR: adminFee,
				GroupID:     &group.ID,
			})
			if err != nil {
				return err
			}

			if _, err := s.purchases.Submit(ctx, tx, purchase.ID, input.BuyerID); err != nil {
				return err
			}
			purchaseIDs = append(purchaseIDs, purchase.ID)
			totalIDR += invoice.TotalIDR
		}

		s.emitConverted(ctx, tx, group, purchaseIDs, totalIDR)

		loaded, err := s.repo.WithTx(tx).FindByID(ctx, group.ID)
		if err != nil {
			return err
		}
		result = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetGroup(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout group id required")
	}
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout group not found")
		}
		return nil, err
	}
	return group, nil
}

func (s *service) ListGroups(ctx context.Context, buyerID uuid.UUID) ([]models.CheckoutGroup, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListByBuyer(ctx, buyerID)
}

// splitByStore groups the cart rows by the owning store. Store order is
// sorted so the admin fee lands deterministically.
func (s *service) splitByStore(ctx context.Context, input ExecuteInput) ([]storeCart, error) {
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	byStore := map[uuid.UUID]*storeCart{}
	for _, item := range items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, err
		}

		cart, ok := byStore[product.StoreID]
		if !ok {
			cart = &storeCart{storeID: product.StoreID}
			byStore[product.StoreID] = cart
		}
		cart.items = append(cart.items, purchases.LineInput{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			OfferID:   item.OfferID,
		})
		cart.weightGrams += product.WeightGrams * item.Qty
	}

	carts := make([]storeCart, 0, len(byStore))
	for _, cart := range byStore {
		carts = append(carts, *cart)
	}
	sort.Slice(carts, func(i, j int) bool {
		return carts[i].storeID.String() < carts[j].storeID.String()
	})
	return carts, nil
}

// mergeItems collapses duplicate cart rows for the same product into one
// line, summing quantities, so the stock check sees the combined amount
// instead of passing each row in isolation.
func mergeItems(items []ItemInput) ([]ItemInput, error) {
	merged := make([]ItemInput, 0, len(items))
	index := map[uuid.UUID]int{}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		i, ok := index[item.ProductID]
		if !ok {
			index[item.ProductID] = len(merged)
			merged = append(merged, item)
			continue
		}
		if !sameOffer(merged[i].OfferID, item.OfferID) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate rows for one product reference different offers")
		}
		merged[i].Qty += item.Qty
	}
	return merged, nil
}

func sameOffer(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *service) priceShipping(ctx context.Context, cart *storeCart, address *models.Address, courier string) error {
	store, err := s.stores.FindByID(ctx, cart.storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return err
	}

	query := shipping.CostQuery{
		OriginPostalCode:      store.OriginPostalCode,
		DestinationPostalCode: address.PostalCode,
		WeightGrams:           cart.weightGrams,
	}
	if courier != "" {
		query.Couriers = []string{courier}
	}
	rates, err := s.shipping.GetCost(ctx, query)
	if err != nil {
		return err
	}
	rate, err := shipping.CheapestRate(rates)
	if err != nil {
		return err
	}
	cart.shippingIDR = rate.CostIDR
	return nil
}

func (s *service) emitConverted(ctx context.Context, tx *gorm.DB, group *models.CheckoutGroup, purchaseIDs []uuid.UUID, totalIDR int64) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventCheckoutConverted,
		AggregateType: enums.AggregateCheckoutGroup,
		AggregateID:   group.ID,
		Actor:         &outbox.ActorRef{UserID: group.BuyerID},
		Data: payloads.CheckoutConvertedEvent{
			CheckoutGroupID: group.ID,
			BuyerID:         group.BuyerID,
			PurchaseIDs:     append([]uuid.UUID{}, purchaseIDs...),
			TotalIDR:        totalIDR,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit checkout converted event", err)
	}
}
