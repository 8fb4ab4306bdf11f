package purchases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/internal/offers"
	"github.com/lokabekas/lokabekas-backend/internal/products"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

var purchaseSchemas = []string{
	`CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  address_id TEXT NOT NULL,
  checkout_group_id TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  note TEXT,
  tracking_number TEXT,
  courier TEXT,
  shipment_proof TEXT,
  archived_at DATETIME,
  created_by TEXT NOT NULL,
  updated_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_idr INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  subtotal_idr INTEGER NOT NULL,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  offer_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL UNIQUE,
  group_id TEXT,
  item_total_idr INTEGER NOT NULL,
  shipping_idr INTEGER NOT NULL DEFAULT 0,
  admin_fee_idr INTEGER NOT NULL DEFAULT 0,
  total_idr INTEGER NOT NULL,
  payment_method TEXT NOT NULL DEFAULT 'gateway',
  gateway_ref TEXT,
  gateway_token TEXT,
  status TEXT NOT NULL DEFAULT 'waiting',
  due_at DATETIME NOT NULL,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price_idr INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS stores (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  origin_postal_code TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS seller_balances (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL UNIQUE,
  available_idr INTEGER NOT NULL DEFAULT 0,
  held_idr INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS balance_entries (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_idr INTEGER NOT NULL,
  purchase_id TEXT,
  withdrawal_id TEXT,
  actor_id TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS chat_offers (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  offer_price_idr INTEGER NOT NULL,
  qty INTEGER NOT NULL DEFAULT 1,
  accepted_at DATETIME,
  consumed_at DATETIME,
  created_at DATETIME
);`,
}

func setupPurchasesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, schema := range purchaseSchemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingInvoiceFailer struct {
	failed []uuid.UUID
}

func (r *recordingInvoiceFailer) MarkFailedForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) error {
	r.failed = append(r.failed, purchaseID)
	return nil
}

type purchaseFixture struct {
	db        *gorm.DB
	svc       Service
	ledgerSvc ledger.Service
	invoices  *recordingInvoiceFailer
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()

	db := setupPurchasesTestDB(t)
	runner := gormTxRunner{db: db}

	productRepo := products.NewRepository(db)
	productSvc, err := products.NewService(productRepo)
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(runner, ledger.NewRepository(db))
	require.NoError(t, err)

	failer := &recordingInvoiceFailer{}
	svc, err := NewService(
		runner,
		NewRepository(db),
		productRepo,
		productSvc,
		offers.NewRepository(db),
		stores.NewRepository(db),
		ledgerSvc,
		failer,
		nil,
		nil,
	)
	require.NoError(t, err)
	return &purchaseFixture{db: db, svc: svc, ledgerSvc: ledgerSvc, invoices: failer}
}

func (f *purchaseFixture) seedStore(t *testing.T) (*models.Store, uuid.UUID) {
	t.Helper()
	owner := uuid.New()
	store := &models.Store{
		ID:               uuid.New(),
		OwnerID:          owner,
		Name:             "toko bekas",
		OriginPostalCode: "40115",
	}
	require.NoError(t, f.db.Create(store).Error)
	return store, owner
}

func (f *purchaseFixture) seedProduct(t *testing.T, storeID uuid.UUID, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		StoreID:     storeID,
		Name:        "sepatu bekas",
		PriceIDR:    price,
		Stock:       stock,
		WeightGrams: 500,
		Status:      enums.ProductStatusActive,
	}
	require.NoError(t, f.db.Create(product).Error)
	return product
}

func (f *purchaseFixture) createDraft(t *testing.T, storeID uuid.UUID, lines []LineInput) *models.Purchase {
	t.Helper()
	purchase, err := f.svc.Create(context.Background(), nil, CreateInput{
		BuyerID:   uuid.New(),
		StoreID:   storeID,
		AddressID: uuid.New(),
		ActorID:   uuid.New(),
		Lines:     lines,
	})
	require.NoError(t, err)
	return purchase
}

func (f *purchaseFixture) setStatus(t *testing.T, id uuid.UUID, status enums.PurchaseStatus) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Purchase{}).
		Where("id = ?", id).
		Update("status", status).Error)
}

func TestCreateDraftSnapshotsCatalogPrice(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 150000, 4)

	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 2}})

	require.Equal(t, enums.PurchaseStatusDraft, purchase.Status)
	require.Len(t, purchase.Lines, 1)
	require.Equal(t, int64(150000), purchase.Lines[0].UnitPriceIDR)
	require.Equal(t, int64(300000), purchase.Lines[0].SubtotalIDR)
	require.Contains(t, purchase.Code, "INV/")

	// Stock untouched until payment confirmation.
	var reloaded models.Product
	require.NoError(t, f.db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 4, reloaded.Stock)
}

func TestCreateDraftUsesOfferPrice(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 200000, 1)

	accepted := time.Now()
	offer := &models.ChatOffer{
		ID:            uuid.New(),
		ProductID:     product.ID,
		BuyerID:       uuid.New(),
		OfferPriceIDR: 125000,
		Qty:           1,
		AcceptedAt:    &accepted,
	}
	require.NoError(t, f.db.Create(offer).Error)

	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 1, OfferID: &offer.ID}})
	require.Equal(t, int64(125000), purchase.Lines[0].UnitPriceIDR)
	require.Equal(t, int64(125000), purchase.Lines[0].SubtotalIDR)

	var reloadedOffer models.ChatOffer
	require.NoError(t, f.db.First(&reloadedOffer, "id = ?", offer.ID).Error)
	require.NotNil(t, reloadedOffer.ConsumedAt)
}

func TestCreateDraftRejectsExcessiveQty(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 50000, 1)

	_, err := f.svc.Create(context.Background(), nil, CreateInput{
		BuyerID:   uuid.New(),
		StoreID:   store.ID,
		AddressID: uuid.New(),
		ActorID:   uuid.New(),
		Lines:     []LineInput{{ProductID: product.ID, Qty: 3}},
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	var count int64
	require.NoError(t, f.db.Model(&models.Purchase{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddOrderLineOnlyInDraft(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 80000, 5)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 1}})

	f.setStatus(t, purchase.ID, enums.PurchaseStatusAwaitingPayment)

	_, err := f.svc.AddOrderLine(context.Background(), nil, AddLineInput{
		PurchaseID: purchase.ID,
		ActorID:    uuid.New(),
		Line:       LineInput{ProductID: product.ID, Qty: 1},
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestMarkPaidDecrementsStockOnce(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 100000, 5)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 2}})
	f.setStatus(t, purchase.ID, enums.PurchaseStatusAwaitingPayment)
	ctx := context.Background()
	actor := uuid.New()

	paid, err := f.svc.MarkPaid(ctx, nil, purchase.ID, actor, false)
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusPaid, paid.Status)

	// Replay of the same settlement callback is a no-op.
	paid, err = f.svc.MarkPaid(ctx, nil, purchase.ID, actor, false)
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusPaid, paid.Status)

	var reloaded models.Product
	require.NoError(t, f.db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 3, reloaded.Stock)
}

func TestRevertPaidRestoresStockAndRevivesListing(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 100000, 2)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 2}})
	f.setStatus(t, purchase.ID, enums.PurchaseStatusAwaitingPayment)
	ctx := context.Background()
	actor := uuid.New()

	_, err := f.svc.MarkPaid(ctx, nil, purchase.ID, actor, false)
	require.NoError(t, err)

	var soldOut models.Product
	require.NoError(t, f.db.First(&soldOut, "id = ?", product.ID).Error)
	require.Zero(t, soldOut.Stock)
	require.Equal(t, enums.ProductStatusSoldOut, soldOut.Status)

	reverted, err := f.svc.RevertPaid(ctx, nil, purchase.ID, actor)
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusAwaitingPayment, reverted.Status)

	var restored models.Product
	require.NoError(t, f.db.First(&restored, "id = ?", product.ID).Error)
	require.Equal(t, 2, restored.Stock)
	require.Equal(t, enums.ProductStatusActive, restored.Status)

	// A later settlement decrements from the restored level, not twice.
	_, err = f.svc.MarkPaid(ctx, nil, purchase.ID, actor, false)
	require.NoError(t, err)
	require.NoError(t, f.db.First(&restored, "id = ?", product.ID).Error)
	require.Zero(t, restored.Stock)
}

func TestRevertPaidLeavesProgressedPurchaseAlone(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 100000, 5)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 1}})
	f.setStatus(t, purchase.ID, enums.PurchaseStatusProcessing)
	ctx := context.Background()

	result, err := f.svc.RevertPaid(ctx, nil, purchase.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusProcessing, result.Status)

	var reloaded models.Product
	require.NoError(t, f.db.First(&reloaded, "id = ?", product.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
}

func TestTransitionTableEnforced(t *testing.T) {
	f := newPurchaseFixture(t)
	store, _ := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 60000, 2)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 1}})
	ctx := context.Background()

	// Draft cannot be shipped.
	_, err := f.svc.SellerShip(ctx, nil, purchase.ID, uuid.New(), ShipmentInput{TrackingNumber: "JNE123", Courier: "jne"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	// Paid -> Processing -> Shipped -> Received -> Completed walks cleanly.
	f.setStatus(t, purchase.ID, enums.PurchaseStatusPaid)
	_, err = f.svc.SellerConfirm(ctx, nil, purchase.ID, uuid.New())
	require.NoError(t, err)
	_, err = f.svc.SellerShip(ctx, nil, purchase.ID, uuid.New(), ShipmentInput{TrackingNumber: "JNE123", Courier: "jne"})
	require.NoError(t, err)
	_, err = f.svc.BuyerConfirmReceipt(ctx, nil, purchase.ID, uuid.New())
	require.NoError(t, err)
	final, err := f.svc.Complete(ctx, nil, purchase.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusCompleted, final.Status)
}

// Completion credits each seller the sum of their line subtotals and
// nothing more: shipping and admin fees never reach seller balances.
func TestCompleteCreditsSellersGroupedBySeller(t *testing.T) {
	f := newPurchaseFixture(t)
	storeA, sellerA := f.seedStore(t)

	sellerB := uuid.New()
	storeB := &models.Store{ID: uuid.New(), OwnerID: sellerB, Name: "toko dua", OriginPostalCode: "10110"}
	require.NoError(t, f.db.Create(storeB).Error)

	ctx := context.Background()
	actor := uuid.New()

	// Seed a received purchase carrying lines from two different sellers
	// directly; settlement groups by store regardless of how the purchase
	// was assembled.
	purchase := &models.Purchase{
		ID:        uuid.New(),
		Code:      NewPurchaseCode(time.Now()),
		BuyerID:   uuid.New(),
		StoreID:   storeA.ID,
		AddressID: uuid.New(),
		Status:    enums.PurchaseStatusReceived,
		CreatedBy: actor,
		UpdatedBy: actor,
		Lines: []models.OrderLine{
			{ID: uuid.New(), ProductID: uuid.New(), StoreID: storeA.ID, ProductName: "jaket", UnitPriceIDR: 30000, Qty: 1, SubtotalIDR: 30000},
			{ID: uuid.New(), ProductID: uuid.New(), StoreID: storeB.ID, ProductName: "tas", UnitPriceIDR: 35000, Qty: 2, SubtotalIDR: 70000},
		},
	}
	require.NoError(t, f.db.Create(purchase).Error)

	_, err := f.svc.Complete(ctx, nil, purchase.ID, actor)
	require.NoError(t, err)

	balanceA, err := f.ledgerSvc.GetBalance(ctx, sellerA)
	require.NoError(t, err)
	require.Equal(t, int64(30000), balanceA.AvailableIDR)

	balanceB, err := f.ledgerSvc.GetBalance(ctx, sellerB)
	require.NoError(t, err)
	require.Equal(t, int64(70000), balanceB.AvailableIDR)
}

func TestCancelMarksInvoiceFailedAndSkipsLedger(t *testing.T) {
	f := newPurchaseFixture(t)
	store, seller := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 90000, 2)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 1}})
	f.setStatus(t, purchase.ID, enums.PurchaseStatusAwaitingPayment)
	ctx := context.Background()

	cancelled, err := f.svc.Cancel(ctx, nil, purchase.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusCancelled, cancelled.Status)
	require.Equal(t, []uuid.UUID{purchase.ID}, f.invoices.failed)

	balance, err := f.ledgerSvc.GetBalance(ctx, seller)
	require.NoError(t, err)
	require.Zero(t, balance.AvailableIDR)
	require.Zero(t, balance.HeldIDR)
}

func TestForceCompleteSettlesExactlyOnce(t *testing.T) {
	f := newPurchaseFixture(t)
	store, seller := f.seedStore(t)
	product := f.seedProduct(t, store.ID, 45000, 3)
	purchase := f.createDraft(t, store.ID, []LineInput{{ProductID: product.ID, Qty: 2}})
	f.setStatus(t, purchase.ID, enums.PurchaseStatusShipped)
	ctx := context.Background()
	actor := uuid.New()

	forced, err := f.svc.ForceComplete(ctx, nil, purchase.ID, actor)
	require.NoError(t, err)
	require.Equal(t, enums.PurchaseStatusCompleted, forced.Status)

	// Repeating the override must not credit a second time.
	_, err = f.svc.ForceComplete(ctx, nil, purchase.ID, actor)
	require.NoError(t, err)

	balance, err := f.ledgerSvc.GetBalance(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, int64(90000), balance.AvailableIDR)

	entries, err := f.ledgerSvc.ListEntries(ctx, seller, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
