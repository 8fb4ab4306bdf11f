package invoices

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
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/payment"
)

var invoiceSchemas = []string{
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

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	refs []string
}

func (g *stubGateway) CreateTransaction(ctx context.Context, params payment.TransactionParams) (*payment.Session, error) {
	g.refs = append(g.refs, params.OrderRef)
	return &payment.Session{Token: "snap-" + params.OrderRef, RedirectURL: "https://pay.example/" + params.OrderRef}, nil
}

func (g *stubGateway) GetStatus(ctx context.Context, orderRef string) (*payment.TransactionStatus, error) {
	return &payment.TransactionStatus{OrderRef: orderRef, TransactionStatus: payment.StatusPending}, nil
}

type invoiceFixture struct {
	db      *gorm.DB
	svc     Service
	raw     *service
	buys    purchases.Service
	gateway *stubGateway
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, schema := range invoiceSchemas {
		require.NoError(t, db.Exec(schema).Error)
	}

	runner := gormTxRunner{db: db}
	invoiceRepo := NewRepository(db)

	productRepo := products.NewRepository(db)
	productSvc, err := products.NewService(productRepo)
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(runner, ledger.NewRepository(db))
	require.NoError(t, err)

	purchaseSvc, err := purchases.NewService(
		runner,
		purchases.NewRepository(db),
		productRepo,
		productSvc,
		offers.NewRepository(db),
		stores.NewRepository(db),
		ledgerSvc,
		invoiceRepo,
		nil,
		nil,
	)
	require.NoError(t, err)

	gateway := &stubGateway{}
	svc, err := NewService(runner, invoiceRepo, purchaseSvc, gateway, nil, nil, config.PaymentConfig{
		InvoiceTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	return &invoiceFixture{
		db:      db,
		svc:     svc,
		raw:     svc.(*service),
		buys:    purchaseSvc,
		gateway: gateway,
	}
}

func (f *invoiceFixture) setNow(now time.Time) {
	f.raw.now = func() time.Time { return now }
}

// seedAwaitingPurchase creates a store, a product, and a purchase in
// awaiting_payment with one line of qty 1.
func (f *invoiceFixture) seedAwaitingPurchase(t *testing.T, price int64, stock int) (*models.Purchase, *models.Product) {
	t.Helper()

	store := &models.Store{ID: uuid.New(), OwnerID: uuid.New(), Name: "toko", OriginPostalCode: "40115"}
	require.NoError(t, f.db.Create(store).Error)
	product := &models.Product{
		ID: uuid.New(), StoreID: store.ID, Name: "kamera bekas",
		PriceIDR: price, Stock: stock, WeightGrams: 800, Status: enums.ProductStatusActive,
	}
	require.NoError(t, f.db.Create(product).Error)

	purchase, err := f.buys.Create(context.Background(), nil, purchases.CreateInput{
		BuyerID:   uuid.New(),
		StoreID:   store.ID,
		AddressID: uuid.New(),
		ActorID:   uuid.New(),
		Lines:     []purchases.LineInput{{ProductID: product.ID, Qty: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Purchase{}).
		Where("id = ?", purchase.ID).
		Update("status", enums.PurchaseStatusAwaitingPayment).Error)
	purchase.Status = enums.PurchaseStatusAwaitingPayment
	return purchase, product
}

func (f *invoiceFixture) createInvoice(t *testing.T, purchase *models.Purchase, shipping, adminFee int64, groupID *uuid.UUID) *models.Invoice {
	t.Helper()
	invoice, err := f.svc.CreateForPurchase(context.Background(), nil, CreateInput{
		Purchase:    purchase,
		ShippingIDR: shipping,
		AdminFeeIDR: adminFee,
		GroupID:     groupID,
	})
	require.NoError(t, err)
	return invoice
}

func settledCallback(invoiceID uuid.UUID) payment.CallbackPayload {
	return payment.CallbackPayload{
		OrderRef:          payment.NewOrderRef(invoiceID, time.Now()),
		StatusCode:        "200",
		GrossAmount:       "100000.00",
		TransactionStatus: payment.StatusSettlement,
	}
}

func TestCreateForPurchaseComputesTotal(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, _ := f.seedAwaitingPurchase(t, 120000, 2)

	invoice := f.createInvoice(t, purchase, 18000, 5000, nil)
	require.Equal(t, int64(120000), invoice.ItemTotalIDR)
	require.Equal(t, int64(143000), invoice.TotalIDR)
	require.Equal(t, enums.InvoiceStatusWaiting, invoice.Status)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), invoice.DueAt, time.Minute)
}

func TestConfirmPaymentSettlementIsIdempotent(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, product := f.seedAwaitingPurchase(t, 100000, 3)
	invoice := f.createInvoice(t, purchase, 15000, 5000, nil)
	ctx := context.Background()

	payload := settledCallback(invoice.ID)
	settled, err := f.svc.ConfirmPayment(ctx, payload, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)

	// Replay the same callback.
	_, err = f.svc.ConfirmPayment(ctx, payload, uuid.Nil)
	require.NoError(t, err)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusPaid, reloadedPurchase.Status)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 2, reloadedProduct.Stock)
}

func TestConfirmPaymentSettlesWholeGroup(t *testing.T) {
	f := newInvoiceFixture(t)
	purchaseA, _ := f.seedAwaitingPurchase(t, 50000, 2)
	purchaseB, _ := f.seedAwaitingPurchase(t, 70000, 2)
	groupID := uuid.New()

	invoiceA := f.createInvoice(t, purchaseA, 10000, 5000, &groupID)
	invoiceB := f.createInvoice(t, purchaseB, 12000, 0, &groupID)
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, settledCallback(invoiceA.ID), uuid.Nil)
	require.NoError(t, err)

	for _, check := range []struct {
		invoiceID  uuid.UUID
		purchaseID uuid.UUID
	}{
		{invoiceA.ID, purchaseA.ID},
		{invoiceB.ID, purchaseB.ID},
	} {
		var invoice models.Invoice
		require.NoError(t, f.db.First(&invoice, "id = ?", check.invoiceID).Error)
		require.Equal(t, enums.InvoiceStatusPaid, invoice.Status)

		var purchase models.Purchase
		require.NoError(t, f.db.First(&purchase, "id = ?", check.purchaseID).Error)
		require.Equal(t, enums.PurchaseStatusPaid, purchase.Status)
	}
}

func TestConfirmPaymentDenyCancelsPurchase(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, product := f.seedAwaitingPurchase(t, 90000, 2)
	invoice := f.createInvoice(t, purchase, 10000, 5000, nil)
	ctx := context.Background()

	payload := payment.CallbackPayload{
		OrderRef:          payment.NewOrderRef(invoice.ID, time.Now()),
		TransactionStatus: payment.StatusDeny,
	}
	failed, err := f.svc.ConfirmPayment(ctx, payload, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusFailed, failed.Status)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusCancelled, reloadedPurchase.Status)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 2, reloadedProduct.Stock)
}

func TestConfirmPaymentPendingChangesNothing(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, _ := f.seedAwaitingPurchase(t, 80000, 1)
	invoice := f.createInvoice(t, purchase, 9000, 5000, nil)

	payload := payment.CallbackPayload{
		OrderRef:          payment.NewOrderRef(invoice.ID, time.Now()),
		TransactionStatus: payment.StatusPending,
	}
	got, err := f.svc.ConfirmPayment(context.Background(), payload, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusWaiting, got.Status)
}

// Reading an invoice past its deadline flips it to expired and cancels the
// owning purchase.
func TestGetValidLazyExpiry(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, _ := f.seedAwaitingPurchase(t, 60000, 1)
	invoice := f.createInvoice(t, purchase, 8000, 5000, nil)

	f.setNow(invoice.DueAt.Add(time.Second))

	got, err := f.svc.GetValid(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusExpired, got.Status)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusCancelled, reloadedPurchase.Status)
}

// A settlement callback arriving after local expiry is authoritative: the
// invoice becomes paid and the cancelled purchase re-opens.
func TestLateSettlementReopensExpiredPurchase(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, product := f.seedAwaitingPurchase(t, 60000, 1)
	invoice := f.createInvoice(t, purchase, 8000, 5000, nil)

	f.setNow(invoice.DueAt.Add(time.Second))
	_, err := f.svc.GetValid(context.Background(), invoice.ID)
	require.NoError(t, err)

	settled, err := f.svc.ConfirmPayment(context.Background(), settledCallback(invoice.ID), uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusPaid, settled.Status)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusPaid, reloadedPurchase.Status)

	var reloadedProduct models.Product
	require.NoError(t, f.db.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 0, reloadedProduct.Stock)
}

func TestExpireDueSweep(t *testing.T) {
	f := newInvoiceFixture(t)
	purchaseA, _ := f.seedAwaitingPurchase(t, 30000, 1)
	purchaseB, _ := f.seedAwaitingPurchase(t, 40000, 1)
	invoiceA := f.createInvoice(t, purchaseA, 5000, 5000, nil)
	f.createInvoice(t, purchaseB, 5000, 0, nil)

	f.setNow(invoiceA.DueAt.Add(time.Minute))

	expired, err := f.svc.ExpireDue(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, expired)
}

func TestManualVerifyMarksPaid(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, _ := f.seedAwaitingPurchase(t, 55000, 1)
	invoice := f.createInvoice(t, purchase, 7000, 5000, nil)
	admin := uuid.New()

	verified, err := f.svc.ManualVerify(context.Background(), invoice.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusPaid, verified.Status)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusPaid, reloadedPurchase.Status)
}

func TestOverrideLeavingPaidRewindsPurchase(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, product := f.seedAwaitingPurchase(t, 65000, 2)
	invoice := f.createInvoice(t, purchase, 7000, 5000, nil)
	admin := uuid.New()
	ctx := context.Background()

	_, err := f.svc.ManualVerify(ctx, invoice.ID, admin)
	require.NoError(t, err)

	var settled models.Product
	require.NoError(t, f.db.First(&settled, "id = ?", product.ID).Error)
	require.Equal(t, 1, settled.Stock)

	got, err := f.svc.Override(ctx, invoice.ID, enums.InvoiceStatusWaiting, admin)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceStatusWaiting, got.Status)
	require.Nil(t, got.PaidAt)

	var reloadedPurchase models.Purchase
	require.NoError(t, f.db.First(&reloadedPurchase, "id = ?", purchase.ID).Error)
	require.Equal(t, enums.PurchaseStatusAwaitingPayment, reloadedPurchase.Status)

	// The settlement's stock decrement is undone with the rewind.
	var restored models.Product
	require.NoError(t, f.db.First(&restored, "id = ?", product.ID).Error)
	require.Equal(t, 2, restored.Stock)

	// Paying again decrements from the restored level exactly once.
	_, err = f.svc.ManualVerify(ctx, invoice.ID, admin)
	require.NoError(t, err)
	require.NoError(t, f.db.First(&restored, "id = ?", product.ID).Error)
	require.Equal(t, 1, restored.Stock)
}

func TestCreatePaymentSessionMintsFreshRefPerAttempt(t *testing.T) {
	f := newInvoiceFixture(t)
	purchase, _ := f.seedAwaitingPurchase(t, 85000, 1)
	invoice := f.createInvoice(t, purchase, 9000, 5000, nil)
	ctx := context.Background()

	base := time.Now()
	f.setNow(base)
	_, err := f.svc.CreatePaymentSession(ctx, invoice.ID, payment.Customer{FirstName: "Sari", Email: "sari@example.com"})
	require.NoError(t, err)

	f.setNow(base.Add(2 * time.Second))
	_, err = f.svc.CreatePaymentSession(ctx, invoice.ID, payment.Customer{FirstName: "Sari", Email: "sari@example.com"})
	require.NoError(t, err)

	require.Len(t, f.gateway.refs, 2)
	require.NotEqual(t, f.gateway.refs[0], f.gateway.refs[1])

	var reloaded models.Invoice
	require.NoError(t, f.db.First(&reloaded, "id = ?", invoice.ID).Error)
	require.NotNil(t, reloaded.GatewayRef)
	require.Equal(t, f.gateway.refs[1], *reloaded.GatewayRef)

	parsed, err := payment.ParseOrderRef(*reloaded.GatewayRef)
	require.NoError(t, err)
	require.Equal(t, invoice.ID, parsed)
}

func TestGetValidUnknownInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	_, err := f.svc.GetValid(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
