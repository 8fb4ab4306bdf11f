package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	balances := `
CREATE TABLE IF NOT EXISTS seller_balances (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL UNIQUE,
  available_idr INTEGER NOT NULL DEFAULT 0,
  held_idr INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	entries := `
CREATE TABLE IF NOT EXISTS balance_entries (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_idr INTEGER NOT NULL,
  purchase_id TEXT,
  withdrawal_id TEXT,
  actor_id TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(balances).Error)
	require.NoError(t, db.Exec(entries).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newLedgerService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedBalance(t *testing.T, db *gorm.DB, sellerID uuid.UUID, available, held int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.SellerBalance{
		ID:           uuid.New(),
		SellerID:     sellerID,
		AvailableIDR: available,
		HeldIDR:      held,
	}).Error)
}

func TestHoldThenRelease(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	actor := uuid.New()
	seedBalance(t, db, seller, 100000, 0)

	balance, err := svc.Hold(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 60000, ActorID: actor})
	require.NoError(t, err)
	require.Equal(t, int64(40000), balance.AvailableIDR)
	require.Equal(t, int64(60000), balance.HeldIDR)

	balance, err = svc.ReleaseHeld(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 60000, ActorID: actor})
	require.NoError(t, err)
	require.Equal(t, int64(100000), balance.AvailableIDR)
	require.Equal(t, int64(0), balance.HeldIDR)

	entries, err := svc.ListEntries(ctx, seller, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestHoldInsufficientBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	seedBalance(t, db, seller, 50000, 0)

	_, err := svc.Hold(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 80000, ActorID: uuid.New()})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))

	balance, err := svc.GetBalance(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, int64(50000), balance.AvailableIDR)
	require.Equal(t, int64(0), balance.HeldIDR)

	entries, err := svc.ListEntries(ctx, seller, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWithdrawRemovesHeldPermanently(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	seedBalance(t, db, seller, 10000, 40000)

	balance, err := svc.Withdraw(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 40000, ActorID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, int64(10000), balance.AvailableIDR)
	require.Equal(t, int64(0), balance.HeldIDR)
}

func TestWithdrawBeyondHeldFails(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	seedBalance(t, db, seller, 0, 25000)

	_, err := svc.Withdraw(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 30000, ActorID: uuid.New()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreditCreatesBalanceRow(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	purchase := uuid.New()

	balance, err := svc.Credit(ctx, nil, MutationInput{
		SellerID:   seller,
		AmountIDR:  75000,
		ActorID:    uuid.New(),
		PurchaseID: &purchase,
	})
	require.NoError(t, err)
	require.Equal(t, int64(75000), balance.AvailableIDR)

	entries, err := svc.ListEntries(ctx, seller, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, enums.BalanceEntryTypeCredit, entries[0].Type)
	require.NotNil(t, entries[0].PurchaseID)
	require.Equal(t, purchase, *entries[0].PurchaseID)
}

func TestMutationRejectsNonPositiveAmount(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()

	_, err := svc.Credit(ctx, nil, MutationInput{SellerID: uuid.New(), AmountIDR: 0, ActorID: uuid.New()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Hold(ctx, nil, MutationInput{SellerID: uuid.New(), AmountIDR: -5, ActorID: uuid.New()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// Two concurrent holds each asking for 60% of the available balance:
// exactly one may win.
func TestConcurrentHoldsAllowExactlyOne(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newLedgerService(t, db)
	ctx := context.Background()
	seller := uuid.New()
	actor := uuid.New()
	seedBalance(t, db, seller, 100000, 0)

	hold := func() error {
		backoff := retry.WithMaxRetries(20, retry.NewFibonacci(5*time.Millisecond))
		return retry.Do(ctx, backoff, func(ctx context.Context) error {
			_, err := svc.Hold(ctx, nil, MutationInput{SellerID: seller, AmountIDR: 60000, ActorID: actor})
			if isSQLiteBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		})
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = hold()
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, insufficient)

	balance, err := svc.GetBalance(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, int64(40000), balance.AvailableIDR)
	require.Equal(t, int64(60000), balance.HeldIDR)
}
