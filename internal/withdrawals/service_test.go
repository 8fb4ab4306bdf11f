package withdrawals

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
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

var withdrawalSchemas = []string{
	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  amount_idr INTEGER NOT NULL,
  bank_name TEXT NOT NULL,
  bank_account TEXT NOT NULL,
  account_holder TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'waiting',
  admin_note TEXT,
  requested_at DATETIME NOT NULL,
  processed_at DATETIME,
  completed_at DATETIME,
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
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type withdrawalFixture struct {
	db        *gorm.DB
	svc       Service
	ledgerSvc ledger.Service
}

func newWithdrawalFixture(t *testing.T) *withdrawalFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, schema := range withdrawalSchemas {
		require.NoError(t, db.Exec(schema).Error)
	}

	runner := gormTxRunner{db: db}
	ledgerSvc, err := ledger.NewService(runner, ledger.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(runner, NewRepository(db), ledgerSvc, nil, nil, config.WithdrawalConfig{
		MinimumAmountIDR: 50000,
	})
	require.NoError(t, err)

	return &withdrawalFixture{db: db, svc: svc, ledgerSvc: ledgerSvc}
}

func (f *withdrawalFixture) seedBalance(t *testing.T, sellerID uuid.UUID, available int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.SellerBalance{
		ID:           uuid.New(),
		SellerID:     sellerID,
		AvailableIDR: available,
	}).Error)
}

func (f *withdrawalFixture) balance(t *testing.T, sellerID uuid.UUID) *models.SellerBalance {
	t.Helper()
	balance, err := f.ledgerSvc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	return balance
}

func validInput(sellerID uuid.UUID, amount int64) CreateInput {
	return CreateInput{
		SellerID:      sellerID,
		AmountIDR:     amount,
		BankName:      "BCA",
		BankAccount:   "1234567890",
		AccountHolder: "Sari Dewi",
	}
}

func TestCreateHoldsAmountAndRejectReleases(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	admin := uuid.New()
	f.seedBalance(t, seller, 100000)
	ctx := context.Background()

	request, err := f.svc.Create(ctx, validInput(seller, 40000))
	require.NoError(t, err)
	require.Equal(t, enums.WithdrawalStatusWaiting, request.Status)

	balance := f.balance(t, seller)
	require.Equal(t, int64(60000), balance.AvailableIDR)
	require.Equal(t, int64(40000), balance.HeldIDR)

	note := "rekening tidak valid"
	rejected, err := f.svc.Reject(ctx, request.ID, admin, &note)
	require.NoError(t, err)
	require.Equal(t, enums.WithdrawalStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ProcessedAt)

	balance = f.balance(t, seller)
	require.Equal(t, int64(100000), balance.AvailableIDR)
	require.Zero(t, balance.HeldIDR)
}

func TestCreateBelowMinimumFails(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	f.seedBalance(t, seller, 100000)

	_, err := f.svc.Create(context.Background(), validInput(seller, 49999))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreateInsufficientBalanceLeavesNoRequest(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	f.seedBalance(t, seller, 30000)

	_, err := f.svc.Create(context.Background(), validInput(seller, 50000))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))

	var count int64
	require.NoError(t, f.db.Model(&models.WithdrawalRequest{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateSecondOutstandingRequestFails(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	f.seedBalance(t, seller, 200000)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validInput(seller, 50000))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, validInput(seller, 60000))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	// A second hold never happened.
	balance := f.balance(t, seller)
	require.Equal(t, int64(50000), balance.HeldIDR)
}

// Two concurrent creates for amounts that both fit the balance: the
// ledger hold serializes them on the balance row, and the re-check after
// the hold turns the loser away.
func TestConcurrentCreatesAllowExactlyOne(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	f.seedBalance(t, seller, 200000)
	ctx := context.Background()

	create := func() error {
		backoff := retry.WithMaxRetries(20, retry.NewFibonacci(5*time.Millisecond))
		return retry.Do(ctx, backoff, func(ctx context.Context) error {
			_, err := f.svc.Create(ctx, validInput(seller, 60000))
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
			results[slot] = create()
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, conflicted)

	var count int64
	require.NoError(t, f.db.Model(&models.WithdrawalRequest{}).
		Where("seller_id = ?", seller).Count(&count).Error)
	require.Equal(t, int64(1), count)

	balance := f.balance(t, seller)
	require.Equal(t, int64(60000), balance.HeldIDR)
}

func TestHasOtherOutstandingExcludesOwnRequest(t *testing.T) {
	f := newWithdrawalFixture(t)
	repo := NewRepository(f.db)
	seller := uuid.New()
	f.seedBalance(t, seller, 100000)
	ctx := context.Background()

	request, err := f.svc.Create(ctx, validInput(seller, 50000))
	require.NoError(t, err)

	other, err := repo.HasOtherOutstanding(ctx, seller, request.ID)
	require.NoError(t, err)
	require.False(t, other, "a request must not conflict with itself")

	other, err = repo.HasOtherOutstanding(ctx, seller, uuid.New())
	require.NoError(t, err)
	require.True(t, other)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func TestApproveThenCompleteRemovesHeldForGood(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	admin := uuid.New()
	f.seedBalance(t, seller, 120000)
	ctx := context.Background()

	request, err := f.svc.Create(ctx, validInput(seller, 70000))
	require.NoError(t, err)

	// Completing straight from waiting is refused.
	_, err = f.svc.Complete(ctx, request.ID, admin, nil)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	approved, err := f.svc.Approve(ctx, request.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.WithdrawalStatusProcessing, approved.Status)

	completed, err := f.svc.Complete(ctx, request.ID, admin, nil)
	require.NoError(t, err)
	require.Equal(t, enums.WithdrawalStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	balance := f.balance(t, seller)
	require.Equal(t, int64(50000), balance.AvailableIDR)
	require.Zero(t, balance.HeldIDR)

	// Journal shows hold then withdraw.
	entries, err := f.ledgerSvc.ListEntries(ctx, seller, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCancelOnlyBySellerWhileWaiting(t *testing.T) {
	f := newWithdrawalFixture(t)
	seller := uuid.New()
	admin := uuid.New()
	f.seedBalance(t, seller, 90000)
	ctx := context.Background()

	request, err := f.svc.Create(ctx, validInput(seller, 50000))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, request.ID, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Approve(ctx, request.ID, admin)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, request.ID, seller)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestBulkProcessContinuesPastFailures(t *testing.T) {
	f := newWithdrawalFixture(t)
	admin := uuid.New()
	ctx := context.Background()

	sellerA := uuid.New()
	sellerB := uuid.New()
	f.seedBalance(t, sellerA, 100000)
	f.seedBalance(t, sellerB, 100000)

	requestA, err := f.svc.Create(ctx, validInput(sellerA, 50000))
	require.NoError(t, err)
	requestB, err := f.svc.Create(ctx, validInput(sellerB, 60000))
	require.NoError(t, err)

	// requestB stays waiting, so completing it must fail while requestA
	// (already processing) completes.
	_, err = f.svc.Approve(ctx, requestA.ID, admin)
	require.NoError(t, err)

	missing := uuid.New()
	result, err := f.svc.BulkProcess(ctx, BulkInput{
		IDs:     []uuid.UUID{requestA.ID, requestB.ID, missing},
		Action:  BulkComplete,
		ActorID: admin,
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{requestA.ID}, result.Processed)
	require.Len(t, multierr.Errors(result.Err), 2)

	var completed models.WithdrawalRequest
	require.NoError(t, f.db.First(&completed, "id = ?", requestA.ID).Error)
	require.Equal(t, enums.WithdrawalStatusCompleted, completed.Status)

	var waiting models.WithdrawalRequest
	require.NoError(t, f.db.First(&waiting, "id = ?", requestB.ID).Error)
	require.Equal(t, enums.WithdrawalStatusWaiting, waiting.Status)
}

func TestBulkRejectReleasesEachHold(t *testing.T) {
	f := newWithdrawalFixture(t)
	admin := uuid.New()
	ctx := context.Background()

	sellers := []uuid.UUID{uuid.New(), uuid.New()}
	ids := make([]uuid.UUID, 0, len(sellers))
	for _, seller := range sellers {
		f.seedBalance(t, seller, 80000)
		request, err := f.svc.Create(ctx, validInput(seller, 50000))
		require.NoError(t, err)
		ids = append(ids, request.ID)
	}

	note := "payout batch dibatalkan"
	result, err := f.svc.BulkProcess(ctx, BulkInput{
		IDs:     ids,
		Action:  BulkReject,
		ActorID: admin,
		Note:    &note,
	})
	require.NoError(t, err)
	require.Len(t, result.Processed, 2)
	require.NoError(t, result.Err)

	for _, seller := range sellers {
		balance := f.balance(t, seller)
		require.Equal(t, int64(80000), balance.AvailableIDR)
		require.Zero(t, balance.HeldIDR)
	}
}
