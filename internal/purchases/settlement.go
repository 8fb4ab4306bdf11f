package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox/payloads"
)

// settlePurchase credits every distinct seller represented among the
// purchase's order lines, grouped and summed by seller. Shipping and admin
// fees are excluded: only line subtotals reach seller balances. Both the
// normal completion path and the complaint-rejection override run through
// here so the two stay behaviorally identical.
//
// A credit failure for one seller is logged and skipped rather than rolling
// back the completed status; the journal gap is visible in balance_entries
// for manual reconciliation.
func (s *service) settlePurchase(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, actorID uuid.UUID) error {
	totals := make(map[uuid.UUID]int64)
	order := make([]uuid.UUID, 0, 1)
	for _, line := range purchase.Lines {
		if _, seen := totals[line.StoreID]; !seen {
			order = append(order, line.StoreID)
		}
		totals[line.StoreID] += line.SubtotalIDR
	}

	for _, storeID := range order {
		amount := totals[storeID]
		if amount <= 0 {
			continue
		}
		sellerID, err := s.stores.OwnerID(ctx, storeID)
		if err != nil {
			s.logSettleFailure(ctx, purchase.ID, storeID, err)
			continue
		}
		_, err = s.ledgerSvc.Credit(ctx, tx, ledger.MutationInput{
			SellerID:   sellerID,
			AmountIDR:  amount,
			ActorID:    actorID,
			PurchaseID: &purchase.ID,
		})
		if err != nil {
			s.logSettleFailure(ctx, purchase.ID, storeID, err)
			continue
		}
		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventSellerCredited,
				AggregateType: enums.AggregateBalanceEntry,
				AggregateID:   purchase.ID,
				Actor:         &outbox.ActorRef{UserID: actorID},
				Data: payloads.SellerCreditedEvent{
					PurchaseID: purchase.ID,
					SellerID:   sellerID,
					AmountIDR:  amount,
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil && s.logg != nil {
				s.logg.Error(ctx, "emit seller credited event", err)
			}
		}
	}
	return nil
}

func (s *service) logSettleFailure(ctx context.Context, purchaseID, storeID uuid.UUID, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"purchase_id": purchaseID.String(),
		"store_id":    storeID.String(),
	})
	s.logg.Error(logCtx, "seller settlement credit failed", err)
}
