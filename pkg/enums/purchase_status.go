package enums

import "fmt"

// PurchaseStatus tracks the lifecycle of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusDraft           PurchaseStatus = "draft"
	PurchaseStatusAwaitingPayment PurchaseStatus = "awaiting_payment"
	PurchaseStatusPaid            PurchaseStatus = "paid"
	PurchaseStatusProcessing      PurchaseStatus = "processing"
	PurchaseStatusShipped         PurchaseStatus = "shipped"
	PurchaseStatusReceived        PurchaseStatus = "received"
	PurchaseStatusCompleted       PurchaseStatus = "completed"
	PurchaseStatusCancelled       PurchaseStatus = "cancelled"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusDraft,
	PurchaseStatusAwaitingPayment,
	PurchaseStatusPaid,
	PurchaseStatusProcessing,
	PurchaseStatusShipped,
	PurchaseStatusReceived,
	PurchaseStatusCompleted,
	PurchaseStatusCancelled,
}

// purchaseTransitions is the only source of truth for allowed status moves.
// Completed and Cancelled are terminal; the complaint-rejection override
// bypasses this table through an explicitly named force-complete path.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusDraft:           {PurchaseStatusAwaitingPayment, PurchaseStatusCancelled},
	PurchaseStatusAwaitingPayment: {PurchaseStatusPaid, PurchaseStatusCancelled},
	PurchaseStatusPaid:            {PurchaseStatusProcessing, PurchaseStatusCancelled},
	PurchaseStatusProcessing:      {PurchaseStatusShipped},
	PurchaseStatusShipped:         {PurchaseStatusReceived},
	PurchaseStatusReceived:        {PurchaseStatusCompleted},
}

// String implements fmt.Stringer.
func (p PurchaseStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseStatus.
func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (p PurchaseStatus) IsTerminal() bool {
	return len(purchaseTransitions[p]) == 0 && p.IsValid()
}

// CanTransition reports whether moving from -> to is in the adjacency table.
func CanTransition(from, to PurchaseStatus) bool {
	for _, candidate := range purchaseTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
