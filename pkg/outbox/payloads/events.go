package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/pkg/enums"
)

// CheckoutConvertedEvent signals a checkout split into per-store purchases.
type CheckoutConvertedEvent struct {
	CheckoutGroupID uuid.UUID   `json:"checkout_group_id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	PurchaseIDs     []uuid.UUID `json:"purchase_ids"`
	TotalIDR        int64       `json:"total_idr"`
}

// PaymentSettledEvent is emitted when a gateway settlement lands.
type PaymentSettledEvent struct {
	InvoiceID  uuid.UUID  `json:"invoice_id"`
	PurchaseID uuid.UUID  `json:"purchase_id"`
	GroupID    *uuid.UUID `json:"group_id,omitempty"`
	TotalIDR   int64      `json:"total_idr"`
	PaidAt     time.Time  `json:"paid_at"`
}

// PaymentFailedEvent is emitted on a deny/cancel/expire gateway status.
type PaymentFailedEvent struct {
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	PurchaseID    uuid.UUID           `json:"purchase_id"`
	InvoiceStatus enums.InvoiceStatus `json:"invoice_status"`
	Reason        string              `json:"reason,omitempty"`
}

// InvoiceExpiredEvent reports a waiting invoice crossing its deadline.
type InvoiceExpiredEvent struct {
	InvoiceID  uuid.UUID `json:"invoice_id"`
	PurchaseID uuid.UUID `json:"purchase_id"`
	DueAt      time.Time `json:"due_at"`
}

// PurchaseStatusEvent reports any purchase lifecycle transition.
type PurchaseStatusEvent struct {
	PurchaseID uuid.UUID            `json:"purchase_id"`
	BuyerID    uuid.UUID            `json:"buyer_id"`
	StoreID    uuid.UUID            `json:"store_id"`
	From       enums.PurchaseStatus `json:"from"`
	To         enums.PurchaseStatus `json:"to"`
}

// SellerCreditedEvent reports a settlement credit to one seller.
type SellerCreditedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	AmountIDR  int64     `json:"amount_idr"`
}

// WithdrawalEvent reports a withdrawal request lifecycle change.
type WithdrawalEvent struct {
	WithdrawalID uuid.UUID              `json:"withdrawal_id"`
	SellerID     uuid.UUID              `json:"seller_id"`
	AmountIDR    int64                  `json:"amount_idr"`
	Status       enums.WithdrawalStatus `json:"status"`
}

// ComplaintEvent reports a complaint being filed or resolved.
type ComplaintEvent struct {
	ComplaintID uuid.UUID             `json:"complaint_id"`
	PurchaseID  uuid.UUID             `json:"purchase_id"`
	BuyerID     uuid.UUID             `json:"buyer_id"`
	Status      enums.ComplaintStatus `json:"status"`
}

// ReturnResolvedEvent reports an admin decision on a goods return.
type ReturnResolvedEvent struct {
	ReturnID    uuid.UUID          `json:"return_id"`
	ComplaintID uuid.UUID          `json:"complaint_id"`
	PurchaseID  uuid.UUID          `json:"purchase_id"`
	Status      enums.ReturnStatus `json:"status"`
}
