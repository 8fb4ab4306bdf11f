package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePurchase          OutboxAggregateType = "purchase"
	AggregateCheckoutGroup     OutboxAggregateType = "checkout_group"
	AggregateInvoice           OutboxAggregateType = "invoice"
	AggregateBalanceEntry      OutboxAggregateType = "balance_entry"
	AggregateWithdrawalRequest OutboxAggregateType = "withdrawal_request"
	AggregateComplaint         OutboxAggregateType = "complaint"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateCheckoutGroup,
	AggregateInvoice,
	AggregateBalanceEntry,
	AggregateWithdrawalRequest,
	AggregateComplaint,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCheckoutConverted   OutboxEventType = "checkout_converted"
	EventPaymentSettled      OutboxEventType = "payment_settled"
	EventPaymentFailed       OutboxEventType = "payment_failed"
	EventInvoiceExpired      OutboxEventType = "invoice_expired"
	EventPurchasePaid        OutboxEventType = "purchase_paid"
	EventPurchaseShipped     OutboxEventType = "purchase_shipped"
	EventPurchaseCompleted   OutboxEventType = "purchase_completed"
	EventPurchaseCancelled   OutboxEventType = "purchase_cancelled"
	EventSellerCredited      OutboxEventType = "seller_credited"
	EventWithdrawalRequested OutboxEventType = "withdrawal_requested"
	EventWithdrawalCompleted OutboxEventType = "withdrawal_completed"
	EventWithdrawalRejected  OutboxEventType = "withdrawal_rejected"
	EventComplaintFiled      OutboxEventType = "complaint_filed"
	EventComplaintResolved   OutboxEventType = "complaint_resolved"
	EventReturnResolved      OutboxEventType = "return_resolved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCheckoutConverted,
	EventPaymentSettled,
	EventPaymentFailed,
	EventInvoiceExpired,
	EventPurchasePaid,
	EventPurchaseShipped,
	EventPurchaseCompleted,
	EventPurchaseCancelled,
	EventSellerCredited,
	EventWithdrawalRequested,
	EventWithdrawalCompleted,
	EventWithdrawalRejected,
	EventComplaintFiled,
	EventComplaintResolved,
	EventReturnResolved,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
