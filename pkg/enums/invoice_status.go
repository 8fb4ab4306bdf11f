package enums

import "fmt"

// InvoiceStatus maps to the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusWaiting  InvoiceStatus = "waiting"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusFailed   InvoiceStatus = "failed"
	InvoiceStatusExpired  InvoiceStatus = "expired"
	InvoiceStatusRefunded InvoiceStatus = "refunded"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusWaiting,
	InvoiceStatusPaid,
	InvoiceStatusFailed,
	InvoiceStatusExpired,
	InvoiceStatusRefunded,
}

// IsValid reports whether the value matches the canonical invoice enum.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
