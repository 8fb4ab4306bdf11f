package enums

import "fmt"

// WithdrawalStatus tracks a seller's payout request.
type WithdrawalStatus string

const (
	WithdrawalStatusWaiting    WithdrawalStatus = "waiting"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusWaiting,
	WithdrawalStatusProcessing,
	WithdrawalStatusCompleted,
	WithdrawalStatusRejected,
}

// IsOutstanding reports whether the request still blocks a new one.
func (s WithdrawalStatus) IsOutstanding() bool {
	return s == WithdrawalStatusWaiting || s == WithdrawalStatusProcessing
}

// IsValid reports whether the value matches the canonical withdrawal enum.
func (s WithdrawalStatus) IsValid() bool {
	for _, candidate := range validWithdrawalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWithdrawalStatus converts raw input into WithdrawalStatus.
func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	for _, candidate := range validWithdrawalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal status %q", value)
}
