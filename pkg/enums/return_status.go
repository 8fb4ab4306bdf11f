package enums

import "fmt"

// ReturnStatus tracks a goods-return escalated from a complaint.
type ReturnStatus string

const (
	ReturnStatusAwaitingApproval ReturnStatus = "awaiting_approval"
	ReturnStatusApproved         ReturnStatus = "approved"
	ReturnStatusRejected         ReturnStatus = "rejected"
	ReturnStatusProcessing       ReturnStatus = "processing"
	ReturnStatusCompleted        ReturnStatus = "completed"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusAwaitingApproval,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusProcessing,
	ReturnStatusCompleted,
}

// IsValid reports whether the value matches the canonical return enum.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
