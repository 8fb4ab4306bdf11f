package enums

import "fmt"

// ComplaintStatus tracks a buyer dispute.
type ComplaintStatus string

const (
	ComplaintStatusWaiting    ComplaintStatus = "waiting"
	ComplaintStatusProcessing ComplaintStatus = "processing"
	ComplaintStatusRejected   ComplaintStatus = "rejected"
	ComplaintStatusCompleted  ComplaintStatus = "completed"
)

var validComplaintStatuses = []ComplaintStatus{
	ComplaintStatusWaiting,
	ComplaintStatusProcessing,
	ComplaintStatusRejected,
	ComplaintStatusCompleted,
}

// IsValid reports whether the value matches the canonical complaint enum.
func (s ComplaintStatus) IsValid() bool {
	for _, candidate := range validComplaintStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseComplaintStatus converts raw input into ComplaintStatus.
func ParseComplaintStatus(value string) (ComplaintStatus, error) {
	for _, candidate := range validComplaintStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid complaint status %q", value)
}
