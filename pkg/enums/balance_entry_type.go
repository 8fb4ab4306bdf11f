package enums

import "fmt"

// BalanceEntryType journals every seller balance mutation.
type BalanceEntryType string

const (
	BalanceEntryTypeCredit   BalanceEntryType = "credit"
	BalanceEntryTypeHold     BalanceEntryType = "hold"
	BalanceEntryTypeRelease  BalanceEntryType = "release"
	BalanceEntryTypeWithdraw BalanceEntryType = "withdraw"
)

var validBalanceEntryTypes = []BalanceEntryType{
	BalanceEntryTypeCredit,
	BalanceEntryTypeHold,
	BalanceEntryTypeRelease,
	BalanceEntryTypeWithdraw,
}

// IsValid reports whether the value matches the canonical entry enum.
func (t BalanceEntryType) IsValid() bool {
	for _, candidate := range validBalanceEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBalanceEntryType converts raw input into BalanceEntryType.
func ParseBalanceEntryType(value string) (BalanceEntryType, error) {
	for _, candidate := range validBalanceEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance entry type %q", value)
}
