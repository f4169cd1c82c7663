package enums

import "fmt"

// PriceChangeType classifies a price history entry.
type PriceChangeType string

const (
	PriceChangeAdminUpdate  PriceChangeType = "admin_update"
	PriceChangeClientCustom PriceChangeType = "client_custom"
	PriceChangeBulkUpdate   PriceChangeType = "bulk_update"
)

var validPriceChangeTypes = []PriceChangeType{
	PriceChangeAdminUpdate,
	PriceChangeClientCustom,
	PriceChangeBulkUpdate,
}

// String implements fmt.Stringer.
func (p PriceChangeType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PriceChangeType.
func (p PriceChangeType) IsValid() bool {
	for _, candidate := range validPriceChangeTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceChangeType converts raw input into a PriceChangeType.
func ParsePriceChangeType(value string) (PriceChangeType, error) {
	for _, candidate := range validPriceChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price change type %q", value)
}
