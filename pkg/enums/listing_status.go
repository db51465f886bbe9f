package enums

import "fmt"

// ListingStatus maps to the listing_status enum in Postgres.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusUnsold    ListingStatus = "unsold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusSold,
	ListingStatusUnsold,
	ListingStatusCancelled,
}

func (s ListingStatus) String() string {
	return string(s)
}

func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
