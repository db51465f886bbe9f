package enums

import "fmt"

// DisputeStatus maps to the dispute_status enum in Postgres.
type DisputeStatus string

const (
	DisputeStatusCreated     DisputeStatus = "created"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusClosedWon   DisputeStatus = "closed_won"
	DisputeStatusClosedLost  DisputeStatus = "closed_lost"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusCreated,
	DisputeStatusUnderReview,
	DisputeStatusClosedWon,
	DisputeStatusClosedLost,
}

func (s DisputeStatus) String() string {
	return string(s)
}

func (s DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsClosed reports whether the dispute reached a final outcome.
func (s DisputeStatus) IsClosed() bool {
	return s == DisputeStatusClosedWon || s == DisputeStatusClosedLost
}

func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
