package enums

import "fmt"

// OrderAction enumerates the buyer/seller actions accepted by the order action endpoint.
type OrderAction string

const (
	OrderActionMarkReady       OrderAction = "mark_ready"
	OrderActionMarkShipped     OrderAction = "mark_shipped"
	OrderActionConfirmDelivery OrderAction = "confirm_delivery"
	OrderActionCancel          OrderAction = "cancel"
)

var validOrderActions = []OrderAction{
	OrderActionMarkReady,
	OrderActionMarkShipped,
	OrderActionConfirmDelivery,
	OrderActionCancel,
}

func (a OrderAction) String() string {
	return string(a)
}

func (a OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOrderAction converts raw input into an OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
