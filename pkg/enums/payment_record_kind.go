package enums

import "fmt"

// PaymentRecordKind classifies rows in the append-only payment ledger.
type PaymentRecordKind string

const (
	PaymentRecordCapture     PaymentRecordKind = "capture"
	PaymentRecordFailure     PaymentRecordKind = "failure"
	PaymentRecordRefund      PaymentRecordKind = "refund"
	PaymentRecordDisputeLoss PaymentRecordKind = "dispute_loss"
)

var validPaymentRecordKinds = []PaymentRecordKind{
	PaymentRecordCapture,
	PaymentRecordFailure,
	PaymentRecordRefund,
	PaymentRecordDisputeLoss,
}

func (k PaymentRecordKind) String() string {
	return string(k)
}

func (k PaymentRecordKind) IsValid() bool {
	for _, candidate := range validPaymentRecordKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParsePaymentRecordKind(value string) (PaymentRecordKind, error) {
	for _, candidate := range validPaymentRecordKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment record kind %q", value)
}
