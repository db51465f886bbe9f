package orders

import "github.com/angelmondragon/bidhouse-backend/pkg/enums"

// Trigger names an input that may move an order between statuses.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerPaymentCanceled  Trigger = "payment_canceled"
	TriggerDisputeOpened    Trigger = "dispute_opened"
	TriggerDisputeLost      Trigger = "dispute_lost"
	TriggerDisputeWon       Trigger = "dispute_won"
	TriggerRefunded         Trigger = "refunded"
	TriggerMarkShipped      Trigger = "mark_shipped"
	TriggerConfirmDelivery  Trigger = "confirm_delivery"
	TriggerCancel           Trigger = "cancel"
	TriggerComplete         Trigger = "complete"
)

// Actor is who may fire a trigger.
type Actor string

const (
	ActorProvider Actor = "provider"
	ActorBuyer    Actor = "buyer"
	ActorSeller   Actor = "seller"
	ActorSystem   Actor = "system"
)

type rule struct {
	from   []enums.OrderStatus
	to     enums.OrderStatus
	actors []Actor
}

var afterPayment = []enums.OrderStatus{
	enums.OrderStatusPaid,
	enums.OrderStatusShipped,
	enums.OrderStatusDelivered,
}

var settleable = append(append([]enums.OrderStatus{}, afterPayment...), enums.OrderStatusDisputed)

var rules = map[Trigger]rule{
	TriggerPaymentSucceeded: {from: []enums.OrderStatus{enums.OrderStatusPending}, to: enums.OrderStatusPaid, actors: []Actor{ActorProvider}},
	TriggerPaymentFailed:    {from: []enums.OrderStatus{enums.OrderStatusPending}, to: enums.OrderStatusPaymentFailed, actors: []Actor{ActorProvider}},
	TriggerPaymentCanceled:  {from: []enums.OrderStatus{enums.OrderStatusPending}, to: enums.OrderStatusCancelled, actors: []Actor{ActorProvider}},
	TriggerDisputeOpened:    {from: afterPayment, to: enums.OrderStatusDisputed, actors: []Actor{ActorProvider}},
	TriggerDisputeLost:      {from: settleable, to: enums.OrderStatusRefunded, actors: []Actor{ActorProvider}},
	TriggerDisputeWon:       {from: settleable, to: enums.OrderStatusCompleted, actors: []Actor{ActorProvider}},
	TriggerRefunded:         {from: settleable, to: enums.OrderStatusRefunded, actors: []Actor{ActorProvider}},
	TriggerMarkShipped:      {from: []enums.OrderStatus{enums.OrderStatusPaid}, to: enums.OrderStatusShipped, actors: []Actor{ActorSeller}},
	TriggerConfirmDelivery:  {from: []enums.OrderStatus{enums.OrderStatusShipped}, to: enums.OrderStatusDelivered, actors: []Actor{ActorBuyer}},
	TriggerCancel:           {from: []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaymentFailed}, to: enums.OrderStatusCancelled, actors: []Actor{ActorBuyer, ActorSeller}},
	TriggerComplete:         {from: []enums.OrderStatus{enums.OrderStatusDelivered}, to: enums.OrderStatusCompleted, actors: []Actor{ActorSystem}},
}

// Triggers lists every trigger in the table.
func Triggers() []Trigger {
	return []Trigger{
		TriggerPaymentSucceeded, TriggerPaymentFailed, TriggerPaymentCanceled,
		TriggerDisputeOpened, TriggerDisputeLost, TriggerDisputeWon, TriggerRefunded,
		TriggerMarkShipped, TriggerConfirmDelivery, TriggerCancel, TriggerComplete,
	}
}

// Next returns the target status when the trigger is allowed from current.
func Next(current enums.OrderStatus, trigger Trigger) (enums.OrderStatus, bool) {
	r, ok := rules[trigger]
	if !ok {
		return "", false
	}
	for _, from := range r.from {
		if from == current {
			return r.to, true
		}
	}
	return "", false
}

// Sources returns the statuses the trigger may fire from; used as the conditional update guard.
func Sources(trigger Trigger) []enums.OrderStatus {
	r, ok := rules[trigger]
	if !ok {
		return nil
	}
	out := make([]enums.OrderStatus, len(r.from))
	copy(out, r.from)
	return out
}

// Target returns the status the trigger leads to.
func Target(trigger Trigger) (enums.OrderStatus, bool) {
	r, ok := rules[trigger]
	return r.to, ok
}

// AllowedFor reports whether actor may fire the trigger at all.
func AllowedFor(trigger Trigger, actor Actor) bool {
	r, ok := rules[trigger]
	if !ok {
		return false
	}
	for _, a := range r.actors {
		if a == actor {
			return true
		}
	}
	return false
}

// Rank orders statuses by lifecycle progress. Terminal statuses share the top rank.
func Rank(status enums.OrderStatus) int {
	switch status {
	case enums.OrderStatusPending:
		return 0
	case enums.OrderStatusPaymentFailed:
		return 1
	case enums.OrderStatusPaid:
		return 2
	case enums.OrderStatusShipped:
		return 3
	case enums.OrderStatusDelivered:
		return 4
	case enums.OrderStatusDisputed:
		return 5
	case enums.OrderStatusCompleted, enums.OrderStatusRefunded, enums.OrderStatusCancelled:
		return 9
	default:
		return -1
	}
}

// stampColumn is the timestamp column set when an order enters status.
func stampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPaid:
		return "paid_at"
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusCompleted:
		return "completed_at"
	default:
		return ""
	}
}
