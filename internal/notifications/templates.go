package notifications

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	"github.com/angelmondragon/bidhouse-backend/pkg/money"
)

type message struct {
	kind  enums.NotificationType
	title string
	body  string
}

func orderLink(orderID uuid.UUID) *string {
	link := fmt.Sprintf("/orders/%s", orderID)
	return &link
}

func listingLink(listingID uuid.UUID) *string {
	link := fmt.Sprintf("/listings/%s", listingID)
	return &link
}

// orderStatusMessages returns the buyer and seller copy for the status the order just entered.
// A nil message means that party is not notified.
func orderStatusMessages(order models.Order) (buyer, seller *message) {
	amount := money.Format(order.AmountCents, order.Currency)
	switch order.Status {
	case enums.OrderStatusPaid:
		buyer = &message{enums.NotificationTypeOrderUpdate, "Payment received", fmt.Sprintf("Your payment of %s was received.", amount)}
		seller = &message{enums.NotificationTypeOrderUpdate, "Order paid", fmt.Sprintf("The buyer paid %s. Prepare the item for shipping.", amount)}
	case enums.OrderStatusPaymentFailed:
		buyer = &message{enums.NotificationTypePaymentFailed, "Payment failed", "Your payment could not be completed. Try again from the order page."}
	case enums.OrderStatusShipped:
		buyer = &message{enums.NotificationTypeOrderUpdate, "Item shipped", "The seller marked your item as shipped."}
	case enums.OrderStatusDelivered:
		seller = &message{enums.NotificationTypeOrderUpdate, "Delivery confirmed", "The buyer confirmed delivery."}
	case enums.OrderStatusDisputed:
		buyer = &message{enums.NotificationTypeDisputeOpened, "Dispute opened", "A payment dispute was opened for this order."}
		seller = &message{enums.NotificationTypeDisputeOpened, "Dispute opened", "A payment dispute was opened for this order. Funds are on hold."}
	case enums.OrderStatusRefunded:
		buyer = &message{enums.NotificationTypeOrderRefunded, "Order refunded", fmt.Sprintf("%s was refunded to you.", amount)}
		seller = &message{enums.NotificationTypeOrderRefunded, "Order refunded", fmt.Sprintf("%s was refunded to the buyer.", amount)}
	case enums.OrderStatusCompleted:
		buyer = &message{enums.NotificationTypeOrderCompleted, "Order completed", "This order is complete."}
		seller = &message{enums.NotificationTypeOrderCompleted, "Order completed", fmt.Sprintf("This order is complete. %s will be released to you.", amount)}
	case enums.OrderStatusCancelled:
		buyer = &message{enums.NotificationTypeOrderUpdate, "Order cancelled", "This order was cancelled."}
		seller = &message{enums.NotificationTypeOrderUpdate, "Order cancelled", "This order was cancelled."}
	}
	return buyer, seller
}
