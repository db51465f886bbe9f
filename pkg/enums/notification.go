package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOutbid         NotificationType = "outbid"
	NotificationTypeAuctionWon     NotificationType = "auction_won"
	NotificationTypeAuctionSold    NotificationType = "auction_sold"
	NotificationTypeAuctionUnsold  NotificationType = "auction_unsold"
	NotificationTypeOrderUpdate    NotificationType = "order_update"
	NotificationTypePaymentFailed  NotificationType = "payment_failed"
	NotificationTypeDisputeOpened  NotificationType = "dispute_opened"
	NotificationTypeDisputeClosed  NotificationType = "dispute_closed"
	NotificationTypeOrderRefunded  NotificationType = "order_refunded"
	NotificationTypeOrderCompleted NotificationType = "order_completed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOutbid,
	NotificationTypeAuctionWon,
	NotificationTypeAuctionSold,
	NotificationTypeAuctionUnsold,
	NotificationTypeOrderUpdate,
	NotificationTypePaymentFailed,
	NotificationTypeDisputeOpened,
	NotificationTypeDisputeClosed,
	NotificationTypeOrderRefunded,
	NotificationTypeOrderCompleted,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known notification type.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
