package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeBidSubmitted      NotificationType = "bid_submitted"
	NotificationTypeBidAccepted       NotificationType = "bid_accepted"
	NotificationTypeBidRejected       NotificationType = "bid_rejected"
	NotificationTypeOrderStatusChange NotificationType = "order_status_change"
	NotificationTypeDeliveryConfirmed NotificationType = "delivery_confirmed"
	NotificationTypeDocumentReady     NotificationType = "document_ready"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBidSubmitted,
	NotificationTypeBidAccepted,
	NotificationTypeBidRejected,
	NotificationTypeOrderStatusChange,
	NotificationTypeDeliveryConfirmed,
	NotificationTypeDocumentReady,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
