package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
)

// Notifier persists in-app notifications as a side channel of domain
// flows. Delivery is best-effort: a failed write is logged and never
// surfaces to the flow that triggered it.
type Notifier struct {
	repo Repository
	logg *logger.Logger
}

// NewNotifier builds the best-effort notification writer.
func NewNotifier(repo Repository, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &Notifier{repo: repo, logg: logg}, nil
}

// Notify writes one notification row for the recipient.
func (n *Notifier) Notify(ctx context.Context, recipient uuid.UUID, event enums.NotificationType, payload map[string]any) {
	if err := n.notify(ctx, recipient, event, payload); err != nil && n.logg != nil {
		n.logg.Warn(n.logg.WithFields(ctx, map[string]any{
			"recipient_id": recipient.String(),
			"event":        string(event),
			"error":        err.Error(),
		}), "notifications.notify_failed")
	}
}

// Broadcast fans one notification out to every recipient and returns
// the combined failures for callers that want to log them.
func (n *Notifier) Broadcast(ctx context.Context, recipients []uuid.UUID, event enums.NotificationType, payload map[string]any) error {
	var errs error
	for _, recipient := range recipients {
		if err := n.notify(ctx, recipient, event, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recipient %s: %w", recipient, err))
		}
	}
	return errs
}

func (n *Notifier) notify(ctx context.Context, recipient uuid.UUID, event enums.NotificationType, payload map[string]any) error {
	if recipient == uuid.Nil {
		return fmt.Errorf("recipient id missing")
	}
	title, message := buildContent(event, payload)
	notification := &models.Notification{
		RecipientID: recipient,
		Type:        event,
		Title:       title,
		Message:     message,
	}
	if link := orderLink(payload); link != "" {
		notification.Link = &link
	}
	return n.repo.Create(ctx, notification)
}

func buildContent(event enums.NotificationType, payload map[string]any) (string, string) {
	number := payloadString(payload, "order_number")
	if number == "" {
		number = payloadString(payload, "order_id")
	}
	amount := payloadString(payload, "amount")

	switch event {
	case enums.NotificationTypeBidSubmitted:
		return "New bid received", fmt.Sprintf("A carrier bid %s on order %s.", amount, number)
	case enums.NotificationTypeBidAccepted:
		return "Bid accepted", fmt.Sprintf("Your bid of %s on order %s was accepted.", amount, number)
	case enums.NotificationTypeBidRejected:
		return "Bid not selected", fmt.Sprintf("Your bid on order %s was not selected.", number)
	case enums.NotificationTypeOrderStatusChange:
		return "Order updated", fmt.Sprintf("Order %s moved to %s.", number, payloadString(payload, "status"))
	case enums.NotificationTypeDeliveryConfirmed:
		return "Delivery confirmed", fmt.Sprintf("All stops of order %s are signed off.", number)
	case enums.NotificationTypeDocumentReady:
		return "Consignment documents ready", fmt.Sprintf("The merged CMR document for order %s is ready to download.", number)
	default:
		return "Update", fmt.Sprintf("Order %s has an update.", number)
	}
}

func orderLink(payload map[string]any) string {
	if id := payloadString(payload, "order_id"); id != "" {
		return "/orders/" + id
	}
	return ""
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	case int:
		return fmt.Sprintf("%d", value)
	case int64:
		return fmt.Sprintf("%d", value)
	case float64:
		return fmt.Sprintf("%.0f", value)
	default:
		return ""
	}
}
