package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox/idempotency"
)

const freightNotificationConsumer = "freight-notifications"

type broadcaster interface {
	Broadcast(ctx context.Context, recipients []uuid.UUID, event enums.NotificationType, payload map[string]any) error
}

type orderDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Consumer watches domain events and turns bid, order and consignment
// milestones into in-app notifications.
type Consumer struct {
	notifier     broadcaster
	orders       orderDirectory
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the freight notification consumer.
func NewConsumer(notifier broadcaster, orders orderDirectory, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order directory required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     notifier,
		orders:       orders,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil || !c.handles(eventType) {
		c.logg.Info(logCtx, "skipping event without notification handler")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, freightNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, freightNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventBidAccepted, enums.EventBidRejected,
		enums.EventOrderStatusChanged, enums.EventOrderStatusOverride, enums.EventOrderCancelled,
		enums.EventCMRGroupCompleted, enums.EventCMRDocumentMerged:
		return true
	}
	return false
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventBidAccepted:
		return c.handleBidAccepted(ctx, data, logCtx)
	case enums.EventBidRejected:
		return c.handleBidRejected(ctx, data, logCtx)
	case enums.EventOrderStatusChanged, enums.EventOrderStatusOverride, enums.EventOrderCancelled:
		return c.handleStatusChanged(ctx, data, logCtx)
	case enums.EventCMRGroupCompleted:
		return c.handleGroupCompleted(ctx, data, logCtx)
	case enums.EventCMRDocumentMerged:
		return c.handleDocumentMerged(ctx, data, logCtx)
	}
	return nil
}

type bidEventPayload struct {
	BidID        uuid.UUID `json:"bid_id"`
	OrderID      uuid.UUID `json:"order_id"`
	ContractorID uuid.UUID `json:"contractor_id"`
	Amount       string    `json:"amount"`
}

type statusChangedPayload struct {
	OrderID      uuid.UUID  `json:"order_id"`
	CustomerID   uuid.UUID  `json:"customer_id"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Override     bool       `json:"override,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

type groupEventPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (c *Consumer) handleBidAccepted(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload bidEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse bid accepted payload: %w", err)
	}
	fields, err := c.orderFields(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	fields["amount"] = payload.Amount
	if err := c.notifier.Broadcast(ctx, []uuid.UUID{payload.ContractorID}, enums.NotificationTypeBidAccepted, fields); err != nil {
		return err
	}
	c.logg.Info(logCtx, "contractor notified of accepted bid")
	return nil
}

func (c *Consumer) handleBidRejected(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload bidEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse bid rejected payload: %w", err)
	}
	fields, err := c.orderFields(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if err := c.notifier.Broadcast(ctx, []uuid.UUID{payload.ContractorID}, enums.NotificationTypeBidRejected, fields); err != nil {
		return err
	}
	c.logg.Info(logCtx, "contractor notified of rejected bid")
	return nil
}

func (c *Consumer) handleStatusChanged(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload statusChangedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse status changed payload: %w", err)
	}
	fields, err := c.orderFields(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	fields["status"] = payload.To

	recipients := []uuid.UUID{payload.CustomerID}
	if payload.ContractorID != nil && *payload.ContractorID != uuid.Nil {
		recipients = append(recipients, *payload.ContractorID)
	}
	if err := c.notifier.Broadcast(ctx, recipients, enums.NotificationTypeOrderStatusChange, fields); err != nil {
		return err
	}
	c.logg.Info(logCtx, "parties notified of order status change")
	return nil
}

func (c *Consumer) handleGroupCompleted(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload groupEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse group completed payload: %w", err)
	}
	order, err := c.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	fields := map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"group_id":     payload.GroupID.String(),
	}
	if err := c.notifier.Broadcast(ctx, []uuid.UUID{order.CustomerID}, enums.NotificationTypeDeliveryConfirmed, fields); err != nil {
		return err
	}
	c.logg.Info(logCtx, "customer notified of completed delivery")
	return nil
}

func (c *Consumer) handleDocumentMerged(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload groupEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse document merged payload: %w", err)
	}
	order, err := c.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	fields := map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"group_id":     payload.GroupID.String(),
	}
	recipients := []uuid.UUID{order.CustomerID}
	if order.ContractorID != nil && *order.ContractorID != uuid.Nil {
		recipients = append(recipients, *order.ContractorID)
	}
	if err := c.notifier.Broadcast(ctx, recipients, enums.NotificationTypeDocumentReady, fields); err != nil {
		return err
	}
	c.logg.Info(logCtx, "parties notified of merged document")
	return nil
}

func (c *Consumer) orderFields(ctx context.Context, orderID uuid.UUID) (map[string]any, error) {
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	}, nil
}
