package main

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox/idempotency"
)

const freightCMRConsumer = "freight-cmr"

type groupCreator interface {
	CreateGroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error)
}

type documentMerger interface {
	MergeGroup(ctx context.Context, groupID uuid.UUID) (*models.CMRArtifact, error)
}

type orderCompleter interface {
	Transition(ctx context.Context, input orders.TransitionInput) error
}

// Consumer reacts to accepted bids by issuing the consignment note group
// for the order, and to completed groups by merging the per-stop notes
// into a single downloadable document and closing out the order.
type Consumer struct {
	groups       groupCreator
	docs         documentMerger
	lifecycle    orderCompleter
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(groups groupCreator, docs documentMerger, lifecycle orderCompleter, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if groups == nil {
		return nil, fmt.Errorf("cmr service required")
	}
	if docs == nil {
		return nil, fmt.Errorf("document service required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("cmr subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		groups:       groups,
		docs:         docs,
		lifecycle:    lifecycle,
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
		c.logg.Info(logCtx, "skipping event without cmr handler")
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, freightCMRConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		if terminal(err) {
			c.logg.Error(logCtx, "dropping event after terminal failure", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "cmr handling failed", err)
		_ = c.idempotency.Delete(ctx, freightCMRConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventBidAccepted, enums.EventCMRGroupCompleted:
		return true
	}
	return false
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventBidAccepted:
		return c.handleBidAccepted(ctx, data, logCtx)
	case enums.EventCMRGroupCompleted:
		return c.handleGroupCompleted(ctx, data, logCtx)
	}
	return nil
}

type bidAcceptedPayload struct {
	BidID        uuid.UUID `json:"bid_id"`
	OrderID      uuid.UUID `json:"order_id"`
	ContractorID uuid.UUID `json:"contractor_id"`
}

type groupCompletedPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (c *Consumer) handleBidAccepted(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload bidAcceptedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse bid accepted payload")
	}
	rows, err := c.groups.CreateGroupForOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"order_id": payload.OrderID.String(),
		"stops":    len(rows),
	}), "consignment note group issued")
	return nil
}

func (c *Consumer) handleGroupCompleted(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload groupCompletedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse group completed payload")
	}
	artifact, err := c.docs.MergeGroup(ctx, payload.GroupID)
	if err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"group_id":    payload.GroupID.String(),
		"artifact_id": artifact.ID.String(),
	}), "merged consignment document stored")

	// The paperwork is attached; close out the order. Transition is a
	// no-op when a redelivered event finds the order already completed.
	if err := c.lifecycle.Transition(ctx, orders.TransitionInput{
		OrderID: payload.OrderID,
		Target:  enums.OrderStatusCompleted,
		Actor:   orders.SystemActor,
	}); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"order_id": payload.OrderID.String(),
	}), "order completed")
	return nil
}

// terminal reports whether redelivery cannot fix the failure.
func terminal(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeMissingContractor, pkgerrors.CodeStateConflict:
		return true
	}
	return false
}
