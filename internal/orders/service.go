package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order status state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) error
	AdminOverride(ctx context.Context, input OverrideInput) error
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) error
}

type service struct {
	repo              Repository
	tx                txRunner
	outbox            outboxPublisher
	logg              *logger.Logger
	contractorShareBP int64
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher, logg *logger.Logger, contractorShareBP int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if contractorShareBP <= 0 || contractorShareBP > 10000 {
		contractorShareBP = 8500
	}
	return &service{
		repo:              repo,
		tx:                tx,
		outbox:            outboxPub,
		logg:              logg,
		contractorShareBP: contractorShareBP,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.DeliveryDate.Before(input.PickupDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery date precedes pickup date")
	}

	order := &models.Order{
		CustomerID:           input.CustomerID,
		PickupAddress:        input.PickupAddress,
		PickupContactName:    input.PickupContactName,
		PickupContactPhone:   input.PickupContactPhone,
		PickupDate:           input.PickupDate,
		DeliveryAddress:      input.DeliveryAddress,
		DeliveryContactName:  input.DeliveryContactName,
		DeliveryContactPhone: input.DeliveryContactPhone,
		DeliveryDate:         input.DeliveryDate,
		CargoDescription:     input.CargoDescription,
		WeightKg:             input.WeightKg,
		Price:                input.Price,
		ContractorPrice:      s.defaultContractorPrice(input.Price),
		Status:               enums.OrderStatusPending,
		Stops:                buildStops(input),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}
		order.OrderNumber = number
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// defaultContractorPrice is the pre-acceptance split. Once a bid wins
// the contractor price is pinned to the bid amount and this default is
// never reapplied.
func (s *service) defaultContractorPrice(price decimal.Decimal) decimal.Decimal {
	share := decimal.NewFromInt(s.contractorShareBP).Div(decimal.NewFromInt(10000))
	return price.Mul(share).Round(2)
}

func buildStops(input CreateInput) []models.OrderStop {
	stops := make([]models.OrderStop, 0, len(input.PickupStops)+len(input.DeliveryStops))
	appendStops := func(kind enums.StopKind, inputs []StopInput) {
		for i, st := range inputs {
			stops = append(stops, models.OrderStop{
				Kind:         kind,
				Position:     i,
				Address:      st.Address,
				ContactName:  st.ContactName,
				ContactPhone: st.ContactPhone,
				Notes:        st.Notes,
			})
		}
	}
	appendStops(enums.StopKindPickup, input.PickupStops)
	appendStops(enums.StopKindDelivery, input.DeliveryStops)
	return stops
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByIDWithStops(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Target {
			return nil
		}
		if !CanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transition %s -> %s not allowed", order.Status, input.Target))
		}
		if err := authorizeTransition(order, input.Target, input.Actor); err != nil {
			return err
		}

		affected, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, input.Target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order status changed concurrently")
		}

		if err := s.stampTimestamps(ctx, repo, order.ID, input.Target); err != nil {
			return err
		}

		return s.emitStatusChanged(ctx, tx, order, order.Status, input.Target, false, "")
	})
}

// AdminOverride bypasses the transition table from any non-terminal
// state. It exists as an operator escape hatch and is logged
// distinctly because it can desynchronize order status from CMR group
// completion; automated flows must never call it.
func (s *service) AdminOverride(ctx context.Context, input OverrideInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if !input.Actor.System && input.Actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "status override requires admin capability")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
		}
		if order.Status == input.Target {
			return nil
		}

		affected, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, input.Target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "override order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order status changed concurrently")
		}

		if err := s.stampTimestamps(ctx, repo, order.ID, input.Target); err != nil {
			return err
		}

		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"from":     order.Status.String(),
				"to":       input.Target.String(),
				"actor_id": input.Actor.UserID.String(),
				"reason":   input.Reason,
			})
			s.logg.Warn(logCtx, "order.status.override")
		}

		return s.emitStatusChanged(ctx, tx, order, order.Status, input.Target, true, input.Reason)
	})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	return s.Transition(ctx, TransitionInput{
		OrderID: orderID,
		Target:  enums.OrderStatusCancelled,
		Actor:   actor,
	})
}

func (s *service) stampTimestamps(ctx context.Context, repo Repository, orderID uuid.UUID, target enums.OrderStatus) error {
	now := time.Now().UTC()
	var updates map[string]any
	switch target {
	case enums.OrderStatusAccepted:
		updates = map[string]any{"accepted_at": now}
	case enums.OrderStatusCompleted:
		updates = map[string]any{"completed_at": now}
	case enums.OrderStatusCancelled:
		updates = map[string]any{"cancelled_at": now}
	default:
		return nil
	}
	if err := repo.Update(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp status timestamp")
	}
	return nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from, to enums.OrderStatus, override bool, reason string) error {
	eventType := enums.EventOrderStatusChanged
	if override {
		eventType = enums.EventOrderStatusOverride
	} else if to == enums.OrderStatusCancelled {
		eventType = enums.EventOrderCancelled
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: StatusChangedEvent{
			OrderID:      order.ID,
			CustomerID:   order.CustomerID,
			ContractorID: order.ContractorID,
			From:         from,
			To:           to,
			Override:     override,
			Reason:       reason,
		},
	})
}

// authorizeTransition enforces who may request each happy-path target.
// A customer may never set completed directly; only internal flows
// (group completion) and admins can.
func authorizeTransition(order *models.Order, target enums.OrderStatus, actor Actor) error {
	if actor.System {
		return nil
	}
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}

	isOwner := actor.Role == enums.UserRoleCustomer && actor.UserID == order.CustomerID
	isAssigned := actor.Role == enums.UserRoleContractor &&
		order.ContractorID != nil && actor.UserID == *order.ContractorID

	if !isOwner && !isAssigned {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}

	switch target {
	case enums.OrderStatusCancelled:
		if !isOwner {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the customer may cancel")
		}
		return nil
	case enums.OrderStatusPickedUp, enums.OrderStatusInTransit, enums.OrderStatusDelivered:
		if !isAssigned {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned contractor may report progress")
		}
		return nil
	case enums.OrderStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeForbidden, "completion is set by the system")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "transition requires admin capability")
	}
}
