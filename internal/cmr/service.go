package cmr

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/cmr/propagation"
	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderLifecycle interface {
	Transition(ctx context.Context, input orders.TransitionInput) error
}

// groupNamespace is the UUIDv5 namespace for deriving a group id from
// an order id. The derivation is stable so re-invocations for the same
// order always address the same group.
var groupNamespace = uuid.MustParse("6f9c1a52-8a3e-4f05-9b6d-0f3f4f1a7c21")

// GroupIDForOrder derives the stable group id for an order.
func GroupIDForOrder(orderID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(groupNamespace, orderID[:])
}

// Service owns the consignment-note group state machine.
type Service interface {
	CreateGroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error)
	GetGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error)
	GroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error)
	// RecordStopCompletion writes delivery proof onto one note and
	// returns the next incomplete note by ascending stop index, or nil
	// when the group is complete.
	RecordStopCompletion(ctx context.Context, cmrID uuid.UUID, proof StopProof) (*models.CMR, error)
	RecordPickupSignatures(ctx context.Context, input PickupSignaturesInput) error
}

type service struct {
	repo      Repository
	numbers   NumberSource
	orderDir  OrderDirectory
	profiles  ProfileDirectory
	lifecycle orderLifecycle
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
}

// NewService builds the CMR group service.
func NewService(
	repo Repository,
	numbers NumberSource,
	orderDir OrderDirectory,
	profiles ProfileDirectory,
	lifecycle orderLifecycle,
	tx txRunner,
	outboxPub outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cmr repository required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("number source required")
	}
	if orderDir == nil {
		return nil, fmt.Errorf("order directory required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile directory required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		numbers:   numbers,
		orderDir:  orderDir,
		profiles:  profiles,
		lifecycle: lifecycle,
		tx:        tx,
		outbox:    outboxPub,
		logg:      logg,
	}, nil
}

// partySnapshot is the contact + address pair copied onto a note.
type partySnapshot struct {
	ContactName string
	Address     types.Address
}

// CreateGroupForOrder materializes one note per delivery stop, all
// sharing the derived group id. Re-invoking for an order that already
// has its group returns the existing rows unchanged.
func (s *service) CreateGroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orderDir.FindByIDWithStops(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.ContractorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingContractor, "order has no assigned contractor")
	}

	groupID := GroupIDForOrder(orderID)
	existing, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing group")
	}
	if len(existing) > 0 {
		return existing, nil
	}

	carrier, err := s.profiles.CarrierProfile(ctx, *order.ContractorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load carrier profile")
	}

	consignees := consigneeParties(order)
	senders := senderParties(order)
	total := len(consignees)

	var rows []models.CMR
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		numbers, err := s.numbers.Next(ctx, tx, total)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate cmr numbers")
		}
		if len(numbers) != total {
			return pkgerrors.New(pkgerrors.CodeDependency, "short cmr number allocation")
		}

		rows = make([]models.CMR, total)
		for i := 0; i < total; i++ {
			// One pickup feeding this stop; with fewer pickups than
			// stops the primary pickup covers the remainder,
			// mirroring the consignee side.
			sender := senders[0]
			if i < len(senders) {
				sender = senders[i]
			}
			rows[i] = models.CMR{
				CMRNumber:        numbers[i],
				OrderID:          order.ID,
				GroupID:          groupID,
				StopIndex:        i,
				TotalStops:       total,
				IsMultiStop:      total > 1,
				SenderName:       sender.ContactName,
				SenderAddress:    sender.Address,
				ConsigneeName:    consignees[i].ContactName,
				ConsigneeAddress: consignees[i].Address,
				CarrierName:      carrier.Name,
				CarrierAddress:   carrier.Address,
				GoodsDescription: order.CargoDescription,
				WeightKg:         order.WeightKg,
			}
		}
		if err := s.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cmr group")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCMRGroupCreated,
			AggregateType: enums.AggregateCMRGroup,
			AggregateID:   groupID,
			Version:       1,
			Data: GroupCreatedEvent{
				GroupID:    groupID,
				OrderID:    order.ID,
				TotalStops: total,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *service) GetGroup(ctx context.Context, groupID uuid.UUID) ([]models.CMR, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	rows, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cmr group not found")
	}
	return rows, nil
}

func (s *service) GroupForOrder(ctx context.Context, orderID uuid.UUID) ([]models.CMR, error) {
	return s.GetGroup(ctx, GroupIDForOrder(orderID))
}

func (s *service) RecordStopCompletion(ctx context.Context, cmrID uuid.UUID, proof StopProof) (*models.CMR, error) {
	if cmrID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cmr id required")
	}
	if proof.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a consignee signature or delivery photo is required")
	}

	var (
		next     *models.CMR
		complete bool
		current  *models.CMR
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, cmrID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cmr not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cmr")
		}
		current = row

		updates := make(map[string]any, 2)
		if proof.Signature != nil && !proof.Signature.IsZero() {
			row.ConsigneeSignature = proof.Signature
			updates["consignee_signature"] = proof.Signature
		}
		if proof.Photo != nil && !proof.Photo.IsZero() {
			row.DeliveryPhoto = proof.Photo
			updates["delivery_photo"] = proof.Photo
		}
		if err := repo.Update(ctx, row.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stop proof")
		}

		group, err := repo.ListByGroup(ctx, row.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		for i := range group {
			if group[i].ID == row.ID {
				group[i] = *row
			}
		}

		// Completion is judged on propagated rows: in the shared-receiver
		// scenario one consignee signature proves every sibling stop.
		resolved, scenario := propagation.Propagate(group)
		if scenario.ConsigneeShared() {
			for i := range resolved {
				if signaturesEqual(group[i].SharedConsigneeSignature, resolved[i].SharedConsigneeSignature) {
					continue
				}
				if err := repo.Update(ctx, resolved[i].ID, map[string]any{
					"shared_consignee_signature": resolved[i].SharedConsigneeSignature,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache shared consignee signature")
				}
			}
		}

		complete = true
		for i := range resolved {
			if !resolved[i].StopComplete() {
				complete = false
				if next == nil {
					copied := resolved[i]
					next = &copied
				}
			}
		}

		if complete {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCMRGroupCompleted,
				AggregateType: enums.AggregateCMRGroup,
				AggregateID:   row.GroupID,
				Version:       1,
				Data: GroupCompletedEvent{
					GroupID:    row.GroupID,
					OrderID:    row.OrderID,
					TotalStops: row.TotalStops,
				},
			})
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCMRStopCompleted,
			AggregateType: enums.AggregateCMRGroup,
			AggregateID:   row.GroupID,
			Version:       1,
			Data: StopCompletedEvent{
				GroupID:   row.GroupID,
				OrderID:   row.OrderID,
				CMRID:     row.ID,
				StopIndex: row.StopIndex,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if complete {
		s.markDelivered(ctx, current.OrderID)
		return nil, nil
	}
	return next, nil
}

// signaturesEqual compares two cached signing events, treating nil and
// zero as the same empty state.
func signaturesEqual(a, b *types.Signature) bool {
	aZero := a == nil || a.IsZero()
	bZero := b == nil || b.IsZero()
	if aZero || bZero {
		return aZero == bZero
	}
	return a.ImageKey == b.ImageKey && a.SignedAt.Equal(b.SignedAt)
}

// markDelivered moves the order to delivered once every stop is
// proven. The final delivered -> completed hop happens when the merged
// document lands, driven by the group_completed event, so an operator
// always finds the paperwork attached to a completed order.
func (s *service) markDelivered(ctx context.Context, orderID uuid.UUID) {
	err := s.lifecycle.Transition(ctx, orders.TransitionInput{
		OrderID: orderID,
		Target:  enums.OrderStatusDelivered,
		Actor:   orders.SystemActor,
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"error":    err.Error(),
		}), "cmr.group_completed.deliver_transition_failed")
	}
}

// RecordPickupSignatures applies the pickup-time signing events to the
// whole group per the propagation scenario and moves the order to
// picked_up. The carrier signature always covers every stop; the
// sender signature covers the group only when one pickup feeds all
// stops, otherwise it lands on the selected stop's note alone.
func (s *service) RecordPickupSignatures(ctx context.Context, input PickupSignaturesInput) error {
	if input.GroupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	hasSender := input.Sender != nil && !input.Sender.IsZero()
	hasCarrier := input.Carrier != nil && !input.Carrier.IsZero()
	if !hasSender && !hasCarrier {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one signature required")
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		group, err := repo.ListByGroup(ctx, input.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		if len(group) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cmr group not found")
		}
		orderID = group[0].OrderID
		scenario := propagation.Resolve(group)

		if hasCarrier {
			if err := repo.UpdateGroup(ctx, input.GroupID, map[string]any{
				"shared_carrier_signature": input.Carrier,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply carrier signature")
			}
		}
		if hasSender {
			if scenario.SenderShared() {
				if err := repo.UpdateGroup(ctx, input.GroupID, map[string]any{
					"shared_sender_signature": input.Sender,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply sender signature")
				}
			} else {
				target, err := memberAtIndex(group, input.SenderStopIndex)
				if err != nil {
					return err
				}
				if err := repo.Update(ctx, target.ID, map[string]any{
					"sender_signature": input.Sender,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply sender signature")
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.lifecycle.Transition(ctx, orders.TransitionInput{
		OrderID: orderID,
		Target:  enums.OrderStatusPickedUp,
		Actor:   orders.SystemActor,
	})
}

func memberAtIndex(group []models.CMR, stopIndex int) (*models.CMR, error) {
	for i := range group {
		if group[i].StopIndex == stopIndex {
			return &group[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("stop index %d not in group", stopIndex))
}

func consigneeParties(order *models.Order) []partySnapshot {
	parties := []partySnapshot{{
		ContactName: order.DeliveryContactName,
		Address:     order.DeliveryAddress,
	}}
	for _, stop := range order.Stops {
		if stop.Kind == enums.StopKindDelivery {
			parties = append(parties, partySnapshot{
				ContactName: stop.ContactName,
				Address:     stop.Address,
			})
		}
	}
	return parties
}

func senderParties(order *models.Order) []partySnapshot {
	parties := []partySnapshot{{
		ContactName: order.PickupContactName,
		Address:     order.PickupAddress,
	}}
	for _, stop := range order.Stops {
		if stop.Kind == enums.StopKindPickup {
			parties = append(parties, partySnapshot{
				ContactName: stop.ContactName,
				Address:     stop.Address,
			})
		}
	}
	return parties
}
