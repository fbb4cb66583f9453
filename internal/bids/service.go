package bids

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	dbpkg "github.com/freightlinkhq/freightlink-backend/pkg/db"
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

// Service owns the bid ledger and the acceptance engine.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Bid, error)
	Accept(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error
	Reject(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error
	Withdraw(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error
	AmendAmount(ctx context.Context, bidID uuid.UUID, actor orders.Actor, amount decimal.Decimal) error
	ListForOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Bid, error)
}

type service struct {
	repo        Repository
	ordersRepo  OrderReader
	tx          txRunner
	outbox      outboxPublisher
	eligibility EligibilityChecker
	admins      AdminDirectory
	notifier    Notifier
	logg        *logger.Logger
}

// NewService builds the bid service.
func NewService(
	repo Repository,
	ordersRepo OrderReader,
	tx txRunner,
	outboxPub outboxPublisher,
	eligibility EligibilityChecker,
	admins AdminDirectory,
	notifier Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bids repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if eligibility == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	return &service{
		repo:        repo,
		ordersRepo:  ordersRepo,
		tx:          tx,
		outbox:      outboxPub,
		eligibility: eligibility,
		admins:      admins,
		notifier:    notifier,
		logg:        logg,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Bid, error) {
	if input.OrderID == uuid.Nil || input.ContractorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and contractor id required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}

	eligible, err := s.eligibility.IsContractorEligible(ctx, input.ContractorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check contractor eligibility")
	}
	if !eligible {
		return nil, pkgerrors.New(pkgerrors.CodeNotEligible, "contractor is not verified")
	}

	order, err := s.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order is no longer accepting bids")
	}
	if order.CustomerID == input.ContractorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot bid on your own order")
	}

	exists, err := s.repo.ExistsForOrderAndContractor(ctx, input.OrderID, input.ContractorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing bid")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateBid, "contractor already bid on this order")
	}

	bid := &models.Bid{
		OrderID:      input.OrderID,
		ContractorID: input.ContractorID,
		Amount:       input.Amount,
		Message:      input.Message,
		Status:       enums.BidStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, bid); err != nil {
			// The unique index is the authority; a concurrent duplicate
			// surfaces here rather than in the pre-check above.
			if dbpkg.IsUniqueViolation(err, "ux_bids_order_contractor") {
				return pkgerrors.New(pkgerrors.CodeDuplicateBid, "contractor already bid on this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidSubmitted,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Version:       1,
			Data: BidSubmittedEvent{
				BidID:        bid.ID,
				OrderID:      bid.OrderID,
				ContractorID: bid.ContractorID,
				Amount:       bid.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.fanOutSubmitted(ctx, order, bid)
	return bid, nil
}

// fanOutSubmitted notifies the customer and every admin that a bid
// landed. Failures are swallowed; notifications never gate the ledger.
func (s *service) fanOutSubmitted(ctx context.Context, order *models.Order, bid *models.Bid) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"bid_id":       bid.ID.String(),
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"amount":       bid.Amount.String(),
	}
	s.notifier.Notify(ctx, order.CustomerID, enums.NotificationTypeBidSubmitted, payload)

	if s.admins == nil {
		return
	}
	recipients, err := s.admins.AdminRecipients(ctx)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"error": err.Error(),
			}), "bids.admin_fanout.recipients_failed")
		}
		return
	}
	for _, recipient := range recipients {
		s.notifier.Notify(ctx, recipient, enums.NotificationTypeBidSubmitted, payload)
	}
}

// Accept crowns exactly one winner. Every write happens in one
// transaction, and the final order update is conditional on the order
// still being pending at write time; losing that race aborts the whole
// transaction so no sibling rejection or bid acceptance leaks out.
func (s *service) Accept(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
	if bidID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	return s.retryOnce(ctx, func() error {
		return s.accept(ctx, bidID, actor)
	})
}

func (s *service) accept(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		bid, err := repo.FindByID(ctx, bidID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bid is not pending")
		}

		// The price is re-read inside the transaction so an amount the
		// customer raised after the bid was placed is the one captured
		// on acceptance.
		order, err := ordersRepo.FindByID(ctx, bid.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeAccept(order, actor); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order is no longer pending")
		}

		if err := repo.UpdateStatus(ctx, bid.ID, enums.BidStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept bid")
		}
		if err := repo.RejectSiblings(ctx, bid.OrderID, bid.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject sibling bids")
		}

		affected, err := ordersRepo.AssignContractorIf(ctx, order.ID, bid.ContractorID, order.Price, bid.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign contractor")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order was taken concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidAccepted,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Version:       1,
			Data: BidAcceptedEvent{
				BidID:         bid.ID,
				OrderID:       order.ID,
				ContractorID:  bid.ContractorID,
				CustomerID:    order.CustomerID,
				Amount:        bid.Amount,
				CustomerPrice: order.Price,
			},
		})
	})
}

func (s *service) Reject(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
	if bidID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bid, err := repo.FindByID(ctx, bidID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bid is not pending")
		}

		order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, bid.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeAccept(order, actor); err != nil {
			return err
		}

		if err := repo.UpdateStatus(ctx, bid.ID, enums.BidStatusRejected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject bid")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidRejected,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Version:       1,
			Data: BidSubmittedEvent{
				BidID:        bid.ID,
				OrderID:      bid.OrderID,
				ContractorID: bid.ContractorID,
				Amount:       bid.Amount,
			},
		})
	})
}

// Withdraw removes a contractor's own pending bid. An accepted or
// rejected bid is part of the order's history and cannot be withdrawn.
func (s *service) Withdraw(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
	if bidID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bid, err := repo.FindByID(ctx, bidID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		if !actor.System && actor.Role != enums.UserRoleAdmin && actor.UserID != bid.ContractorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the bidding contractor may withdraw")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending bids can be withdrawn")
		}
		if err := repo.Delete(ctx, bid.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw bid")
		}
		return nil
	})
}

// AmendAmount replaces the offer amount on a pending bid while the
// order is still open for bidding. Bids are otherwise immutable once
// decided, so the edit is an admin capability; contractors withdraw
// and resubmit instead.
func (s *service) AmendAmount(ctx context.Context, bidID uuid.UUID, actor orders.Actor, amount decimal.Decimal) error {
	if bidID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bid, err := repo.FindByID(ctx, bidID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		if !actor.System && actor.Role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "bid amount edits require admin capability")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending bids can be amended")
		}

		order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, bid.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeOrderUnavailable, "order is no longer accepting bids")
		}

		if err := repo.UpdateAmount(ctx, bid.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "amend bid amount")
		}
		return nil
	})
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Bid, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := authorizeAccept(order, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return rows, nil
}

// retryOnce reruns fn a single time after a retryable dependency
// failure. Domain outcomes, OrderUnavailable included, are final and
// never retried.
func (s *service) retryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || !pkgerrors.MetadataFor(typed.Code()).Retryable {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"error": err.Error(),
		}), "bids.accept.retrying")
	}
	return fn()
}

// authorizeAccept gates customer-side bid decisions to the order owner
// or an admin.
func authorizeAccept(order *models.Order, actor orders.Actor) error {
	if actor.System || actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if actor.Role == enums.UserRoleCustomer && actor.UserID == order.CustomerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not the owner of this order")
}
