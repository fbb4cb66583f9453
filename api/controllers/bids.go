package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/api/responses"
	"github.com/freightlinkhq/freightlink-backend/api/validators"
	"github.com/freightlinkhq/freightlink-backend/internal/bids"
	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
)

type bidActionFunc func(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error

type submitBidRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Message *string         `json:"message,omitempty"`
}

// SubmitBid places a contractor's offer on a pending order.
func SubmitBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitBidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.Submit(r.Context(), bids.SubmitInput{
			OrderID:      orderID,
			ContractorID: actor.UserID,
			Amount:       body.Amount,
			Message:      body.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

// ListBidsForOrder returns the ledger of an order, visibility-checked
// against the actor.
func ListBidsForOrder(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForOrder(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AcceptBid picks the winning bid and assigns the order.
func AcceptBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return bidAction(logg, func(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
		if svc == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable")
		}
		return svc.Accept(ctx, bidID, actor)
	})
}

// RejectBid declines a pending bid.
func RejectBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return bidAction(logg, func(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
		if svc == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable")
		}
		return svc.Reject(ctx, bidID, actor)
	})
}

// WithdrawBid lets the bidding contractor pull a pending bid.
func WithdrawBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return bidAction(logg, func(ctx context.Context, bidID uuid.UUID, actor orders.Actor) error {
		if svc == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable")
		}
		return svc.Withdraw(ctx, bidID, actor)
	})
}

type amendBidRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// AmendBid replaces the amount of a pending bid.
func AmendBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body amendBidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AmendAmount(r.Context(), bidID, actor, body.Amount); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func bidAction(logg *logger.Logger, action bidActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := action(r.Context(), bidID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
