package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/api/responses"
	"github.com/freightlinkhq/freightlink-backend/api/validators"
	internalorders "github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/pagination"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

type orderStopRequest struct {
	Address      types.Address `json:"address" validate:"required"`
	ContactName  string        `json:"contact_name" validate:"required"`
	ContactPhone string        `json:"contact_phone" validate:"required"`
	Notes        *string       `json:"notes,omitempty"`
}

type createOrderRequest struct {
	PickupAddress        types.Address      `json:"pickup_address" validate:"required"`
	PickupContactName    string             `json:"pickup_contact_name" validate:"required"`
	PickupContactPhone   string             `json:"pickup_contact_phone" validate:"required"`
	PickupDate           time.Time          `json:"pickup_date" validate:"required"`
	DeliveryAddress      types.Address      `json:"delivery_address" validate:"required"`
	DeliveryContactName  string             `json:"delivery_contact_name" validate:"required"`
	DeliveryContactPhone string             `json:"delivery_contact_phone" validate:"required"`
	DeliveryDate         time.Time          `json:"delivery_date" validate:"required"`
	CargoDescription     string             `json:"cargo_description" validate:"required"`
	WeightKg             *decimal.Decimal   `json:"weight_kg,omitempty"`
	Price                decimal.Decimal    `json:"price" validate:"required"`
	PickupStops          []orderStopRequest `json:"pickup_stops,omitempty" validate:"dive"`
	DeliveryStops        []orderStopRequest `json:"delivery_stops,omitempty" validate:"dive"`
}

// CreateOrder registers a shipment order for the authenticated customer.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateInput{
			CustomerID:           actor.UserID,
			PickupAddress:        body.PickupAddress,
			PickupContactName:    validators.SanitizeString(body.PickupContactName, 120),
			PickupContactPhone:   validators.SanitizeString(body.PickupContactPhone, 32),
			PickupDate:           body.PickupDate,
			DeliveryAddress:      body.DeliveryAddress,
			DeliveryContactName:  validators.SanitizeString(body.DeliveryContactName, 120),
			DeliveryContactPhone: validators.SanitizeString(body.DeliveryContactPhone, 32),
			DeliveryDate:         body.DeliveryDate,
			CargoDescription:     validators.SanitizeString(body.CargoDescription, 2000),
			WeightKg:             body.WeightKg,
			Price:                body.Price,
			PickupStops:          buildStopInputs(enums.StopKindPickup, body.PickupStops),
			DeliveryStops:        buildStopInputs(enums.StopKindDelivery, body.DeliveryStops),
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders pages orders by actor perspective: customers see their
// own, contractors browse the pending board, admins filter by status.
func ListOrders(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var (
			items  []models.Order
			cursor string
		)
		switch actor.Role {
		case enums.UserRoleCustomer:
			items, cursor, err = repo.ListByCustomer(r.Context(), actor.UserID, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders"))
				return
			}
		case enums.UserRoleContractor, enums.UserRoleAdmin:
			status := enums.OrderStatusPending
			if actor.Role == enums.UserRoleAdmin {
				if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
					parsed, parseErr := enums.ParseOrderStatus(raw)
					if parseErr != nil {
						responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
						return
					}
					status = parsed
				}
			}
			items, cursor, err = repo.ListByStatus(r.Context(), status, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders by status"))
				return
			}
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "unsupported role"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

// OrderDetail returns one order with its stops after an ownership check.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch actor.Role {
		case enums.UserRoleAdmin:
		case enums.UserRoleCustomer:
			if order.CustomerID != actor.UserID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer"))
				return
			}
		case enums.UserRoleContractor:
			assigned := order.ContractorID != nil && *order.ContractorID == actor.UserID
			if !assigned && order.Status != enums.OrderStatusPending {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to contractor"))
				return
			}
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "unsupported role"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

type transitionRequest struct {
	Target string `json:"target" validate:"required"`
}

// TransitionOrder requests a happy-path status transition.
func TransitionOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(body.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		input := internalorders.TransitionInput{
			OrderID: orderID,
			Target:  target,
			Actor:   actor,
		}
		if err := svc.Transition(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// CancelOrder cancels a not-yet-completed order.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		if err := svc.Cancel(r.Context(), orderID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type overrideRequest struct {
	Target string `json:"target" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// AdminOverrideOrder force-sets an order status outside the transition
// table. The reason is mandatory and lands in the audit event.
func AdminOverrideOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var body overrideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(body.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		input := internalorders.OverrideInput{
			OrderID: orderID,
			Target:  target,
			Actor:   actor,
			Reason:  validators.SanitizeString(body.Reason, 500),
		}
		if err := svc.AdminOverride(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func buildStopInputs(kind enums.StopKind, stops []orderStopRequest) []internalorders.StopInput {
	if len(stops) == 0 {
		return nil
	}
	out := make([]internalorders.StopInput, 0, len(stops))
	for _, st := range stops {
		out = append(out, internalorders.StopInput{
			Kind:         kind,
			Address:      st.Address,
			ContactName:  validators.SanitizeString(st.ContactName, 120),
			ContactPhone: validators.SanitizeString(st.ContactPhone, 32),
			Notes:        st.Notes,
		})
	}
	return out
}
