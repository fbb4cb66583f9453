package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// Actor identifies who is requesting a state change. System is set on
// internally-triggered transitions (group completion, pickup capture)
// which bypass per-role checks but never the transition table.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	System bool
}

// SystemActor is the actor used by internal flows.
var SystemActor = Actor{System: true}

// StopInput describes one extra route stop supplied at creation time.
type StopInput struct {
	Kind         enums.StopKind
	Address      types.Address
	ContactName  string
	ContactPhone string
	Notes        *string
}

// CreateInput carries everything needed to register a shipment order.
type CreateInput struct {
	CustomerID           uuid.UUID
	PickupAddress        types.Address
	PickupContactName    string
	PickupContactPhone   string
	PickupDate           time.Time
	DeliveryAddress      types.Address
	DeliveryContactName  string
	DeliveryContactPhone string
	DeliveryDate         time.Time
	CargoDescription     string
	WeightKg             *decimal.Decimal
	Price                decimal.Decimal
	PickupStops          []StopInput
	DeliveryStops        []StopInput
}

// TransitionInput requests a happy-path status transition.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
}

// OverrideInput requests an administrative status overwrite that
// bypasses the transition table.
type OverrideInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
	Reason  string
}

// StatusChangedEvent is emitted whenever an order changes status.
type StatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	CustomerID   uuid.UUID         `json:"customer_id"`
	ContractorID *uuid.UUID        `json:"contractor_id,omitempty"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	Override     bool              `json:"override,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}
