package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
)

// BidSubmittedEvent is emitted when a contractor places a bid.
type BidSubmittedEvent struct {
	BidID        uuid.UUID       `json:"bid_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ContractorID uuid.UUID       `json:"contractor_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// BidAcceptedEvent is emitted when the customer accepts a bid and the
// order is assigned.
type BidAcceptedEvent struct {
	BidID         uuid.UUID       `json:"bid_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	ContractorID  uuid.UUID       `json:"contractor_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerPrice decimal.Decimal `json:"customer_price"`
}

// BidRejectedEvent is emitted when a pending bid is explicitly rejected.
type BidRejectedEvent struct {
	BidID        uuid.UUID       `json:"bid_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ContractorID uuid.UUID       `json:"contractor_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// OrderStatusChangedEvent records a lifecycle transition, including
// admin overrides and cancellations.
type OrderStatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	CustomerID   uuid.UUID         `json:"customer_id"`
	ContractorID *uuid.UUID        `json:"contractor_id,omitempty"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	Override     bool              `json:"override,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

// CMRGroupCreatedEvent is emitted once the consignment note group for
// an assigned order exists.
type CMRGroupCreatedEvent struct {
	GroupID    uuid.UUID `json:"group_id"`
	OrderID    uuid.UUID `json:"order_id"`
	TotalStops int       `json:"total_stops"`
}

// CMRStopCompletedEvent marks one delivery stop as signed off.
type CMRStopCompletedEvent struct {
	GroupID   uuid.UUID `json:"group_id"`
	OrderID   uuid.UUID `json:"order_id"`
	CMRID     uuid.UUID `json:"cmr_id"`
	StopIndex int       `json:"stop_index"`
}

// CMRGroupCompletedEvent fires when every stop of the group has proof
// of delivery.
type CMRGroupCompletedEvent struct {
	GroupID    uuid.UUID `json:"group_id"`
	OrderID    uuid.UUID `json:"order_id"`
	TotalStops int       `json:"total_stops"`
}

// CMRDocumentMergedEvent announces a merged, downloadable artifact.
type CMRDocumentMergedEvent struct {
	GroupID   uuid.UUID `json:"group_id"`
	OrderID   uuid.UUID `json:"order_id"`
	ObjectKey string    `json:"object_key"`
	Filename  string    `json:"filename"`
}
