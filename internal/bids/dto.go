package bids

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitInput carries a contractor's offer for a pending order.
// No bounds are enforced on Amount: contractors may freely underbid
// or overbid the customer price.
type SubmitInput struct {
	OrderID      uuid.UUID
	ContractorID uuid.UUID
	Amount       decimal.Decimal
	Message      *string
}

// BidSubmittedEvent is emitted when a new bid lands on the ledger.
type BidSubmittedEvent struct {
	BidID        uuid.UUID       `json:"bid_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ContractorID uuid.UUID       `json:"contractor_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// BidAcceptedEvent is emitted when exactly one bid wins an order. The
// CMR worker consumes it to create the consignment-note group as a
// decoupled side effect of acceptance.
type BidAcceptedEvent struct {
	BidID         uuid.UUID       `json:"bid_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	ContractorID  uuid.UUID       `json:"contractor_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerPrice decimal.Decimal `json:"customer_price"`
}
