package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
)

// Bid is one contractor's priced offer for one pending order. The
// composite unique index enforces at most one bid per (order,
// contractor) pair at the datastore, not in application code.
type Bid struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_bids_order_contractor"`
	ContractorID uuid.UUID       `gorm:"column:contractor_id;type:uuid;not null;uniqueIndex:ux_bids_order_contractor"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Message      *string         `gorm:"column:message"`
	Status       enums.BidStatus `gorm:"column:status;type:bid_status;not null;default:'pending'"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
