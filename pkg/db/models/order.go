package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// Order represents one shipment request from pickup to delivery.
// ContractorID stays null until a bid is accepted or an admin assigns
// a carrier directly.
type Order struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber  int64      `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID   uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	ContractorID *uuid.UUID `gorm:"column:contractor_id;type:uuid"`

	PickupAddress      types.Address `gorm:"column:pickup_address;type:address_t;not null"`
	PickupContactName  string        `gorm:"column:pickup_contact_name;not null"`
	PickupContactPhone string        `gorm:"column:pickup_contact_phone;not null"`
	PickupDate         time.Time     `gorm:"column:pickup_date;not null"`

	DeliveryAddress      types.Address `gorm:"column:delivery_address;type:address_t;not null"`
	DeliveryContactName  string        `gorm:"column:delivery_contact_name;not null"`
	DeliveryContactPhone string        `gorm:"column:delivery_contact_phone;not null"`
	DeliveryDate         time.Time     `gorm:"column:delivery_date;not null"`

	CargoDescription string           `gorm:"column:cargo_description;not null"`
	WeightKg         *decimal.Decimal `gorm:"column:weight_kg;type:numeric(10,2)"`

	// Price is what the customer pays. ContractorPrice defaults to the
	// platform commission split and is pinned to the accepted bid amount
	// once a bid wins; later price edits never touch it.
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ContractorPrice decimal.Decimal `gorm:"column:contractor_price;type:numeric(12,2);not null"`

	Status enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`

	Stops []OrderStop `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Bids  []Bid       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	AcceptedAt  *time.Time `gorm:"column:accepted_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
