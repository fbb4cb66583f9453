package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// OrderStop is one extra pickup or delivery location beyond the
// mandatory endpoints. Position preserves the customer-supplied order.
type OrderStop struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	Kind         enums.StopKind `gorm:"column:kind;type:stop_kind;not null"`
	Position     int            `gorm:"column:position;not null"`
	Address      types.Address  `gorm:"column:address;type:address_t;not null"`
	ContactName  string         `gorm:"column:contact_name;not null"`
	ContactPhone string         `gorm:"column:contact_phone;not null"`
	Notes        *string        `gorm:"column:notes"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}
