package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// CMR is the consignment note for one delivery stop of an order. All
// CMRs of an order share a GroupID. Party blocks are snapshots taken
// at creation time so the legal document stays stable even if the
// underlying profiles change later.
//
// The Shared* signature columns are a cache of the propagation
// resolution (one physical signing event covering several stops);
// renders always recompute the resolution from current rows and the
// cache is rewritten to match.
type CMR struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CMRNumber string    `gorm:"column:cmr_number;not null;uniqueIndex"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`

	StopIndex   int  `gorm:"column:stop_index;not null"`
	TotalStops  int  `gorm:"column:total_stops;not null"`
	IsMultiStop bool `gorm:"column:is_multi_stop;not null;default:false"`

	SenderName       string        `gorm:"column:sender_name;not null"`
	SenderAddress    types.Address `gorm:"column:sender_address;type:address_t;not null"`
	ConsigneeName    string        `gorm:"column:consignee_name;not null"`
	ConsigneeAddress types.Address `gorm:"column:consignee_address;type:address_t;not null"`
	CarrierName      string        `gorm:"column:carrier_name;not null"`
	CarrierAddress   types.Address `gorm:"column:carrier_address;type:address_t;not null"`

	GoodsDescription string           `gorm:"column:goods_description;not null"`
	WeightKg         *decimal.Decimal `gorm:"column:weight_kg;type:numeric(10,2)"`

	SenderSignature    *types.Signature `gorm:"column:sender_signature;type:jsonb;serializer:json"`
	CarrierSignature   *types.Signature `gorm:"column:carrier_signature;type:jsonb;serializer:json"`
	ConsigneeSignature *types.Signature `gorm:"column:consignee_signature;type:jsonb;serializer:json"`

	SharedSenderSignature    *types.Signature `gorm:"column:shared_sender_signature;type:jsonb;serializer:json"`
	SharedCarrierSignature   *types.Signature `gorm:"column:shared_carrier_signature;type:jsonb;serializer:json"`
	SharedConsigneeSignature *types.Signature `gorm:"column:shared_consignee_signature;type:jsonb;serializer:json"`

	DeliveryPhoto *types.DeliveryPhoto `gorm:"column:delivery_photo;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StopComplete reports whether this stop's delivery has been proven:
// a consignee signature, a delivery photo, or an inherited shared
// consignee signature all count.
func (c CMR) StopComplete() bool {
	if c.ConsigneeSignature != nil && !c.ConsigneeSignature.IsZero() {
		return true
	}
	if c.DeliveryPhoto != nil && !c.DeliveryPhoto.IsZero() {
		return true
	}
	if c.SharedConsigneeSignature != nil && !c.SharedConsigneeSignature.IsZero() {
		return true
	}
	return false
}
