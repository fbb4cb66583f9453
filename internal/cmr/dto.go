package cmr

import (
	"github.com/google/uuid"

	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// StopProof is the delivery evidence for one stop: a consignee
// signature or, when the recipient is unavailable, a photo. Exactly
// one must be set.
type StopProof struct {
	Signature *types.Signature
	Photo     *types.DeliveryPhoto
}

// IsZero reports whether no evidence was supplied.
func (p StopProof) IsZero() bool {
	if p.Signature != nil && !p.Signature.IsZero() {
		return false
	}
	if p.Photo != nil && !p.Photo.IsZero() {
		return false
	}
	return true
}

// PickupSignaturesInput carries the signing events captured at pickup.
// SenderStopIndex selects which note receives the sender signature
// when the propagation scenario keeps senders stop-specific.
type PickupSignaturesInput struct {
	GroupID         uuid.UUID
	Sender          *types.Signature
	Carrier         *types.Signature
	SenderStopIndex int
}

// GroupCreatedEvent is emitted once per order when its group of notes
// is created.
type GroupCreatedEvent struct {
	GroupID    uuid.UUID `json:"group_id"`
	OrderID    uuid.UUID `json:"order_id"`
	TotalStops int       `json:"total_stops"`
}

// StopCompletedEvent is emitted when one stop's delivery is proven.
type StopCompletedEvent struct {
	GroupID   uuid.UUID `json:"group_id"`
	OrderID   uuid.UUID `json:"order_id"`
	CMRID     uuid.UUID `json:"cmr_id"`
	StopIndex int       `json:"stop_index"`
}

// GroupCompletedEvent is emitted when every stop of the group is
// proven; the document worker consumes it to run the merge.
type GroupCompletedEvent struct {
	GroupID    uuid.UUID `json:"group_id"`
	OrderID    uuid.UUID `json:"order_id"`
	TotalStops int       `json:"total_stops"`
}
