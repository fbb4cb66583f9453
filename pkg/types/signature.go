package types

import (
	"strings"
	"time"
)

// Geolocation is the capture point recorded alongside a signature.
type Geolocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Signature is one captured signing event on a consignment note.
// ImageKey references the stored signature image; the struct is
// persisted as jsonb so a CMR row stays a self-contained snapshot.
type Signature struct {
	ImageKey   string       `json:"image_key"`
	SignerName string       `json:"signer_name"`
	SignedAt   time.Time    `json:"signed_at"`
	Location   *Geolocation `json:"location,omitempty"`
}

// IsZero reports whether no signing event has been captured.
func (s Signature) IsZero() bool {
	return strings.TrimSpace(s.ImageKey) == "" && s.SignedAt.IsZero()
}

// DeliveryPhoto substitutes for a consignee signature when the
// recipient is unavailable at the stop.
type DeliveryPhoto struct {
	ImageKey   string       `json:"image_key"`
	CapturedBy string       `json:"captured_by"`
	CapturedAt time.Time    `json:"captured_at"`
	Location   *Geolocation `json:"location,omitempty"`
}

// IsZero reports whether no photo has been captured.
func (p DeliveryPhoto) IsZero() bool {
	return strings.TrimSpace(p.ImageKey) == "" && p.CapturedAt.IsZero()
}
