package enums

import "fmt"

// StopKind distinguishes pickup stops from delivery stops on an order route.
type StopKind string

const (
	StopKindPickup   StopKind = "pickup"
	StopKindDelivery StopKind = "delivery"
)

var validStopKinds = []StopKind{
	StopKindPickup,
	StopKindDelivery,
}

// IsValid reports whether the value is a known StopKind.
func (s StopKind) IsValid() bool {
	for _, candidate := range validStopKinds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStopKind converts raw input into a StopKind.
func ParseStopKind(value string) (StopKind, error) {
	for _, candidate := range validStopKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stop kind %q", value)
}
