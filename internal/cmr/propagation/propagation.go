package propagation

import (
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// Scenario classifies how signatures spread across the consignment
// notes of one group. Exactly one scenario applies at a time, decided
// by comparing normalized sender and consignee addresses.
type Scenario int

const (
	// SingleSenderMultiConsignee: one pickup feeds several deliveries.
	// Sender and carrier signatures are shared; consignee signatures
	// stay stop-specific. A single-stop group resolves here too.
	SingleSenderMultiConsignee Scenario = iota
	// MultiSenderSingleConsignee: several pickups converge on one
	// delivery. Carrier and consignee signatures are shared; sender
	// signatures stay stop-specific.
	MultiSenderSingleConsignee
	// MultiSenderMultiConsignee: independent legs sharing only the
	// vehicle. Only the carrier signature is shared.
	MultiSenderMultiConsignee
)

func (s Scenario) String() string {
	switch s {
	case SingleSenderMultiConsignee:
		return "single_sender_multi_consignee"
	case MultiSenderSingleConsignee:
		return "multi_sender_single_consignee"
	case MultiSenderMultiConsignee:
		return "multi_sender_multi_consignee"
	default:
		return "unknown"
	}
}

// SenderShared reports whether one sender signature covers the group.
func (s Scenario) SenderShared() bool { return s == SingleSenderMultiConsignee }

// ConsigneeShared reports whether one consignee signature covers the
// group.
func (s Scenario) ConsigneeShared() bool { return s == MultiSenderSingleConsignee }

// Resolve classifies a group from its current rows. It is a pure
// function and must be re-run whenever a document is rendered: a late
// address correction can flip the scenario, so the persisted shared_*
// columns are only a cache of this result.
func Resolve(cmrs []models.CMR) Scenario {
	senders := make(map[string]struct{}, len(cmrs))
	consignees := make(map[string]struct{}, len(cmrs))
	for _, cmr := range cmrs {
		senders[cmr.SenderAddress.NormalizedKey()] = struct{}{}
		consignees[cmr.ConsigneeAddress.NormalizedKey()] = struct{}{}
	}
	switch {
	case len(senders) <= 1:
		return SingleSenderMultiConsignee
	case len(consignees) <= 1:
		return MultiSenderSingleConsignee
	default:
		return MultiSenderMultiConsignee
	}
}

// Propagate returns copies of the rows with the shared_* columns
// recomputed from the resolved scenario. The carrier signature, once
// captured on any row, always covers every stop: the same driver signs
// once for the whole run. Sender and consignee signatures spread only
// when their side of the route is single.
func Propagate(cmrs []models.CMR) ([]models.CMR, Scenario) {
	scenario := Resolve(cmrs)
	out := make([]models.CMR, len(cmrs))
	copy(out, cmrs)

	carrier := firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.CarrierSignature })
	if carrier == nil {
		carrier = firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.SharedCarrierSignature })
	}

	var sender, consignee *types.Signature
	if scenario.SenderShared() {
		sender = firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.SenderSignature })
		if sender == nil {
			sender = firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.SharedSenderSignature })
		}
	}
	if scenario.ConsigneeShared() {
		consignee = firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.ConsigneeSignature })
		if consignee == nil {
			consignee = firstSignature(cmrs, func(c models.CMR) *types.Signature { return c.SharedConsigneeSignature })
		}
	}

	for i := range out {
		out[i].SharedCarrierSignature = carrier
		out[i].SharedSenderSignature = sender
		out[i].SharedConsigneeSignature = consignee
	}
	return out, scenario
}

func firstSignature(cmrs []models.CMR, pick func(models.CMR) *types.Signature) *types.Signature {
	for _, cmr := range cmrs {
		if sig := pick(cmr); sig != nil && !sig.IsZero() {
			return sig
		}
	}
	return nil
}
