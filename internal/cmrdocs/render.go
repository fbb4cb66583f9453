package cmrdocs

import (
	"fmt"
	"time"

	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs/layout"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// BuildDocument lays out one consignment note. The layout is a pure
// function of the note and its parent order: timestamps are fixed to
// UTC and every field is emitted in a stable sequence, so the same
// inputs always produce the same document.
func BuildDocument(cmr models.CMR, order *models.Order) layout.Document {
	doc := layout.Document{
		Title: fmt.Sprintf("CMR %s - stop %d of %d", cmr.CMRNumber, cmr.StopIndex+1, cmr.TotalStops),
	}

	doc.Sections = append(doc.Sections, layout.Section{
		Heading: "Shipment",
		Fields: []layout.Field{
			{Label: "Order", Value: fmt.Sprintf("%d", order.OrderNumber)},
			{Label: "Group", Value: cmr.GroupID.String()},
			{Label: "Multi-stop", Value: fmt.Sprintf("%t", cmr.IsMultiStop)},
		},
	})

	doc.Sections = append(doc.Sections,
		partySection("Sender", cmr.SenderName, cmr.SenderAddress),
		partySection("Consignee", cmr.ConsigneeName, cmr.ConsigneeAddress),
		partySection("Carrier", cmr.CarrierName, cmr.CarrierAddress),
	)

	goods := layout.Section{
		Heading: "Goods",
		Rows:    [][]string{{"Description", "Weight (kg)"}},
	}
	weight := "-"
	if cmr.WeightKg != nil {
		weight = cmr.WeightKg.StringFixed(2)
	}
	goods.Rows = append(goods.Rows, []string{cmr.GoodsDescription, weight})
	doc.Sections = append(doc.Sections, goods)

	doc.Sections = append(doc.Sections,
		signatureSection("Sender signature", effective(cmr.SenderSignature, cmr.SharedSenderSignature)),
		signatureSection("Carrier signature", effective(cmr.CarrierSignature, cmr.SharedCarrierSignature)),
		signatureSection("Consignee signature", effective(cmr.ConsigneeSignature, cmr.SharedConsigneeSignature)),
	)

	if cmr.DeliveryPhoto != nil && !cmr.DeliveryPhoto.IsZero() {
		photo := layout.Section{
			Heading: "Delivery photo",
			Fields: []layout.Field{
				{Label: "Image", Value: cmr.DeliveryPhoto.ImageKey},
				{Label: "Captured by", Value: cmr.DeliveryPhoto.CapturedBy},
				{Label: "Captured at", Value: cmr.DeliveryPhoto.CapturedAt.UTC().Format(time.RFC3339)},
			},
		}
		if cmr.DeliveryPhoto.Location != nil {
			photo.Fields = append(photo.Fields, layout.Field{
				Label: "Location",
				Value: fmt.Sprintf("%.6f,%.6f", cmr.DeliveryPhoto.Location.Lat, cmr.DeliveryPhoto.Location.Lng),
			})
		}
		doc.Sections = append(doc.Sections, photo)
	}

	return doc
}

// effective prefers the stop-specific signing event over the shared
// one inherited from the group.
func effective(own, shared *types.Signature) *types.Signature {
	if own != nil && !own.IsZero() {
		return own
	}
	if shared != nil && !shared.IsZero() {
		return shared
	}
	return nil
}

func partySection(heading, name string, address types.Address) layout.Section {
	return layout.Section{
		Heading: heading,
		Fields: []layout.Field{
			{Label: "Name", Value: name},
			{Label: "Address", Value: address.String()},
		},
	}
}

func signatureSection(heading string, sig *types.Signature) layout.Section {
	section := layout.Section{Heading: heading}
	if sig == nil {
		section.Fields = []layout.Field{{Label: "Status", Value: "not captured"}}
		return section
	}
	section.Fields = []layout.Field{
		{Label: "Signed by", Value: sig.SignerName},
		{Label: "Signed at", Value: sig.SignedAt.UTC().Format(time.RFC3339)},
		{Label: "Image", Value: sig.ImageKey},
	}
	if sig.Location != nil {
		section.Fields = append(section.Fields, layout.Field{
			Label: "Location",
			Value: fmt.Sprintf("%.6f,%.6f", sig.Location.Lat, sig.Location.Lng),
		})
	}
	return section
}
