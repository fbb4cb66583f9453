package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freightlinkhq/freightlink-backend/api/responses"
	"github.com/freightlinkhq/freightlink-backend/api/validators"
	"github.com/freightlinkhq/freightlink-backend/internal/cmr"
	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs"
	internalorders "github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/db/models"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	pkgerrors "github.com/freightlinkhq/freightlink-backend/pkg/errors"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/types"
)

// GetCMRGroup returns the consignment notes of a group, ascending by
// stop index.
func GetCMRGroup(svc cmr.Service, ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cmr service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetGroup(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := authorizeGroupAccess(r, ordersSvc, group, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, group)
	}
}

// GetCMRGroupForOrder returns the notes belonging to an order.
func GetCMRGroupForOrder(svc cmr.Service, ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cmr service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GroupForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := authorizeGroupAccess(r, ordersSvc, group, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, group)
	}
}

type completeStopRequest struct {
	Signature *types.Signature     `json:"signature,omitempty"`
	Photo     *types.DeliveryPhoto `json:"photo,omitempty"`
}

// CompleteStop records delivery proof on one note. Only the assigned
// contractor (or an admin) may sign off a stop.
func CompleteStop(svc cmr.Service, repo cmr.Repository, ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cmr service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmrID, err := pathUUID(r, "cmrId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := repo.FindByID(r.Context(), cmrID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "consignment note not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consignment note"))
			return
		}
		if err := authorizeCarrierAction(r, ordersSvc, note.OrderID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body completeStopRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		next, err := svc.RecordStopCompletion(r.Context(), cmrID, cmr.StopProof{
			Signature: body.Signature,
			Photo:     body.Photo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"completed": true}
		if next != nil {
			payload["next_stop_index"] = next.StopIndex
			payload["next_cmr_id"] = next.ID
		}
		responses.WriteSuccess(w, payload)
	}
}

type pickupSignaturesRequest struct {
	Sender          *types.Signature `json:"sender,omitempty"`
	Carrier         *types.Signature `json:"carrier,omitempty"`
	SenderStopIndex int              `json:"sender_stop_index"`
}

// RecordPickupSignatures captures the sender and carrier signing
// events at pickup time.
func RecordPickupSignatures(svc cmr.Service, ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cmr service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetGroup(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(group) > 0 {
			if err := authorizeCarrierAction(r, ordersSvc, group[0].OrderID, actor); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var body pickupSignaturesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.RecordPickupSignatures(r.Context(), cmr.PickupSignaturesInput{
			GroupID:         groupID,
			Sender:          body.Sender,
			Carrier:         body.Carrier,
			SenderStopIndex: body.SenderStopIndex,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// DownloadCMRDocument streams the latest merged artifact of a group.
func DownloadCMRDocument(docs cmrdocs.Service, ordersSvc internalorders.Service, groups cmr.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if docs == nil || groups == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := groups.GetGroup(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeGroupAccess(r, ordersSvc, group, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		artifact, data, err := docs.LatestArtifact(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// authorizeGroupAccess checks that the actor may see the group's
// parent order: its customer, its assigned contractor, or an admin.
func authorizeGroupAccess(r *http.Request, ordersSvc internalorders.Service, group []models.CMR, actor internalorders.Actor) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if len(group) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "consignment group not found")
	}
	if ordersSvc == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
	}
	order, err := ordersSvc.Get(r.Context(), group[0].OrderID)
	if err != nil {
		return err
	}
	switch actor.Role {
	case enums.UserRoleCustomer:
		if order.CustomerID == actor.UserID {
			return nil
		}
	case enums.UserRoleContractor:
		if order.ContractorID != nil && *order.ContractorID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "consignment group not visible to actor")
}

// authorizeCarrierAction restricts signing operations to the assigned
// contractor or an admin.
func authorizeCarrierAction(r *http.Request, ordersSvc internalorders.Service, orderID uuid.UUID, actor internalorders.Actor) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if actor.Role != enums.UserRoleContractor {
		return pkgerrors.New(pkgerrors.CodeForbidden, "carrier role required")
	}
	if ordersSvc == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
	}
	order, err := ordersSvc.Get(r.Context(), orderID)
	if err != nil {
		return err
	}
	if order.ContractorID == nil || *order.ContractorID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another carrier")
	}
	return nil
}
