package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/checkout"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	Qty       int        `json:"qty" validate:"required,gt=0"`
	OfferID   *uuid.UUID `json:"offer_id,omitempty"`
}

type checkoutRequest struct {
	AddressID uuid.UUID             `json:"address_id" validate:"required"`
	Courier   string                `json:"courier,omitempty"`
	Note      *string               `json:"note,omitempty"`
	Items     []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Checkout turns a cart into per-store purchases with invoices.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, checkout.ItemInput{
				ProductID: item.ProductID,
				Qty:       item.Qty,
				OfferID:   item.OfferID,
			})
		}

		group, err := svc.Execute(r.Context(), checkout.ExecuteInput{
			BuyerID:   middleware.UserIDFromContext(r.Context()),
			AddressID: req.AddressID,
			Courier:   req.Courier,
			Note:      req.Note,
			Items:     items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, group)
	}
}

// GetCheckoutGroup returns one of the buyer's checkout groups.
func GetCheckoutGroup(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetGroup(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if group.BuyerID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "checkout group belongs to another buyer"))
			return
		}
		responses.WriteSuccess(w, group)
	}
}

// ListCheckoutGroups lists the buyer's checkout history.
func ListCheckoutGroups(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := svc.ListGroups(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}
