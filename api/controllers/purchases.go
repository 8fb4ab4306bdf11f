package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type shipmentRequest struct {
	TrackingNumber string  `json:"tracking_number" validate:"required,min=4"`
	Courier        string  `json:"courier" validate:"required"`
	ProofURL       *string `json:"proof_url,omitempty"`
}

type overrideStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListMyPurchases lists the buyer's purchases, newest first.
func ListMyPurchases(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListByBuyer(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListStorePurchases lists incoming orders for the seller's store.
func ListStorePurchases(svc purchases.Service, storeRepo stores.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeRepo.FindByOwner(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByStore(r.Context(), store.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetPurchase returns one purchase to its buyer, its seller, or an admin.
func GetPurchase(svc purchases.Service, storeRepo stores.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizePurchaseAccess(r, storeRepo, purchase); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// SellerConfirmPurchase moves a paid purchase into processing.
func SellerConfirmPurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseTransition(logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error) {
		return svc.SellerConfirm(r.Context(), nil, id, actorID)
	})
}

// SellerShipPurchase records the shipment and moves the purchase to shipped.
func SellerShipPurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req shipmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.SellerShip(r.Context(), nil, id, middleware.UserIDFromContext(r.Context()), purchases.ShipmentInput{
			TrackingNumber: req.TrackingNumber,
			Courier:        req.Courier,
			ProofURL:       req.ProofURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// BuyerConfirmReceipt acknowledges delivery.
func BuyerConfirmReceipt(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseTransition(logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error) {
		return svc.BuyerConfirmReceipt(r.Context(), nil, id, actorID)
	})
}

// CompletePurchase settles the purchase and credits the seller.
func CompletePurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseTransition(logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error) {
		return svc.Complete(r.Context(), nil, id, actorID)
	})
}

// CancelPurchase aborts a purchase that has not shipped.
func CancelPurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseTransition(logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error) {
		return svc.Cancel(r.Context(), nil, id, actorID)
	})
}

// ForceCompletePurchase is the admin override that settles a disputed
// purchase as if it completed normally.
func ForceCompletePurchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseTransition(logg, func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error) {
		return svc.ForceComplete(r.Context(), nil, id, actorID)
	})
}

// OverridePurchaseStatus forces a status with no settlement side effects.
func OverridePurchaseStatus(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req overrideStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.PurchaseStatus(req.Status)
		if !status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown purchase status"))
			return
		}
		purchase, err := svc.Override(r.Context(), nil, id, status, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

func purchaseTransition(logg *logger.Logger, fn func(r *http.Request, id, actorID uuid.UUID) (*models.Purchase, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchase, err := fn(r, id, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

func authorizePurchaseAccess(r *http.Request, storeRepo stores.Repository, purchase *models.Purchase) error {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	role := middleware.RoleFromContext(ctx)

	switch role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleBuyer:
		if purchase.BuyerID == userID {
			return nil
		}
	case enums.RoleSeller:
		ownerID, err := storeRepo.OwnerID(ctx, purchase.StoreID)
		if err == nil && ownerID == userID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "purchase belongs to another account")
}
