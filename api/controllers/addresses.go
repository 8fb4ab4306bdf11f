package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/addresses"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type addressRequest struct {
	Label      string `json:"label" validate:"required,min=2"`
	Recipient  string `json:"recipient" validate:"required,min=2"`
	Phone      string `json:"phone" validate:"required,min=8"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Province   string `json:"province" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required,min=5"`
	IsDefault  bool   `json:"is_default"`
}

// CreateAddress adds a shipping address for the authenticated user.
func CreateAddress(repo addresses.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		address := &models.Address{
			UserID:     userID,
			Label:      req.Label,
			Recipient:  req.Recipient,
			Phone:      req.Phone,
			Street:     req.Street,
			City:       req.City,
			Province:   req.Province,
			PostalCode: req.PostalCode,
		}
		if err := repo.Create(r.Context(), address); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.IsDefault {
			if err := repo.SetDefault(r.Context(), userID, address.ID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			address.IsDefault = true
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, address)
	}
}

// ListAddresses returns the authenticated user's addresses.
func ListAddresses(repo addresses.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		list, err := repo.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SetDefaultAddress flips the user's default shipping address.
func SetDefaultAddress(repo addresses.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		address, err := loadOwnAddress(r, repo, id, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := repo.SetDefault(r.Context(), userID, address.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address.IsDefault = true
		responses.WriteSuccess(w, address)
	}
}

// DeleteAddress removes one of the user's addresses.
func DeleteAddress(repo addresses.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if _, err := loadOwnAddress(r, repo, id, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := repo.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String()})
	}
}

func loadOwnAddress(r *http.Request, repo addresses.Repository, id, userID uuid.UUID) (*models.Address, error) {
	address, err := repo.FindByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if address.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}
	return address, nil
}
