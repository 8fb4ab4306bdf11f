package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/complaints"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type fileComplaintRequest struct {
	PurchaseID  uuid.UUID `json:"purchase_id" validate:"required"`
	Reason      string    `json:"reason" validate:"required,min=10"`
	EvidenceURL *string   `json:"evidence_url,omitempty"`
}

type complaintDecisionRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=processing rejected"`
	Note     *string `json:"note,omitempty"`
}

type fileReturnRequest struct {
	ComplaintID uuid.UUID  `json:"complaint_id" validate:"required"`
	OrderLineID *uuid.UUID `json:"order_line_id,omitempty"`
	Reason      string     `json:"reason" validate:"required,min=10"`
}

type returnDecisionRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approved rejected"`
	Note     *string `json:"note,omitempty"`
}

// FileComplaint opens a complaint against one of the buyer's purchases.
func FileComplaint(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileComplaintRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.File(r.Context(), complaints.FileInput{
			PurchaseID:  req.PurchaseID,
			BuyerID:     middleware.UserIDFromContext(r.Context()),
			Reason:      req.Reason,
			EvidenceURL: req.EvidenceURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, complaint)
	}
}

// GetComplaint returns one complaint to its buyer or an admin.
func GetComplaint(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "complaintID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if middleware.RoleFromContext(r.Context()) != enums.RoleAdmin &&
			complaint.BuyerID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "complaint belongs to another buyer"))
			return
		}
		responses.WriteSuccess(w, complaint)
	}
}

// ListMyComplaints lists the buyer's complaints.
func ListMyComplaints(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListByBuyer(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ProcessComplaint is the admin decision on a waiting complaint.
func ProcessComplaint(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "complaintID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req complaintDecisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.Process(r.Context(), id, enums.ComplaintStatus(req.Decision), middleware.UserIDFromContext(r.Context()), req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, complaint)
	}
}

// FileReturn escalates a processing complaint into a goods return.
func FileReturn(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fileReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ret, err := svc.FileReturn(r.Context(), complaints.ReturnInput{
			ComplaintID: req.ComplaintID,
			BuyerID:     middleware.UserIDFromContext(r.Context()),
			OrderLineID: req.OrderLineID,
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ret)
	}
}

// GetReturn returns one return request.
func GetReturn(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ret, err := svc.GetReturn(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// ProcessReturn is the admin decision on a filed return.
func ProcessReturn(svc complaints.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req returnDecisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ret, err := svc.ProcessReturn(r.Context(), id, enums.ReturnStatus(req.Decision), middleware.UserIDFromContext(r.Context()), req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}
