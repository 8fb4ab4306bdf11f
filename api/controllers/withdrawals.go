package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/withdrawals"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/pagination"
)

type createWithdrawalRequest struct {
	AmountIDR     int64  `json:"amount_idr" validate:"required,gt=0"`
	BankName      string `json:"bank_name" validate:"required"`
	BankAccount   string `json:"bank_account" validate:"required,min=6"`
	AccountHolder string `json:"account_holder" validate:"required,min=2"`
}

type withdrawalDecisionRequest struct {
	Note *string `json:"note,omitempty"`
}

type bulkWithdrawalRequest struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1"`
	Action string      `json:"action" validate:"required,oneof=approve complete reject"`
	Note   *string     `json:"note,omitempty"`
}

// CreateWithdrawal places a hold on the seller's balance and queues the
// payout for admin review.
func CreateWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createWithdrawalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Create(r.Context(), withdrawals.CreateInput{
			SellerID:      middleware.UserIDFromContext(r.Context()),
			AmountIDR:     req.AmountIDR,
			BankName:      req.BankName,
			BankAccount:   req.BankAccount,
			AccountHolder: req.AccountHolder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ListMyWithdrawals lists the seller's payout requests.
func ListMyWithdrawals(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListBySeller(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CancelWithdrawal lets the seller pull back a waiting request.
func CancelWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "withdrawalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Cancel(r.Context(), id, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// ListWithdrawalsByStatus is the admin review queue.
func ListWithdrawalsByStatus(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := enums.WithdrawalStatus(r.URL.Query().Get("status"))
		if !status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown withdrawal status"))
			return
		}
		params, err := validators.PaginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByStatus(r.Context(), status, pagination.NormalizeLimit(params.Limit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ApproveWithdrawal moves a waiting request into processing.
func ApproveWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "withdrawalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Approve(r.Context(), id, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// CompleteWithdrawal finalizes a processing payout.
func CompleteWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalDecision(logg, func(r *http.Request, id uuid.UUID, note *string) (any, error) {
		return svc.Complete(r.Context(), id, middleware.UserIDFromContext(r.Context()), note)
	})
}

// RejectWithdrawal turns a request down and releases the held funds.
func RejectWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalDecision(logg, func(r *http.Request, id uuid.UUID, note *string) (any, error) {
		return svc.Reject(r.Context(), id, middleware.UserIDFromContext(r.Context()), note)
	})
}

// BulkProcessWithdrawals applies one action across many requests. Partial
// failure is reported per request, not rolled back.
func BulkProcessWithdrawals(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkWithdrawalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkProcess(r.Context(), withdrawals.BulkInput{
			IDs:     req.IDs,
			Action:  withdrawals.BulkAction(req.Action),
			ActorID: middleware.UserIDFromContext(r.Context()),
			Note:    req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"processed": result.Processed}
		if result.Err != nil {
			body["failures"] = result.Err.Error()
		}
		responses.WriteSuccess(w, body)
	}
}

func withdrawalDecision(logg *logger.Logger, fn func(r *http.Request, id uuid.UUID, note *string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "withdrawalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req withdrawalDecisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := fn(r, id, req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
