package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/api/responses"
	"github.com/lokabekas/lokabekas-backend/api/validators"
	"github.com/lokabekas/lokabekas-backend/internal/invoices"
	"github.com/lokabekas/lokabekas-backend/internal/users"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db/models"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/payment"
)

// Settled callbacks are deduplicated long enough to outlive any gateway
// retry schedule.
const callbackDedupTTL = 48 * time.Hour

type idempotencyStore interface {
	IdempotencyKey(scope, id string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// GetInvoice returns an invoice, lazily expiring it when overdue.
func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GetValid(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// GetInvoiceByPurchase resolves the invoice attached to a purchase.
func GetInvoiceByPurchase(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchaseID, err := validators.UUIDParam(r, "purchaseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GetByPurchase(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// CreatePaymentSession opens a gateway transaction for the invoice and
// returns the redirect handle.
func CreatePaymentSession(svc invoices.Service, userSvc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := userSvc.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.CreatePaymentSession(r.Context(), id, payment.Customer{
			FirstName: user.Name,
			Email:     user.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// PaymentCallback receives gateway settlement notifications. The
// signature gate runs before anything else; replays of an already applied
// callback short-circuit through the dedup key and still return 200 so
// the gateway stops retrying.
func PaymentCallback(svc invoices.Service, store idempotencyStore, cfg config.PaymentConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The gateway sends many fields beyond the ones reconciliation
		// reads, so the strict body decoder does not apply here.
		var payload payment.CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed callback payload"))
			return
		}
		if !payload.VerifySignature(cfg.ServerKey) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid callback signature"))
			return
		}

		ctx := r.Context()
		key := store.IdempotencyKey("payment_callback", payload.OrderRef+":"+payload.TransactionStatus)
		acquired, err := store.SetNX(ctx, key, "1", callbackDedupTTL)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "callback deduplication"))
			return
		}
		if !acquired {
			if logg != nil {
				logg.Info(logg.WithField(ctx, "order_ref", payload.OrderRef), "payment.callback.duplicate")
			}
			responses.WriteSuccess(w, map[string]string{"status": "ok"})
			return
		}

		invoice, err := svc.ConfirmPayment(ctx, payload, models.SystemActorID)
		if err != nil {
			// Release the dedup key so the gateway's retry can land once
			// the underlying fault clears.
			if delErr := store.Del(ctx, key); delErr != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "key", key), "payment.callback.dedup_release_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status":         "ok",
			"invoice_id":     invoice.ID.String(),
			"invoice_status": string(invoice.Status),
		})
	}
}

// ManualVerifyInvoice lets an admin settle an invoice without a callback.
func ManualVerifyInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.ManualVerify(r.Context(), id, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// OverrideInvoiceStatus forces an invoice status with its cascades.
func OverrideInvoiceStatus(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "invoiceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req overrideStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.InvoiceStatus(req.Status)
		if !status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown invoice status"))
			return
		}
		invoice, err := svc.Override(r.Context(), id, status, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}
