package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lokabekas/lokabekas-backend/api/controllers"
	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/internal/addresses"
	"github.com/lokabekas/lokabekas-backend/internal/checkout"
	"github.com/lokabekas/lokabekas-backend/internal/complaints"
	"github.com/lokabekas/lokabekas-backend/internal/invoices"
	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/internal/users"
	"github.com/lokabekas/lokabekas-backend/internal/withdrawals"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/redis"
	"github.com/lokabekas/lokabekas-backend/pkg/storage/gcs"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Cfg         *config.Config
	Logg        *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	GCS         *gcs.Client
	Users       users.Service
	Addresses   addresses.Repository
	Stores      stores.Repository
	Checkout    checkout.Service
	Purchases   purchases.Service
	Invoices    invoices.Service
	Ledger      ledger.Service
	Withdrawals withdrawals.Service
	Complaints  complaints.Service
}

// NewRouter assembles the HTTP surface.
func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Cfg, d.Logg

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, readinessDeps(d)))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.Register(d.Users, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.Login(d.Users, logg))
	})

	// Gateway callbacks authenticate by signature, not by bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", controllers.PaymentCallback(d.Invoices, d.Redis, cfg.Payment, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.Me(d.Users, logg))

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.ListAddresses(d.Addresses, logg))
			r.Post("/", controllers.CreateAddress(d.Addresses, logg))
			r.Post("/{addressID}/default", controllers.SetDefaultAddress(d.Addresses, logg))
			r.Delete("/{addressID}", controllers.DeleteAddress(d.Addresses, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleBuyer))
			r.Post("/", controllers.Checkout(d.Checkout, logg))
			r.Get("/groups", controllers.ListCheckoutGroups(d.Checkout, logg))
			r.Get("/groups/{groupID}", controllers.GetCheckoutGroup(d.Checkout, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/{purchaseID}", controllers.GetPurchase(d.Purchases, d.Stores, logg))
			r.Get("/{purchaseID}/invoice", controllers.GetInvoiceByPurchase(d.Invoices, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleBuyer))
				r.Get("/", controllers.ListMyPurchases(d.Purchases, logg))
				r.Post("/{purchaseID}/receive", controllers.BuyerConfirmReceipt(d.Purchases, logg))
				r.Post("/{purchaseID}/complete", controllers.CompletePurchase(d.Purchases, logg))
				r.Post("/{purchaseID}/cancel", controllers.CancelPurchase(d.Purchases, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleSeller))
				r.Post("/{purchaseID}/confirm", controllers.SellerConfirmPurchase(d.Purchases, logg))
				r.Post("/{purchaseID}/ship", controllers.SellerShipPurchase(d.Purchases, logg))
				r.Post("/{purchaseID}/shipment-proof/upload-url", controllers.ShipmentProofUploadURL(d.GCS, logg))
			})
		})

		r.Route("/store", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSeller))
			r.Get("/purchases", controllers.ListStorePurchases(d.Purchases, d.Stores, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{invoiceID}", controllers.GetInvoice(d.Invoices, logg))
			r.With(middleware.RequireRole(logg, enums.RoleBuyer)).
				Post("/{invoiceID}/payment-session", controllers.CreatePaymentSession(d.Invoices, d.Users, logg))
		})

		r.Route("/balance", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSeller))
			r.Get("/", controllers.GetMyBalance(d.Ledger, logg))
			r.Get("/entries", controllers.ListMyBalanceEntries(d.Ledger, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSeller))
			r.Post("/", controllers.CreateWithdrawal(d.Withdrawals, logg))
			r.Get("/", controllers.ListMyWithdrawals(d.Withdrawals, logg))
			r.Post("/{withdrawalID}/cancel", controllers.CancelWithdrawal(d.Withdrawals, logg))
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleBuyer))
			r.Post("/", controllers.FileComplaint(d.Complaints, logg))
			r.Get("/", controllers.ListMyComplaints(d.Complaints, logg))
			r.Get("/{complaintID}", controllers.GetComplaint(d.Complaints, logg))
			r.Post("/{complaintID}/evidence/upload-url", controllers.ComplaintEvidenceUploadURL(d.GCS, logg))
			r.Post("/returns", controllers.FileReturn(d.Complaints, logg))
			r.Get("/returns/{returnID}", controllers.GetReturn(d.Complaints, logg))
		})

		r.Get("/media/download-url", controllers.MediaDownloadURL(d.GCS, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/{purchaseID}/force-complete", controllers.ForceCompletePurchase(d.Purchases, logg))
			r.Post("/{purchaseID}/override", controllers.OverridePurchaseStatus(d.Purchases, logg))
		})
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/{invoiceID}/verify", controllers.ManualVerifyInvoice(d.Invoices, logg))
			r.Post("/{invoiceID}/override", controllers.OverrideInvoiceStatus(d.Invoices, logg))
		})
		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", controllers.ListWithdrawalsByStatus(d.Withdrawals, logg))
			r.Post("/bulk", controllers.BulkProcessWithdrawals(d.Withdrawals, logg))
			r.Post("/{withdrawalID}/approve", controllers.ApproveWithdrawal(d.Withdrawals, logg))
			r.Post("/{withdrawalID}/complete", controllers.CompleteWithdrawal(d.Withdrawals, logg))
			r.Post("/{withdrawalID}/reject", controllers.RejectWithdrawal(d.Withdrawals, logg))
		})
		r.Route("/complaints", func(r chi.Router) {
			r.Get("/{complaintID}", controllers.GetComplaint(d.Complaints, logg))
			r.Post("/{complaintID}/process", controllers.ProcessComplaint(d.Complaints, logg))
			r.Get("/returns/{returnID}", controllers.GetReturn(d.Complaints, logg))
			r.Post("/returns/{returnID}/process", controllers.ProcessReturn(d.Complaints, logg))
		})
	})

	return r
}

func readinessDeps(d Deps) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if d.DB != nil {
		deps["database"] = d.DB
	}
	if d.Redis != nil {
		deps["redis"] = d.Redis
	}
	return deps
}
