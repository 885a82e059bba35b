package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gstledger/gstledger/internal/billing"
	"github.com/gstledger/gstledger/internal/users"
	"github.com/gstledger/gstledger/internal/vendors"
	"github.com/gstledger/gstledger/internal/wallet"
	"github.com/gstledger/gstledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler    *users.Handler
	VendorHandler  *vendors.Handler
	BillingHandler *billing.Handler
	WalletHandler  *wallet.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router for the ledger API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/vendors", params.VendorHandler.MountRoutes)
	r.Route("/wallet", params.WalletHandler.MountRoutes)
	params.BillingHandler.MountRoutes(r)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
