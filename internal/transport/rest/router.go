package rest

import (
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/paypal-activation/internal/account"
	"github.com/frahmantamala/paypal-activation/internal/auth"
	"github.com/frahmantamala/paypal-activation/internal/notification"
	"github.com/frahmantamala/paypal-activation/internal/payment"
	"github.com/frahmantamala/paypal-activation/internal/transport"
	"github.com/frahmantamala/paypal-activation/internal/transport/middleware"
	"github.com/frahmantamala/paypal-activation/internal/transport/swagger"
)

// Handlers groups everything the router mounts. Nil members are skipped.
type Handlers struct {
	Auth         *auth.Handler
	Account      *account.Handler
	Notification *notification.Handler
	Payment      *payment.Handler
	Webhook      *payment.WebhookHandler
	Metrics      http.Handler
	MetricsPath  string
	OpenAPI      *openapi3.T
	HealthChecks map[string]HealthCheck
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(transport.NewBaseHandler(logger), h.HealthChecks)

	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, DefaultOpenAPIPath)
	})
	if h.OpenAPI != nil {
		router.Get("/openapi.json", OpenAPIHandler(h.OpenAPI))
	}
	router.Handle("/swagger/*", swagger.Handler())

	if h.Metrics != nil {
		path := h.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, h.Metrics)
	}

	// Browser-facing callbacks live outside /api/v1; PayPal sends the buyer back here.
	if h.Payment != nil {
		router.Get("/paypal/execute", h.Payment.ExecuteRedirect)
		router.Get("/paypal/error", h.Payment.ErrorView)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Webhook != nil {
			r.Post("/paypal/ipn", h.Webhook.HandleIPN)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Account != nil {
				pr.Get("/accounts/me", h.Account.GetCurrentAccount)
			}
			if h.Notification != nil {
				pr.Get("/accounts/me/notifications", h.Notification.ListMine)
			}
			if h.Payment != nil {
				pr.Post("/paypal/checkout", h.Payment.Checkout)
			}
		})
	})
}
