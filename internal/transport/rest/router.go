package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/adityamishra28203/healthvault/internal/auth"
	"github.com/adityamishra28203/healthvault/internal/authz"
	"github.com/adityamishra28203/healthvault/internal/consent"
	"github.com/adityamishra28203/healthvault/internal/gate"
	"github.com/adityamishra28203/healthvault/internal/tenant"
	"github.com/adityamishra28203/healthvault/internal/transport/middleware"
	"github.com/adityamishra28203/healthvault/internal/transport/swagger"
)

// Handlers bundles the REST handlers the router mounts. Nil entries are
// skipped so partial wiring (tests, tools) still gets a working router.
type Handlers struct {
	Auth    *auth.Handler
	Consent *consent.Handler
	Authz   *authz.Handler
	Tenant  *tenant.Handler
	Gate    *gate.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authService auth.ServiceAPI, engine *authz.Engine, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve the OpenAPI document and the swagger UI at the root, outside the
	// API prefix.
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
			})
		}

		// Consent responses come from the patient side and are authenticated
		// by the patient portal upstream, not by staff JWTs.
		if h.Consent != nil {
			r.Post("/consents", h.Consent.RequestConsent)
			r.Post("/consents/{consentID}/respond", h.Consent.RespondToConsent)
			r.Post("/consents/{consentID}/revoke", h.Consent.RevokeConsent)
		}

		if authService == nil {
			return
		}

		// Everything below requires an authenticated staff member.
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(authService))

			if h.Consent != nil {
				pr.Get("/consents/check", h.Consent.CheckConsent)
				pr.With(middleware.RequirePermission(engine, authz.ResourceConsents, authz.ActionRead)).
					Get("/consents/{consentID}/history", h.Consent.GetConsentHistory)
			}

			if h.Authz != nil {
				pr.Get("/permissions/me", h.Authz.GetMyPermissions)
				pr.With(middleware.RequirePermission(engine, authz.ResourceUsers, authz.ActionRead)).
					Get("/users/{userID}/permissions", h.Authz.GetUserPermissions)
			}

			if h.Gate != nil {
				pr.Post("/access/check", h.Gate.CheckAccess)
				pr.With(middleware.RequirePermission(engine, authz.ResourceReports, authz.ActionRead)).
					Get("/patients/{patientID}/access-logs", h.Gate.GetAuditTrail)
			}

			if h.Tenant != nil {
				pr.Route("/tenants", func(tr chi.Router) {
					tr.Use(middleware.RequirePermission(engine, authz.ResourceHospitals, authz.ActionManage))
					tr.Post("/", h.Tenant.CreateTenant)
					tr.Get("/{tenantID}/usage", h.Tenant.GetUsage)
					tr.Get("/{tenantID}/limits/{resource}", h.Tenant.CheckLimit)
					tr.Post("/{tenantID}/upgrade", h.Tenant.UpgradeTier)
					tr.Post("/{tenantID}/suspend", h.Tenant.SuspendTenant)
				})
			}
		})
	})
}
