package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opsdesk-io/opsdesk/modules/core/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
)

// RequireTenant resolves the request tenant from the configured header
// (gateways, tests) or the request host, and stores its id in the context.
// Requests that match no active tenant get a 404.
func RequireTenant(app application.Application) mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantService := app.Service(services.TenantService{}).(*services.TenantService)

			if raw := strings.TrimSpace(r.Header.Get(conf.TenantIDHeader)); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					http.NotFound(w, r)
					return
				}
				t, err := tenantService.GetByID(r.Context(), id)
				if err != nil {
					http.NotFound(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), t.ID())))
				return
			}

			host := normalizeHost(r.Host)
			if host == "" {
				http.NotFound(w, r)
				return
			}

			t, err := tenantService.GetByDomain(r.Context(), host)
			if err != nil {
				logger := composables.UseLogger(r.Context())
				logger.WithField("host", host).WithField("path", r.URL.Path).WithError(err).Warn("tenant not found for host")
				http.NotFound(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), t.ID())))
		})
	}
}

// ProvideActor reads the upstream-authenticated user id header into the
// context. Authentication and session handling live in the gateway.
func ProvideActor() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(conf.ActorIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid actor id", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithActorID(r.Context(), id)))
		})
	}
}

func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(h))
	}
	return raw
}
