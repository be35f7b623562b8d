package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/catalogguard/internal/auth"
	"github.com/2beens/catalogguard/internal/telemetry/metrics"
	"github.com/2beens/catalogguard/internal/telemetry/tracing"
	"github.com/2beens/catalogguard/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const (
	AdminAPIPrefix = "/api/admin"
	AdminAuthPath  = "/api/admin/auth"
)

// rejection reasons, used as metric labels
const (
	ReasonBlockedPath    = "blocked_path"
	ReasonMissingToken   = "missing_token"
	ReasonExpiredToken   = "expired_token"
	ReasonMalformedToken = "malformed_token"
	ReasonInvalidToken   = "invalid_token"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type tokenVerifier interface {
	Verify(rawToken string) (*auth.Principal, error)
}

// Decision is the outcome of the access gate for one request.
type Decision struct {
	Allowed bool
	// set for rejected requests
	StatusCode int
	Message    string
	Reason     string
	// set for admitted admin API requests
	Principal *auth.Principal
}

type AccessGate struct {
	verifier        tokenVerifier
	metricsManager  *metrics.Manager
	blockedPatterns []string
}

func NewAccessGate(verifier tokenVerifier, metricsManager *metrics.Manager) *AccessGate {
	return &AccessGate{
		verifier:       verifier,
		metricsManager: metricsManager,
		blockedPatterns: []string{
			".env",
			"config.json",
			"/logs/",
			".git/",
		},
	}
}

func (g *AccessGate) pathIsBlocked(path string) bool {
	for _, pattern := range g.blockedPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// IsAdminAPIPath tells if the path needs an admin token. The auth endpoint itself is open.
func IsAdminAPIPath(path string) bool {
	if path != AdminAPIPrefix && !strings.HasPrefix(path, AdminAPIPrefix+"/") {
		return false
	}
	return path != AdminAuthPath && !strings.HasPrefix(path, AdminAuthPath+"/")
}

// Decide classifies the request: blocked paths are always denied, admin API paths need
// a valid admin token, everything else passes.
func (g *AccessGate) Decide(r *http.Request) Decision {
	path := r.URL.Path
	if g.pathIsBlocked(path) || g.pathIsBlocked(r.URL.RawPath) {
		return Decision{
			StatusCode: http.StatusForbidden,
			Message:    "Access denied",
			Reason:     ReasonBlockedPath,
		}
	}

	if !IsAdminAPIPath(path) || r.Method == http.MethodOptions {
		return Decision{Allowed: true}
	}

	principal, err := g.verifier.Verify(auth.TokenFromRequest(r))
	if err != nil {
		return rejectedTokenDecision(err)
	}

	return Decision{
		Allowed:   true,
		Principal: principal,
	}
}

func rejectedTokenDecision(err error) Decision {
	d := Decision{
		StatusCode: http.StatusUnauthorized,
		Message:    auth.ErrorMessage(err),
	}
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		d.Reason = ReasonMissingToken
	case errors.Is(err, auth.ErrTokenExpired):
		d.Reason = ReasonExpiredToken
	case errors.Is(err, auth.ErrTokenMalformed):
		d.Reason = ReasonMalformedToken
	default:
		d.Reason = ReasonInvalidToken
	}
	return d
}

func (g *AccessGate) AccessCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.access_gate")
			defer span.End()

			decision := g.Decide(r)
			if !decision.Allowed {
				log.Tracef("[access gate] [%s] rejected => %s", decision.Reason, r.URL.Path)
				if g.metricsManager != nil {
					g.metricsManager.CounterGateRejections.WithLabelValues(decision.Reason).Inc()
				}
				pkg.WriteJSONError(w, decision.StatusCode, decision.Message)
				span.SetStatus(codes.Error, decision.Reason)
				return
			}

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if decision.Principal != nil {
				ctx = auth.ContextWithPrincipal(ctx, decision.Principal)
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin re-checks the admin token for a single handler, independent of the gate.
func RequireAdmin(verifier tokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok && principal.IsAdmin {
			next(w, r)
			return
		}

		principal, err := verifier.Verify(auth.TokenFromRequest(r))
		if err != nil {
			pkg.WriteJSONError(w, http.StatusUnauthorized, auth.ErrorMessage(err))
			return
		}

		next(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	}
}
