package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/catalogguard/internal/auth"
	"github.com/2beens/catalogguard/internal/middleware"
	"github.com/2beens/catalogguard/internal/ratelimit"
	"github.com/2beens/catalogguard/internal/telemetry/metrics"
	"github.com/2beens/catalogguard/internal/telemetry/tracing"
	"github.com/2beens/catalogguard/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const loginTooManyMsgFormat = "Too many login attempts. Please try again in %d minutes."

// login outcomes, used as metric labels
const (
	loginSuccess = "success"
	loginFailed  = "failed"
	loginInvalid = "invalid_request"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=admin_test

type credentialsChecker interface {
	CheckCredentials(creds auth.Credentials) error
}

type User struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expiresAt"`
	User          User      `json:"user"`
}

type Handler struct {
	credentials    credentialsChecker
	tokenService   *auth.TokenService
	metricsManager *metrics.Manager
	secureCookie   bool
	revokeOnLogout bool
}

func NewHandler(
	credentials credentialsChecker,
	tokenService *auth.TokenService,
	metricsManager *metrics.Manager,
	secureCookie bool,
	revokeOnLogout bool,
) *Handler {
	return &Handler{
		credentials:    credentials,
		tokenService:   tokenService,
		metricsManager: metricsManager,
		secureCookie:   secureCookie,
		revokeOnLogout: revokeOnLogout,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
) {
	// rate limit the login attempts only, logout and session checks are cheap
	loginRateLimit := middleware.RateLimit(
		rateLimiter,
		"login",
		ratelimit.LoginLimit,
		loginTooManyMsgFormat,
		handler.metricsManager,
	)

	mainRouter.
		Handle(middleware.AdminAuthPath, loginRateLimit(http.HandlerFunc(handler.HandleLogin))).
		Methods("POST", "OPTIONS").Name("admin-login")
	mainRouter.
		HandleFunc(middleware.AdminAuthPath, handler.HandleLogout).
		Methods("DELETE").Name("admin-logout")
	mainRouter.
		HandleFunc(middleware.AdminAuthPath, handler.HandleSession).
		Methods("GET").Name("admin-session")
}

func (handler *Handler) countLogin(outcome string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogins.WithLabelValues(outcome).Inc()
	}
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var creds auth.Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			log.Tracef("login, unmarshal json params: %s", err)
			handler.countLogin(loginInvalid)
			span.SetStatus(codes.Error, "invalid-body")
			pkg.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Tracef("login, parse form: %s", err)
			handler.countLogin(loginInvalid)
			span.SetStatus(codes.Error, "invalid-form")
			pkg.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		creds = auth.Credentials{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		handler.countLogin(loginInvalid)
		span.SetStatus(codes.Error, "missing-credentials")
		pkg.WriteJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if err := handler.credentials.CheckCredentials(creds); err != nil {
		if !errors.Is(err, auth.ErrWrongCredentials) {
			log.Errorf("login, check credentials: %s", err)
			span.RecordError(err)
			pkg.WriteJSONError(w, http.StatusInternalServerError, "Login failed")
			return
		}
		log.Debugf("failed login attempt for user [%s] from [%s]", creds.Username, pkg.ReadClientKey(r))
		handler.countLogin(loginFailed)
		span.SetStatus(codes.Error, "wrong-credentials")
		pkg.WriteJSONError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := handler.tokenService.Issue(creds.Username)
	if err != nil {
		log.Errorf("login, issue token: %s", err)
		span.RecordError(err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, handler.tokenService.ExpiresIn(), handler.secureCookie))
	handler.countLogin(loginSuccess)
	span.SetAttributes(attribute.String("admin.username", creds.Username))
	span.SetStatus(codes.Ok, "logged-in")
	log.Infof("admin [%s] logged in", creds.Username)

	pkg.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      User{Username: creds.Username},
	})
}

// HandleLogout clears the session cookie. The token itself stays valid until it expires,
// unless revocation on logout is enabled.
func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.logout")
	defer span.End()

	if handler.revokeOnLogout {
		if token := auth.TokenFromRequest(r); token != "" {
			if err := handler.tokenService.Revoke(token); err != nil {
				// expired or invalid tokens need no revocation
				log.Debugf("logout, revoke token: %s", err)
			} else {
				span.SetAttributes(attribute.Bool("token.revoked", true))
			}
		}
	}

	http.SetCookie(w, auth.ClearedSessionCookie(handler.secureCookie))
	span.SetStatus(codes.Ok, "logged-out")
	pkg.WriteJSON(w, http.StatusOK, pkg.SuccessResponse{Success: true})
}

func (handler *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.session")
	defer span.End()

	principal, err := handler.tokenService.Verify(auth.TokenFromRequest(r))
	if err != nil {
		span.SetStatus(codes.Error, "not-authenticated")
		pkg.WriteJSONError(w, http.StatusUnauthorized, auth.ErrorMessage(err))
		return
	}

	span.SetStatus(codes.Ok, "authenticated")
	pkg.WriteJSON(w, http.StatusOK, SessionResponse{
		Authenticated: true,
		ExpiresAt:     principal.ExpiresAt,
		User:          User{Username: principal.Username},
	})
}
