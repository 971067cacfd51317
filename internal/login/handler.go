package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/contenthub/internal/auth"
	"github.com/2beens/contenthub/internal/middleware"
	"github.com/2beens/contenthub/internal/telemetry/metrics"
	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=login_test

const (
	msgInternalError      = "internal server error"
	msgAdminNotFound      = "admin not found"
	msgInvalidCredentials = "invalid credentials"
	msgInvalidOrExpired   = "invalid or expired verification code"
)

type authService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Verify(ctx context.Context, adminID, code string) (*auth.Session, error)
}

type tokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string `json:"message"`
	AdminID string `json:"adminId"`
}

type VerifyRequest struct {
	AdminID          string `json:"adminId"`
	VerificationCode string `json:"verificationCode"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type MeResponse struct {
	AdminID   string    `json:"adminId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Handler struct {
	authService  authService
	sessionTTL   time.Duration
	secureCookie bool
}

// NewHandler creates the admin login handler. secureCookie should be false only in development (plain http).
func NewHandler(authService authService, sessionTTL time.Duration, secureCookie bool) *Handler {
	if sessionTTL <= 0 {
		sessionTTL = auth.DefaultSessionTTL
	}
	return &Handler{
		authService:  authService,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

func handleOptions(w http.ResponseWriter, r *http.Request, allow string) bool {
	if r.Method != http.MethodOptions {
		return false
	}
	w.Header().Add("Allow", allow)
	w.WriteHeader(http.StatusOK)
	return true
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	tokens tokenParser,
	rateLimiter middleware.RequestRateLimiter,
	allowedPerMin int,
	trustProxyHeaders bool,
	metricsManager *metrics.Manager,
) {
	adminRouter := mainRouter.PathPrefix("/admin").Subrouter()

	authRouter := adminRouter.NewRoute().Subrouter()
	authRouter.HandleFunc("/login", handler.HandleLogin).Methods("POST", "OPTIONS").Name("admin-login")
	authRouter.HandleFunc("/verify", handler.HandleVerify).Methods("POST", "OPTIONS").Name("admin-verify")
	// rate limit the credential and code endpoints to slow down guessing
	authRouter.Use(middleware.RateLimit(rateLimiter, "admin-auth", allowedPerMin, trustProxyHeaders, metricsManager))

	adminRouter.HandleFunc("/logout", handler.HandleLogout).Methods("POST", "OPTIONS").Name("admin-logout")

	sessionRouter := adminRouter.NewRoute().Subrouter()
	sessionRouter.HandleFunc("/me", handler.HandleMe).Methods("GET", "OPTIONS").Name("admin-me")
	sessionRouter.Use(middleware.AdminAuth(tokens, auth.CapabilityDashboard))
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if handleOptions(w, r, "POST, OPTIONS") {
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "loginHandler.login")
	defer span.End()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("login, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		span.SetStatus(codes.Error, "invalid-body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		pkg.WriteJSONError(w, http.StatusBadRequest, "email and password are required")
		span.SetStatus(codes.Error, "missing-fields")
		return
	}

	adminID, err := handler.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login-failed")
		switch {
		case errors.Is(err, auth.ErrNotFound):
			pkg.WriteJSONError(w, http.StatusNotFound, msgAdminNotFound)
		case errors.Is(err, auth.ErrInvalidCredentials):
			pkg.WriteJSONError(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			log.Errorf("login failed: %s", err)
			pkg.WriteJSONError(w, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: "verification code sent",
		AdminID: adminID,
	})
}

func (handler *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if handleOptions(w, r, "POST, OPTIONS") {
		return
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "loginHandler.verify")
	defer span.End()

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("verify, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, http.StatusBadRequest, msgInvalidOrExpired)
		span.SetStatus(codes.Error, "invalid-body")
		return
	}
	req.AdminID = strings.TrimSpace(req.AdminID)
	req.VerificationCode = strings.TrimSpace(req.VerificationCode)
	if req.AdminID == "" || req.VerificationCode == "" {
		pkg.WriteJSONError(w, http.StatusBadRequest, msgInvalidOrExpired)
		span.SetStatus(codes.Error, "missing-fields")
		return
	}

	session, err := handler.authService.Verify(ctx, req.AdminID, req.VerificationCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify-failed")
		switch {
		case errors.Is(err, auth.ErrInvalidOrExpired):
			pkg.WriteJSONError(w, http.StatusBadRequest, msgInvalidOrExpired)
		case errors.Is(err, auth.ErrNotFound):
			pkg.WriteJSONError(w, http.StatusNotFound, msgAdminNotFound)
		default:
			log.Errorf("verify failed: %s", err)
			pkg.WriteJSONError(w, http.StatusInternalServerError, msgInternalError)
		}
		return
	}

	http.SetCookie(w, handler.sessionCookie(session.Token, session.ExpiresAt))
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSON(w, http.StatusOK, MessageResponse{Message: "verification successful"})
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if handleOptions(w, r, "POST, OPTIONS") {
		return
	}
	http.SetCookie(w, handler.clearedSessionCookie())
	pkg.WriteJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if handleOptions(w, r, "GET, OPTIONS") {
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Errorf("me: no session claims in request context, path: %s", r.URL.Path)
		pkg.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := MeResponse{
		AdminID: claims.AdminID,
		Email:   claims.Email,
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	pkg.WriteJSON(w, http.StatusOK, resp)
}

func (handler *Handler) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(handler.sessionTTL.Seconds()),
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   handler.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

func (handler *Handler) clearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   handler.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
