package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/contenthub/internal/auth"
	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

const SessionCookieName = "admin_session"

type tokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AdminAuth lets a request through only when it carries a valid session token whose role grants
// the capability. The token is read from the session cookie, or from an "Authorization: Bearer" header.
func AdminAuth(parser tokenParser, capability auth.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.adminAuth")
			defer span.End()
			span.SetAttributes(attribute.String("capability", string(capability)))

			token := sessionToken(r)
			if token == "" {
				log.Tracef("[missing token] [admin auth] unauthorized => %s", r.URL.Path)
				pkg.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
				span.SetStatus(codes.Error, "missing-session-token")
				return
			}

			claims, err := parser.Parse(token)
			if err != nil {
				if !errors.Is(err, auth.ErrExpiredToken) && !errors.Is(err, auth.ErrInvalidToken) {
					log.Errorf("[admin auth] parse token => %s: %s", r.URL.Path, err)
				}
				log.Tracef("[invalid token] [admin auth] unauthorized => %s: %s", r.URL.Path, err)
				pkg.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
				span.SetStatus(codes.Error, "invalid-session-token")
				return
			}
			span.SetAttributes(attribute.String("admin.id", claims.AdminID))

			if !auth.RoleHasCapability(claims.Role, capability) {
				log.Warnf("[admin auth] admin %s with role [%s] lacks capability [%s] => %s",
					claims.AdminID, claims.Role, capability, r.URL.Path)
				pkg.WriteJSONError(w, http.StatusForbidden, "forbidden")
				span.SetStatus(codes.Error, "missing-capability")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(ctx, claims)))
		})
	}
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
