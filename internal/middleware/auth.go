package middleware

import (
	"context"
	"net/http"

	"github.com/2beens/catalogsvc/internal/auth"
	"github.com/2beens/catalogsvc/internal/telemetry/tracing"
	"github.com/2beens/catalogsvc/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type loginChecker interface {
	IsAuthenticated(ctx context.Context, token string) (bool, error)
}

var _ loginChecker = (*auth.Service)(nil)

type AuthMiddlewareHandler struct {
	loginChecker loginChecker
	allowedPaths map[string]bool
}

func NewAuthMiddlewareHandler(loginChecker loginChecker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
		allowedPaths: map[string]bool{
			// misc handler:
			"/":        true,
			"/version": true,

			// login & session check:
			"/api/login":      true,
			"/api/check-auth": true,
		},
	}
}

func (h *AuthMiddlewareHandler) pathIsAlwaysAllowed(path string) bool {
	return h.allowedPaths[path]
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsAlwaysAllowed(r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			sessionCookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || sessionCookie.Value == "" {
				log.Tracef("[missing session cookie] [auth middleware] unauthorized => %s", r.URL.Path)
				pkg.WriteJSONMessage(w, "Unauthorized", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-session-cookie")
				return
			}

			isLogged, err := h.loginChecker.IsAuthenticated(ctx, sessionCookie.Value)
			if err != nil {
				log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				pkg.WriteJSONMessage(w, "Unauthorized", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}
			if !isLogged {
				log.Tracef("[invalid session] [auth middleware] unauthorized => %s", r.URL.Path)
				pkg.WriteJSONMessage(w, "Unauthorized", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "not-logged")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}
