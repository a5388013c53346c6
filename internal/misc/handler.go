package misc

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/2beens/catalogsvc/internal/auth"
	"github.com/2beens/catalogsvc/internal/middleware"
	"github.com/2beens/catalogsvc/internal/telemetry/metrics"
	"github.com/2beens/catalogsvc/internal/telemetry/tracing"
	"github.com/2beens/catalogsvc/pkg"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	maxLoginRequestSize  = 4 << 10
	internalErrorMessage = "internal error, try again later"
)

type sessionAuthenticator interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	Session(ctx context.Context, token string) (*auth.Session, error)
	TTL() time.Duration
}

var _ sessionAuthenticator = (*auth.Service)(nil)

type Handler struct {
	versionInfo    string
	authService    sessionAuthenticator
	secureCookie   bool
	metricsManager *metrics.Manager
}

func NewHandler(
	versionInfo string,
	authService sessionAuthenticator,
	secureCookie bool,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		versionInfo:    versionInfo,
		authService:    authService,
		secureCookie:   secureCookie,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")

	apiRouter := mainRouter.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/logout", handler.handleLogout).Methods("POST", "OPTIONS").Name("logout")
	apiRouter.HandleFunc("/check-auth", handler.handleCheckAuth).Methods("GET", "OPTIONS").Name("check-auth")

	// rate limit the login endpoint to slow down password guessing
	loginRateLimit := middleware.RateLimit(rateLimiter, "login", loginAllowedPerMin, handler.metricsManager)
	apiRouter.Handle("/login", loginRateLimit(http.HandlerFunc(handler.handleLogin))).Methods("POST", "OPTIONS").Name("login")
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type checkAuthResponse struct {
	IsAuthenticated bool          `json:"isAuthenticated"`
	User            *userResponse `json:"user,omitempty"`
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.login")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginRequestSize)

	var loginReq loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Tracef("login, unmarshal json params: %s", err)
			pkg.WriteJSONMessage(w, "invalid login request", http.StatusBadRequest)
			span.SetStatus(codes.Error, "invalid-json")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Tracef("login, parse form: %s", err)
			pkg.WriteJSONMessage(w, "invalid login request", http.StatusBadRequest)
			span.SetStatus(codes.Error, "invalid-form")
			return
		}
		loginReq = loginRequest{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}
	}

	session, err := handler.authService.Login(ctx, loginReq.Username, loginReq.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmptyCredentials):
			handler.countLogin("empty")
			pkg.WriteJSONMessage(w, "username and password are required", http.StatusBadRequest)
			span.SetStatus(codes.Error, "empty-credentials")
		case errors.Is(err, auth.ErrInvalidCredentials):
			handler.countLogin("invalid")
			log.Tracef("failed login attempt for user: %s", loginReq.Username)
			pkg.WriteJSONMessage(w, "invalid credentials", http.StatusUnauthorized)
			span.SetStatus(codes.Error, "invalid-credentials")
		default:
			handler.countLogin("error")
			log.Errorf("login failed: %s", err)
			pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
			span.SetStatus(codes.Error, "login-error")
			span.RecordError(err)
		}
		return
	}

	http.SetCookie(w, handler.sessionCookie(session.Token, int(handler.authService.TTL().Seconds())))

	handler.countLogin("success")
	span.SetAttributes(attribute.String("user", session.User.Username))
	span.SetStatus(codes.Ok, "logged-in")
	log.Tracef("login success for user: %s", session.User.Username)

	pkg.WriteJSONResponseOK(w, loginResponse{
		Success: true,
		User:    userResponse{Username: session.User.Username},
	})
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.logout")
	defer span.End()

	var token string
	if sessionCookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		token = sessionCookie.Value
	}

	if err := handler.authService.Logout(ctx, token); err != nil {
		log.Errorf("logout failed: %s", err)
		pkg.WriteJSONMessage(w, internalErrorMessage, http.StatusInternalServerError)
		span.SetStatus(codes.Error, "logout-error")
		span.RecordError(err)
		return
	}

	// negative max age deletes the cookie
	http.SetCookie(w, handler.sessionCookie("", -1))

	span.SetStatus(codes.Ok, "logged-out")
	pkg.WriteJSONResponseOK(w, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (handler *Handler) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.checkAuth")
	defer span.End()

	sessionCookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		pkg.WriteJSONResponseOK(w, checkAuthResponse{IsAuthenticated: false})
		return
	}

	session, err := handler.authService.Session(ctx, sessionCookie.Value)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			log.Errorf("check auth: %s", err)
			span.RecordError(err)
		}
		pkg.WriteJSONResponseOK(w, checkAuthResponse{IsAuthenticated: false})
		return
	}

	pkg.WriteJSONResponseOK(w, checkAuthResponse{
		IsAuthenticated: true,
		User:            &userResponse{Username: session.User.Username},
	})
}

func (handler *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   handler.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager == nil {
		return
	}
	handler.metricsManager.CounterLogins.With(prometheus.Labels{"result": result}).Inc()
}
