package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions SessionFeed
	Bridge   SessionBridge
	// Optional: hosted redirect login.
	Flow ports.LoginFlow
	// Optional: legacy email/password sign-in.
	Password ports.PasswordLogin
	// Optional: reverse proxy to the backend API, mounted at /api/.
	API http.Handler
	// APIRole gates the proxy behind RequireRole when set.
	APIRole      domainauth.Role
	CookieDomain string
	LogoutURL    string
	Logger       *slog.Logger
}

// NewRouter creates and configures the local backend-for-frontend router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	sessionHandlers := &SessionHandlers{Sessions: services.Sessions, Logger: services.Logger}
	authHandlers := &AuthHandlers{
		Bridge:       services.Bridge,
		Flow:         services.Flow,
		Password:     services.Password,
		CookieDomain: services.CookieDomain,
		LogoutURL:    services.LogoutURL,
		Logger:       services.Logger,
	}

	mux.Handle("GET /healthz", healthHandler(services.Sessions))
	mux.Handle("HEAD /healthz", healthHandler(services.Sessions))
	registerSessionRoutes(mux, sessionHandlers)
	registerAuthRoutes(mux, authHandlers)
	if services.API != nil {
		registerAPIRoutes(mux, services)
	}

	return mux
}

func registerSessionRoutes(mux *http.ServeMux, h *SessionHandlers) {
	mux.HandleFunc("GET /session", h.Get)
	mux.HandleFunc("GET /session/events", h.Events)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	if h.Flow != nil {
		mux.HandleFunc("GET /auth/login", h.Login)
		mux.HandleFunc("GET /auth/callback", h.Callback)
	}
	if h.Password != nil {
		mux.HandleFunc("POST /auth/password", h.PasswordSignIn)
	}
	mux.HandleFunc("GET /auth/csrf", csrfTokenHandler)
	mux.HandleFunc("POST /auth/phone/send-otp", h.SendPhoneOTP)
	mux.HandleFunc("POST /auth/phone/verify-otp", h.VerifyPhoneOTP)
	mux.HandleFunc("POST /auth/hosted/request-otp", h.RequestHostedOTP)
	mux.HandleFunc("POST /auth/hosted/verify-otp", h.VerifyHostedOTP)
	mux.HandleFunc("PATCH /auth/profile", h.UpdateProfile)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /auth/signout", h.SignOut)
}

func registerAPIRoutes(mux *http.ServeMux, services RouterServices) {
	h := services.API
	if services.APIRole != "" {
		h = RequireRole(services.Sessions, services.APIRole)(h)
	}
	mux.Handle("/api/", h)
}
