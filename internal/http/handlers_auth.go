package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/sudheendra1210/Citycycle/internal/service"
)

// SessionBridge is the write side of the identity bridge. *service.Bridge satisfies it.
type SessionBridge interface {
	Notify(trigger string)
	Resolve(ctx context.Context) domainauth.Snapshot
	SignOut(ctx context.Context) error
	RefreshResolvedUser(ctx context.Context) (domainauth.Snapshot, error)
	StartPhoneVerification(ctx context.Context, phone, name string) error
	CompletePhoneVerification(ctx context.Context, phone, code string) (domainauth.ResolvedUser, error)
	RequestHostedVerification(ctx context.Context, phone string) error
	VerifyHostedVerification(ctx context.Context, phone, code string) (ports.HostedVerification, error)
	UpdateProfile(ctx context.Context, upd ports.ProfileUpdate) (domainauth.Snapshot, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Bridge SessionBridge
	// Flow drives the hosted redirect login; nil disables /auth/login and /auth/callback.
	Flow ports.LoginFlow
	// Password drives legacy email/password sign-in; nil disables /auth/password.
	Password     ports.PasswordLogin
	CookieDomain string
	// LogoutURL is returned after sign-out so the dashboard can end the hosted session too.
	LogoutURL string
	Logger    *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	authURL, state, nonce, err := h.Flow.Begin(r.Context(), ports.BeginInput{RedirectURL: redirectURI})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not start sign-in"),
		})
		return
	}

	// Store state, nonce, and the original redirect URI in secure cookies
	h.setOAuthCookies(w, r, oauthCookieParams{State: state, Nonce: nonce, RedirectURI: redirectURI})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if e := r.URL.Query().Get("error"); e != "" {
		desc := r.URL.Query().Get("error_description")
		if desc == "" {
			desc = e
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "login_denied", Err: errors.New(desc)})
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	if err := h.Flow.Exchange(r.Context(), ports.ExchangeInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	}); err != nil {
		h.logger().WarnContext(r.Context(), "login exchange failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "login_completion_failed",
			Err:     errors.New("could not complete sign-in"),
		})
		return
	}
	h.Bridge.Notify(service.TriggerLogin)

	h.clearCookie(w, r, "oauth_state")
	h.clearCookie(w, r, "oauth_nonce")

	http.Redirect(w, r, h.getPostLoginRedirect(w, r), http.StatusFound)
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordSignIn signs in against the legacy database-auth service and returns the settled snapshot.
// POST /auth/password.
func (h *AuthHandlers) PasswordSignIn(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.Password.SignInWithPassword(r.Context(), strings.TrimSpace(req.Email), req.Password); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.Bridge.Resolve(r.Context()))
}

// Refresh repeats the backend identity lookup.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Bridge.RefreshResolvedUser(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// SignOut ends every session. Provider failures are reported but the local session is always cleared.
// POST /auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	err := h.Bridge.SignOut(r.Context())
	if err != nil {
		h.logger().WarnContext(r.Context(), "sign out completed with provider errors", "error", err)
	}

	resp := map[string]any{"status": "signed_out"}
	if h.LogoutURL != "" {
		resp["logout_url"] = h.LogoutURL
	}
	if err != nil {
		resp["warning"] = "some providers could not be signed out"
	}
	WriteJSON(w, http.StatusOK, resp)
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect in secure cookies.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	for name, value := range map[string]string{
		"oauth_state":         p.State,
		"oauth_nonce":         p.Nonce,
		"post_login_redirect": p.RedirectURI,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   h.CookieDomain,
			HttpOnly: true,
			Secure:   isSecureRequest(r),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600, // 10 minutes
		})
	}
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if redirectCookie, err := r.Cookie("post_login_redirect"); err == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, "post_login_redirect")
	}
	return redirectURI
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
