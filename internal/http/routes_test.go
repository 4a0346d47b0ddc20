package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	mockauth "github.com/sudheendra1210/Citycycle/internal/mocks/auth"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/sudheendra1210/Citycycle/internal/service"
)

type routerFixture struct {
	bridge   *fakeBridge
	flow     *mockauth.MockLoginFlow
	password *mockauth.FakeProvider
	handler  http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		bridge:   newFakeBridge(),
		flow:     &mockauth.MockLoginFlow{AuthURL: "https://idp.test/authorize"},
		password: mockauth.NewFakeProvider(domainauth.SourceLegacy),
	}
	f.handler = NewRouter(RouterServices{
		Sessions:  f.bridge.store,
		Bridge:    f.bridge,
		Flow:      f.flow,
		Password:  f.password,
		LogoutURL: "https://idp.test/logout",
	})
	return f
}

func (f *routerFixture) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","session":"loading"}`, rec.Body.String())
}

func TestRouter_Session(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loading", decodeBody(t, rec)["state"])

	signIn(f.bridge.store, domainauth.RoleOperator)
	rec = f.do(http.MethodGet, "/session", "")
	body := decodeBody(t, rec)
	assert.Equal(t, "authenticated", body["state"])
	assert.Equal(t, "custom-otp-backend", body["source"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "operator", user["role"])
	assert.NotContains(t, rec.Body.String(), `"tok"`, "tokens never leave the server")
}

func TestAuthHandlers_Login(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/auth/login?redirect_uri=/bins?ward=7", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://idp.test/authorize", rec.Header().Get("Location"))

	cookies := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c.Value
		assert.True(t, c.HttpOnly, c.Name)
	}
	assert.Equal(t, "state-1", cookies["oauth_state"])
	assert.Equal(t, "nonce-1", cookies["oauth_nonce"])
	assert.Equal(t, "/bins?ward=7", cookies["post_login_redirect"])
}

func TestAuthHandlers_Login_RejectsOpenRedirect(t *testing.T) {
	f := newRouterFixture(t)
	for _, target := range []string{"https://evil.test/", "//evil.test/x", "relative"} {
		rec := f.do(http.MethodGet, "/auth/login?redirect_uri="+url.QueryEscape(target), "")
		require.Equal(t, http.StatusFound, rec.Code)
		for _, c := range rec.Result().Cookies() {
			if c.Name == "post_login_redirect" {
				assert.Equal(t, "/", c.Value, target)
			}
		}
	}
}

func TestAuthHandlers_Callback(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		cookies  []*http.Cookie
		wantCode int
		wantErr  string
	}{
		{name: "missing code", query: "state=s", wantCode: http.StatusBadRequest, wantErr: "missing_code"},
		{name: "missing state", query: "code=c", wantCode: http.StatusBadRequest, wantErr: "missing_state"},
		{
			name:     "state mismatch",
			query:    "code=c&state=s",
			cookies:  []*http.Cookie{{Name: "oauth_state", Value: "other"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_state",
		},
		{
			name:     "missing nonce",
			query:    "code=c&state=s",
			cookies:  []*http.Cookie{{Name: "oauth_state", Value: "s"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "missing_nonce",
		},
		{
			name:     "provider error",
			query:    "error=access_denied&error_description=User+cancelled",
			wantCode: http.StatusBadRequest,
			wantErr:  "login_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			rec := f.do(http.MethodGet, "/auth/callback?"+tt.query, "", tt.cookies...)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeBody(t, rec)["error"])
			assert.Empty(t, f.bridge.Triggers())
		})
	}
}

func TestAuthHandlers_Callback_Success(t *testing.T) {
	f := newRouterFixture(t)
	var got ports.ExchangeInput
	f.flow.ExchangeFunc = func(_ context.Context, in ports.ExchangeInput) error {
		got = in
		return nil
	}

	rec := f.do(http.MethodGet, "/auth/callback?code=abc&state=s1", "",
		&http.Cookie{Name: "oauth_state", Value: "s1"},
		&http.Cookie{Name: "oauth_nonce", Value: "n1"},
		&http.Cookie{Name: "post_login_redirect", Value: "/routes"},
	)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/routes", rec.Header().Get("Location"))
	assert.Equal(t, ports.ExchangeInput{Code: "abc", State: "s1", Nonce: "n1"}, got)
	assert.Equal(t, []string{service.TriggerLogin}, f.bridge.Triggers())
}

func TestAuthHandlers_Callback_ExchangeFails(t *testing.T) {
	f := newRouterFixture(t)
	f.flow.ExchangeFunc = func(context.Context, ports.ExchangeInput) error {
		return errors.New("nonce mismatch: secret detail")
	}

	rec := f.do(http.MethodGet, "/auth/callback?code=abc&state=s1", "",
		&http.Cookie{Name: "oauth_state", Value: "s1"},
		&http.Cookie{Name: "oauth_nonce", Value: "n1"},
	)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Empty(t, f.bridge.Triggers())
}

func TestAuthHandlers_PasswordSignIn(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodPost, "/auth/password", `{"email":"a@b.c","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.password.Active(context.Background()))

	rec = f.do(http.MethodPost, "/auth/password", `{"email":"a@b.c","password":"pw","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestAuthHandlers_PhoneFlow(t *testing.T) {
	f := newRouterFixture(t)
	f.bridge.startPhoneFunc = func(_ context.Context, phone, _ string) error {
		if phone == "bad" {
			return apperrors.ValidationField("phone", "phone must start with +")
		}
		return nil
	}

	rec := f.do(http.MethodPost, "/auth/phone/send-otp", `{"phone":"+15551234567","name":"Ravi"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPost, "/auth/phone/send-otp", `{"phone":"bad"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation", body["error"])
	assert.Equal(t, "phone", body["field"])

	rec = f.do(http.MethodPost, "/auth/phone/verify-otp", `{"phone":"+15551234567","code":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["needs_profile"])

	f.bridge.completeFunc = func(context.Context, string, string) (domainauth.ResolvedUser, error) {
		return domainauth.ResolvedUser{}, apperrors.Verification("Invalid or expired OTP")
	}
	rec = f.do(http.MethodPost, "/auth/phone/verify-otp", `{"phone":"+15551234567","code":"000000"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "verification", body["error"])
	assert.Equal(t, "Invalid or expired OTP", body["message"])
}

func TestAuthHandlers_HostedVerification(t *testing.T) {
	f := newRouterFixture(t)
	f.bridge.requestFunc = func(context.Context, string) error {
		return apperrors.Unauthorized("sign in before verifying a phone number")
	}

	rec := f.do(http.MethodPost, "/auth/hosted/request-otp", `{"phone":"+15551234567"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/auth/hosted/verify-otp", `{"phone":"+15551234567","code":"1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["verified"])
}

func TestAuthHandlers_UpdateProfile(t *testing.T) {
	f := newRouterFixture(t)
	var got ports.ProfileUpdate
	f.bridge.profileFunc = func(_ context.Context, upd ports.ProfileUpdate) (domainauth.Snapshot, error) {
		got = upd
		signIn(f.bridge.store, domainauth.RoleViewer)
		return f.bridge.store.State(), nil
	}

	rec := f.do(http.MethodPatch, "/auth/profile", `{"area":"Ward 7"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Area)
	assert.Equal(t, "Ward 7", *got.Area)
	assert.Nil(t, got.Name)
	assert.Equal(t, "authenticated", decodeBody(t, rec)["state"])
}

func TestAuthHandlers_Refresh(t *testing.T) {
	f := newRouterFixture(t)
	f.bridge.refreshFunc = func(context.Context) (domainauth.Snapshot, error) {
		return domainauth.Snapshot{}, apperrors.Unauthorized("no active session")
	}
	rec := f.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}

func TestAuthHandlers_SignOut(t *testing.T) {
	f := newRouterFixture(t)
	signIn(f.bridge.store, domainauth.RoleViewer)
	f.bridge.signOutErr = errors.New("revoke failed")

	rec := f.do(http.MethodPost, "/auth/signout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "signed_out", body["status"])
	assert.Equal(t, "https://idp.test/logout", body["logout_url"])
	assert.Contains(t, body, "warning")
	assert.Equal(t, domainauth.StateAnonymous, f.bridge.store.State().State)
}

func TestRouter_OptionalFlowsDisabled(t *testing.T) {
	bridge := newFakeBridge()
	h := NewRouter(RouterServices{Sessions: bridge.store, Bridge: bridge})

	for _, target := range []string{"/auth/login", "/auth/callback"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/password", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteAppError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, errors.New("dial tcp: secret host"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal","message":"internal error"}`, rec.Body.String())
}
