package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

const dashboardOrigin = "http://localhost:5173"

type csrfFixture struct {
	bridge      *fakeBridge
	handler     http.Handler
	backendHits atomic.Int32
	backendAuth atomic.Value
}

func newCSRFFixture(t *testing.T) *csrfFixture {
	t.Helper()
	f := &csrfFixture{bridge: newFakeBridge()}
	signIn(f.bridge.store, domainauth.RoleAdmin)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.backendHits.Add(1)
		f.backendAuth.Store(r.Header.Get("Authorization") + "|" + r.Header.Get(DefaultCSRFHeaderName))
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)
	target, err := url.Parse(backend.URL)
	require.NoError(t, err)

	gateway := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		r.Header.Set("Authorization", "Bearer operator-token")
		return http.DefaultTransport.RoundTrip(r)
	})

	router := NewRouter(RouterServices{
		Sessions: f.bridge.store,
		Bridge:   f.bridge,
		API:      NewAPIProxy(target, gateway, nil),
		APIRole:  domainauth.RoleViewer,
	})
	f.handler = CORS([]string{dashboardOrigin})(CSRFProtection(CSRFConfig{AllowedOrigins: []string{dashboardOrigin}})(router))
	return f
}

// token fetches a CSRF token the way the dashboard does and returns it with its cookie.
func (f *csrfFixture) token(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	req.Header.Set("Origin", dashboardOrigin)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dashboardOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCSRFCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, body.Token, cookie.Value)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	return body.Token, cookie
}

type csrfRequest struct {
	method, target, origin, fetchSite string
	contentType, body                 string
	header                            string
	cookie                            *http.Cookie
}

func (f *csrfFixture) send(r csrfRequest) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.method, r.target, strings.NewReader(r.body))
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.origin != "" {
		req.Header.Set("Origin", r.origin)
	}
	if r.fetchSite != "" {
		req.Header.Set("Sec-Fetch-Site", r.fetchSite)
	}
	if r.header != "" {
		req.Header.Set(DefaultCSRFHeaderName, r.header)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCSRF_RejectsCrossSiteStateChanges(t *testing.T) {
	f := newCSRFFixture(t)
	token, cookie := f.token(t)

	tests := []struct {
		name string
		req  csrfRequest
	}{
		{
			name: "cross-origin text/plain post to the proxy",
			req: csrfRequest{
				method: http.MethodPost, target: "/api/predictions/optimize-route",
				origin: "https://evil.example", contentType: "text/plain", body: `{"x":1}`,
			},
		},
		{
			name: "cross-origin form post to signout",
			req: csrfRequest{
				method: http.MethodPost, target: "/auth/signout",
				origin: "https://evil.example", contentType: "application/x-www-form-urlencoded",
				cookie: cookie,
			},
		},
		{
			name: "untrusted origin even with a matching token",
			req: csrfRequest{
				method: http.MethodPost, target: "/auth/signout",
				origin: "https://evil.example", header: token, cookie: cookie,
			},
		},
		{
			name: "opaque origin",
			req: csrfRequest{
				method: http.MethodPost, target: "/auth/signout",
				origin: "null", header: token, cookie: cookie,
			},
		},
		{
			name: "cross-site fetch metadata without origin",
			req: csrfRequest{
				method: http.MethodPatch, target: "/auth/profile", fetchSite: "cross-site",
				contentType: "application/json", body: `{"name":"x"}`, header: token, cookie: cookie,
			},
		},
		{
			name: "trusted origin without the header",
			req: csrfRequest{
				method: http.MethodPost, target: "/auth/phone/send-otp", origin: dashboardOrigin,
				contentType: "application/json", body: `{"phone":"+15551234567"}`, cookie: cookie,
			},
		},
		{
			name: "trusted origin with a header that does not match the cookie",
			req: csrfRequest{
				method: http.MethodDelete, target: "/api/routes/7", origin: dashboardOrigin,
				header: "forged", cookie: cookie,
			},
		},
		{
			name: "header without cookie",
			req: csrfRequest{
				method: http.MethodPost, target: "/auth/signout", origin: dashboardOrigin, header: token,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.send(tt.req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "csrf_rejected", decodeBody(t, rec)["error"])
		})
	}

	assert.Zero(t, f.backendHits.Load(), "no rejected request may reach the backend")
	assert.Zero(t, f.bridge.signOuts)
	assert.Equal(t, domainauth.StateAuthenticated, f.bridge.store.State().State)
}

func TestCSRF_AllowsTrustedStateChanges(t *testing.T) {
	f := newCSRFFixture(t)
	token, cookie := f.token(t)

	rec := f.send(csrfRequest{
		method: http.MethodPost, target: "/api/predictions/optimize-route", origin: dashboardOrigin,
		contentType: "application/json", body: `{"x":1}`, header: token, cookie: cookie,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, f.backendHits.Load())
	assert.Equal(t, "Bearer operator-token|", f.backendAuth.Load(), "CSRF header stays at the edge")

	// Same-origin and non-browser callers carry no Origin.
	rec = f.send(csrfRequest{
		method: http.MethodPost, target: "/auth/refresh", fetchSite: "same-origin",
		header: token, cookie: cookie,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.send(csrfRequest{
		method: http.MethodPost, target: "/auth/signout", origin: "http://example.com",
		header: token, cookie: cookie,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.bridge.signOuts)
}

func TestCSRF_SafeMethodsPass(t *testing.T) {
	f := newCSRFFixture(t)

	rec := f.send(csrfRequest{method: http.MethodGet, target: "/session", origin: "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.send(csrfRequest{method: http.MethodGet, target: "/api/forecasting/bins", origin: "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), "the response stays unreadable cross-origin")
}

func TestCSRFTokenHandler_WithoutMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	csrfTokenHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
