package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAPIProxy_StripsBrowserCredentials(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"bin_id":"B1"}]`)
	}))
	defer backend.Close()

	target, err := url.Parse(backend.URL + "/v1")
	require.NoError(t, err)

	sawAuth := ""
	gateway := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sawAuth = r.Header.Get("Authorization")
		r = r.Clone(r.Context())
		r.Header.Set("Authorization", "Bearer effective")
		return http.DefaultTransport.RoundTrip(r)
	})

	p := NewAPIProxy(target, gateway, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/forecasting/bins?days=7", nil)
	req.Header.Set("Authorization", "Bearer from-browser")
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "x"})
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"bin_id":"B1"}]`, rec.Body.String())
	assert.Empty(t, sawAuth, "browser credentials must be stripped before the gateway")
	require.NotNil(t, got)
	assert.Equal(t, "/v1/api/forecasting/bins", got.URL.Path)
	assert.Equal(t, "7", got.URL.Query().Get("days"))
	assert.Equal(t, "Bearer effective", got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Cookie"))
}

func TestAPIProxy_BackendDown(t *testing.T) {
	target, err := url.Parse("http://127.0.0.1:1")
	require.NoError(t, err)

	p := NewAPIProxy(target, http.DefaultTransport, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"unavailable","message":"backend unavailable"}`, rec.Body.String())
}
