package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/sudheendra1210/Citycycle/internal/session"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     domainauth.Role
		signedIn bool
		want     int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "viewer below operator", role: domainauth.RoleViewer, signedIn: true, want: http.StatusForbidden},
		{name: "operator", role: domainauth.RoleOperator, signedIn: true, want: http.StatusOK},
		{name: "admin above operator", role: domainauth.RoleAdmin, signedIn: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewStore()
			if tt.signedIn {
				signIn(store, tt.role)
			}

			var seen domainauth.ResolvedUser
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user, ok := CurrentUser(r.Context())
				require.True(t, ok)
				seen = user
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			RequireRole(store, domainauth.RoleOperator)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.role, seen.Role)
			}
		})
	}
}

func TestRequireAuth_LoadingIsUnauthorized(t *testing.T) {
	store := session.NewStore()
	rec := httptest.NewRecorder()
	RequireAuth(store)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.citycycle.test"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/auth/profile", nil)
	req.Header.Set("Origin", "https://dash.citycycle.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-csrf-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.citycycle.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-csrf-token")

	req = httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_NoOriginsIsPassThrough(t *testing.T) {
	next := http.NotFoundHandler()
	h := CORS(nil)(next)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.citycycle.test")
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Recover(logger)(Logging(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"panic"`)
	assert.Contains(t, buf.String(), `"path":"/panic"`)
}
