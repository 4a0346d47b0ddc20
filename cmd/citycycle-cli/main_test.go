package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudheendra1210/Citycycle/config"
	"github.com/sudheendra1210/Citycycle/internal/bootstrap"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
)

func TestParseSendOTPFlags(t *testing.T) {
	opts, err := parseSendOTPFlags([]string{"--phone", " +15551234567 ", "--name", "Ravi"})
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", opts.Phone)
	assert.Equal(t, "Ravi", opts.Name)
	assert.Equal(t, defaultCommandTimeout, opts.Timeout)

	_, err = parseSendOTPFlags(nil)
	require.Error(t, err)
}

func TestParseVerifyOTPFlags_RequiresBoth(t *testing.T) {
	_, err := parseVerifyOTPFlags([]string{"--phone", "+15551234567"})
	require.Error(t, err)

	opts, err := parseVerifyOTPFlags([]string{"--phone", "+15551234567", "--code", "123456", "--timeout", "5s"})
	require.NoError(t, err)
	assert.Equal(t, "123456", opts.Code)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func TestParseProfileFlags_SendsOnlyGivenFields(t *testing.T) {
	opts, err := parseProfileFlags([]string{"--area", ""})
	require.NoError(t, err)
	assert.Nil(t, opts.update.Name)
	require.NotNil(t, opts.update.Area)
	assert.Empty(t, *opts.update.Area)

	_, err = parseProfileFlags(nil)
	require.Error(t, err)
}

func TestParseGetFlags(t *testing.T) {
	opts, err := parseGetFlags([]string{"--path", "api/forecasting/bins", "--query", "?days=7"})
	require.NoError(t, err)
	assert.Equal(t, "/api/forecasting/bins", opts.Path)
	assert.Equal(t, "7", opts.Query.Get("days"))

	_, err = parseGetFlags([]string{"--query", "a=1"})
	require.Error(t, err)
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for name := range commands() {
		assert.Contains(t, buf.String(), name)
	}
}

func testCommandContext(t *testing.T) (*commandContext, *bytes.Buffer) {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/me":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "dev-user", "role": "viewer", "name": "Dev User"})
		case "/api/forecasting/bins":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"bin_id": "B1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(api.Close)

	cfg := config.AppConfig{
		IsDev: true,
		Auth: config.AuthConfig{
			HostedMode: config.HostedModeDev,
			DevAuth: config.DevAuthConfig{
				UserID: "dev-user", Email: "dev@citycycle.local", Secret: "s", SignedIn: true,
			},
			OIDC:   config.OIDCConfig{RefreshKey: "hosted_refresh_token"},
			Legacy: config.LegacyAuthConfig{RefreshKey: "legacy_refresh_token"},
		},
		API:     config.APIConfig{BaseURL: api.URL, Timeout: 5 * time.Second},
		Storage: config.StorageConfig{Backend: config.TokenStoreMemory, Key: "citycycle_token"},
	}

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    &out,
		connect: func(c *commandContext) (*bootstrap.ServiceContainer, error) {
			return bootstrap.NewServices(&bootstrap.ServiceDeps{Config: &c.Config, Logger: c.Logger, Metrics: statsd.Nop{}})
		},
	}, &out
}

func TestRunWhoami(t *testing.T) {
	cmdCtx, out := testCommandContext(t)
	require.NoError(t, runWhoami(cmdCtx, nil))

	var snap struct {
		State string `json:"state"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, "authenticated", snap.State)
	assert.Equal(t, "dev-user", snap.User.ID)
}

func TestRunGet(t *testing.T) {
	cmdCtx, out := testCommandContext(t)
	require.NoError(t, runGet(cmdCtx, []string{"--path", "/api/forecasting/bins"}))
	assert.JSONEq(t, `[{"bin_id":"B1"}]`, out.String())
}

func TestRunSignOut(t *testing.T) {
	cmdCtx, out := testCommandContext(t)
	require.NoError(t, runSignOut(cmdCtx, nil))
	assert.Equal(t, "signed out\n", out.String())
}
