package metrics

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitPass(t *testing.T) {
	rec := statsd.NewRecorder(0)
	EmitPass(rec, PassMetric{
		Source:   "custom-otp-backend",
		Outcome:  OutcomeRejected,
		Trigger:  "token_changed",
		Duration: 20 * time.Millisecond,
		Err:      apperrors.Unauthorized("expired"),
	})

	count, ok := rec.Find("session.pass")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"source":      "custom-otp-backend",
		"outcome":     OutcomeRejected,
		"trigger":     "token_changed",
		"error_class": "unauthorized",
	}, count.Tags)

	timing, ok := rec.Find("session.pass.duration")
	require.True(t, ok)
	assert.Equal(t, "ms", timing.Kind)
	assert.InDelta(t, 20.0, timing.Value, 0.001)
}

func TestEmitPass_NoSourceNoDuration(t *testing.T) {
	rec := statsd.NewRecorder(0)
	EmitPass(rec, PassMetric{Outcome: OutcomeAnonymous})

	samples := rec.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, "none", samples[0].Tags["source"])
	assert.NotContains(t, samples[0].Tags, "error_class")

	EmitPass(nil, PassMetric{})
}

func TestEmitWhoamiAndSignOut(t *testing.T) {
	rec := statsd.NewRecorder(0)
	EmitWhoami(rec, "hosted-identity", time.Millisecond, nil)
	EmitSignOut(rec, errors.New("provider failed"))
	EmitUnauthorized(rec, "GET")

	whoami, ok := rec.Find("session.whoami")
	require.True(t, ok)
	assert.Equal(t, ResultSuccess, whoami.Tags["result"])

	signout, ok := rec.Find("session.signout")
	require.True(t, ok)
	assert.Equal(t, ResultError, signout.Tags["result"])
	assert.Equal(t, int64(1), rec.Total("gateway.unauthorized"))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1", "": "x"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
	assert.NotContains(t, cp, "")
}
