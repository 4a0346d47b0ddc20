package metrics

import (
	"time"

	obserrors "github.com/sudheendra1210/Citycycle/internal/observability/errors"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Pass outcomes.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeRejected      = "rejected"
	OutcomeUnavailable   = "unavailable"
	OutcomeDegraded      = "degraded"
	OutcomeSuperseded    = "superseded"
)

// PassMetric captures one resolution pass.
type PassMetric struct {
	Source   string
	Outcome  string
	Trigger  string
	Duration time.Duration
	Err      error
}

// EmitPass emits session.pass and session.pass.duration.
func EmitPass(sink statsd.Sink, in PassMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"source":  sourceTag(in.Source),
		"outcome": in.Outcome,
	}
	if in.Trigger != "" {
		tags["trigger"] = in.Trigger
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.pass", 1, tags)

	if in.Duration > 0 {
		sink.Timing("session.pass.duration", in.Duration, CloneTags(tags))
	}
}

// EmitWhoami records latency of a backend identity lookup.
func EmitWhoami(sink statsd.Sink, source string, d time.Duration, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Timing("session.whoami", d, map[string]string{
		"source": sourceTag(source),
		"result": result,
	})
}

// EmitUnauthorized counts backend 401 responses seen by the request gateway.
func EmitUnauthorized(sink statsd.Sink, method string) {
	if sink == nil {
		return
	}
	sink.Count("gateway.unauthorized", 1, map[string]string{"method": method})
}

// EmitSignOut counts sign-outs; result is error when any provider failed to sign out.
func EmitSignOut(sink statsd.Sink, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count("session.signout", 1, map[string]string{"result": result})
}

func sourceTag(source string) string {
	if source == "" {
		return "none"
	}
	return source
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
