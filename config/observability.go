package config

import (
	"strings"
)

const defaultMetricsPrefix = "citycycle"

// ObservabilityConfig groups configuration that controls metrics.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"citycycle"`
	// Tags are static tags added to every metric, as "key:value" pairs.
	Tags []string `env:"OBSERVABILITY_METRICS_TAGS" envSeparator:","`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.Prefix = strings.TrimSpace(c.Prefix); c.Prefix == "" {
		c.Prefix = defaultMetricsPrefix
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// StaticTags parses Tags into a map, ignoring malformed entries.
func (c *ObservabilityMetricsConfig) StaticTags() map[string]string {
	out := make(map[string]string, len(c.Tags))
	for _, t := range c.Tags {
		k, v, ok := strings.Cut(strings.TrimSpace(t), ":")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
