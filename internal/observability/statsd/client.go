package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
// Session passes, whoami timings and gateway rejections are all reported through it.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled bool
	Address string
	// Prefix is joined to every metric name with a dot, e.g. "citycycle".
	Prefix string
	Logger *slog.Logger
	// GlobalTags are attached to every line; per-call tags win on conflict.
	GlobalTags map[string]string
}

type metricType string

const (
	typeCount  metricType = "c"
	typeGauge  metricType = "g"
	typeTiming metricType = "ms"
)

// Client emits metrics over UDP using the DogStatsD line protocol:
//
//	<prefix>.<name>:<value>|<type>|#k:v,k:v
//
// It is safe for concurrent use. A disabled or closed client drops every line.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured StatsD endpoint. With Enabled false or an empty Address the
// client is returned disabled.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		globalTags: trimTags(cfg.GlobalTags),
		logger:     logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	c.conn = conn
	return c, nil
}

// Enabled reports whether lines are being sent.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(name, strconv.FormatInt(value, 10), typeCount, tags)
}

func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.send(name, strconv.FormatFloat(value, 'f', -1, 64), typeGauge, tags)
}

// Timing records d in fractional milliseconds.
func (c *Client) Timing(name string, d time.Duration, tags map[string]string) {
	ms := float64(d) / float64(time.Millisecond)
	c.send(name, strconv.FormatFloat(ms, 'f', -1, 64), typeTiming, tags)
}

// Close releases the UDP connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(name, value string, typ metricType, tags map[string]string) {
	if c == nil {
		return
	}
	line, ok := formatLine(c.prefix, name, value, typ, c.globalTags, tags)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "metric", name, "error", err)
	}
}

// formatLine renders one protocol line. It reports false for an empty metric name.
func formatLine(prefix, name, value string, typ metricType, global, local map[string]string) (string, bool) {
	metric := qualify(prefix, name)
	if metric == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(string(typ))
	b.WriteString(renderTags(global, local))
	return b.String(), true
}

// reserved delimits the line protocol; '/' and spaces confuse most backends.
var reserved = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_", "@", "_", "#", "_")

// tagValue keeps tag values from breaking the "|#k:v,k:v" suffix.
var tagValue = strings.NewReplacer(",", "_", "|", "_", "#", "_")

// qualify joins prefix and a sanitised name. An empty name yields "".
func qualify(prefix, name string) string {
	n := reserved.Replace(strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	n = strings.Trim(n, ".")
	switch {
	case strings.TrimSpace(name) == "":
		return ""
	case prefix == "":
		return n
	case n == "":
		return prefix
	default:
		return prefix + "." + n
	}
}

func renderTags(global, local map[string]string) string {
	merged := trimTags(global)
	maps.Copy(merged, trimTags(local))
	if len(merged) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		pairs = append(pairs, reserved.Replace(k)+":"+tagValue.Replace(merged[k]))
	}
	return "|#" + strings.Join(pairs, ",")
}

// trimTags copies tags with keys and values trimmed, dropping empty keys.
func trimTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			out[key] = strings.TrimSpace(v)
		}
	}
	return out
}
