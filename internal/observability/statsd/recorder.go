package statsd

import (
	"sync"
	"time"
)

// Nop discards every metric.
type Nop struct{}

func (Nop) Count(string, int64, map[string]string)         {}
func (Nop) Gauge(string, float64, map[string]string)       {}
func (Nop) Timing(string, time.Duration, map[string]string) {}

// Sample is one metric captured by a Recorder.
type Sample struct {
	Kind  string // "c", "g" or "ms"
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder keeps metrics in memory. It backs the /debug/metrics view when no
// StatsD address is configured and is convenient in tests.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
	limit   int
}

// NewRecorder returns a Recorder that keeps at most limit samples (0 means unbounded).
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

var (
	_ Sink = (*Recorder)(nil)
	_ Sink = Nop{}
)

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Sample{Kind: string(typeCount), Name: name, Value: float64(value), Tags: trimTags(tags)})
}

func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Sample{Kind: string(typeGauge), Name: name, Value: value, Tags: trimTags(tags)})
}

func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Sample{Kind: string(typeTiming), Name: name, Value: float64(value) / float64(time.Millisecond), Tags: trimTags(tags)})
}

func (r *Recorder) add(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	if r.limit > 0 && len(r.samples) > r.limit {
		r.samples = r.samples[len(r.samples)-r.limit:]
	}
}

// Samples returns a copy of the recorded samples, oldest first.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Total sums counter values for name across all tag sets.
func (r *Recorder) Total(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.samples {
		if s.Kind == "c" && s.Name == name {
			n += int64(s.Value)
		}
	}
	return n
}

// Find returns the most recent sample named name.
func (r *Recorder) Find(name string) (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.samples) - 1; i >= 0; i-- {
		if r.samples[i].Name == name {
			return r.samples[i], true
		}
	}
	return Sample{}, false
}

// Tee fans metrics out to every sink.
type Tee []Sink

func (t Tee) Count(name string, value int64, tags map[string]string) {
	for _, s := range t {
		s.Count(name, value, tags)
	}
}

func (t Tee) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range t {
		s.Gauge(name, value, tags)
	}
}

func (t Tee) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range t {
		s.Timing(name, value, tags)
	}
}
