package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector aggregates exchange outcomes in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	headHist     *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
	statuses     map[string]map[string]int
	keptAlive    int64
	closed       int64
	bytesSent    int64
	bytesRecv    int64
	start        time.Time
}

// RequestMetadata describes the response an exchange produced, if any.
type RequestMetadata struct {
	Proto      string
	StatusCode int
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	HeadP50Latency time.Duration `json:"-" yaml:"-"`
	HeadP99Latency time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// Millisecond fields for the JSON and YAML reports.
	MinLatencyMs     float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs     float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs    float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs     float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs     float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs     float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	HeadP50LatencyMs float64 `json:"head_p50_latency_ms" yaml:"head_p50_latency_ms"`
	HeadP99LatencyMs float64 `json:"head_p99_latency_ms" yaml:"head_p99_latency_ms"`
	DurationMs       float64 `json:"duration_ms" yaml:"duration_ms"`

	KeptAlive     int64                     `json:"kept_alive" yaml:"kept_alive"`
	Closed        int64                     `json:"closed" yaml:"closed"`
	BytesSent     int64                     `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived int64                     `json:"bytes_received" yaml:"bytes_received"`
	Errors        map[string]int            `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
}

// NewCollector returns an empty Collector. Call Start before recording.
func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &Collector{
		hist:         hdrhistogram.New(1, 60_000_000, 3),
		headHist:     hdrhistogram.New(1, 60_000_000, 3),
		errorsByType: make(map[string]int64),
		statuses:     make(map[string]map[string]int),
		start:        time.Now(),
	}
}

// Start resets the clock used for the requests-per-second rate.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records one Execute call: its latency, its error and the
// response status when a head was received.
func (c *Collector) RecordRequest(latency time.Duration, err error, meta *RequestMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recordClamped(c.hist, latency)
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if meta != nil && meta.StatusCode > 0 {
		proto := meta.Proto
		if proto == "" {
			proto = "HTTP/1.1"
		}
		if c.statuses[proto] == nil {
			c.statuses[proto] = make(map[string]int)
		}
		c.statuses[proto][strconv.Itoa(meta.StatusCode)]++
	}

	if err == nil {
		c.successes++
		return
	}
	c.failures++
	c.errorsByType[ErrorLabel(err)]++
}

// RecordHead records the time from request head to response head.
func (c *Collector) RecordHead(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recordClamped(c.headHist, latency)
}

// RecordCompletion records how an exchange released its connection and the
// bytes it moved.
func (c *Collector) RecordCompletion(keepAlive bool, sent, received int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if keepAlive {
		c.keptAlive++
	} else {
		c.closed++
	}
	c.bytesSent += sent
	c.bytesRecv += received
}

func recordClamped(h *hdrhistogram.Histogram, latency time.Duration) {
	if latency <= 0 {
		return
	}
	us := latency.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:         total,
		Successes:     c.successes,
		Failures:      c.failures,
		MinLatency:    c.minLatency,
		MaxLatency:    c.maxLatency,
		KeptAlive:     c.keptAlive,
		Closed:        c.closed,
		BytesSent:     c.bytesSent,
		BytesReceived: c.bytesRecv,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = quantile(c.hist, 50)
		stats.P90Latency = quantile(c.hist, 90)
		stats.P99Latency = quantile(c.hist, 99)
	}
	if c.headHist.TotalCount() > 0 {
		stats.HeadP50Latency = quantile(c.headHist, 50)
		stats.HeadP99Latency = quantile(c.headHist, 99)
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.HeadP50LatencyMs = toMs(stats.HeadP50Latency)
	stats.HeadP99LatencyMs = toMs(stats.HeadP99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.statuses) > 0 {
		stats.StatusBuckets = make(map[string]map[string]int, len(c.statuses))
		for proto, codes := range c.statuses {
			cp := make(map[string]int, len(codes))
			for code, n := range codes {
				cp[code] = n
			}
			stats.StatusBuckets[proto] = cp
		}
	}
	return stats
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
