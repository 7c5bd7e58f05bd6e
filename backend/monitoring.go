// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"sync"
	"time"
)

const LatencyBuckets = 101
const LatencyBucketSize = 50 * time.Millisecond

type Histogram struct {
	Buckets [LatencyBuckets]uint64 `json:"b2"`
	Count   uint64                 `json:"c"`
	Sum     float64                `json:"s"` // Sum of durations in milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	ms := float64(d.Milliseconds())
	idx := int(d / LatencyBucketSize)
	if idx >= LatencyBuckets {
		idx = LatencyBuckets - 1
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += ms
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < LatencyBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// ResolutionConfig defines the policy for a single ring buffer.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Retention  time.Duration `json:"retention"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", 1 * time.Minute, 2 * time.Hour, 120},
	{"5m", 5 * time.Minute, 6 * time.Hour, 72},
	{"15m", 15 * time.Minute, 24 * time.Hour, 96},
	{"1h", 1 * time.Hour, 31 * 24 * time.Hour, 744},
	{"1d", 24 * time.Hour, 183 * 24 * time.Hour, 183},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // Points to the *next* write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
		Head:   0,
	}
}

// Add appends a point to the ring buffer.
func (rb *RingBuffer[T]) Add(timestamp int64, value T) {
	// Align timestamp to resolution
	resSec := int64(rb.Config.Resolution.Seconds())
	alignedTs := (timestamp / resSec) * resSec

	// Check if we just overwrote the last point (update in place) or if this is new
	prevIdx := (rb.Head - 1 + len(rb.Data)) % len(rb.Data)
	if rb.Data[prevIdx].Timestamp == alignedTs {
		rb.Data[prevIdx].Value = value
		return
	}

	rb.Data[rb.Head] = Point[T]{Timestamp: alignedTs, Value: value}
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := 0; i < len(rb.Data); i++ {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// MetricSeries holds all resolutions for a specific metric.
type MetricSeries struct {
	Name            string                          `json:"name"`
	AggregationType string                          `json:"aggType"` // "Avg" or "Sum"
	Buffers         map[string]*RingBuffer[float64] `json:"buffers"`
}

func NewMetricSeries(name string, aggType string) *MetricSeries {
	if aggType == "" {
		aggType = "Avg"
	}
	buffers := make(map[string]*RingBuffer[float64])
	for _, cfg := range DefaultResolutions {
		buffers[cfg.Name] = NewRingBuffer[float64](cfg)
	}
	return &MetricSeries{
		Name:            name,
		AggregationType: aggType,
		Buffers:         buffers,
	}
}

func (ms *MetricSeries) Ingest(timestamp int64, value float64) {
	for _, cfg := range DefaultResolutions {
		buf, ok := ms.Buffers[cfg.Name]
		if !ok {
			continue
		}
		resSec := int64(cfg.Resolution.Seconds())
		alignedTs := (timestamp / resSec) * resSec
		prevIdx := (buf.Head - 1 + len(buf.Data)) % len(buf.Data)

		if buf.Data[prevIdx].Timestamp == alignedTs {
			if ms.AggregationType == "Sum" {
				buf.Data[prevIdx].Value += value
			} else if cfg.Name == "1m" {
				buf.Data[prevIdx].Value = value
			} else {
				// Running Average
				offset := timestamp - alignedTs
				n := (offset / 60) + 1
				oldAvg := buf.Data[prevIdx].Value
				buf.Data[prevIdx].Value = ((oldAvg * float64(n-1)) + value) / float64(n)
			}
		} else {
			buf.Add(timestamp, value)
		}
	}
}

// Monitor collects request metrics for the varz endpoint.
type Monitor struct {
	mu        sync.Mutex
	started   time.Time
	requests  uint64
	errors    uint64
	latency   Histogram
	rps       *MetricSeries
	activeWS  int
	lastCount uint64
	lastTick  time.Time
}

// NewMonitor returns a Monitor ready to record requests.
func NewMonitor() *Monitor {
	now := time.Now()
	return &Monitor{
		started:  now,
		rps:      NewMetricSeries("api:rps", "Avg"),
		lastTick: now,
	}
}

// RecordRequest records one API request.
func (m *Monitor) RecordRequest(d time.Duration, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if status >= 500 {
		m.errors++
	}
	m.latency.Add(d)

	// Fold the counter into the RPS series about once a second.
	now := time.Now()
	if elapsed := now.Sub(m.lastTick); elapsed >= time.Second {
		rps := float64(m.requests-m.lastCount) / elapsed.Seconds()
		m.rps.Ingest(now.Unix(), rps)
		m.lastCount = m.requests
		m.lastTick = now
	}
}

// WSConnected adjusts the active websocket gauge by delta.
func (m *Monitor) WSConnected(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeWS += delta
}

// VarzSnapshot is the JSON shape served at /api/varz.
type VarzSnapshot struct {
	UptimeSeconds float64                     `json:"uptimeSeconds"`
	Requests      uint64                      `json:"requests"`
	Errors        uint64                      `json:"errors"`
	ActiveWS      int                         `json:"activeWS"`
	Latency       Histogram                   `json:"latency"`
	RPS           map[string][]Point[float64] `json:"rps"`
}

// Snapshot returns a copy of the current metrics.
func (m *Monitor) Snapshot() VarzSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	rps := make(map[string][]Point[float64], len(m.rps.Buffers))
	for name, buf := range m.rps.Buffers {
		rps[name] = buf.GetPoints()
	}
	return VarzSnapshot{
		UptimeSeconds: time.Since(m.started).Seconds(),
		Requests:      m.requests,
		Errors:        m.errors,
		ActiveWS:      m.activeWS,
		Latency:       m.latency,
		RPS:           rps,
	}
}
