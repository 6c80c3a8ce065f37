package characteristics

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric identifies a per-function characteristic tracked by the worker.
type Metric int64

const (
	EstGpu      Metric = 0 // filtered GPU execution-time estimate
	E2EGpu      Metric = 1 // observed end-to-end time on the GPU path
	GpuExecTime Metric = 2 // raw GPU execution time
	CpuExecTime Metric = 3 // raw CPU execution time
	E2ECpu      Metric = 4 // observed end-to-end time on the CPU path
)

func (m Metric) String() string {
	switch m {
	case EstGpu:
		return "EstGpu"
	case E2EGpu:
		return "E2EGpu"
	case GpuExecTime:
		return "GpuExecTime"
	case CpuExecTime:
		return "CpuExecTime"
	case E2ECpu:
		return "E2ECpu"
	}
	return "UnknownMetric"
}

// Aggregation selects how the retained samples of a metric are reduced to a
// single value.
type Aggregation int64

const (
	Avg    Aggregation = 0
	Min    Aggregation = 1
	Max    Aggregation = 2
	Latest Aggregation = 3
)

const DefaultWindow = 20

// series is a bounded ring of the most recent samples for one (fqdn, metric).
type series struct {
	samples []float64
	next    int
	full    bool
	latest  float64
}

func (s *series) add(v float64) {
	s.samples[s.next] = v
	s.next = (s.next + 1) % len(s.samples)
	if s.next == 0 {
		s.full = true
	}
	s.latest = v
}

func (s *series) values() []float64 {
	if s.full {
		return s.samples
	}
	return s.samples[:s.next]
}

func (s *series) reduce(agg Aggregation) float64 {
	vals := s.values()
	if len(vals) == 0 {
		return math.NaN()
	}
	switch agg {
	case Avg:
		return stat.Mean(vals, nil)
	case Min:
		return floats.Min(vals)
	case Max:
		return floats.Max(vals)
	case Latest:
		return s.latest
	}
	return math.NaN()
}

// CharMap stores moving per-function statistics, keyed by function identity
// and metric. All accessors are safe for concurrent use. Reads for unknown
// functions or metrics return NaN, which callers treat as "no data".
type CharMap struct {
	mu      sync.RWMutex
	window  int
	entries map[string]map[Metric]*series
}

func New(window int) *CharMap {
	if window < 1 {
		window = DefaultWindow
	}
	return &CharMap{
		window:  window,
		entries: make(map[string]map[Metric]*series),
	}
}

func (c *CharMap) lookup(fqdn string, metric Metric) *series {
	metrics, found := c.entries[fqdn]
	if !found {
		return nil
	}
	return metrics[metric]
}

// Get returns the aggregated value of a metric for a function.
func (c *CharMap) Get(fqdn string, metric Metric, agg Aggregation) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.lookup(fqdn, metric)
	if s == nil {
		return math.NaN()
	}
	return s.reduce(agg)
}

// Get2 reads two metrics for the same function under a single lock
// acquisition, so both values come from the same snapshot of the store.
func (c *CharMap) Get2(fqdn string, metricA Metric, aggA Aggregation, metricB Metric, aggB Aggregation) (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, b := math.NaN(), math.NaN()
	if s := c.lookup(fqdn, metricA); s != nil {
		a = s.reduce(aggA)
	}
	if s := c.lookup(fqdn, metricB); s != nil {
		b = s.reduce(aggB)
	}
	return a, b
}

// GetAvg is shorthand for the most common aggregation.
func (c *CharMap) GetAvg(fqdn string, metric Metric) float64 {
	return c.Get(fqdn, metric, Avg)
}

// Update records a new observation for a function metric.
func (c *CharMap) Update(fqdn string, metric Metric, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics, found := c.entries[fqdn]
	if !found {
		metrics = make(map[Metric]*series)
		c.entries[fqdn] = metrics
	}
	s, found := metrics[metric]
	if !found {
		s = &series{samples: make([]float64, c.window)}
		metrics[metric] = s
	}
	s.add(value)
}
