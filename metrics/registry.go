package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry is an in-memory Provider. Instruments are created on first use and
// reused by name; Snapshot reads every instrument at once.
type Registry struct {
	mu          sync.Mutex
	counters    map[string]*Count
	gauges      map[string]*Gauge
	summaries   map[string]*Summary
	descriptors map[string]Descriptor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:    make(map[string]*Count),
		gauges:      make(map[string]*Gauge),
		summaries:   make(map[string]*Summary),
		descriptors: make(map[string]Descriptor),
	}
}

// lookup returns the instrument registered under name in m, creating it with mk.
func lookup[T any](r *Registry, m map[string]*T, name string, opts []InstrumentOption, mk func() *T) *T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := m[name]; ok {
		return v
	}
	v := mk()
	m[name] = v
	r.descriptors[name] = describe(opts)
	return v
}

func (r *Registry) Counter(name string, opts ...InstrumentOption) Counter {
	return lookup(r, r.counters, name, opts, func() *Count { return &Count{} })
}

func (r *Registry) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return lookup(r, r.gauges, name, opts, func() *Gauge { return &Gauge{} })
}

func (r *Registry) Histogram(name string, opts ...InstrumentOption) Histogram {
	return lookup(r, r.summaries, name, opts, newSummary)
}

// Descriptor returns the metadata an instrument was registered with.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Snapshot is a point-in-time copy of every instrument in a Registry.
type Snapshot struct {
	Counters  map[string]int64
	Gauges    map[string]int64
	Summaries map[string]SummarySnapshot
}

// Names returns all instrument names in the snapshot, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters)+len(s.Gauges)+len(s.Summaries))
	for n := range s.Counters {
		names = append(names, n)
	}
	for n := range s.Gauges {
		names = append(names, n)
	}
	for n := range s.Summaries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot reads all instruments.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		Counters:  make(map[string]int64, len(r.counters)),
		Gauges:    make(map[string]int64, len(r.gauges)),
		Summaries: make(map[string]SummarySnapshot, len(r.summaries)),
	}
	for n, c := range r.counters {
		s.Counters[n] = c.Value()
	}
	for n, g := range r.gauges {
		s.Gauges[n] = g.Value()
	}
	for n, h := range r.summaries {
		s.Summaries[n] = h.Snapshot()
	}
	return s
}

// Count is a monotonic counter.
type Count struct{ v atomic.Int64 }

func (c *Count) Add(n int64)  { c.v.Add(n) }
func (c *Count) Value() int64 { return c.v.Load() }

// Gauge is an up/down counter.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Add(n int64)  { g.v.Add(n) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Summary tracks count, sum, min and max of recorded values. It keeps no buckets.
type Summary struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func newSummary() *Summary {
	return &Summary{min: math.Inf(1), max: math.Inf(-1)}
}

func (s *Summary) Record(v float64) {
	s.mu.Lock()
	s.count++
	s.sum += v
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
	s.mu.Unlock()
}

// SummarySnapshot is an immutable copy of a Summary.
type SummarySnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

func (s *Summary) Snapshot() SummarySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SummarySnapshot{Count: s.count, Sum: s.sum, Min: s.min, Max: s.max}
	if s.count > 0 {
		snap.Mean = s.sum / float64(s.count)
	} else {
		snap.Min, snap.Max = 0, 0
	}
	return snap
}
