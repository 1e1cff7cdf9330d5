// Package metrics defines the instrument surface a Runner records into and two
// implementations: Noop, which discards everything, and Registry, an in-memory
// provider for tests, examples and command-line reports.
package metrics

// Provider constructs instruments by name.
// Asking twice for the same name returns the same instrument.
// Implementations must be safe for concurrent use.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter records a monotonic count.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records a value that moves both ways, such as tasks in flight.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records float64 measurements, such as durations in seconds.
type Histogram interface {
	Record(v float64)
}

// Descriptor is advisory instrument metadata.
type Descriptor struct {
	Description string
	Unit        string
	Attributes  map[string]string
}

// InstrumentOption mutates a Descriptor.
type InstrumentOption func(*Descriptor)

func WithDescription(desc string) InstrumentOption {
	return func(d *Descriptor) { d.Description = desc }
}

func WithUnit(unit string) InstrumentOption {
	return func(d *Descriptor) { d.Unit = unit }
}

// WithAttributes attaches static attributes. Keep cardinality bounded.
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(d *Descriptor) {
		if len(attrs) == 0 {
			return
		}
		if d.Attributes == nil {
			d.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			d.Attributes[k] = v
		}
	}
}

func describe(opts []InstrumentOption) Descriptor {
	var d Descriptor
	for _, o := range opts {
		if o != nil {
			o(&d)
		}
	}
	return d
}
