package metrics

// Noop is a Provider whose instruments do nothing.
type Noop struct{}

func (Noop) Counter(string, ...InstrumentOption) Counter             { return nop{} }
func (Noop) UpDownCounter(string, ...InstrumentOption) UpDownCounter { return nop{} }
func (Noop) Histogram(string, ...InstrumentOption) Histogram         { return nop{} }

type nop struct{}

func (nop) Add(int64)      {}
func (nop) Record(float64) {}
