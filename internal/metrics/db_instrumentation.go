package metrics

import "time"

// MeasureFetchPage wraps a single remote page fetch with timing
// instrumentation. Usage:
//
//	defer metrics.MeasureFetchPage(m)()
func MeasureFetchPage(m *Metrics) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ObserveFetchPage(time.Since(start))
	}
}
