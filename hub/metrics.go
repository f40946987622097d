package hub

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the hub counters.
type MetricsSnapshot struct {
	InstalledRoots  int64
	CallsDispatched int64
	CallsRerouted   int64
	CallsRejected   int64
	CallsDropped    int64
}

// Metrics tracks hub counters.
type Metrics struct {
	installedRoots  atomic.Int64
	callsDispatched atomic.Int64
	callsRerouted   atomic.Int64
	callsRejected   atomic.Int64
	callsDropped    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordInstalledRoot(delta int) {
	m.installedRoots.Add(int64(delta))
}

func (m *Metrics) RecordDispatched() {
	m.callsDispatched.Add(1)
}

func (m *Metrics) RecordRerouted() {
	m.callsRerouted.Add(1)
}

func (m *Metrics) RecordRejected() {
	m.callsRejected.Add(1)
}

func (m *Metrics) RecordDropped() {
	m.callsDropped.Add(1)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		InstalledRoots:  m.installedRoots.Load(),
		CallsDispatched: m.callsDispatched.Load(),
		CallsRerouted:   m.callsRerouted.Load(),
		CallsRejected:   m.callsRejected.Load(),
		CallsDropped:    m.callsDropped.Load(),
	}
}
