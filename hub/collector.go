package hub

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "roots"

// collector exposes a hub's Metrics to Prometheus. Values are read from the
// atomics at scrape time, so nothing is double counted.
type collector struct {
	hub *Hub

	installed  *prometheus.Desc
	dispatched *prometheus.Desc
	rerouted   *prometheus.Desc
	rejected   *prometheus.Desc
	dropped    *prometheus.Desc
}

func newCollector(h *Hub) *collector {
	labels := prometheus.Labels{"hub": h.name}
	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, subsystem, name), help, nil, labels)
	}

	return &collector{
		hub:        h,
		installed:  desc("hub", "installed_roots", "Roots currently installed, including the core root."),
		dispatched: desc("calls", "dispatched_total", "Calls accepted by their destination mailbox."),
		rerouted:   desc("calls", "rerouted_total", "Calls handed to the core root because the destination was missing."),
		rejected:   desc("calls", "rejected_total", "Calls no mailbox accepted."),
		dropped:    desc("calls", "dropped_total", "Misrouted calls the core root discarded."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.installed
	ch <- c.dispatched
	ch <- c.rerouted
	ch <- c.rejected
	ch <- c.dropped
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.hub.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.installed, prometheus.GaugeValue, float64(s.InstalledRoots))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.CallsDispatched))
	ch <- prometheus.MustNewConstMetric(c.rerouted, prometheus.CounterValue, float64(s.CallsRerouted))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.CallsRejected))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.CallsDropped))
}
