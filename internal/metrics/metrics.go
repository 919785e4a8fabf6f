// Package metrics exports controller and group state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zberg/go-melco/internal/hub"
)

const namespace = "melco"

// Source provides the running controllers. *hub.Hub implements it.
type Source interface {
	Runtimes() []*hub.Runtime
}

var (
	groupLabels      = []string{"controller", "group", "name"}
	controllerLabels = []string{"controller"}
)

// Collector reads the hub on every scrape, so values are always those of the
// last good snapshot.
type Collector struct {
	src Source

	groupOn     *prometheus.Desc
	setTemp     *prometheus.Desc
	inletTemp   *prometheus.Desc
	mode        *prometheus.Desc
	stale       *prometheus.Desc
	up          *prometheus.Desc
	lastSuccess *prometheus.Desc
	cycles      *prometheus.Desc
	failures    *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		groupOn: prometheus.NewDesc(namespace+"_group_on",
			"1 when the group drive is ON", groupLabels, nil),
		setTemp: prometheus.NewDesc(namespace+"_group_set_temperature_celsius",
			"Target temperature of the group", groupLabels, nil),
		inletTemp: prometheus.NewDesc(namespace+"_group_inlet_temperature_celsius",
			"Room temperature measured at the indoor unit inlet", groupLabels, nil),
		mode: prometheus.NewDesc(namespace+"_group_mode",
			"1 for the group's current controller mode", append(groupLabels[:3:3], "mode"), nil),
		stale: prometheus.NewDesc(namespace+"_group_stale",
			"1 when the last poll of the group failed and its previous state is shown", groupLabels, nil),
		up: prometheus.NewDesc(namespace+"_controller_up",
			"1 when the last poll cycle succeeded", controllerLabels, nil),
		lastSuccess: prometheus.NewDesc(namespace+"_controller_last_success_timestamp_seconds",
			"Unix time of the last successful poll cycle", controllerLabels, nil),
		cycles: prometheus.NewDesc(namespace+"_poll_cycles_total",
			"Poll cycles run", controllerLabels, nil),
		failures: prometheus.NewDesc(namespace+"_poll_failures_total",
			"Poll cycles that failed", controllerLabels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.groupOn, c.setTemp, c.inletTemp, c.mode, c.stale,
		c.up, c.lastSuccess, c.cycles, c.failures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, rt := range c.src.Runtimes() {
		host := rt.Entry.Host
		coord := rt.Coordinator
		stats := coord.Stats()

		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, boolValue(coord.LastUpdateSuccess()), host)
		ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(stats.Cycles), host)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures), host)
		if !stats.LastSuccess.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue, float64(stats.LastSuccess.Unix()), host)
		}

		snap, ok := coord.Snapshot()
		if !ok {
			continue
		}
		for _, group := range coord.Groups() {
			state, ok := snap.States[group]
			if !ok {
				continue
			}
			name := rt.Entry.Groups[group]
			ch <- prometheus.MustNewConstMetric(c.groupOn, prometheus.GaugeValue, boolValue(state.On()), host, group, name)
			ch <- prometheus.MustNewConstMetric(c.mode, prometheus.GaugeValue, 1, host, group, name, string(state.Mode))
			_, stale := snap.Stale[group]
			ch <- prometheus.MustNewConstMetric(c.stale, prometheus.GaugeValue, boolValue(stale), host, group, name)
			if state.SetTemp != nil {
				ch <- prometheus.MustNewConstMetric(c.setTemp, prometheus.GaugeValue, *state.SetTemp, host, group, name)
			}
			if state.InletTemp != nil {
				ch <- prometheus.MustNewConstMetric(c.inletTemp, prometheus.GaugeValue, *state.InletTemp, host, group, name)
			}
		}
	}
}

// NewRegistry returns a registry holding the collector and the Go runtime
// collectors.
func NewRegistry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src))
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
