// Package metrics exports run statistics as Prometheus metrics, written to a
// node-exporter textfile at the end of a run.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/mcsim/sim/checkpoint"
	"github.com/inference-sim/mcsim/sim/moves"
	"github.com/inference-sim/mcsim/sim/samples"
	"github.com/inference-sim/mcsim/sim/trace"
)

const namespace = "mcsim"

// Metrics holds every exported series on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Trials and Accepted count displacement trials per system and type.
	Trials   *prometheus.GaugeVec
	Accepted *prometheus.GaugeVec
	// AcceptanceRatio is Accepted/Trials per system and type.
	AcceptanceRatio *prometheus.GaugeVec
	// StepSize is the current adaptive step size per system and type.
	StepSize *prometheus.GaugeVec
	// Samples counts completed sampling passes per sample and system.
	Samples *prometheus.GaugeVec
	// Rescales counts step-size rescales per system and type.
	Rescales *prometheus.CounterVec

	Steps    prometheus.Gauge
	Replicas prometheus.Gauge
}

// New registers all series on a fresh registry.
func New() *Metrics {
	entry := []string{"system", "type"}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Trials: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "moves", Name: "trials",
			Help: "Displacement trials by system and site type",
		}, entry),
		Accepted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "moves", Name: "accepted",
			Help: "Accepted displacement trials by system and site type",
		}, entry),
		AcceptanceRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "moves", Name: "acceptance_ratio",
			Help: "Fraction of accepted trials by system and site type",
		}, entry),
		StepSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "moves", Name: "step_size",
			Help: "Adaptive displacement step size by system and site type",
		}, entry),
		Samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "samples", Name: "passes",
			Help: "Completed sampling passes by sample and system",
		}, []string{"sample", "system"}),
		Rescales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "moves", Name: "rescales_total",
			Help: "Step-size rescales by system and site type",
		}, entry),
		Steps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "steps",
			Help: "Scheduler steps per replica",
		}),
		Replicas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "replicas",
			Help: "Replicas merged into the observed checkpoint",
		}),
	}
	m.Registry.MustRegister(m.Trials, m.Accepted, m.AcceptanceRatio, m.StepSize,
		m.Samples, m.Rescales, m.Steps, m.Replicas)
	return m
}

// ObserveMoves sets the per-entry series from t.
func (m *Metrics) ObserveMoves(t *moves.Template) {
	ntypes := max(t.NTypes, 1)
	for i, e := range t.Entries {
		labels := []string{strconv.Itoa(i / ntypes), strconv.Itoa(i % ntypes)}
		m.Trials.WithLabelValues(labels...).Set(float64(e.Current.Total))
		m.Accepted.WithLabelValues(labels...).Set(float64(e.Current.Accepted))
		m.AcceptanceRatio.WithLabelValues(labels...).Set(e.Current.Ratio())
		m.StepSize.WithLabelValues(labels...).Set(e.StepSize)
	}
}

// ObserveSamples sets the pass counts of every distribution of t.
func (m *Metrics) ObserveSamples(t *samples.Template) {
	id := strconv.FormatInt(t.ID, 10)
	for sys, d := range t.Distributions {
		m.Samples.WithLabelValues(id, strconv.Itoa(sys)).Set(float64(d.NSamples))
	}
}

// ObserveTrace counts the rescales recorded in st.
func (m *Metrics) ObserveTrace(st *trace.SimulationTrace) {
	if !st.Enabled() {
		return
	}
	for _, r := range st.Rescales {
		m.Rescales.WithLabelValues(strconv.Itoa(r.Entry.System), strconv.Itoa(r.Entry.Type)).Inc()
	}
}

// ObserveCheckpoint sets the series from every record of c that carries
// statistics.
func (m *Metrics) ObserveCheckpoint(c *checkpoint.Checkpoint) {
	for _, r := range c.Records {
		switch rec := r.(type) {
		case *moves.Template:
			m.ObserveMoves(rec)
		case *samples.Template:
			m.ObserveSamples(rec)
		}
	}
}

// WriteTextfile writes the current values in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
