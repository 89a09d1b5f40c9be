package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global collectors, registered on the default registry by promauto.

var (
	// Acquisitions counts descriptor acquisitions, labeled by adaptor.
	Acquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simspace_acquisitions_total",
			Help: "Total number of descriptor acquisitions",
		},
		[]string{"adaptor"},
	)

	// AcquisitionDuration measures one engine evaluation plus adaptation.
	// Buckets span small clusters (microseconds) to large cells (seconds).
	AcquisitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simspace_acquisition_duration_seconds",
			Help:    "Duration of descriptor acquisitions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// Evaluations counts potential evaluations by kind
	// (energy, forces, self_energy, self_gradient).
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simspace_evaluations_total",
			Help: "Total number of potential evaluations",
		},
		[]string{"kind"},
	)

	// Relaxations counts finished relaxations by outcome
	// (converged, not_converged, error).
	Relaxations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simspace_relaxations_total",
			Help: "Total number of structure relaxations",
		},
		[]string{"outcome"},
	)

	// NodesTotal tracks the number of nodes per topology.
	NodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simspace_topology_nodes",
			Help: "Number of nodes in the most recently modified topology",
		},
	)
)
