// Package telemetry is the control plane's metrics capability handle.
// Per spec 9 ("the audit logger and metrics sink are the only process-wide
// singletons; treat as capability handles passed into services at
// construction time"), callers hold a *Recorder, not a package-level
// global; only the underlying Prometheus collectors are registered once.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Recorder exposes the counters/gauges/histograms the core components
// emit. Grounded on the teacher's internal/server/metrics.go pattern
// (prometheus.NewCounter + MustRegister), generalized from one counter to
// the full set spec.md's components need.
type Recorder struct {
	SnapshotRebuilds   *prometheus.CounterVec
	SnapshotBuildTime  *prometheus.HistogramVec
	XDSPushes          *prometheus.CounterVec
	XDSAcks            *prometheus.CounterVec
	XDSNacks           *prometheus.CounterVec
	XDSStreamsOpen     prometheus.Gauge
	RepoWrites         *prometheus.CounterVec
	AuthzDenials       *prometheus.CounterVec
}

// NewRecorder constructs and registers all collectors against reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		SnapshotRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_snapshot_rebuilds_total",
			Help: "Number of snapshot rebuilds, by node key.",
		}, []string{"node_key"}),
		SnapshotBuildTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "flexcp_snapshot_build_seconds",
			Help: "Time to compile and hash one snapshot.",
		}, []string{"node_key"}),
		XDSPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_xds_pushes_total",
			Help: "Discovery responses sent, by type URL.",
		}, []string{"type_url"}),
		XDSAcks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_xds_acks_total",
			Help: "Discovery requests accepted as ACKs, by type URL.",
		}, []string{"type_url"}),
		XDSNacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_xds_nacks_total",
			Help: "Discovery requests rejected as NACKs, by type URL.",
		}, []string{"type_url"}),
		XDSStreamsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flexcp_xds_streams_open",
			Help: "Currently open xDS streams (SotW + ADS).",
		}),
		RepoWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_repo_writes_total",
			Help: "Repository writes, by entity and outcome.",
		}, []string{"entity", "outcome"}),
		AuthzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexcp_authz_denials_total",
			Help: "Authorization checks that denied access, by resource/action.",
		}, []string{"resource", "action"}),
	}

	reg.MustRegister(
		r.SnapshotRebuilds, r.SnapshotBuildTime,
		r.XDSPushes, r.XDSAcks, r.XDSNacks, r.XDSStreamsOpen,
		r.RepoWrites, r.AuthzDenials,
	)
	return r
}

// NewNoop returns a Recorder registered against a private registry, for
// tests and for components constructed without an admin mux.
func NewNoop() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}
