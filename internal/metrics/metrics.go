// Package metrics provides Prometheus metrics for clouddns-nat-helper.
package metrics

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "clouddns_nat"

// Cycle status label values.
const (
	CycleSuccess = "success"
	CyclePartial = "partial"
	CycleFailed  = "failed"
	CycleDryRun  = "dry_run"
)

var (
	// BuildInfo is always 1 and carries version labels.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "go_version"})

	// CyclesTotal counts finished reconciliation cycles by status.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cycles_total",
		Help:      "Reconciliation cycles by outcome.",
	}, []string{"status"})

	// CycleDuration observes the wall time of each cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of reconciliation cycles.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActionsTotal counts applied actions.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "actions_total",
		Help:      "Actions sent to the provider by kind and result.",
	}, []string{"provider", "kind", "status"})

	// ActionsDroppedTotal counts planned actions the policy did not permit.
	ActionsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "actions_dropped_total",
		Help:      "Planned actions dropped by the policy.",
	}, []string{"kind"})

	// NamesSkippedTotal counts names left alone, by reason.
	NamesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "names_skipped_total",
		Help:      "Names that needed changes but were not touched.",
	}, []string{"reason"})

	// OwnershipParseErrorsTotal counts malformed ownership records.
	OwnershipParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ownership_parse_errors_total",
		Help:      "Ownership TXT records that could not be parsed.",
	})

	// TargetAddressInfo is 1 for the IPv4 address resolved by the last cycle.
	TargetAddressInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "target_address_info",
		Help:      "IPv4 address published in A records.",
	}, []string{"address"})

	// LoopState is 1 for the state the control loop is in and 0 otherwise.
	LoopState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "loop_state",
		Help:      "Current control loop state.",
	}, []string{"state"})

	// ProviderAvailable is 1 once the provider answered a ping.
	ProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "provider_available",
		Help:      "Whether the zone provider is reachable.",
	}, []string{"provider", "type"})
)

// SetBuildInfo records the running version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.Reset()
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetTargetAddress replaces the published address.
func SetTargetAddress(addr netip.Addr) {
	TargetAddressInfo.Reset()
	TargetAddressInfo.WithLabelValues(addr.String()).Set(1)
}

// SetLoopState marks current as the active state among states.
func SetLoopState(current string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		LoopState.WithLabelValues(s).Set(v)
	}
}
