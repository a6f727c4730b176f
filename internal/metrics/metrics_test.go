package metrics

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("v0.0.1", "go1.23")
	SetBuildInfo("v1.0.0", "go1.24")

	if count := testutil.CollectAndCount(BuildInfo); count != 1 {
		t.Errorf("expected 1 metric, got %d", count)
	}
	if value := testutil.ToFloat64(BuildInfo.WithLabelValues("v1.0.0", "go1.24")); value != 1 {
		t.Errorf("expected value 1, got %f", value)
	}
}

func TestSetTargetAddress(t *testing.T) {
	SetTargetAddress(netip.MustParseAddr("203.0.113.5"))
	SetTargetAddress(netip.MustParseAddr("203.0.113.9"))

	if count := testutil.CollectAndCount(TargetAddressInfo); count != 1 {
		t.Errorf("expected 1 series, got %d", count)
	}
	if value := testutil.ToFloat64(TargetAddressInfo.WithLabelValues("203.0.113.9")); value != 1 {
		t.Errorf("expected value 1, got %f", value)
	}
}

func TestSetLoopState(t *testing.T) {
	LoopState.Reset()
	states := []string{"idle", "fetching", "sleeping"}

	SetLoopState("fetching", states)
	SetLoopState("sleeping", states)

	want := map[string]float64{"idle": 0, "fetching": 0, "sleeping": 1}
	for state, v := range want {
		if got := testutil.ToFloat64(LoopState.WithLabelValues(state)); got != v {
			t.Errorf("loop_state{state=%q} = %v, want %v", state, got, v)
		}
	}
}

func TestCycleMetrics(t *testing.T) {
	CyclesTotal.Reset()

	CyclesTotal.WithLabelValues(CycleSuccess).Inc()
	CyclesTotal.WithLabelValues(CycleSuccess).Inc()
	CyclesTotal.WithLabelValues(CycleFailed).Inc()
	CycleDuration.Observe(0.5)

	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues(CycleSuccess)); got != 2 {
		t.Errorf("expected 2 successful cycles, got %f", got)
	}
	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues(CycleFailed)); got != 1 {
		t.Errorf("expected 1 failed cycle, got %f", got)
	}
}

func TestMetricNames(t *testing.T) {
	collectors := []prometheus.Collector{
		BuildInfo,
		CyclesTotal,
		CycleDuration,
		ActionsTotal,
		ActionsDroppedTotal,
		NamesSkippedTotal,
		OwnershipParseErrorsTotal,
		TargetAddressInfo,
		LoopState,
		ProviderAvailable,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 1)
		c.Describe(ch)
		desc := (<-ch).String()
		if !strings.Contains(desc, `fqName: "`+Namespace+`_`) {
			t.Errorf("metric %s is missing the %s_ prefix", desc, Namespace)
		}
	}
}
