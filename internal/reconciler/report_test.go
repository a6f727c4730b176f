package reconciler

import (
	"bytes"
	"net/netip"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

func TestReporter_Report(t *testing.T) {
	r := NewResult("cycle-1", true)
	r.Provider = "cloudflare"
	r.Target = netip.MustParseAddr("203.0.113.5")
	r.AddAction(newAction("cloudflare", provider.Create(aRec("app.example.com", "203.0.113.5")), StatusPlanned, nil))
	r.AddAction(newAction("cloudflare", provider.Delete(aRec("old.example.com", "203.0.113.1")), StatusDropped, nil))
	r.Skipped = []plan.Skip{{Name: "foreign.example.com", Reason: plan.SkipForeign, Owner: "other"}}

	var out bytes.Buffer
	NewReporter(&out, WithoutColor()).Report(r)
	got := out.String()

	for _, want := range []string{
		"Target 203.0.113.5 via cloudflare (cycle cycle-1)",
		"ACTION",
		"app.example.com",
		"old.example.com",
		"SKIPPED",
		"foreign.example.com",
		"other",
		"1 to create, 0 to update, 0 to delete, 1 dropped by policy",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("report contains ANSI escapes with color disabled:\n%s", got)
	}
}

func TestReporter_NoChanges(t *testing.T) {
	r := NewResult("cycle-1", true)
	r.Provider = "bind"
	r.Target = netip.MustParseAddr("203.0.113.5")

	var out bytes.Buffer
	NewReporter(&out, WithoutColor()).Report(r)

	if !strings.Contains(out.String(), "No changes.") {
		t.Errorf("report = %q, want No changes.", out.String())
	}
}
