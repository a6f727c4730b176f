package ipv4source

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startServer runs an in-process DNS server on a random UDP port.
func startServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler}
	srv.NotifyStartedFunc = func() { close(started) }

	go func() {
		_ = srv.ActivateAndServe()
	}()
	<-started

	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// answer replies to every query with the given records.
func answer(rrs ...string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		for _, s := range rrs {
			rr, err := dns.NewRR(s)
			if err != nil {
				panic(err)
			}
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	}
}

func rcode(code int) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, code)
		_ = w.WriteMsg(m)
	}
}

func TestFixed(t *testing.T) {
	src, err := ParseFixed("203.0.113.5")
	if err != nil {
		t.Fatalf("ParseFixed() error = %v", err)
	}

	got, err := src.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != netip.MustParseAddr("203.0.113.5") {
		t.Errorf("Resolve() = %s", got)
	}
	if src.Name() != "fixed" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestFixed_RejectsInvalid(t *testing.T) {
	for _, s := range []string{"2001:db8::1", "not-an-ip", ""} {
		if _, err := ParseFixed(s); err == nil {
			t.Errorf("ParseFixed(%q) expected error", s)
		}
	}
}

func TestNewHostname_Validation(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		servers  []string
		wantErr  bool
	}{
		{"valid", "nat.example.com", nil, false},
		{"empty hostname", "", nil, true},
		{"invalid hostname", "bad..name", nil, true},
		{"only blank servers", "nat.example.com", []string{" "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHostname(tt.hostname, WithServers(tt.servers...))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewHostname() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewHostname_ServerPorts(t *testing.T) {
	h, err := NewHostname("nat.example.com", WithServers("192.0.2.1", "192.0.2.2:5353", "2001:db8::53"))
	if err != nil {
		t.Fatalf("NewHostname() error = %v", err)
	}

	want := []string{"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::53]:53"}
	got := h.Servers()
	if len(got) != len(want) {
		t.Fatalf("Servers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Servers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewHostname_DefaultServers(t *testing.T) {
	h, err := NewHostname("nat.example.com")
	if err != nil {
		t.Fatalf("NewHostname() error = %v", err)
	}
	if len(h.Servers()) != 2 || h.Servers()[0] != "8.8.8.8:53" {
		t.Errorf("Servers() = %v", h.Servers())
	}
}

func TestHostname_Resolve(t *testing.T) {
	addr := startServer(t, answer(
		"nat.example.com. 60 IN CNAME edge.example.com.",
		"edge.example.com. 60 IN A 203.0.113.5",
		"edge.example.com. 60 IN A 203.0.113.6",
	))

	h, err := NewHostname("nat.example.com", WithServers(addr), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewHostname() error = %v", err)
	}

	got, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != netip.MustParseAddr("203.0.113.5") {
		t.Errorf("Resolve() = %s, want first A record", got)
	}
}

func TestHostname_FallsBackToNextServer(t *testing.T) {
	failing := startServer(t, rcode(dns.RcodeServerFailure))
	working := startServer(t, answer("nat.example.com. 60 IN A 198.51.100.1"))

	h, err := NewHostname("nat.example.com",
		WithServers(failing, working),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewHostname() error = %v", err)
	}

	got, err := h.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != netip.MustParseAddr("198.51.100.1") {
		t.Errorf("Resolve() = %s", got)
	}
}

func TestHostname_ResolutionErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler dns.HandlerFunc
	}{
		{"no answer", answer()},
		{"only AAAA", answer("nat.example.com. 60 IN AAAA 2001:db8::1")},
		{"nxdomain", rcode(dns.RcodeNameError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startServer(t, tt.handler)
			h, err := NewHostname("nat.example.com", WithServers(addr), WithLogger(testLogger()))
			if err != nil {
				t.Fatalf("NewHostname() error = %v", err)
			}

			_, err = h.Resolve(context.Background())
			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
			}
			if resErr.Source != "hostname" {
				t.Errorf("Source = %q", resErr.Source)
			}
		})
	}
}

func TestHostname_CancelledContext(t *testing.T) {
	h, err := NewHostname("nat.example.com", WithServers("192.0.2.1"), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHostname() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Resolve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}
