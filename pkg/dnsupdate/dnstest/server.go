// Package dnstest provides an in-process authoritative DNS server that
// accepts RFC 2136 updates and AXFR requests, for use in tests.
package dnstest

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// Server is a single-zone authoritative server listening on UDP and TCP.
type Server struct {
	// Addr is the host:port both listeners are bound to.
	Addr string

	zone  string
	tsig  map[string]string
	udp   *dns.Server
	tcp   *dns.Server
	mutex sync.Mutex

	records    []dns.RR
	updates    int
	refuseAXFR bool
}

// Option configures a Server.
type Option func(*Server)

// WithTSIG requires updates and transfers to be signed with the given key.
func WithTSIG(name, secret string) Option {
	return func(s *Server) {
		s.tsig = map[string]string{dns.Fqdn(name): secret}
	}
}

// NewServer starts a server for zone on a random localhost port.
// It is shut down when the test completes.
func NewServer(t testing.TB, zone string, opts ...Option) *Server {
	t.Helper()

	s := &Server{zone: dns.Fqdn(strings.ToLower(zone))}
	for _, opt := range opts {
		opt(s)
	}

	var (
		ln  net.Listener
		pc  net.PacketConn
		err error
	)
	for attempt := 0; attempt < 5; attempt++ {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("dnstest: listen tcp: %v", err)
		}
		pc, err = net.ListenPacket("udp", ln.Addr().String())
		if err == nil {
			break
		}
		ln.Close()
	}
	if err != nil {
		t.Fatalf("dnstest: listen udp: %v", err)
	}
	s.Addr = ln.Addr().String()

	handler := dns.HandlerFunc(s.serveDNS)
	s.tcp = &dns.Server{Listener: ln, Handler: handler, TsigSecret: s.tsig}
	s.udp = &dns.Server{PacketConn: pc, Handler: handler, TsigSecret: s.tsig}

	for _, srv := range []*dns.Server{s.tcp, s.udp} {
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }
		go func(srv *dns.Server) {
			_ = srv.ActivateAndServe()
		}(srv)
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("dnstest: server did not start")
		}
	}

	t.Cleanup(func() {
		_ = s.tcp.Shutdown()
		_ = s.udp.Shutdown()
	})
	return s
}

// Add inserts records given in zone-file syntax.
func (s *Server) Add(t testing.TB, lines ...string) {
	t.Helper()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, line := range lines {
		rr, err := dns.NewRR(line)
		if err != nil {
			t.Fatalf("dnstest: parsing %q: %v", line, err)
		}
		s.insert(rr)
	}
}

// Records returns a copy of the zone contents, excluding the SOA.
func (s *Server) Records() []dns.RR {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]dns.RR, len(s.records))
	for i, rr := range s.records {
		out[i] = dns.Copy(rr)
	}
	return out
}

// Updates returns the number of UPDATE messages accepted.
func (s *Server) Updates() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.updates
}

// RefuseAXFR makes zone transfers fail with REFUSED.
func (s *Server) RefuseAXFR(refuse bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.refuseAXFR = refuse
}

func (s *Server) soa() dns.RR {
	return &dns.SOA{
		Hdr:     dns.RR_Header{Name: s.zone, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Ns:      "ns1." + s.zone,
		Mbox:    "hostmaster." + s.zone,
		Serial:  1,
		Refresh: 3600,
		Retry:   600,
		Expire:  86400,
		Minttl:  60,
	}
}

func (s *Server) serveDNS(w dns.ResponseWriter, r *dns.Msg) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	signed := r.IsTsig() != nil
	switch {
	case signed && w.TsigStatus() != nil:
		m.Rcode = dns.RcodeNotAuth
	case len(r.Question) != 1:
		m.Rcode = dns.RcodeFormatError
	case r.Opcode == dns.OpcodeUpdate:
		s.handleUpdate(r, m, signed)
	case r.Question[0].Qtype == dns.TypeAXFR:
		s.handleAXFR(r, m, signed)
	default:
		s.handleQuery(r, m)
	}

	// Failed verifications are answered unsigned.
	if signed && w.TsigStatus() == nil {
		tsig := r.IsTsig()
		m.SetTsig(tsig.Hdr.Name, tsig.Algorithm, 300, time.Now().Unix())
	}
	_ = w.WriteMsg(m)
}

func (s *Server) handleUpdate(r, m *dns.Msg, signed bool) {
	if s.tsig != nil && !signed {
		m.Rcode = dns.RcodeRefused
		return
	}
	if !strings.EqualFold(r.Question[0].Name, s.zone) {
		m.Rcode = dns.RcodeNotAuth
		return
	}
	for _, rr := range r.Ns {
		if !dns.IsSubDomain(s.zone, strings.ToLower(rr.Header().Name)) {
			m.Rcode = dns.RcodeNotZone
			return
		}
	}

	for _, rr := range r.Ns {
		h := rr.Header()
		switch h.Class {
		case dns.ClassINET:
			s.insert(rr)
		case dns.ClassNONE:
			s.remove(rr)
		case dns.ClassANY:
			s.removeRRset(h.Name, h.Rrtype)
		}
	}
	s.updates++
}

func (s *Server) handleAXFR(r, m *dns.Msg, signed bool) {
	if s.refuseAXFR || (s.tsig != nil && !signed) {
		m.Rcode = dns.RcodeRefused
		return
	}
	m.Answer = append(m.Answer, s.soa())
	for _, rr := range s.records {
		m.Answer = append(m.Answer, dns.Copy(rr))
	}
	m.Answer = append(m.Answer, s.soa())
}

func (s *Server) handleQuery(r, m *dns.Msg) {
	q := r.Question[0]
	if q.Qtype == dns.TypeSOA && strings.EqualFold(q.Name, s.zone) {
		m.Answer = append(m.Answer, s.soa())
		return
	}
	for _, rr := range s.records {
		h := rr.Header()
		if strings.EqualFold(h.Name, q.Name) && h.Rrtype == q.Qtype {
			m.Answer = append(m.Answer, dns.Copy(rr))
		}
	}
}

func (s *Server) insert(rr dns.RR) {
	for _, existing := range s.records {
		if dns.IsDuplicate(existing, rr) {
			return
		}
	}
	s.records = append(s.records, dns.Copy(rr))
}

func (s *Server) remove(rr dns.RR) {
	match := dns.Copy(rr)
	match.Header().Class = dns.ClassINET

	kept := s.records[:0]
	for _, existing := range s.records {
		if !dns.IsDuplicate(existing, match) {
			kept = append(kept, existing)
		}
	}
	s.records = kept
}

func (s *Server) removeRRset(name string, rrtype uint16) {
	kept := s.records[:0]
	for _, existing := range s.records {
		h := existing.Header()
		if strings.EqualFold(h.Name, name) && (rrtype == dns.TypeANY || h.Rrtype == rrtype) {
			continue
		}
		kept = append(kept, existing)
	}
	s.records = kept
}
