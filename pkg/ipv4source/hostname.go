package ipv4source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single DNS exchange.
const DefaultTimeout = 5 * time.Second

// DefaultServers are queried when no resolver servers are configured.
var DefaultServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Hostname looks up the A record of a hostname on every Resolve.
// The first A record in the answer wins; round-robin setups are not supported.
type Hostname struct {
	hostname string
	servers  []string
	client   *dns.Client
	logger   *slog.Logger
}

// HostnameOption is a functional option for configuring the Hostname source.
type HostnameOption func(*Hostname)

// WithServers sets the resolvers to query, in order. Port 53 is assumed when
// a server has no port.
func WithServers(servers ...string) HostnameOption {
	return func(h *Hostname) {
		if len(servers) > 0 {
			h.servers = servers
		}
	}
}

// WithTimeout sets the timeout of a single exchange.
func WithTimeout(timeout time.Duration) HostnameOption {
	return func(h *Hostname) {
		if timeout > 0 {
			h.client.Timeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) HostnameOption {
	return func(h *Hostname) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHostname creates a source that resolves hostname.
func NewHostname(hostname string, opts ...HostnameOption) (*Hostname, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return nil, errors.New("hostname is required")
	}
	if _, ok := dns.IsDomainName(hostname); !ok {
		return nil, fmt.Errorf("invalid hostname %q", hostname)
	}

	h := &Hostname{
		hostname: dns.Fqdn(hostname),
		servers:  DefaultServers,
		client:   &dns.Client{Net: "udp", Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	servers := make([]string, 0, len(h.servers))
	for _, s := range h.servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		servers = append(servers, s)
	}
	if len(servers) == 0 {
		return nil, errors.New("at least one DNS server is required")
	}
	h.servers = servers

	return h, nil
}

// Name returns "hostname".
func (h *Hostname) Name() string {
	return "hostname"
}

// Servers returns the resolvers in query order.
func (h *Hostname) Servers() []string {
	return h.servers
}

// Resolve queries each server in turn until one returns an A record.
func (h *Hostname) Resolve(ctx context.Context) (netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(h.hostname, dns.TypeA)
	msg.RecursionDesired = true

	var errs []error
	for _, server := range h.servers {
		if err := ctx.Err(); err != nil {
			return netip.Addr{}, &ResolutionError{Source: h.Name(), Err: err}
		}

		addr, err := h.exchange(ctx, msg, server)
		if err != nil {
			h.logger.Debug("hostname lookup failed",
				slog.String("hostname", h.hostname),
				slog.String("server", server),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}

		h.logger.Debug("resolved hostname",
			slog.String("hostname", h.hostname),
			slog.String("server", server),
			slog.String("address", addr.String()),
		)
		return addr, nil
	}

	return netip.Addr{}, &ResolutionError{Source: h.Name(), Err: errors.Join(errs...)}
}

func (h *Hostname) exchange(ctx context.Context, msg *dns.Msg, server string) (netip.Addr, error) {
	resp, _, err := h.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return netip.Addr{}, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("server returned %s", dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			return addr, nil
		}
	}

	return netip.Addr{}, fmt.Errorf("query for %s did not return an IPv4 address", h.hostname)
}
