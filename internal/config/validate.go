package config

import (
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks the configuration and returns a *ValidationError listing
// every problem, or nil.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("log level: invalid value %q (must be debug, info, warn, or error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		add("log format: invalid value %q (must be json or text)", c.LogFormat)
	}

	if c.Interval < time.Second {
		add("interval: must be at least 1s, got %v", c.Interval)
	}
	if c.RecordTTL < 0 {
		add("record TTL: must not be negative, got %d", c.RecordTTL)
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		add("health port: invalid port number %d", c.HealthPort)
	}

	errs = append(errs, c.validateSource()...)
	errs = append(errs, c.validateProvider()...)
	return errs
}

func (c *Config) validateSource() []string {
	var errs []string

	if c.IPv4.FixedAddress != "" && c.IPv4.Hostname != "" {
		errs = append(errs, "ipv4: fixed address and hostname are mutually exclusive")
	}

	switch c.Source {
	case "":
		errs = append(errs, "source: required (hostname or fixed)")
	case SourceFixed:
		if c.IPv4.FixedAddress == "" {
			errs = append(errs, "ipv4 fixed address: required when source is fixed")
			break
		}
		addr, err := netip.ParseAddr(c.IPv4.FixedAddress)
		if err != nil || !addr.Is4() {
			errs = append(errs, fmt.Sprintf("ipv4 fixed address: %q is not an IPv4 address", c.IPv4.FixedAddress))
		}
	case SourceHostname:
		if c.IPv4.Hostname == "" {
			errs = append(errs, "ipv4 hostname: required when source is hostname")
		}
		if len(c.IPv4.DNSServers) == 0 {
			errs = append(errs, "ipv4 hostname DNS servers: at least one server is required")
		}
		for _, s := range c.IPv4.DNSServers {
			host := s
			if h, _, err := net.SplitHostPort(s); err == nil {
				host = h
			}
			if host == "" {
				errs = append(errs, fmt.Sprintf("ipv4 hostname DNS servers: invalid server %q", s))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("source: unknown value %q (must be hostname or fixed)", c.Source))
	}

	return errs
}

func (c *Config) validateProvider() []string {
	var errs []string

	switch c.Provider {
	case ProviderCloudflare:
		if c.Cloudflare.APIToken == "" {
			errs = append(errs, "cloudflare API token: required")
		}
		if c.Cloudflare.RateLimit < 0 {
			errs = append(errs, "cloudflare rate limit: must not be negative")
		}
	case ProviderRFC2136:
		if c.RFC2136.Server == "" {
			errs = append(errs, "rfc2136 server: required")
		}
		if c.RFC2136.Zone == "" {
			errs = append(errs, "rfc2136 zone: required")
		}
		if (c.RFC2136.TSIGKey == "") != (c.RFC2136.TSIGSecret == "") {
			errs = append(errs, "rfc2136 TSIG: key and secret must be set together")
		}
	case ProviderDnsmasq:
		if c.Dnsmasq.File != "" && !filepath.IsAbs(c.Dnsmasq.File) {
			errs = append(errs, fmt.Sprintf("dnsmasq file: must be an absolute path, got %q", c.Dnsmasq.File))
		}
		if c.Dnsmasq.SSHHost != "" {
			if c.Dnsmasq.SSHUser == "" {
				errs = append(errs, "dnsmasq SSH user: required when SSH host is set")
			}
			if c.Dnsmasq.SSHKeyFile == "" && c.Dnsmasq.SSHPassword == "" {
				errs = append(errs, "dnsmasq SSH: key file or password is required")
			}
		}
	case "":
		errs = append(errs, "provider: required")
	default:
		errs = append(errs, fmt.Sprintf("provider: unknown type %q (must be cloudflare, rfc2136, or dnsmasq)", c.Provider))
	}

	return errs
}
