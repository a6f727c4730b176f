package dnsupdate

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultPort is the standard DNS port.
	DefaultPort = "53"

	// DefaultTimeout is the default timeout for DNS operations.
	DefaultTimeout = 10 * time.Second

	// DefaultTSIGAlgorithm is the default TSIG algorithm if none specified.
	DefaultTSIGAlgorithm = dns.HmacSHA256
)

// Config holds RFC 2136 client configuration.
type Config struct {
	// Server is the DNS server address. Port 53 is assumed if omitted.
	Server string

	// Zone is the DNS zone to update, as an FQDN (e.g., "example.com.").
	Zone string

	// TSIGKeyName is the TSIG key name (e.g., "clouddns-nat.").
	TSIGKeyName string

	// TSIGSecret is the base64-encoded TSIG shared secret.
	TSIGSecret string

	// TSIGAlgorithm is hmac-sha256 (default), hmac-sha512 or hmac-md5.
	TSIGAlgorithm string

	// Timeout is the timeout for DNS operations (default: 10s).
	Timeout time.Duration

	// UseTCP sends updates over TCP instead of UDP. AXFR always uses TCP.
	UseTCP bool
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}

	if c.Zone == "" {
		errs = append(errs, "zone is required")
	} else if !strings.HasSuffix(c.Zone, ".") {
		errs = append(errs, "zone must end with a dot (e.g., 'example.com.')")
	}

	if c.TSIGKeyName != "" || c.TSIGSecret != "" || c.TSIGAlgorithm != "" {
		if c.TSIGKeyName == "" {
			errs = append(errs, "tsig_key_name is required when using TSIG authentication")
		}
		if c.TSIGSecret == "" {
			errs = append(errs, "tsig_secret is required when using TSIG authentication")
		}
		if c.TSIGAlgorithm != "" && !isValidAlgorithm(c.GetTSIGAlgorithm()) {
			errs = append(errs, fmt.Sprintf("unsupported tsig_algorithm: %s (supported: hmac-md5, hmac-sha256, hmac-sha512)", c.TSIGAlgorithm))
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsupdate config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetServer returns the server address with port.
func (c *Config) GetServer() string {
	if c.Server == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.Server); err == nil {
		return c.Server
	}
	return net.JoinHostPort(strings.Trim(c.Server, "[]"), DefaultPort)
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// GetTSIGAlgorithm returns the TSIG algorithm in miekg/dns format.
func (c *Config) GetTSIGAlgorithm() string {
	return normalizeAlgorithm(c.TSIGAlgorithm)
}

// HasTSIG returns true if TSIG authentication is configured.
func (c *Config) HasTSIG() bool {
	return c.TSIGKeyName != "" && c.TSIGSecret != ""
}

// ConfigFromMap creates a Config from provider settings.
//
// Required keys: SERVER, ZONE
// Optional keys: TSIG_KEY, TSIG_SECRET, TSIG_ALGORITHM, TIMEOUT (seconds), TCP
func ConfigFromMap(settings map[string]string) (*Config, error) {
	config := &Config{
		Server:        strings.TrimSpace(settings["SERVER"]),
		TSIGSecret:    strings.TrimSpace(settings["TSIG_SECRET"]),
		TSIGAlgorithm: settings["TSIG_ALGORITHM"],
	}

	if zone := strings.TrimSpace(settings["ZONE"]); zone != "" {
		config.Zone = dns.Fqdn(strings.ToLower(zone))
	}
	if key := strings.TrimSpace(settings["TSIG_KEY"]); key != "" {
		config.TSIGKeyName = dns.Fqdn(key)
	}

	if s := settings["TIMEOUT"]; s != "" {
		timeout, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEOUT value %q: %w", s, err)
		}
		config.Timeout = time.Duration(timeout) * time.Second
	}

	if s := settings["TCP"]; s != "" {
		config.UseTCP = strings.EqualFold(s, "true") || s == "1"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
