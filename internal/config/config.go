// Package config loads clouddns-nat-helper configuration.
//
// Precedence, lowest first: built-in defaults, the configuration file (YAML or
// TOML), CLOUDDNS_NAT_* environment variables, command-line flags. Secrets
// may be read from a file named by the matching *_FILE variable.
package config

import (
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/policy"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CLOUDDNS_NAT_"

// Defaults.
const (
	DefaultProvider       = "cloudflare"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultInterval       = 60 * time.Second
	DefaultRegistryTenant = "default"
	DefaultRateLimit      = 4.0
)

// Source types.
const (
	SourceHostname = "hostname"
	SourceFixed    = "fixed"
)

// Provider types.
const (
	ProviderCloudflare = "cloudflare"
	ProviderRFC2136    = "rfc2136"
	ProviderDnsmasq    = "dnsmasq"
)

// DefaultDNSServers are the resolvers used by the hostname source.
var DefaultDNSServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Config holds the complete runtime configuration.
type Config struct {
	// Source selects the IPv4 source: hostname or fixed.
	Source string
	// Provider selects the zone provider type.
	Provider string

	LogLevel  string
	LogFormat string

	RunOnce  bool
	DryRun   bool
	Interval time.Duration
	Policy   policy.Policy

	// RecordTTL applies to created and updated records; 0 keeps the provider default.
	RecordTTL int
	// RegistryTenant is the owner identity written to ownership records.
	RegistryTenant string

	// HealthPort serves /health, /ready and /metrics; 0 disables the server.
	HealthPort int

	IPv4       IPv4Config
	Cloudflare CloudflareConfig
	RFC2136    RFC2136Config
	Dnsmasq    DnsmasqConfig

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string
}

// IPv4Config configures the IPv4 sources.
type IPv4Config struct {
	FixedAddress string
	Hostname     string
	DNSServers   []string
}

// CloudflareConfig configures the cloudflare provider.
type CloudflareConfig struct {
	APIToken  string
	Proxied   bool
	Zones     []string
	RateLimit float64
}

// RFC2136Config configures the rfc2136 provider.
type RFC2136Config struct {
	Server        string
	Zone          string
	TSIGKey       string
	TSIGSecret    string
	TSIGAlgorithm string
	TCP           bool
}

// DnsmasqConfig configures the dnsmasq provider.
type DnsmasqConfig struct {
	File          string
	Zone          string
	ReloadCommand string

	SSHHost       string
	SSHPort       int
	SSHUser       string
	SSHKeyFile    string
	SSHPassword   string
	SSHKnownHosts string
}

// Default returns a Config holding the built-in defaults.
func Default() *Config {
	return &Config{
		Provider:       DefaultProvider,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		Interval:       DefaultInterval,
		Policy:         policy.Default,
		RegistryTenant: DefaultRegistryTenant,
		IPv4: IPv4Config{
			DNSServers: append([]string(nil), DefaultDNSServers...),
		},
		Cloudflare: CloudflareConfig{
			RateLimit: DefaultRateLimit,
		},
	}
}

// ProviderSettings returns the settings map handed to the selected provider's factory.
func (c *Config) ProviderSettings() map[string]string {
	settings := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			settings[key] = value
		}
	}

	switch c.Provider {
	case ProviderCloudflare:
		set("TOKEN", c.Cloudflare.APIToken)
		set("ZONES", strings.Join(c.Cloudflare.Zones, ","))
		set("PROXIED", strconv.FormatBool(c.Cloudflare.Proxied))
		if c.Cloudflare.RateLimit > 0 {
			set("RATE_LIMIT", strconv.FormatFloat(c.Cloudflare.RateLimit, 'f', -1, 64))
		}
	case ProviderRFC2136:
		set("SERVER", c.RFC2136.Server)
		set("ZONE", c.RFC2136.Zone)
		set("TSIG_KEY", c.RFC2136.TSIGKey)
		set("TSIG_SECRET", c.RFC2136.TSIGSecret)
		set("TSIG_ALGORITHM", c.RFC2136.TSIGAlgorithm)
		set("TCP", strconv.FormatBool(c.RFC2136.TCP))
	case ProviderDnsmasq:
		set("FILE", c.Dnsmasq.File)
		set("ZONE", c.Dnsmasq.Zone)
		set("RELOAD_COMMAND", c.Dnsmasq.ReloadCommand)
		set("SSH_HOST", c.Dnsmasq.SSHHost)
		if c.Dnsmasq.SSHPort > 0 {
			set("SSH_PORT", strconv.Itoa(c.Dnsmasq.SSHPort))
		}
		set("SSH_USER", c.Dnsmasq.SSHUser)
		set("SSH_KEY_FILE", c.Dnsmasq.SSHKeyFile)
		set("SSH_PASSWORD", c.Dnsmasq.SSHPassword)
		set("SSH_KNOWN_HOSTS", c.Dnsmasq.SSHKnownHosts)
	}
	return settings
}

// parseInterval accepts whole seconds ("60") or a Go duration ("1m30s").
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
