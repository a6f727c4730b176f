package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/policy"
)

// Flag names.
const (
	FlagConfig         = "config"
	FlagEnvFile        = "env-file"
	FlagSource         = "source"
	FlagProvider       = "provider"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagRunOnce        = "run-once"
	FlagDryRun         = "dry-run"
	FlagInterval       = "interval"
	FlagPolicy         = "policy"
	FlagRecordTTL      = "record-ttl"
	FlagRegistryTenant = "registry-tenant"
	FlagHealthPort     = "health-port"
	FlagFixedAddress   = "ipv4-fixed-address"
	FlagHostname       = "ipv4-hostname"
	FlagDNSServers     = "ipv4-hostname-dns-servers"
	FlagCFProxied      = "cloudflare-proxied"
	FlagCFZones        = "cloudflare-zones"
)

// RegisterFlags defines every configuration flag on fs. Flag defaults are
// informational only: a flag overrides lower layers only when the user set it.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String(FlagConfig, "", "configuration file (YAML or TOML, env "+EnvPrefix+"CONFIG)")
	fs.String(FlagEnvFile, "", "dotenv file loaded into the environment before reading variables")
	fs.String(FlagSource, "", "IPv4 source: hostname or fixed")
	fs.String(FlagProvider, d.Provider, "zone provider: cloudflare, rfc2136 or dnsmasq")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: json or text")
	fs.Bool(FlagRunOnce, false, "run a single reconciliation cycle and exit")
	fs.Bool(FlagDryRun, false, "report planned changes without applying them")
	fs.String(FlagInterval, "60", "interval between cycles (seconds or duration)")
	fs.String(FlagPolicy, string(d.Policy), "record policy: createonly, upsert or sync")
	fs.Int(FlagRecordTTL, 0, "TTL of created and updated records (0 = provider default)")
	fs.String(FlagRegistryTenant, d.RegistryTenant, "owner identity written to ownership records")
	fs.Int(FlagHealthPort, 0, "port for /health, /ready and /metrics (0 = disabled)")
	fs.String(FlagFixedAddress, "", "fixed IPv4 address to publish")
	fs.String(FlagHostname, "", "hostname whose A record is published")
	fs.StringSlice(FlagDNSServers, d.IPv4.DNSServers, "resolvers used to look up the hostname")
	fs.Bool(FlagCFProxied, false, "proxy created A records through Cloudflare")
	fs.StringSlice(FlagCFZones, nil, "Cloudflare zones to manage (default: every zone the token can list)")
}

// applyFlags overlays the flags the user set on fs onto cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) []string {
	if fs == nil {
		return nil
	}
	var errs []string
	fail := func(name string, err error) {
		errs = append(errs, fmt.Sprintf("--%s: %v", name, err))
	}

	str := func(name string, dst *string, lower bool) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetString(name)
		if err != nil {
			fail(name, err)
			return
		}
		if lower {
			v = strings.ToLower(v)
		}
		*dst = v
	}
	boolean := func(name string, dst *bool) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetBool(name)
		if err != nil {
			fail(name, err)
			return
		}
		*dst = v
	}
	integer := func(name string, dst *int) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetInt(name)
		if err != nil {
			fail(name, err)
			return
		}
		*dst = v
	}
	slice := func(name string, dst *[]string) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetStringSlice(name)
		if err != nil {
			fail(name, err)
			return
		}
		*dst = v
	}

	str(FlagSource, &cfg.Source, true)
	str(FlagProvider, &cfg.Provider, true)
	str(FlagLogLevel, &cfg.LogLevel, true)
	str(FlagLogFormat, &cfg.LogFormat, true)
	boolean(FlagRunOnce, &cfg.RunOnce)
	boolean(FlagDryRun, &cfg.DryRun)
	integer(FlagRecordTTL, &cfg.RecordTTL)
	str(FlagRegistryTenant, &cfg.RegistryTenant, false)
	integer(FlagHealthPort, &cfg.HealthPort)
	str(FlagFixedAddress, &cfg.IPv4.FixedAddress, false)
	str(FlagHostname, &cfg.IPv4.Hostname, false)
	slice(FlagDNSServers, &cfg.IPv4.DNSServers)
	boolean(FlagCFProxied, &cfg.Cloudflare.Proxied)
	slice(FlagCFZones, &cfg.Cloudflare.Zones)

	if fs.Changed(FlagInterval) {
		v, _ := fs.GetString(FlagInterval)
		interval, err := parseInterval(v)
		if err != nil {
			fail(FlagInterval, fmt.Errorf("invalid value %q", v))
		} else {
			cfg.Interval = interval
		}
	}
	if fs.Changed(FlagPolicy) {
		v, _ := fs.GetString(FlagPolicy)
		p, err := policy.Parse(v)
		if err != nil {
			fail(FlagPolicy, err)
		} else {
			cfg.Policy = p
		}
	}

	return errs
}

// flagString returns the value of a string flag, or "" when fs is nil or lacks it.
func flagString(fs *pflag.FlagSet, name string) string {
	if fs == nil || fs.Lookup(name) == nil {
		return ""
	}
	v, _ := fs.GetString(name)
	return v
}
