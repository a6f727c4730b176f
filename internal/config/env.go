package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/policy"
)

// getEnv retrieves a CLOUDDNS_NAT_ environment variable.
func getEnv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or the file named by the matching _FILE variable (Docker secrets pattern).
//
// If both are set, the file takes precedence. The file contents are trimmed
// of leading/trailing whitespace.
func getEnvOrFile(key string) (string, error) {
	if filePath := getEnv(key + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%s%s_FILE: %w", EnvPrefix, key, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return getEnv(key), nil
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// envLoader applies environment variables to a Config and collects problems.
type envLoader struct {
	errs []string
}

func (l *envLoader) fail(key, format string, args ...any) {
	l.errs = append(l.errs, EnvPrefix+key+": "+fmt.Sprintf(format, args...))
}

func (l *envLoader) str(key string, dst *string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func (l *envLoader) lower(key string, dst *string) {
	if v := getEnv(key); v != "" {
		*dst = strings.ToLower(strings.TrimSpace(v))
	}
}

func (l *envLoader) secret(key string, dst *string) {
	v, err := getEnvOrFile(key)
	if err != nil {
		l.errs = append(l.errs, err.Error())
		return
	}
	if v != "" {
		*dst = v
	}
}

func (l *envLoader) boolean(key string, dst *bool) {
	v := getEnv(key)
	if v == "" {
		return
	}
	b, err := parseBool(v)
	if err != nil {
		l.fail(key, "%v", err)
		return
	}
	*dst = b
}

func (l *envLoader) integer(key string, dst *int) {
	v := getEnv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.fail(key, "invalid integer %q", v)
		return
	}
	*dst = n
}

func (l *envLoader) list(key string, dst *[]string) {
	if v := getEnv(key); v != "" {
		*dst = splitList(v)
	}
}

// applyEnv overlays CLOUDDNS_NAT_* environment variables onto cfg.
func applyEnv(cfg *Config) []string {
	l := &envLoader{}

	l.lower("SOURCE", &cfg.Source)
	l.lower("PROVIDER", &cfg.Provider)
	l.lower("LOGLEVEL", &cfg.LogLevel)
	l.lower("LOG_FORMAT", &cfg.LogFormat)
	l.boolean("RUN_ONCE", &cfg.RunOnce)
	l.boolean("DRY_RUN", &cfg.DryRun)
	l.integer("RECORD_TTL", &cfg.RecordTTL)
	l.str("REGISTRY_TENANT", &cfg.RegistryTenant)
	l.integer("HEALTH_PORT", &cfg.HealthPort)

	if v := getEnv("INTERVAL"); v != "" {
		interval, err := parseInterval(v)
		if err != nil {
			l.fail("INTERVAL", "invalid value %q (seconds or duration)", v)
		} else {
			cfg.Interval = interval
		}
	}
	if v := getEnv("POLICY"); v != "" {
		p, err := policy.Parse(v)
		if err != nil {
			l.fail("POLICY", "%v", err)
		} else {
			cfg.Policy = p
		}
	}

	l.str("IPV4_FIXED_ADDRESS", &cfg.IPv4.FixedAddress)
	l.str("IPV4_HOSTNAME", &cfg.IPv4.Hostname)
	l.list("IPV4_HOSTNAME_DNS_SERVERS", &cfg.IPv4.DNSServers)

	l.secret("CLOUDFLARE_API_TOKEN", &cfg.Cloudflare.APIToken)
	l.boolean("CLOUDFLARE_PROXIED", &cfg.Cloudflare.Proxied)
	l.list("CLOUDFLARE_ZONES", &cfg.Cloudflare.Zones)
	if v := getEnv("CLOUDFLARE_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			l.fail("CLOUDFLARE_RATE_LIMIT", "invalid number %q", v)
		} else {
			cfg.Cloudflare.RateLimit = limit
		}
	}

	l.str("RFC2136_SERVER", &cfg.RFC2136.Server)
	l.str("RFC2136_ZONE", &cfg.RFC2136.Zone)
	l.str("RFC2136_TSIG_KEY", &cfg.RFC2136.TSIGKey)
	l.secret("RFC2136_TSIG_SECRET", &cfg.RFC2136.TSIGSecret)
	l.str("RFC2136_TSIG_ALGORITHM", &cfg.RFC2136.TSIGAlgorithm)
	l.boolean("RFC2136_TCP", &cfg.RFC2136.TCP)

	l.str("DNSMASQ_FILE", &cfg.Dnsmasq.File)
	l.str("DNSMASQ_ZONE", &cfg.Dnsmasq.Zone)
	l.str("DNSMASQ_RELOAD_COMMAND", &cfg.Dnsmasq.ReloadCommand)
	l.str("DNSMASQ_SSH_HOST", &cfg.Dnsmasq.SSHHost)
	l.integer("DNSMASQ_SSH_PORT", &cfg.Dnsmasq.SSHPort)
	l.str("DNSMASQ_SSH_USER", &cfg.Dnsmasq.SSHUser)
	l.str("DNSMASQ_SSH_KEY_FILE", &cfg.Dnsmasq.SSHKeyFile)
	l.secret("DNSMASQ_SSH_PASSWORD", &cfg.Dnsmasq.SSHPassword)
	l.str("DNSMASQ_SSH_KNOWN_HOSTS", &cfg.Dnsmasq.SSHKnownHosts)

	return l.errs
}
