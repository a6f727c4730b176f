package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/policy"
)

// FileConfig represents the configuration file structure. The same layout is
// accepted as YAML and as TOML.
type FileConfig struct {
	Source    string `yaml:"source,omitempty" toml:"source"`
	Provider  string `yaml:"provider,omitempty" toml:"provider"`
	Policy    string `yaml:"policy,omitempty" toml:"policy"`
	DryRun    *bool  `yaml:"dry_run,omitempty" toml:"dry_run"` // Pointer to distinguish unset from false
	RunOnce   *bool  `yaml:"run_once,omitempty" toml:"run_once"`
	Interval  string `yaml:"interval,omitempty" toml:"interval"` // seconds or Go duration
	RecordTTL *int   `yaml:"record_ttl,omitempty" toml:"record_ttl"`

	Log        *FileLogConfig        `yaml:"log,omitempty" toml:"log"`
	Registry   *FileRegistryConfig   `yaml:"registry,omitempty" toml:"registry"`
	Health     *FileHealthConfig     `yaml:"health,omitempty" toml:"health"`
	IPv4       *FileIPv4Config       `yaml:"ipv4,omitempty" toml:"ipv4"`
	Cloudflare *FileCloudflareConfig `yaml:"cloudflare,omitempty" toml:"cloudflare"`
	RFC2136    *FileRFC2136Config    `yaml:"rfc2136,omitempty" toml:"rfc2136"`
	Dnsmasq    *FileDnsmasqConfig    `yaml:"dnsmasq,omitempty" toml:"dnsmasq"`
}

// FileLogConfig holds logging settings.
type FileLogConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FileRegistryConfig holds ownership registry settings.
type FileRegistryConfig struct {
	Tenant string `yaml:"tenant,omitempty" toml:"tenant"`
}

// FileHealthConfig holds health/metrics server settings.
type FileHealthConfig struct {
	Port *int `yaml:"port,omitempty" toml:"port"`
}

// FileIPv4Config holds IPv4 source settings.
type FileIPv4Config struct {
	FixedAddress string   `yaml:"fixed_address,omitempty" toml:"fixed_address"`
	Hostname     string   `yaml:"hostname,omitempty" toml:"hostname"`
	DNSServers   []string `yaml:"dns_servers,omitempty" toml:"dns_servers"`
}

// FileCloudflareConfig holds cloudflare provider settings.
type FileCloudflareConfig struct {
	APIToken  string   `yaml:"api_token,omitempty" toml:"api_token"`
	Proxied   *bool    `yaml:"proxied,omitempty" toml:"proxied"`
	Zones     []string `yaml:"zones,omitempty" toml:"zones"`
	RateLimit *float64 `yaml:"rate_limit,omitempty" toml:"rate_limit"`
}

// FileRFC2136Config holds rfc2136 provider settings.
type FileRFC2136Config struct {
	Server        string `yaml:"server,omitempty" toml:"server"`
	Zone          string `yaml:"zone,omitempty" toml:"zone"`
	TSIGKey       string `yaml:"tsig_key,omitempty" toml:"tsig_key"`
	TSIGSecret    string `yaml:"tsig_secret,omitempty" toml:"tsig_secret"`
	TSIGAlgorithm string `yaml:"tsig_algorithm,omitempty" toml:"tsig_algorithm"`
	TCP           *bool  `yaml:"tcp,omitempty" toml:"tcp"`
}

// FileDnsmasqConfig holds dnsmasq provider settings.
type FileDnsmasqConfig struct {
	File          string         `yaml:"file,omitempty" toml:"file"`
	Zone          string         `yaml:"zone,omitempty" toml:"zone"`
	ReloadCommand string         `yaml:"reload_command,omitempty" toml:"reload_command"`
	SSH           *FileSSHConfig `yaml:"ssh,omitempty" toml:"ssh"`
}

// FileSSHConfig holds the SSH connection for a remote dnsmasq host.
type FileSSHConfig struct {
	Host       string `yaml:"host,omitempty" toml:"host"`
	Port       int    `yaml:"port,omitempty" toml:"port"`
	User       string `yaml:"user,omitempty" toml:"user"`
	KeyFile    string `yaml:"key_file,omitempty" toml:"key_file"`
	Password   string `yaml:"password,omitempty" toml:"password"`
	KnownHosts string `yaml:"known_hosts,omitempty" toml:"known_hosts"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

func interpolateAll(values []string) {
	for i := range values {
		values[i] = InterpolateEnvVars(values[i])
	}
}

// interpolateEnvVars interpolates environment variables in every string field.
func (c *FileConfig) interpolateEnvVars() {
	for _, s := range []*string{&c.Source, &c.Provider, &c.Policy, &c.Interval} {
		*s = InterpolateEnvVars(*s)
	}

	if c.Log != nil {
		c.Log.Level = InterpolateEnvVars(c.Log.Level)
		c.Log.Format = InterpolateEnvVars(c.Log.Format)
	}
	if c.Registry != nil {
		c.Registry.Tenant = InterpolateEnvVars(c.Registry.Tenant)
	}
	if c.IPv4 != nil {
		c.IPv4.FixedAddress = InterpolateEnvVars(c.IPv4.FixedAddress)
		c.IPv4.Hostname = InterpolateEnvVars(c.IPv4.Hostname)
		interpolateAll(c.IPv4.DNSServers)
	}
	if c.Cloudflare != nil {
		c.Cloudflare.APIToken = InterpolateEnvVars(c.Cloudflare.APIToken)
		interpolateAll(c.Cloudflare.Zones)
	}
	if r := c.RFC2136; r != nil {
		for _, s := range []*string{&r.Server, &r.Zone, &r.TSIGKey, &r.TSIGSecret, &r.TSIGAlgorithm} {
			*s = InterpolateEnvVars(*s)
		}
	}
	if d := c.Dnsmasq; d != nil {
		d.File = InterpolateEnvVars(d.File)
		d.Zone = InterpolateEnvVars(d.Zone)
		d.ReloadCommand = InterpolateEnvVars(d.ReloadCommand)
		if s := d.SSH; s != nil {
			for _, v := range []*string{&s.Host, &s.User, &s.KeyFile, &s.Password, &s.KnownHosts} {
				*v = InterpolateEnvVars(*v)
			}
		}
	}
}

// LoadFile reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML. Environment variables in ${VAR}
// format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()
	return &cfg, nil
}

// apply copies every value set in the file onto cfg and returns the problems found.
func (c *FileConfig) apply(cfg *Config) []string {
	var errs []string

	if c.Source != "" {
		cfg.Source = strings.ToLower(c.Source)
	}
	if c.Provider != "" {
		cfg.Provider = strings.ToLower(c.Provider)
	}
	if c.Policy != "" {
		p, err := policy.Parse(c.Policy)
		if err != nil {
			errs = append(errs, "policy: "+err.Error())
		} else {
			cfg.Policy = p
		}
	}
	if c.DryRun != nil {
		cfg.DryRun = *c.DryRun
	}
	if c.RunOnce != nil {
		cfg.RunOnce = *c.RunOnce
	}
	if c.Interval != "" {
		interval, err := parseInterval(c.Interval)
		if err != nil {
			errs = append(errs, fmt.Sprintf("interval: invalid value %q", c.Interval))
		} else {
			cfg.Interval = interval
		}
	}
	if c.RecordTTL != nil {
		cfg.RecordTTL = *c.RecordTTL
	}

	if c.Log != nil {
		if c.Log.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Log.Level)
		}
		if c.Log.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Log.Format)
		}
	}
	if c.Registry != nil && c.Registry.Tenant != "" {
		cfg.RegistryTenant = c.Registry.Tenant
	}
	if c.Health != nil && c.Health.Port != nil {
		cfg.HealthPort = *c.Health.Port
	}

	if c.IPv4 != nil {
		if c.IPv4.FixedAddress != "" {
			cfg.IPv4.FixedAddress = c.IPv4.FixedAddress
		}
		if c.IPv4.Hostname != "" {
			cfg.IPv4.Hostname = c.IPv4.Hostname
		}
		if len(c.IPv4.DNSServers) > 0 {
			cfg.IPv4.DNSServers = c.IPv4.DNSServers
		}
	}

	if cf := c.Cloudflare; cf != nil {
		if cf.APIToken != "" {
			cfg.Cloudflare.APIToken = cf.APIToken
		}
		if cf.Proxied != nil {
			cfg.Cloudflare.Proxied = *cf.Proxied
		}
		if len(cf.Zones) > 0 {
			cfg.Cloudflare.Zones = cf.Zones
		}
		if cf.RateLimit != nil {
			cfg.Cloudflare.RateLimit = *cf.RateLimit
		}
	}

	if r := c.RFC2136; r != nil {
		setString(&cfg.RFC2136.Server, r.Server)
		setString(&cfg.RFC2136.Zone, r.Zone)
		setString(&cfg.RFC2136.TSIGKey, r.TSIGKey)
		setString(&cfg.RFC2136.TSIGSecret, r.TSIGSecret)
		setString(&cfg.RFC2136.TSIGAlgorithm, r.TSIGAlgorithm)
		if r.TCP != nil {
			cfg.RFC2136.TCP = *r.TCP
		}
	}

	if d := c.Dnsmasq; d != nil {
		setString(&cfg.Dnsmasq.File, d.File)
		setString(&cfg.Dnsmasq.Zone, d.Zone)
		setString(&cfg.Dnsmasq.ReloadCommand, d.ReloadCommand)
		if s := d.SSH; s != nil {
			setString(&cfg.Dnsmasq.SSHHost, s.Host)
			if s.Port != 0 {
				cfg.Dnsmasq.SSHPort = s.Port
			}
			setString(&cfg.Dnsmasq.SSHUser, s.User)
			setString(&cfg.Dnsmasq.SSHKeyFile, s.KeyFile)
			setString(&cfg.Dnsmasq.SSHPassword, s.Password)
			setString(&cfg.Dnsmasq.SSHKnownHosts, s.KnownHosts)
		}
	}

	return errs
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
