package dnsmasq

import (
	"fmt"
	"path"
	"strings"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/sshutil"
)

// DefaultFile is the default path of the managed dnsmasq configuration file.
const DefaultFile = "/etc/dnsmasq.d/clouddns-nat.conf"

// Config holds dnsmasq-specific configuration.
type Config struct {
	File          string // Managed configuration file
	Zone          string // Only names inside this zone are reported (optional)
	ReloadCommand string // Run after every write that changed the file (optional)

	// SSH is set when the file lives on a remote host.
	SSH *sshutil.Config
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.File == "" {
		errs = append(errs, "FILE is required")
	} else if !path.IsAbs(c.File) {
		errs = append(errs, "FILE must be an absolute path")
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsmasq config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsRemote reports whether the file is managed over SSH.
func (c *Config) IsRemote() bool {
	return c.SSH != nil
}

// ConfigFromMap builds a Config from provider settings.
//
// Keys: FILE, ZONE, RELOAD_COMMAND and the SSH_ prefixed keys understood by
// sshutil.ConfigFromMap (SSH_HOST, SSH_PORT, SSH_USER, SSH_KEY_FILE,
// SSH_KEY_PASSPHRASE, SSH_PASSWORD, SSH_KNOWN_HOSTS, SSH_TIMEOUT). SSH is
// enabled when SSH_HOST is set.
func ConfigFromMap(settings map[string]string) (*Config, error) {
	cfg := &Config{
		File:          settings["FILE"],
		Zone:          provider.NormalizeName(settings["ZONE"]),
		ReloadCommand: strings.TrimSpace(settings["RELOAD_COMMAND"]),
	}
	if cfg.File == "" {
		cfg.File = DefaultFile
	}

	if settings["SSH_HOST"] != "" {
		sshSettings := make(map[string]string)
		for k, v := range settings {
			if rest, ok := strings.CutPrefix(k, "SSH_"); ok {
				sshSettings[rest] = v
			}
		}
		sshConfig, err := sshutil.ConfigFromMap(sshSettings)
		if err != nil {
			return nil, fmt.Errorf("dnsmasq ssh settings: %w", err)
		}
		cfg.SSH = sshConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
