package rfc2136

import (
	"fmt"
	"strconv"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/dnsupdate"
)

// DefaultTTL is the TTL for records created without one.
const DefaultTTL = 300

// Config holds RFC 2136 provider configuration.
type Config struct {
	// Update configures the underlying dnsupdate client.
	Update dnsupdate.Config

	// TTL is the default TTL for created records.
	TTL int
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.Update.Validate(); err != nil {
		return err
	}
	if c.TTL < 0 {
		return fmt.Errorf("TTL must be non-negative")
	}
	return nil
}

// ConfigFromMap builds a Config from provider settings.
func ConfigFromMap(settings map[string]string) (*Config, error) {
	update, err := dnsupdate.ConfigFromMap(settings)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Update: *update, TTL: DefaultTTL}
	if s := settings["TTL"]; s != "" {
		ttl, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", s, err)
		}
		cfg.TTL = ttl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
