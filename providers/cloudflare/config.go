package cloudflare

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTTL asks Cloudflare for its automatic TTL.
const DefaultTTL = 1

// Config holds Cloudflare-specific configuration.
type Config struct {
	Token     string   // API token (Bearer authentication)
	Zones     []string // Zone names to manage; empty means every zone the token can see
	TTL       int      // TTL for records created without one
	Proxied   bool     // Proxy created A records through Cloudflare
	RateLimit float64  // Requests per second; zero disables limiting
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.Token == "" {
		errs = append(errs, "TOKEN is required")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	// 1 = automatic, otherwise Cloudflare's minimum is 60 seconds
	if c.TTL > 1 && c.TTL < 60 {
		errs = append(errs, "TTL must be at least 60 seconds (or 1 for automatic)")
	}
	if c.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT must be non-negative")
	}
	for _, z := range c.Zones {
		if strings.TrimSpace(z) == "" {
			errs = append(errs, "ZONES must not contain empty entries")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cloudflare config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConfigFromMap builds a Config from provider settings.
//
// Supported settings:
//   - TOKEN: API token (required)
//   - ZONES: comma-separated zone names (optional, defaults to all zones)
//   - TTL: record TTL (optional, defaults to automatic)
//   - PROXIED: proxy created A records (optional, defaults to false)
//   - RATE_LIMIT: API requests per second (optional)
func ConfigFromMap(settings map[string]string) (*Config, error) {
	cfg := &Config{
		Token: settings["TOKEN"],
		Zones: splitList(settings["ZONES"]),
		TTL:   DefaultTTL,
	}

	if s := settings["TTL"]; s != "" {
		ttl, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", s, err)
		}
		cfg.TTL = ttl
	}

	if s := settings["PROXIED"]; s != "" {
		cfg.Proxied = parseBool(s)
	}

	if s := settings["RATE_LIMIT"]; s != "" {
		limit, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT value %q: %w", s, err)
		}
		cfg.RateLimit = limit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimSuffix(strings.ToLower(part), "."))
		}
	}
	return out
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
