package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Load builds the configuration from defaults, the configuration file,
// CLOUDDNS_NAT_* environment variables and the flags set on fs (which may be nil).
//
// A dotenv file given with --env-file is loaded into the environment first;
// variables already present in the environment win. Every problem found is
// collected into a single *ValidationError.
func Load(fs *pflag.FlagSet) (*Config, error) {
	var errs []string

	if envFile := flagString(fs, FlagEnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, &ValidationError{Errors: []string{fmt.Sprintf("env file %s: %v", envFile, err)}}
		}
	}

	cfg := Default()

	path := flagString(fs, FlagConfig)
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			errs = append(errs, "config file: "+err.Error())
		} else {
			errs = append(errs, fileCfg.apply(cfg)...)
			cfg.ConfigFile = path
			slog.Debug("loaded configuration from file", slog.String("path", path))
		}
	}

	errs = append(errs, applyEnv(cfg)...)
	errs = append(errs, applyFlags(cfg, fs)...)
	errs = append(errs, cfg.validate()...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}
