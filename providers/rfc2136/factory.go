package rfc2136

import (
	"log/slog"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Factory returns a provider.Factory for creating RFC 2136 provider instances.
func Factory() provider.Factory {
	return func(name string, settings map[string]string, logger *slog.Logger) (provider.Provider, error) {
		cfg, err := ConfigFromMap(settings)
		if err != nil {
			return nil, err
		}

		p, err := New(name, cfg, WithProviderLogger(logger))
		if err != nil {
			return nil, err
		}

		p.logger.Info("RFC 2136 provider created",
			slog.String("name", name),
			slog.String("server", cfg.Update.GetServer()),
			slog.String("zone", cfg.Update.Zone),
			slog.Bool("tsig", cfg.Update.HasTSIG()),
			slog.Bool("tcp", cfg.Update.UseTCP),
		)
		return p, nil
	}
}
