package dnsmasq

import (
	"log/slog"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Factory returns a provider.Factory for creating dnsmasq provider instances.
func Factory() provider.Factory {
	return func(name string, settings map[string]string, logger *slog.Logger) (provider.Provider, error) {
		cfg, err := ConfigFromMap(settings)
		if err != nil {
			return nil, err
		}
		return New(name, cfg, WithProviderLogger(logger))
	}
}
