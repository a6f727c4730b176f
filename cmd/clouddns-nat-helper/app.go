package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/config"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/health"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/metrics"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/reconciler"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/registry"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/ipv4source"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/providers/cloudflare"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/providers/dnsmasq"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/providers/rfc2136"
)

// providerReadyTimeout bounds how long startup waits for the provider.
const providerReadyTimeout = 2 * time.Minute

// startupBackOff paces the provider readiness check.
var startupBackOff = newStartupBackOff

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider provider.Provider
	loop     *reconciler.Loop
}

func runLoop(cmd *cobra.Command, out, errOut io.Writer) error {
	cfg, logger, err := loadConfig(cmd, errOut)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger, out)
	if err != nil {
		return err
	}
	return a.run(cmd.Context())
}

func runPlan(cmd *cobra.Command, out, errOut io.Writer) error {
	cfg, logger, err := loadConfig(cmd, errOut)
	if err != nil {
		return err
	}
	cfg.DryRun = true
	cfg.RunOnce = true

	a, err := newApp(cfg, logger, out)
	if err != nil {
		return err
	}
	if err := waitForProvider(cmd.Context(), a.provider, startupBackOff(), logger); err != nil {
		return err
	}
	_, err = a.loop.RunCycle(cmd.Context())
	return err
}

// newApp builds the provider, the IPv4 source and the control loop from cfg.
func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	p, err := newProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	src, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.RegistryTenant,
		registry.WithLogger(logger),
		registry.WithTTL(cfg.RecordTTL),
	)
	builder := plan.NewBuilder(reg,
		plan.WithLogger(logger),
		plan.WithTTL(cfg.RecordTTL),
	)

	opts := []reconciler.Option{
		reconciler.WithLogger(logger),
		reconciler.WithConfig(reconciler.Config{
			Policy:   cfg.Policy,
			DryRun:   cfg.DryRun,
			RunOnce:  cfg.RunOnce,
			Interval: cfg.Interval,
		}),
	}
	if cfg.DryRun {
		opts = append(opts, reconciler.WithReporter(reconciler.NewReporter(out)))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: p,
		loop:     reconciler.New(p, src, builder, opts...),
	}, nil
}

// newProviderRegistry returns a registry holding every supported provider type.
func newProviderRegistry(logger *slog.Logger) *provider.Registry {
	r := provider.NewRegistry(logger)
	r.RegisterFactory(config.ProviderCloudflare, cloudflare.Factory())
	r.RegisterFactory(config.ProviderRFC2136, rfc2136.Factory())
	r.RegisterFactory(config.ProviderDnsmasq, dnsmasq.Factory())
	return r
}

func newProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	p, err := newProviderRegistry(logger).Create(cfg.Provider, cfg.Provider, cfg.ProviderSettings())
	if err != nil {
		return nil, fmt.Errorf("creating provider %s: %w", cfg.Provider, err)
	}
	return p, nil
}

func newSource(cfg *config.Config, logger *slog.Logger) (ipv4source.Source, error) {
	switch cfg.Source {
	case config.SourceFixed:
		src, err := ipv4source.ParseFixed(cfg.IPv4.FixedAddress)
		if err != nil {
			return nil, fmt.Errorf("creating fixed source: %w", err)
		}
		return src, nil
	case config.SourceHostname:
		src, err := ipv4source.NewHostname(cfg.IPv4.Hostname,
			ipv4source.WithServers(cfg.IPv4.DNSServers...),
			ipv4source.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("creating hostname source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// run waits for the provider, then runs the health server and the control
// loop until ctx is cancelled or, in run-once mode, the cycle finishes.
// A provider that never becomes ready does not stop the process; each cycle
// retries it and the health endpoint reports it.
func (a *app) run(ctx context.Context) error {
	if err := waitForProvider(ctx, a.provider, startupBackOff(), a.logger); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		a.logger.Warn("provider not ready, starting control loop anyway",
			slog.String("provider", a.provider.Name()),
			slog.String("error", err.Error()),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.cfg.HealthPort > 0 {
		srv := health.New(a.cfg.HealthPort, health.WithLogger(a.logger))
		srv.RegisterChecker("provider:"+a.provider.Name(), health.PingChecker(a.provider))
		srv.RegisterDegradedChecker("reconciler", health.CycleChecker(a.loop))
		g.Go(func() error {
			return srv.Run(loopCtx)
		})
	}

	g.Go(func() error {
		// The health server follows the loop down in run-once mode.
		defer stop()
		return a.loop.Run(loopCtx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		a.logger.Info("received shutdown signal")
	}
	a.logger.Info("clouddns-nat-helper shutdown complete")
	return err
}

func newStartupBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = providerReadyTimeout
	return b
}

// waitForProvider pings p until it answers, retrying with b. Authorization
// failures are not retried.
func waitForProvider(ctx context.Context, p provider.Provider, b backoff.BackOff, logger *slog.Logger) error {
	available := metrics.ProviderAvailable.WithLabelValues(p.Name(), p.Type())
	available.Set(0)

	ping := func() error {
		err := p.Ping(ctx)
		if err != nil && provider.IsUnauthorized(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("provider not ready, retrying",
			slog.String("provider", p.Name()),
			slog.Duration("retry_in", next),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("provider %s not ready: %w", p.Name(), err)
	}

	available.Set(1)
	logger.Info("provider ready",
		slog.String("provider", p.Name()),
		slog.String("type", p.Type()),
	)
	return nil
}
