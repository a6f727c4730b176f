// Package dnsmasq implements a zone provider that manages address= and
// txt-record= lines in a dnsmasq configuration file, locally or over SSH.
package dnsmasq

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path"
	"sync"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/sshutil"
)

const filePerm = 0o644

// Provider implements provider.Provider for dnsmasq.
type Provider struct {
	name   string
	config *Config
	fs     sshutil.FileSystem
	runner sshutil.CommandRunner
	ssh    *sshutil.Client
	logger *slog.Logger

	// mu serializes read-modify-write cycles on the file.
	mu sync.Mutex
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFileSystem replaces the local or SFTP file system (for testing).
func WithFileSystem(fs sshutil.FileSystem) ProviderOption {
	return func(p *Provider) {
		p.fs = fs
	}
}

// WithCommandRunner replaces the reload command runner (for testing).
func WithCommandRunner(runner sshutil.CommandRunner) ProviderOption {
	return func(p *Provider) {
		p.runner = runner
	}
}

// New creates a new dnsmasq provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.IsRemote() && (p.fs == nil || p.runner == nil) {
		client, err := sshutil.NewClient(config.SSH, sshutil.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("creating SSH client: %w", err)
		}
		p.ssh = client
		if p.fs == nil {
			p.fs = sshutil.NewSFTPFileSystem(client, sshutil.WithSFTPLogger(p.logger))
		}
		if p.runner == nil {
			p.runner = sshutil.NewSSHCommandRunner(client, sshutil.WithCommandLogger(p.logger))
		}
	}
	if p.fs == nil {
		p.fs = localFileSystem{}
	}
	if p.runner == nil {
		p.runner = &localCommandRunner{logger: p.logger}
	}

	return p, nil
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "dnsmasq".
func (p *Provider) Type() string {
	return "dnsmasq"
}

// File returns the managed configuration file path.
func (p *Provider) File() string {
	return p.config.File
}

// Ping checks that the directory holding the file is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	dir := path.Dir(p.config.File)
	info, err := p.fs.Stat(ctx, dir)
	if err != nil {
		return mapError(fmt.Errorf("checking config directory: %w", err))
	}
	if !info.IsDir() {
		return fmt.Errorf("config path is not a directory: %s", dir)
	}
	return nil
}

// Fetch parses the file and returns its records inside the zone.
// A missing file is an empty zone.
func (p *Provider) Fetch(ctx context.Context) ([]provider.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(ctx)
	if err != nil {
		return nil, provider.NewFetchError(p.name, mapError(err))
	}
	records := f.records()

	p.logger.Debug("fetched records",
		slog.String("provider", p.name),
		slog.String("file", p.config.File),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// Apply applies every action to one in-memory copy of the file, writes the
// file once and runs the reload command. A failed write fails every action
// that had succeeded in memory.
func (p *Provider) Apply(ctx context.Context, actions []provider.Action) []provider.ActionResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(ctx)
	if err != nil {
		return failAll(actions, mapError(err))
	}

	results := provider.ApplyEach(ctx, f, actions)
	if !f.dirty {
		return results
	}

	if err := p.fs.WriteFile(ctx, p.config.File, f.bytes(), filePerm); err != nil {
		err = mapError(fmt.Errorf("writing %s: %w", p.config.File, err))
		for i := range results {
			if results[i].OK() {
				results[i].Err = &provider.ApplyError{Action: results[i].Action, Err: err}
			}
		}
		return results
	}

	for _, r := range results {
		if r.OK() {
			p.logger.Info("applied action",
				slog.String("provider", p.name),
				slog.String("action", string(r.Action.Kind)),
				slog.String("name", r.Action.Record.Name),
				slog.String("type", string(r.Action.Record.Type)),
				slog.String("value", r.Action.Record.Value),
			)
		}
	}

	if p.config.ReloadCommand != "" {
		if err := p.runner.Run(ctx, p.config.ReloadCommand); err != nil {
			p.logger.Warn("failed to reload dnsmasq",
				slog.String("provider", p.name),
				slog.String("error", err.Error()),
			)
		}
	}
	return results
}

// Close releases the SSH connection, if any.
func (p *Provider) Close() error {
	if closer, ok := p.fs.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if p.ssh != nil {
		return p.ssh.Close()
	}
	return nil
}

func (p *Provider) load(ctx context.Context) (*confFile, error) {
	data, err := p.fs.ReadFile(ctx, p.config.File)
	if err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", p.config.File, err)
	}

	f, parseErrs := parseConfFile(data, p.config.Zone)
	for _, perr := range parseErrs {
		p.logger.Warn("ignoring unparseable line",
			slog.String("provider", p.name),
			slog.String("file", p.config.File),
			slog.String("error", perr.Error()),
		)
	}
	return f, nil
}

func failAll(actions []provider.Action, err error) []provider.ActionResult {
	results := make([]provider.ActionResult, len(actions))
	for i, a := range actions {
		results[i] = provider.ActionResult{Action: a, Err: &provider.ApplyError{Action: a, Err: err}}
	}
	return results
}

// mapError attaches the provider error sentinels to file and SSH errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sshutil.ErrAuthenticationFailed),
		errors.Is(err, sshutil.ErrHostKeyMismatch),
		errors.Is(err, iofs.ErrPermission):
		return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	case errors.Is(err, sshutil.ErrConnectionFailed):
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	default:
		return err
	}
}

var _ provider.Provider = (*Provider)(nil)
