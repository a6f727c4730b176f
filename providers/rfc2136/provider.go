package rfc2136

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/dnsupdate"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Provider implements provider.Provider for RFC 2136 Dynamic DNS servers.
type Provider struct {
	name   string
	ttl    int
	client *dnsupdate.Client
	logger *slog.Logger
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

// New creates a new RFC 2136 provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		ttl:    config.TTL,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	update := config.Update
	client, err := dnsupdate.NewClient(&update, dnsupdate.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("creating dnsupdate client: %w", err)
	}
	p.client = client

	return p, nil
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "rfc2136".
func (p *Provider) Type() string {
	return "rfc2136"
}

// Zone returns the configured DNS zone.
func (p *Provider) Zone() string {
	return p.client.Zone()
}

// Ping checks connectivity to the DNS server.
func (p *Provider) Ping(ctx context.Context) error {
	return mapError(p.client.Ping(ctx))
}

// Fetch transfers the zone and returns its A, AAAA and TXT records.
func (p *Provider) Fetch(ctx context.Context) ([]provider.Record, error) {
	zoneRecords, err := p.client.ListByAXFR(ctx)
	if err != nil {
		return nil, provider.NewFetchError(p.name, mapError(err))
	}

	records := make([]provider.Record, 0, len(zoneRecords))
	for _, r := range zoneRecords {
		record, ok := fromDNSUpdate(r)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	p.logger.Debug("fetched records",
		slog.String("provider", p.name),
		slog.String("zone", p.client.Zone()),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// Apply executes actions in order and reports each outcome.
func (p *Provider) Apply(ctx context.Context, actions []provider.Action) []provider.ActionResult {
	return provider.ApplyEach(ctx, p, actions)
}

// Create adds a record. Adding a record that already exists is a no-op on the server.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	r, err := p.toDNSUpdate(record)
	if err != nil {
		return err
	}
	if err := p.client.Create(ctx, r); err != nil {
		return fmt.Errorf("creating record %s: %w", record.Name, mapError(err))
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("name", record.Name),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
	)
	return nil
}

// Update replaces old with updated in a single UPDATE message.
func (p *Provider) Update(ctx context.Context, old, updated provider.Record) error {
	oldRecord, err := p.toDNSUpdate(old)
	if err != nil {
		return fmt.Errorf("converting existing record: %w", err)
	}
	newRecord, err := p.toDNSUpdate(updated)
	if err != nil {
		return fmt.Errorf("converting desired record: %w", err)
	}

	if err := p.client.Update(ctx, oldRecord, newRecord); err != nil {
		return fmt.Errorf("updating record %s: %w", old.Name, mapError(err))
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("name", updated.Name),
		slog.String("type", string(updated.Type)),
		slog.String("old", old.Value),
		slog.String("new", updated.Value),
	)
	return nil
}

// Delete removes a single record. Removing an absent record is a no-op on the server.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	r, err := p.toDNSUpdate(record)
	if err != nil {
		return err
	}
	if err := p.client.Delete(ctx, r); err != nil {
		return fmt.Errorf("deleting record %s: %w", record.Name, mapError(err))
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("name", record.Name),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
	)
	return nil
}

func (p *Provider) toDNSUpdate(record provider.Record) (dnsupdate.Record, error) {
	ttl := p.ttl
	if record.TTL > 0 {
		ttl = record.TTL
	}

	var rrtype uint16
	switch record.Type {
	case provider.RecordTypeA:
		rrtype = dns.TypeA
	case provider.RecordTypeAAAA:
		rrtype = dns.TypeAAAA
	case provider.RecordTypeTXT:
		rrtype = dns.TypeTXT
	default:
		return dnsupdate.Record{}, fmt.Errorf("unsupported record type: %s", record.Type)
	}

	return dnsupdate.Record{
		Name:  dns.Fqdn(record.Name),
		Type:  rrtype,
		TTL:   uint32(ttl),
		RData: record.Value,
	}, nil
}

func fromDNSUpdate(r dnsupdate.Record) (provider.Record, bool) {
	var rt provider.RecordType
	switch r.Type {
	case dns.TypeA:
		rt = provider.RecordTypeA
	case dns.TypeAAAA:
		rt = provider.RecordTypeAAAA
	case dns.TypeTXT:
		rt = provider.RecordTypeTXT
	default:
		return provider.Record{}, false
	}

	return provider.Record{
		Name:  provider.NormalizeName(r.Name),
		Type:  rt,
		Value: r.RData,
		TTL:   int(r.TTL),
	}, true
}

// mapError attaches the provider error sentinels to dnsupdate errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dnsupdate.ErrAuthenticationFailed), errors.Is(err, dnsupdate.ErrRefused):
		return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	case errors.Is(err, dnsupdate.ErrConnectionFailed):
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	default:
		return err
	}
}

var (
	_ provider.Provider     = (*Provider)(nil)
	_ provider.RecordWriter = (*Provider)(nil)
)
