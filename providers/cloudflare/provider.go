package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/httputil"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// managedTypes are the record types fetched from every zone.
var managedTypes = []provider.RecordType{
	provider.RecordTypeA,
	provider.RecordTypeAAAA,
	provider.RecordTypeTXT,
}

// Provider implements provider.Provider for Cloudflare DNS.
type Provider struct {
	name   string
	config *Config
	client *Client
	logger *slog.Logger

	mu    sync.Mutex
	zones []zone // resolved lazily, longest name first
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

// WithClient replaces the API client (useful for testing).
func WithClient(client *Client) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a new Cloudflare provider instance.
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

	if p.client == nil {
		httpClient := httputil.NewClient(&httputil.ClientConfig{
			RateLimit: config.RateLimit,
			Logger:    p.logger,
		})
		p.client = NewClient(config.Token, WithLogger(p.logger), WithHTTPClient(httpClient))
	}

	return p, nil
}

// Factory returns a provider.Factory for use with the provider registry.
func Factory() provider.Factory {
	return func(name string, settings map[string]string, logger *slog.Logger) (provider.Provider, error) {
		cfg, err := ConfigFromMap(settings)
		if err != nil {
			return nil, err
		}
		return New(name, cfg, WithProviderLogger(logger))
	}
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return "cloudflare"
}

// Ping checks connectivity to the Cloudflare API.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// resolveZones returns the managed zones, looking them up on first use.
// A failed lookup is retried on the next call.
func (p *Provider) resolveZones(ctx context.Context) ([]zone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.zones != nil {
		return p.zones, nil
	}

	var zones []zone
	if len(p.config.Zones) == 0 {
		all, err := p.client.ListZones(ctx)
		if err != nil {
			return nil, err
		}
		zones = all
	} else {
		for _, name := range p.config.Zones {
			z, err := p.client.GetZone(ctx, name)
			if err != nil {
				return nil, err
			}
			zones = append(zones, z)
		}
	}

	for i := range zones {
		zones[i].Name = provider.NormalizeName(zones[i].Name)
	}
	sort.SliceStable(zones, func(i, j int) bool {
		return len(zones[i].Name) > len(zones[j].Name)
	})

	p.logger.Info("resolved cloudflare zones",
		slog.String("provider", p.name),
		slog.Int("count", len(zones)),
	)

	p.zones = zones
	return zones, nil
}

// zoneFor returns the zone with the longest name that contains name.
func (p *Provider) zoneFor(ctx context.Context, name string) (zone, error) {
	zones, err := p.resolveZones(ctx)
	if err != nil {
		return zone{}, fmt.Errorf("resolving zones: %w", err)
	}

	name = provider.NormalizeName(name)
	for _, z := range zones {
		if name == z.Name || strings.HasSuffix(name, "."+z.Name) {
			return z, nil
		}
	}
	return zone{}, fmt.Errorf("no managed zone contains %s", name)
}

// Fetch returns every A, AAAA and TXT record in the managed zones.
func (p *Provider) Fetch(ctx context.Context) ([]provider.Record, error) {
	zones, err := p.resolveZones(ctx)
	if err != nil {
		return nil, provider.NewFetchError(p.name, fmt.Errorf("resolving zones: %w", err))
	}

	var records []provider.Record
	for _, z := range zones {
		for _, rt := range managedTypes {
			apiRecords, err := p.client.ListRecords(ctx, z.ID, string(rt))
			if err != nil {
				return nil, provider.NewFetchError(p.name, fmt.Errorf("zone %s: %w", z.Name, err))
			}
			for _, r := range apiRecords {
				records = append(records, toRecord(rt, r))
			}
		}
	}

	p.logger.Debug("fetched records",
		slog.String("provider", p.name),
		slog.Int("zones", len(zones)),
		slog.Int("count", len(records)),
	)

	return records, nil
}

func toRecord(rt provider.RecordType, r dnsRecord) provider.Record {
	value := r.Content
	if rt == provider.RecordTypeTXT {
		value = unquoteTXT(value)
	}
	return provider.Record{
		Name:  provider.NormalizeName(r.Name),
		Type:  rt,
		Value: value,
		TTL:   r.TTL,
		ID:    r.ID,
	}
}

// unquoteTXT strips the quoting Cloudflare may add around TXT content.
func unquoteTXT(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}

// Apply executes actions in order and reports each outcome.
func (p *Provider) Apply(ctx context.Context, actions []provider.Action) []provider.ActionResult {
	return provider.ApplyEach(ctx, p, actions)
}

func (p *Provider) request(record provider.Record) recordRequest {
	ttl := record.TTL
	if ttl <= 0 {
		ttl = p.config.TTL
	}

	req := recordRequest{
		Type:    string(record.Type),
		Name:    record.Name,
		Content: record.Value,
		TTL:     ttl,
	}
	if record.Type == provider.RecordTypeA {
		proxied := p.config.Proxied
		req.Proxied = &proxied
		if proxied {
			req.TTL = 1
		}
	}
	return req
}

// Create adds a new DNS record. An identical existing record counts as success.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	z, err := p.zoneFor(ctx, record.Name)
	if err != nil {
		return err
	}

	req := p.request(record)
	created, err := p.client.CreateRecord(ctx, z.ID, req)
	if err != nil {
		if provider.IsConflict(err) {
			p.logger.Debug("record already exists",
				slog.String("provider", p.name),
				slog.String("record", record.String()),
			)
			return nil
		}
		return err
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("name", record.Name),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
		slog.String("id", created.ID),
		slog.Int("ttl", req.TTL),
	)
	return nil
}

// Update replaces old with updated, keeping the provider record ID.
func (p *Provider) Update(ctx context.Context, old, updated provider.Record) error {
	z, err := p.zoneFor(ctx, updated.Name)
	if err != nil {
		return err
	}

	id := updated.ID
	if id == "" {
		id = old.ID
	}
	if id == "" {
		found, err := p.client.FindRecord(ctx, z.ID, string(old.Type), old.Name, old.Value)
		if err != nil {
			return err
		}
		id = found.ID
	}

	if err := p.client.UpdateRecord(ctx, z.ID, id, p.request(updated)); err != nil {
		return err
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

// Delete removes a DNS record. A record that is already gone counts as success.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	z, err := p.zoneFor(ctx, record.Name)
	if err != nil {
		return err
	}

	id := record.ID
	if id == "" {
		found, err := p.client.FindRecord(ctx, z.ID, string(record.Type), record.Name, record.Value)
		if err != nil {
			if provider.IsNotFound(err) {
				p.logger.Warn("record not found for deletion",
					slog.String("provider", p.name),
					slog.String("record", record.String()),
				)
				return nil
			}
			return err
		}
		id = found.ID
	}

	if err := p.client.DeleteRecord(ctx, z.ID, id); err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil
		}
		return err
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("name", record.Name),
		slog.String("type", string(record.Type)),
		slog.String("value", record.Value),
	)
	return nil
}

var (
	_ provider.Provider     = (*Provider)(nil)
	_ provider.RecordWriter = (*Provider)(nil)
)
