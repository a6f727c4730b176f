package dnsupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miekg/dns"
)

// Sentinel errors for RFC 2136 operations.
var (
	// ErrUpdateFailed is returned when the DNS UPDATE operation fails.
	ErrUpdateFailed = errors.New("dns update failed")

	// ErrRecordNotFound is returned when a prerequisite RRset is absent.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned when a prerequisite RRset already exists.
	ErrRecordExists = errors.New("record already exists")

	// ErrAuthenticationFailed is returned when the server rejects the TSIG signature.
	ErrAuthenticationFailed = errors.New("tsig authentication failed")

	// ErrRefused is returned when server policy refuses the request.
	ErrRefused = errors.New("request refused by server")

	// ErrConnectionFailed is returned when the DNS server cannot be reached.
	ErrConnectionFailed = errors.New("connection to dns server failed")

	// ErrZoneMismatch is returned when a record name is outside the configured zone.
	ErrZoneMismatch = errors.New("record name does not match configured zone")

	// ErrAXFRFailed is returned when a zone transfer fails.
	ErrAXFRFailed = errors.New("zone transfer (AXFR) failed")
)

// Client sends RFC 2136 updates to a single zone.
type Client struct {
	config    *Config
	tsig      *TSIG
	logger    *slog.Logger
	dnsClient *dns.Client
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the DNS update client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new RFC 2136 client with the given configuration.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tsig, err := TSIGFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid TSIG configuration: %w", err)
	}

	c := &Client{
		config: config,
		tsig:   tsig,
		logger: slog.Default(),
		dnsClient: &dns.Client{
			Net:     "udp",
			Timeout: config.GetTimeout(),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if config.UseTCP {
		c.dnsClient.Net = "tcp"
	}
	tsig.ApplyToClient(c.dnsClient)

	c.logger.Debug("RFC 2136 client initialized",
		slog.String("server", config.GetServer()),
		slog.String("zone", config.Zone),
		slog.Bool("tsig", tsig != nil),
		slog.Bool("tcp", config.UseTCP),
	)

	return c, nil
}

// Zone returns the configured zone name.
func (c *Client) Zone() string {
	return c.config.Zone
}

// Server returns the configured server address.
func (c *Client) Server() string {
	return c.config.GetServer()
}

// Ping verifies connectivity by querying the zone's SOA record.
func (c *Client) Ping(ctx context.Context) error {
	msg := new(dns.Msg)
	msg.SetQuestion(c.config.Zone, dns.TypeSOA)
	msg.RecursionDesired = false

	resp, rtt, err := c.dnsClient.ExchangeContext(ctx, msg, c.config.GetServer())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("%w: server returned %s", ErrConnectionFailed, dns.RcodeToString[resp.Rcode])
	}

	c.logger.Debug("DNS server ping successful",
		slog.String("server", c.config.GetServer()),
		slog.Duration("rtt", rtt),
	)
	return nil
}

// Create adds a record to its RRset.
func (c *Client) Create(ctx context.Context, record Record) error {
	rr, err := c.toRR(record)
	if err != nil {
		return err
	}

	msg := c.newUpdate()
	msg.Insert([]dns.RR{rr})

	if err := c.send(ctx, msg); err != nil {
		return err
	}

	c.logger.Debug("DNS record created",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
		slog.String("rdata", record.RData),
	)
	return nil
}

// Update replaces oldRecord with newRecord in a single UPDATE message.
func (c *Client) Update(ctx context.Context, oldRecord, newRecord Record) error {
	oldRR, err := c.toRR(oldRecord)
	if err != nil {
		return fmt.Errorf("invalid old record: %w", err)
	}
	newRR, err := c.toRR(newRecord)
	if err != nil {
		return fmt.Errorf("invalid new record: %w", err)
	}

	msg := c.newUpdate()
	msg.Remove([]dns.RR{oldRR})
	msg.Insert([]dns.RR{newRR})

	if err := c.send(ctx, msg); err != nil {
		return err
	}

	c.logger.Debug("DNS record updated",
		slog.String("name", newRecord.Name),
		slog.String("type", newRecord.TypeString()),
		slog.String("old_rdata", oldRecord.RData),
		slog.String("new_rdata", newRecord.RData),
	)
	return nil
}

// Delete removes a single record from its RRset.
func (c *Client) Delete(ctx context.Context, record Record) error {
	rr, err := c.toRR(record)
	if err != nil {
		return err
	}

	msg := c.newUpdate()
	msg.Remove([]dns.RR{rr})

	if err := c.send(ctx, msg); err != nil {
		return err
	}

	c.logger.Debug("DNS record deleted",
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
		slog.String("rdata", record.RData),
	)
	return nil
}

// ListByAXFR transfers the zone and returns its A, AAAA and TXT records.
// The server must allow zone transfers from this client.
func (c *Client) ListByAXFR(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.config.GetTimeout()
	transfer := &dns.Transfer{
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if c.tsig != nil {
		transfer.TsigSecret = c.tsig.secrets()
	}

	msg := new(dns.Msg)
	msg.SetAxfr(c.config.Zone)
	c.tsig.ApplyToMessage(msg)

	env, err := transfer.In(msg, c.config.GetServer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, err)
	}

	var records []Record
	var transferErr error
	for e := range env {
		if e.Error != nil {
			transferErr = e.Error
			continue
		}
		for _, rr := range e.RR {
			record, err := RecordFromRR(rr)
			if err != nil {
				continue
			}
			records = append(records, record)
		}
	}

	if transferErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, transferErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("AXFR zone transfer complete",
		slog.String("zone", c.config.Zone),
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) newUpdate() *dns.Msg {
	msg := new(dns.Msg)
	msg.SetUpdate(c.config.Zone)
	return msg
}

func (c *Client) toRR(record Record) (dns.RR, error) {
	if err := c.validateRecord(record); err != nil {
		return nil, err
	}
	rr, err := record.ToRR()
	if err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return rr, nil
}

func (c *Client) send(ctx context.Context, msg *dns.Msg) error {
	c.tsig.ApplyToMessage(msg)

	resp, _, err := c.dnsClient.ExchangeContext(ctx, msg, c.config.GetServer())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return checkResponse(resp)
}

// checkResponse maps the response code of an UPDATE onto an error.
func checkResponse(resp *dns.Msg) error {
	if resp == nil {
		return fmt.Errorf("%w: no response from server", ErrUpdateFailed)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeYXRrset:
		return ErrRecordExists
	case dns.RcodeNXRrset:
		return ErrRecordNotFound
	case dns.RcodeNotAuth:
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, dns.RcodeToString[resp.Rcode])
	case dns.RcodeRefused:
		return fmt.Errorf("%w: check server policy or TSIG configuration", ErrRefused)
	case dns.RcodeNotZone:
		return ErrZoneMismatch
	default:
		return fmt.Errorf("%w: %s", ErrUpdateFailed, dns.RcodeToString[resp.Rcode])
	}
}

func (c *Client) validateRecord(record Record) error {
	if record.Name == "" {
		return errors.New("record name is required")
	}
	if !c.isInZone(dns.Fqdn(record.Name)) {
		return fmt.Errorf("%w: %s not in zone %s", ErrZoneMismatch, record.Name, c.config.Zone)
	}
	return nil
}

// isInZone reports whether fqdn is the zone apex or below it.
func (c *Client) isInZone(fqdn string) bool {
	return dns.IsSubDomain(strings.ToLower(c.config.Zone), strings.ToLower(fqdn))
}
