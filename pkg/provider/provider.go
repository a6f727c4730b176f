// Package provider defines the zone provider interface and the record model
// shared by the reconciliation engine and every provider implementation.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
	RecordTypeTXT  RecordType = "TXT"
)

// ParseRecordType converts a string into a supported RecordType.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(strings.ToUpper(strings.TrimSpace(s))) {
	case RecordTypeA:
		return RecordTypeA, nil
	case RecordTypeAAAA:
		return RecordTypeAAAA, nil
	case RecordTypeTXT:
		return RecordTypeTXT, nil
	default:
		return "", fmt.Errorf("unsupported record type: %q", s)
	}
}

// Record represents a single DNS resource record in a zone.
type Record struct {
	Name  string // FQDN without trailing dot
	Type  RecordType
	Value string // IP for A/AAAA, text for TXT
	TTL   int    // 0 means provider default
	ID    string // Provider-specific record identifier
}

// Key identifies a record set within a zone.
type Key struct {
	Name string
	Type RecordType
}

func (k Key) String() string {
	return k.Name + "/" + string(k.Type)
}

// Key returns the (name, type) identity of the record.
func (r Record) Key() Key {
	return Key{Name: NormalizeName(r.Name), Type: r.Type}
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %s", r.Name, r.Type, r.Value)
}

// NormalizeName lowercases a DNS name and strips the trailing dot.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// Provider defines the interface for zone providers.
// Each provider implementation (Cloudflare, RFC 2136, dnsmasq) must satisfy this interface.
type Provider interface {
	// Name returns the provider instance name.
	Name() string

	// Type returns the provider type (e.g., "cloudflare").
	Type() string

	// Ping checks connectivity to the provider.
	Ping(ctx context.Context) error

	// Fetch returns every A, AAAA and TXT record the provider manages.
	// Failures are reported as *FetchError.
	Fetch(ctx context.Context) ([]Record, error)

	// Apply executes the actions in order and reports one result per action.
	// A failing action never prevents the remaining actions from running.
	Apply(ctx context.Context, actions []Action) []ActionResult
}

// RecordWriter is the single-record write surface most providers implement.
// ApplyEach turns it into a Provider.Apply implementation.
type RecordWriter interface {
	Create(ctx context.Context, record Record) error
	Update(ctx context.Context, old, updated Record) error
	Delete(ctx context.Context, record Record) error
}
