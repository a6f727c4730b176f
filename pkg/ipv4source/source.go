// Package ipv4source resolves the IPv4 address published in A records.
package ipv4source

import (
	"context"
	"fmt"
	"net/netip"
)

// Source resolves the IPv4 address to publish for the current cycle.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Resolve returns the address, or a *ResolutionError.
	Resolve(ctx context.Context) (netip.Addr, error)
}

// ResolutionError reports that a source could not produce an address.
type ResolutionError struct {
	Source string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("ipv4 source %s: %v", e.Source, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Fixed always returns the configured address.
type Fixed struct {
	addr netip.Addr
}

// NewFixed creates a fixed source. addr must be an IPv4 address.
func NewFixed(addr netip.Addr) (*Fixed, error) {
	if !addr.Is4() {
		return nil, fmt.Errorf("fixed address %s is not an IPv4 address", addr)
	}
	return &Fixed{addr: addr}, nil
}

// ParseFixed parses s and creates a fixed source.
func ParseFixed(s string) (*Fixed, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("parsing fixed address: %w", err)
	}
	return NewFixed(addr)
}

// Name returns "fixed".
func (f *Fixed) Name() string {
	return "fixed"
}

// Resolve returns the fixed address. It never fails.
func (f *Fixed) Resolve(context.Context) (netip.Addr, error) {
	return f.addr, nil
}
