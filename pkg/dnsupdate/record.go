package dnsupdate

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// maxTXTString is the longest character-string a TXT RR can carry.
const maxTXTString = 255

// Record represents a DNS record for RFC 2136 operations.
type Record struct {
	// Name is the DNS name. It is converted to an FQDN when sent.
	Name string

	// Type is dns.TypeA, dns.TypeAAAA or dns.TypeTXT.
	Type uint16

	// TTL is the time-to-live in seconds.
	TTL uint32

	// RData is the address for A/AAAA records and the text for TXT records.
	RData string
}

// TypeString returns the string representation of the record type.
func (r Record) TypeString() string {
	if name, ok := dns.TypeToString[r.Type]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", r.Type)
}

// ToRR converts the Record to a dns.RR.
func (r Record) ToRR() (dns.RR, error) {
	header := dns.RR_Header{
		Name:   dns.Fqdn(r.Name),
		Rrtype: r.Type,
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}

	switch r.Type {
	case dns.TypeA:
		addr, err := netip.ParseAddr(r.RData)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid IPv4 address: %s", r.RData)
		}
		return &dns.A{Hdr: header, A: addr.AsSlice()}, nil

	case dns.TypeAAAA:
		addr, err := netip.ParseAddr(r.RData)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			return nil, fmt.Errorf("invalid IPv6 address: %s", r.RData)
		}
		return &dns.AAAA{Hdr: header, AAAA: addr.AsSlice()}, nil

	case dns.TypeTXT:
		return &dns.TXT{Hdr: header, Txt: splitTXT(r.RData)}, nil

	default:
		return nil, fmt.Errorf("unsupported record type: %s", r.TypeString())
	}
}

// splitTXT breaks s into character-strings of at most 255 bytes.
func splitTXT(s string) []string {
	if len(s) <= maxTXTString {
		return []string{s}
	}
	var parts []string
	for len(s) > maxTXTString {
		parts = append(parts, s[:maxTXTString])
		s = s[maxTXTString:]
	}
	return append(parts, s)
}

// RecordFromRR creates a Record from a dns.RR.
// Multi-string TXT records are concatenated.
func RecordFromRR(rr dns.RR) (Record, error) {
	header := rr.Header()
	record := Record{
		Name: header.Name,
		Type: header.Rrtype,
		TTL:  header.Ttl,
	}

	switch v := rr.(type) {
	case *dns.A:
		record.RData = v.A.String()
	case *dns.AAAA:
		record.RData = v.AAAA.String()
	case *dns.TXT:
		record.RData = strings.Join(v.Txt, "")
	default:
		return record, fmt.Errorf("unsupported record type: %s", dns.TypeToString[header.Rrtype])
	}

	return record, nil
}
