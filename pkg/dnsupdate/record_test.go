package dnsupdate

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
)

func TestRecordToRR(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		want    string
		wantErr bool
	}{
		{
			name:   "A record",
			record: Record{Name: "app.example.com", Type: dns.TypeA, TTL: 300, RData: "203.0.113.5"},
			want:   "app.example.com.\t300\tIN\tA\t203.0.113.5",
		},
		{
			name:   "AAAA record",
			record: Record{Name: "app.example.com.", Type: dns.TypeAAAA, TTL: 60, RData: "2001:db8::1"},
			want:   "app.example.com.\t60\tIN\tAAAA\t2001:db8::1",
		},
		{
			name:   "TXT record",
			record: Record{Name: "app.example.com", Type: dns.TypeTXT, TTL: 300, RData: "hello world"},
			want:   "app.example.com.\t300\tIN\tTXT\t\"hello world\"",
		},
		{name: "A with IPv6", record: Record{Name: "a.example.com", Type: dns.TypeA, RData: "2001:db8::1"}, wantErr: true},
		{name: "AAAA with IPv4", record: Record{Name: "a.example.com", Type: dns.TypeAAAA, RData: "203.0.113.5"}, wantErr: true},
		{name: "AAAA with mapped IPv4", record: Record{Name: "a.example.com", Type: dns.TypeAAAA, RData: "::ffff:203.0.113.5"}, wantErr: true},
		{name: "A with garbage", record: Record{Name: "a.example.com", Type: dns.TypeA, RData: "nope"}, wantErr: true},
		{name: "unsupported type", record: Record{Name: "a.example.com", Type: dns.TypeMX, RData: "mail"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, err := tt.record.ToRR()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToRR() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := rr.String(); got != tt.want {
				t.Errorf("ToRR() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordToRR_LongTXT(t *testing.T) {
	long := strings.Repeat("x", 600)
	rr, err := Record{Name: "a.example.com", Type: dns.TypeTXT, RData: long}.ToRR()
	if err != nil {
		t.Fatalf("ToRR() error = %v", err)
	}

	txt := rr.(*dns.TXT)
	if len(txt.Txt) != 3 {
		t.Fatalf("split into %d strings, want 3", len(txt.Txt))
	}

	back, err := RecordFromRR(rr)
	if err != nil {
		t.Fatalf("RecordFromRR() error = %v", err)
	}
	if back.RData != long {
		t.Error("long TXT value did not survive the round trip")
	}
}

func TestRecordFromRR(t *testing.T) {
	tests := []struct {
		rr      string
		want    Record
		wantErr bool
	}{
		{"a.example.com. 300 IN A 203.0.113.5", Record{Name: "a.example.com.", Type: dns.TypeA, TTL: 300, RData: "203.0.113.5"}, false},
		{"a.example.com. 60 IN AAAA 2001:db8::1", Record{Name: "a.example.com.", Type: dns.TypeAAAA, TTL: 60, RData: "2001:db8::1"}, false},
		{`a.example.com. 60 IN TXT "part1" "part2"`, Record{Name: "a.example.com.", Type: dns.TypeTXT, TTL: 60, RData: "part1part2"}, false},
		{"www.example.com. 60 IN CNAME a.example.com.", Record{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.rr, func(t *testing.T) {
			rr, err := dns.NewRR(tt.rr)
			if err != nil {
				t.Fatalf("dns.NewRR() error = %v", err)
			}
			got, err := RecordFromRR(rr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RecordFromRR() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("RecordFromRR() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecordTypeString(t *testing.T) {
	if got := (Record{Type: dns.TypeAAAA}).TypeString(); got != "AAAA" {
		t.Errorf("TypeString() = %q, want AAAA", got)
	}
	if got := (Record{Type: 65000}).TypeString(); got != "TYPE65000" {
		t.Errorf("TypeString() = %q, want TYPE65000", got)
	}
}
