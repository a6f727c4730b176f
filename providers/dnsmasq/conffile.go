package dnsmasq

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

const fileHeader = "# Managed by clouddns-nat-helper.\n" +
	"# address= and txt-record= lines may be rewritten; other lines are kept as they are.\n"

// line is one line of the configuration file. record is nil for lines the
// provider does not manage (comments, other directives, multi-domain addresses).
type line struct {
	raw    string
	record *provider.Record
}

// confFile is an in-memory dnsmasq configuration file. It implements
// provider.RecordWriter so a batch of actions can be applied before a single write.
type confFile struct {
	lines []line
	zone  string
	dirty bool
}

// parseConfFile parses content. Lines that look like managed directives but
// cannot be parsed are kept verbatim and reported in the returned errors.
func parseConfFile(content []byte, zone string) (*confFile, []error) {
	f := &confFile{zone: zone}
	if len(content) == 0 {
		for _, h := range strings.Split(strings.TrimSuffix(fileHeader, "\n"), "\n") {
			f.lines = append(f.lines, line{raw: h})
		}
		return f, nil
	}

	var errs []error
	for i, raw := range strings.Split(strings.TrimSuffix(string(content), "\n"), "\n") {
		record, err := parseLine(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
		}
		f.lines = append(f.lines, line{raw: raw, record: record})
	}
	return f, errs
}

// parseLine returns the record a line defines, or nil for lines that are not
// single-name address= or txt-record= directives.
func parseLine(raw string) (*provider.Record, error) {
	s := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(s, "address=/"); ok {
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, nil
		}
		addr, err := netip.ParseAddr(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", parts[1], err)
		}
		rt := provider.RecordTypeA
		if !addr.Is4() {
			if addr.Is4In6() {
				return nil, fmt.Errorf("IPv4-mapped address %q", parts[1])
			}
			rt = provider.RecordTypeAAAA
		}
		return &provider.Record{Name: provider.NormalizeName(parts[0]), Type: rt, Value: addr.String()}, nil
	}

	if rest, ok := strings.CutPrefix(s, "txt-record="); ok {
		name, text, found := strings.Cut(rest, ",")
		if !found || strings.TrimSpace(name) == "" {
			return nil, nil
		}
		value, err := parseTXT(text)
		if err != nil {
			return nil, err
		}
		return &provider.Record{Name: provider.NormalizeName(name), Type: provider.RecordTypeTXT, Value: value}, nil
	}

	return nil, nil
}

// parseTXT joins the comma-separated strings of a txt-record value.
// Quoted strings honour backslash escapes.
func parseTXT(text string) (string, error) {
	var (
		b       strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range text {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && r == ',':
		case !quoted && (r == ' ' || r == '\t'):
		default:
			b.WriteRune(r)
		}
	}
	if quoted || escaped {
		return "", errors.New("unterminated quoted string in txt-record")
	}
	return b.String(), nil
}

func quoteTXT(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(value) + `"`
}

func formatRecord(r provider.Record) (string, error) {
	name := provider.NormalizeName(r.Name)
	switch r.Type {
	case provider.RecordTypeA, provider.RecordTypeAAAA:
		addr, err := netip.ParseAddr(r.Value)
		if err != nil {
			return "", fmt.Errorf("invalid address %q: %w", r.Value, err)
		}
		if (r.Type == provider.RecordTypeA) != addr.Is4() {
			return "", fmt.Errorf("address %s does not match record type %s", r.Value, r.Type)
		}
		return fmt.Sprintf("address=/%s/%s", name, addr), nil
	case provider.RecordTypeTXT:
		return fmt.Sprintf("txt-record=%s,%s", name, quoteTXT(r.Value)), nil
	default:
		return "", fmt.Errorf("unsupported record type: %s", r.Type)
	}
}

func (f *confFile) inZone(name string) bool {
	name = provider.NormalizeName(name)
	return f.zone == "" || name == f.zone || strings.HasSuffix(name, "."+f.zone)
}

// records returns every managed record inside the zone.
func (f *confFile) records() []provider.Record {
	var out []provider.Record
	for _, l := range f.lines {
		if l.record != nil && f.inZone(l.record.Name) {
			out = append(out, *l.record)
		}
	}
	return out
}

func (f *confFile) find(r provider.Record) int {
	key := r.Key()
	for i, l := range f.lines {
		if l.record == nil || l.record.Key() != key {
			continue
		}
		if sameValue(l.record.Type, l.record.Value, r.Value) {
			return i
		}
	}
	return -1
}

func sameValue(rt provider.RecordType, a, b string) bool {
	if rt == provider.RecordTypeTXT {
		return a == b
	}
	x, errX := netip.ParseAddr(a)
	y, errY := netip.ParseAddr(b)
	return errX == nil && errY == nil && x == y
}

func (f *confFile) checkZone(r provider.Record) error {
	if !f.inZone(r.Name) {
		return fmt.Errorf("%s is outside zone %s", r.Name, f.zone)
	}
	return nil
}

// Create appends a line for r. An identical existing line counts as success.
func (f *confFile) Create(_ context.Context, r provider.Record) error {
	if err := f.checkZone(r); err != nil {
		return err
	}
	raw, err := formatRecord(r)
	if err != nil {
		return err
	}
	if f.find(r) >= 0 {
		return nil
	}

	stored := r
	stored.Name = provider.NormalizeName(r.Name)
	stored.TTL, stored.ID = 0, ""
	f.lines = append(f.lines, line{raw: raw, record: &stored})
	f.dirty = true
	return nil
}

// Update rewrites the line holding old in place.
func (f *confFile) Update(_ context.Context, old, updated provider.Record) error {
	if err := f.checkZone(updated); err != nil {
		return err
	}
	i := f.find(old)
	if i < 0 {
		return fmt.Errorf("%s: %w", old, provider.ErrNotFound)
	}
	raw, err := formatRecord(updated)
	if err != nil {
		return err
	}

	stored := updated
	stored.Name = provider.NormalizeName(updated.Name)
	stored.TTL, stored.ID = 0, ""
	f.lines[i] = line{raw: raw, record: &stored}
	f.dirty = true
	return nil
}

// Delete removes the line holding r. Deleting an absent record counts as success.
func (f *confFile) Delete(_ context.Context, r provider.Record) error {
	i := f.find(r)
	if i < 0 {
		return nil
	}
	f.lines = append(f.lines[:i], f.lines[i+1:]...)
	f.dirty = true
	return nil
}

// bytes renders the file with a trailing newline.
func (f *confFile) bytes() []byte {
	var b strings.Builder
	for _, l := range f.lines {
		b.WriteString(l.raw)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

var _ provider.RecordWriter = (*confFile)(nil)
