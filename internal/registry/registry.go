package registry

import (
	"errors"
	"log/slog"
	"sort"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Status is the ownership state of a record set.
type Status int

const (
	// Unlabeled means no ownership record exists for the record set.
	Unlabeled Status = iota
	// Owned means this instance owns the record set.
	Owned
	// Foreign means another instance owns the record set.
	Foreign
)

func (s Status) String() string {
	switch s {
	case Owned:
		return "owned"
	case Foreign:
		return "foreign"
	default:
		return "unlabeled"
	}
}

// Classification is the result of classifying a record set.
type Classification struct {
	Status Status
	Owner  string
	// Record is the ownership TXT record that decided the status.
	Record *provider.Record
}

// Registry recognizes and mints ownership records for one owner identity.
type Registry struct {
	owner  string
	ttl    int
	logger *slog.Logger
}

// Option is a functional option for configuring the Registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTTL sets the TTL of minted ownership records.
func WithTTL(ttl int) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// New creates a registry for the given owner identity.
func New(owner string, opts ...Option) *Registry {
	r := &Registry{
		owner:  SanitizeOwner(owner),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Owner returns this instance's owner identity.
func (r *Registry) Owner() string {
	return r.owner
}

// Mint returns a fresh ownership record for a record this instance is about to create.
func (r *Registry) Mint(name string, recordType provider.RecordType) provider.Record {
	name = provider.NormalizeName(name)
	return provider.Record{
		Name:  name,
		Type:  provider.RecordTypeTXT,
		Value: Format(Ownership{Owner: r.owner, Name: name, Type: recordType}),
		TTL:   r.ttl,
	}
}

type claim struct {
	ownership Ownership
	record    provider.Record
}

// Index holds the ownership claims found in one fetched record set.
type Index struct {
	owner  string
	claims map[provider.Key][]claim
	errs   []error
}

// Index scans records for ownership TXT records.
// Malformed ownership values are logged and left out of the index.
func (r *Registry) Index(records []provider.Record) *Index {
	ix := &Index{
		owner:  r.owner,
		claims: make(map[provider.Key][]claim),
	}

	for _, rec := range records {
		if rec.Type != provider.RecordTypeTXT {
			continue
		}

		own, err := Parse(rec.Name, rec.Value)
		if errors.Is(err, ErrNotOwnership) {
			continue
		}
		if err != nil {
			ix.errs = append(ix.errs, err)
			r.logger.Warn("ignoring malformed ownership record",
				slog.String("name", rec.Name),
				slog.String("value", rec.Value),
				slog.String("error", err.Error()),
			)
			continue
		}

		key := provider.Key{Name: own.Name, Type: own.Type}
		ix.claims[key] = append(ix.claims[key], claim{ownership: own, record: rec})
	}

	for key, claims := range ix.claims {
		sort.SliceStable(claims, func(i, j int) bool {
			return claims[i].record.Value < claims[j].record.Value
		})
		if len(claims) > 1 {
			values := make([]string, 0, len(claims))
			for _, c := range claims {
				values = append(values, c.record.Value)
			}
			r.logger.Warn("conflicting ownership records, using the first",
				slog.String("name", key.Name),
				slog.String("type", string(key.Type)),
				slog.Any("values", values),
			)
		}
	}

	return ix
}

// Classify returns the ownership status of the (name, type) record set.
// With several ownership records the lexicographically first value decides.
func (ix *Index) Classify(name string, recordType provider.RecordType) Classification {
	claims := ix.claims[provider.Key{Name: provider.NormalizeName(name), Type: recordType}]
	if len(claims) == 0 {
		return Classification{Status: Unlabeled}
	}

	first := claims[0]
	rec := first.record
	status := Foreign
	if first.ownership.Owner == ix.owner {
		status = Owned
	}

	return Classification{
		Status: status,
		Owner:  first.ownership.Owner,
		Record: &rec,
	}
}

// Names returns every name holding an ownership claim for recordType, sorted.
func (ix *Index) Names(recordType provider.RecordType) []string {
	var names []string
	for key := range ix.claims {
		if key.Type == recordType {
			names = append(names, key.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Errors returns the parse errors encountered while indexing.
func (ix *Index) Errors() []error {
	return ix.errs
}
