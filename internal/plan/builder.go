package plan

import (
	"log/slog"
	"net/netip"
	"sort"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/registry"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Builder diffs fetched zone state against the resolved IPv4 address.
type Builder struct {
	registry *registry.Registry
	ttl      int
	logger   *slog.Logger
}

// Option is a functional option for configuring the Builder.
type Option func(*Builder)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTTL sets the TTL for A records the builder creates or rewrites.
// Zero leaves the provider default in place.
func WithTTL(ttl int) Option {
	return func(b *Builder) {
		b.ttl = ttl
	}
}

// NewBuilder creates a plan builder that decides ownership through reg.
func NewBuilder(reg *registry.Registry, opts ...Option) *Builder {
	b := &Builder{
		registry: reg,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// nameState collects the records of one name.
type nameState struct {
	aaaa bool
	a    []provider.Record
}

// Build computes the plan for records and target.
// The result depends only on its inputs; names are visited in sorted order.
func (b *Builder) Build(records []provider.Record, target netip.Addr) *Plan {
	names := make(map[string]*nameState)
	state := func(name string) *nameState {
		st, ok := names[name]
		if !ok {
			st = &nameState{}
			names[name] = st
		}
		return st
	}

	for _, rec := range records {
		switch rec.Type {
		case provider.RecordTypeAAAA:
			state(provider.NormalizeName(rec.Name)).aaaa = true
		case provider.RecordTypeA:
			st := state(provider.NormalizeName(rec.Name))
			st.a = append(st.a, rec)
		}
	}

	ix := b.registry.Index(records)
	for _, name := range ix.Names(provider.RecordTypeA) {
		state(name)
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	p := &Plan{
		Target:      target,
		ParseErrors: ix.Errors(),
	}
	value := target.String()

	for _, name := range sorted {
		st := names[name]
		sort.SliceStable(st.a, func(i, j int) bool { return st.a[i].Value < st.a[j].Value })
		owner := ix.Classify(name, provider.RecordTypeA)

		if st.aaaa {
			p.Endpoints = append(p.Endpoints, Endpoint{Name: name, Target: target})
			b.planPresent(p, name, st, owner, value)
			continue
		}

		// The AAAA sibling is gone: release what we own.
		if owner.Status != registry.Owned {
			continue
		}
		if len(st.a) > 0 {
			p.Actions = append(p.Actions, provider.Delete(st.a[0]))
		}
		p.Actions = append(p.Actions, provider.Delete(*owner.Record))
	}

	return p
}

// planPresent handles a name that has at least one AAAA record.
func (b *Builder) planPresent(p *Plan, name string, st *nameState, owner registry.Classification, value string) {
	desired := provider.Record{
		Name:  name,
		Type:  provider.RecordTypeA,
		Value: value,
		TTL:   b.ttl,
	}

	switch owner.Status {
	case registry.Foreign:
		p.Skipped = append(p.Skipped, Skip{Name: name, Reason: SkipForeign, Owner: owner.Owner})
		b.logger.Debug("name owned by another instance",
			slog.String("name", name),
			slog.String("owner", owner.Owner),
		)

	case registry.Unlabeled:
		if len(st.a) > 0 {
			// Existing A records without ownership belong to someone else.
			p.Skipped = append(p.Skipped, Skip{Name: name, Reason: SkipUnlabeled})
			b.logger.Debug("name has unlabeled A records",
				slog.String("name", name),
				slog.Int("values", len(st.a)),
			)
			return
		}
		p.Actions = append(p.Actions,
			provider.Create(desired),
			provider.Create(b.registry.Mint(name, provider.RecordTypeA)),
		)

	case registry.Owned:
		if len(st.a) == 0 {
			// Ownership survived a partial apply; only the A record is missing.
			p.Actions = append(p.Actions, provider.Create(desired))
			return
		}
		for _, rec := range st.a {
			if rec.Value == value {
				return
			}
		}
		current := st.a[0]
		desired.ID = current.ID
		if desired.TTL == 0 {
			desired.TTL = current.TTL
		}
		p.Actions = append(p.Actions, provider.Update(current, desired))
	}
}
