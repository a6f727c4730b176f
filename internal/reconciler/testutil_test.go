package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/registry"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/ipv4source"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

const ownTXT = "clouddns_nat_default;rec: A"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func aRec(name, value string) provider.Record {
	return provider.Record{Name: name, Type: provider.RecordTypeA, Value: value}
}

func aaaaRec(name, value string) provider.Record {
	return provider.Record{Name: name, Type: provider.RecordTypeAAAA, Value: value}
}

func txtRec(name, value string) provider.Record {
	return provider.Record{Name: name, Type: provider.RecordTypeTXT, Value: value}
}

// mockProvider is an in-memory zone. Apply goes through provider.ApplyEach
// so failures are reported exactly like the real providers report them.
type mockProvider struct {
	name string

	mu       sync.Mutex
	records  []provider.Record
	fetchErr error
	failOn   map[provider.Key]error
	fetches  int
	batches  [][]provider.Action
	onFetch  func(ctx context.Context)
	onApply  func(ctx context.Context)
}

func newMockProvider(records ...provider.Record) *mockProvider {
	return &mockProvider{
		name:    "mock",
		records: records,
		failOn:  make(map[provider.Key]error),
	}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Type() string { return "mock" }

func (m *mockProvider) Ping(context.Context) error { return nil }

func (m *mockProvider) Fetch(ctx context.Context) ([]provider.Record, error) {
	m.mu.Lock()
	m.fetches++
	hook := m.onFetch
	err := m.fetchErr
	records := append([]provider.Record(nil), m.records...)
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (m *mockProvider) Apply(ctx context.Context, actions []provider.Action) []provider.ActionResult {
	m.mu.Lock()
	hook := m.onApply
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]provider.Action(nil), actions...))
	return provider.ApplyEach(ctx, zoneWriter{m}, actions)
}

func (m *mockProvider) setFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *mockProvider) failKey(name string, rt provider.RecordType, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[provider.Key{Name: name, Type: rt}] = err
}

func (m *mockProvider) snapshot() []provider.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Record(nil), m.records...)
}

func (m *mockProvider) appliedBatches() [][]provider.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]provider.Action(nil), m.batches...)
}

func (m *mockProvider) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// zoneWriter mutates the mock's records; the caller holds m.mu.
type zoneWriter struct{ m *mockProvider }

func (w zoneWriter) Create(_ context.Context, r provider.Record) error {
	if err := w.m.failOn[r.Key()]; err != nil {
		return err
	}
	w.m.records = append(w.m.records, r)
	return nil
}

func (w zoneWriter) Update(_ context.Context, old, updated provider.Record) error {
	if err := w.m.failOn[updated.Key()]; err != nil {
		return err
	}
	for i, r := range w.m.records {
		if r.Key() == old.Key() && r.Value == old.Value {
			w.m.records[i] = updated
			return nil
		}
	}
	return provider.ErrNotFound
}

func (w zoneWriter) Delete(_ context.Context, r provider.Record) error {
	if err := w.m.failOn[r.Key()]; err != nil {
		return err
	}
	for i, existing := range w.m.records {
		if existing.Key() == r.Key() && existing.Value == r.Value {
			w.m.records = append(w.m.records[:i], w.m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// mockSource returns a configurable address or error.
type mockSource struct {
	mu       sync.Mutex
	addr     netip.Addr
	err      error
	resolves int
}

func newMockSource(addr string) *mockSource {
	return &mockSource{addr: netip.MustParseAddr(addr)}
}

func (s *mockSource) Name() string { return "mock" }

func (s *mockSource) Resolve(context.Context) (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolves++
	if s.err != nil {
		return netip.Addr{}, &ipv4source.ResolutionError{Source: "mock", Err: s.err}
	}
	return s.addr, nil
}

func (s *mockSource) set(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = netip.MustParseAddr(addr)
}

func (s *mockSource) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestLoop(p provider.Provider, src ipv4source.Source, cfg Config, opts ...Option) *Loop {
	reg := registry.New("default", registry.WithLogger(testLogger()))
	builder := plan.NewBuilder(reg, plan.WithLogger(testLogger()))
	return New(p, src, builder, append([]Option{WithLogger(testLogger()), WithConfig(cfg)}, opts...)...)
}

var errBoom = errors.New("boom")
