// Package reconciler runs the control loop that keeps A records in line with
// the AAAA records of a zone: fetch, resolve, plan, filter, then apply or
// report, then sleep.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/metrics"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/plan"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/internal/policy"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/ipv4source"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// State is a control loop state.
type State string

const (
	StateIdle         State = "idle"
	StateFetching     State = "fetching"
	StatePlanning     State = "planning"
	StateFiltering    State = "filtering"
	StateDryRunReport State = "dry_run_report"
	StateApplying     State = "applying"
	StateSleeping     State = "sleeping"
	StateTerminated   State = "terminated"
)

// States lists every state in transition order.
var States = []State{
	StateIdle,
	StateFetching,
	StatePlanning,
	StateFiltering,
	StateDryRunReport,
	StateApplying,
	StateSleeping,
	StateTerminated,
}

var stateNames = func() []string {
	names := make([]string, len(States))
	for i, s := range States {
		names[i] = string(s)
	}
	return names
}()

// Config holds control loop options. It is fixed for the life of the loop.
type Config struct {
	// Policy restricts which action kinds are applied.
	Policy policy.Policy

	// DryRun reports the filtered plan instead of applying it.
	DryRun bool

	// RunOnce terminates the loop after the first cycle.
	RunOnce bool

	// Interval is the sleep between cycles.
	Interval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Policy:   policy.Default,
		Interval: 60 * time.Second,
	}
}

// Loop drives reconciliation cycles against one provider.
//
// Each cycle:
//  1. Fetches the zone from the provider and resolves the IPv4 target
//  2. Builds the plan from the fetched records
//  3. Drops the actions the policy does not permit
//  4. Applies the remaining actions, or reports them in dry-run mode
//
// A failed fetch or resolution ends the cycle; the next cycle starts from
// scratch after the interval.
type Loop struct {
	provider provider.Provider
	source   ipv4source.Source
	builder  *plan.Builder
	config   Config
	logger   *slog.Logger
	reporter *Reporter

	mu    sync.RWMutex
	state State
	last  *Result
}

// Option is a functional option for configuring the Loop.
type Option func(*Loop)

// WithLogger sets a custom logger for the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithConfig sets the loop configuration.
func WithConfig(cfg Config) Option {
	return func(l *Loop) {
		l.config = cfg
	}
}

// WithReporter prints every dry-run cycle through r.
func WithReporter(r *Reporter) Option {
	return func(l *Loop) {
		l.reporter = r
	}
}

// New creates a new Loop in the Idle state.
func New(p provider.Provider, src ipv4source.Source, builder *plan.Builder, opts ...Option) *Loop {
	l := &Loop{
		provider: p,
		source:   src,
		builder:  builder,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.config.Interval <= 0 {
		l.config.Interval = DefaultConfig().Interval
	}
	if l.config.Policy == "" {
		l.config.Policy = policy.Default
	}
	metrics.SetLoopState(string(StateIdle), stateNames)
	return l
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.config
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// LastResult returns the result of the most recent finished cycle, or nil.
func (l *Loop) LastResult() *Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// LastCycleFailed reports whether the most recent cycle was aborted or had
// failed actions.
func (l *Loop) LastCycleFailed() bool {
	last := l.LastResult()
	return last != nil && last.HasErrors()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()

	if prev != s {
		l.logger.Debug("state transition",
			slog.String("from", string(prev)),
			slog.String("to", string(s)),
		)
		metrics.SetLoopState(string(s), stateNames)
	}
}

// Run executes cycles until ctx is cancelled, or once in run-once mode.
// Cancellation is not an error. In run-once mode the error that aborted the
// cycle, if any, is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateTerminated)

	l.logger.Info("control loop started",
		slog.String("provider", l.provider.Name()),
		slog.String("source", l.source.Name()),
		slog.String("policy", l.config.Policy.String()),
		slog.Bool("dry_run", l.config.DryRun),
		slog.Bool("run_once", l.config.RunOnce),
		slog.Duration("interval", l.config.Interval),
	)

	for {
		_, err := l.RunCycle(ctx)
		if ctx.Err() != nil {
			l.logger.Info("control loop stopped")
			return nil
		}
		if l.config.RunOnce {
			return err
		}

		if !l.sleep(ctx) {
			l.logger.Info("control loop stopped")
			return nil
		}
	}
}

// sleep waits for the interval and reports false if ctx was cancelled first.
func (l *Loop) sleep(ctx context.Context) bool {
	l.setState(StateSleeping)
	timer := time.NewTimer(l.config.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunCycle executes one fetch, plan, filter and apply pass. The returned error
// is the fetch or resolution failure that aborted the cycle; failed actions
// are reported in the Result only.
func (l *Loop) RunCycle(ctx context.Context) (*Result, error) {
	result := NewResult(uuid.NewString(), l.config.DryRun)
	result.Provider = l.provider.Name()
	logger := l.logger.With(slog.String("cycle_id", result.CycleID))

	err := l.cycle(ctx, logger, result)
	result.Err = err
	result.Complete()

	l.mu.Lock()
	l.last = result
	l.mu.Unlock()

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Debug("cycle cancelled")
		return result, err
	}

	l.recordMetrics(result)
	if result.HasErrors() {
		logger.Warn("cycle finished with errors",
			slog.String("summary", result.Summary()),
			slog.String("status", result.Status()),
		)
	} else {
		logger.Info("cycle finished",
			slog.String("summary", result.Summary()),
			slog.String("status", result.Status()),
		)
	}
	return result, err
}

func (l *Loop) cycle(ctx context.Context, logger *slog.Logger, result *Result) error {
	l.setState(StateFetching)

	records, err := l.provider.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("failed to fetch records",
			slog.String("provider", l.provider.Name()),
			slog.Bool("transient", provider.IsTransient(err)),
			slog.String("error", err.Error()),
		)
		return err
	}
	result.RecordsFetched = len(records)
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := l.source.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("failed to resolve IPv4 address",
			slog.String("source", l.source.Name()),
			slog.String("error", err.Error()),
		)
		return err
	}
	result.Target = target
	metrics.SetTargetAddress(target)
	if err := ctx.Err(); err != nil {
		return err
	}

	l.setState(StatePlanning)
	full := l.builder.Build(records, target)
	result.Skipped = full.Skipped
	result.ParseErrors = len(full.ParseErrors)
	for _, s := range full.Skipped {
		logger.Info("skipping name not owned by this instance",
			slog.String("name", s.Name),
			slog.String("reason", string(s.Reason)),
			slog.String("owner", s.Owner),
		)
	}

	l.setState(StateFiltering)
	filtered, dropped := policy.Filter(full, l.config.Policy)
	for _, a := range dropped {
		logger.Info("action not permitted by policy",
			slog.String("policy", l.config.Policy.String()),
			slog.String("action", string(a.Kind)),
			slog.String("name", a.Record.Name),
			slog.String("type", string(a.Record.Type)),
		)
	}

	if l.config.DryRun {
		l.setState(StateDryRunReport)
		for _, a := range filtered.Actions {
			logger.Info("would apply action",
				slog.String("action", string(a.Kind)),
				slog.String("name", a.Record.Name),
				slog.String("type", string(a.Record.Type)),
				slog.String("value", a.Record.Value),
			)
			result.AddAction(newAction(result.Provider, a, StatusPlanned, nil))
		}
		l.addDropped(result, dropped)
		if l.reporter != nil {
			l.reporter.Report(result)
		}
		return nil
	}

	if filtered.Empty() {
		l.addDropped(result, dropped)
		logger.Debug("zone in sync", slog.String("target", target.String()))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.setState(StateApplying)
	results := l.provider.Apply(context.WithoutCancel(ctx), filtered.Actions)
	for _, r := range results {
		if r.OK() {
			result.AddAction(newAction(result.Provider, r.Action, StatusSuccess, nil))
			continue
		}
		logger.Error("action failed",
			slog.String("provider", result.Provider),
			slog.String("action", string(r.Action.Kind)),
			slog.String("name", r.Action.Record.Name),
			slog.String("type", string(r.Action.Record.Type)),
			slog.String("error", r.Err.Error()),
		)
		result.AddAction(newAction(result.Provider, r.Action, StatusFailed, r.Err))
	}
	l.addDropped(result, dropped)
	return nil
}

func (l *Loop) addDropped(result *Result, dropped []provider.Action) {
	for _, a := range dropped {
		result.AddAction(newAction(result.Provider, a, StatusDropped, nil))
	}
}

// recordMetrics records Prometheus metrics from a cycle result.
func (l *Loop) recordMetrics(result *Result) {
	metrics.CyclesTotal.WithLabelValues(result.Status()).Inc()
	metrics.CycleDuration.Observe(result.Duration().Seconds())

	if result.ParseErrors > 0 {
		metrics.OwnershipParseErrorsTotal.Add(float64(result.ParseErrors))
	}
	for _, s := range result.Skipped {
		metrics.NamesSkippedTotal.WithLabelValues(string(s.Reason)).Inc()
	}
	for _, a := range result.Actions {
		switch a.Status {
		case StatusSuccess, StatusFailed:
			metrics.ActionsTotal.WithLabelValues(a.Provider, string(a.Kind), string(a.Status)).Inc()
		case StatusDropped:
			metrics.ActionsDroppedTotal.WithLabelValues(string(a.Kind)).Inc()
		}
	}
}
