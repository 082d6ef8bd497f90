package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/kernel"
	"github.com/vfaabeso/tea-simulation/internal/record"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// Snapshot is the state of every entity after Tick completed ticks.
type Snapshot struct {
	Tick    int64                    `json:"tick"`
	Elapsed float64                  `json:"elapsed"`
	Status  map[string]entity.Status `json:"status"`
	Hash    string                   `json:"hash"`
}

// Failure describes the error that ended a run.
type Failure struct {
	// Tick is the tick that failed, or 0 if setup failed.
	Tick    int64       `json:"tick"`
	Code    simerr.Code `json:"code"`
	Entity  string      `json:"entity,omitempty"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when the run met every expectation and failed only if a
	// failure was declared.
	Pass bool `json:"pass"`

	// Snapshots in tick order: tick 0, every snapshot_every ticks, and the
	// last completed tick.
	Snapshots []Snapshot `json:"snapshots"`

	// Failure is set if setup or a tick failed.
	Failure *Failure `json:"failure,omitempty"`

	// Errors lists unmet expectations.
	Errors []string `json:"errors,omitempty"`

	// Ticks is the number of completed ticks.
	Ticks int64 `json:"ticks"`

	// Fingerprint chains the snapshot hashes; equal runs have equal
	// fingerprints.
	Fingerprint string `json:"fingerprint"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Snapshots: []Snapshot{},
		Errors:    []string{},
	}
}

// AddError records an unmet expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Final returns the last snapshot, or nil if none was taken.
func (r *Result) Final() *Snapshot {
	if len(r.Snapshots) == 0 {
		return nil
	}
	return &r.Snapshots[len(r.Snapshots)-1]
}

// Option adjusts a run without editing the scenario.
type Option func(*runConfig)

type runConfig struct {
	ticks     *int
	every     *int
	atomic    bool
	logger    *slog.Logger
	observers []kernel.Observer
	hook      func(Snapshot) error
}

// WithTicks overrides the scenario's tick count.
func WithTicks(n int) Option {
	return func(c *runConfig) { c.ticks = &n }
}

// WithEvery overrides the scenario's snapshot interval.
func WithEvery(n int) Option {
	return func(c *runConfig) { c.every = &n }
}

// WithAtomic forces atomic ticks.
func WithAtomic() Option {
	return func(c *runConfig) { c.atomic = true }
}

// WithLogger sets the logger for the run and its kernel.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithObserver attaches a kernel observer, such as a metrics recorder. It
// may be given more than once.
func WithObserver(o kernel.Observer) Option {
	return func(c *runConfig) { c.observers = append(c.observers, o) }
}

// WithSnapshotHook calls fn with every snapshot as it is taken. An error
// from fn stops the run and is returned from Run.
func WithSnapshotHook(fn func(Snapshot) error) Option {
	return func(c *runConfig) { c.hook = fn }
}

func newRunConfig(opts []Option) *runConfig {
	c := &runConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build constructs the entities and environment of s and returns a kernel
// with setup confirmed. Errors are the *simerr.Error raised by entity
// construction or kernel setup.
func Build(s *Scenario, opts ...Option) (*kernel.Kernel, error) {
	return build(s, newRunConfig(opts))
}

func build(s *Scenario, cfg *runConfig) (*kernel.Kernel, error) {
	kopts := []kernel.Option{kernel.WithLogger(cfg.logger)}
	if s.Atomic || cfg.atomic {
		kopts = append(kopts, kernel.WithAtomicTicks())
	}
	for _, o := range cfg.observers {
		kopts = append(kopts, kernel.WithObserver(o))
	}
	k := kernel.New(kopts...)

	if err := k.ConfigEnvironment(environmentOf(s.Environment)); err != nil {
		return nil, err
	}

	for _, es := range s.Entities {
		e, err := buildEntity(es)
		if err != nil {
			return nil, err
		}
		if err := k.AddEntity(e); err != nil {
			return nil, err
		}
	}

	if err := k.ConfirmSetup(); err != nil {
		return nil, err
	}
	return k, nil
}

// ResolvedEnvironment returns the environment s runs under: the defaults
// with the scenario's overrides applied.
func (s *Scenario) ResolvedEnvironment() kernel.Environment {
	return environmentOf(s.Environment)
}

func environmentOf(spec *EnvironmentSpec) kernel.Environment {
	env := kernel.DefaultEnvironment()
	if spec == nil {
		return env
	}
	setFloat(&env.CoolingRate, spec.CoolingRate)
	setFloat(&env.AmbientTemp, spec.AmbientTemp)
	setFloat(&env.TimeTick, spec.TimeTick)
	setFloat(&env.EvapRate, spec.EvapRate)
	return env
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func buildEntity(es EntitySpec) (entity.Entity, error) {
	var opts []entity.Option
	if es.TempInit != nil {
		opts = append(opts, entity.WithInitialTemp(*es.TempInit))
	}
	if es.VolInit != nil {
		opts = append(opts, entity.WithInitialVolume(*es.VolInit))
	}
	if es.VolMax != nil {
		opts = append(opts, entity.WithMaxVolume(*es.VolMax))
	}
	if es.HeatingRate != nil {
		opts = append(opts, entity.WithHeatingRate(*es.HeatingRate))
	}
	if es.IsHeaterOn != nil {
		opts = append(opts, entity.WithHeater(*es.IsHeaterOn))
	}
	if es.TeaParticleAmount != nil {
		opts = append(opts, entity.WithTeaParticleAmount(*es.TeaParticleAmount))
	}
	if es.Tea != nil {
		tea, err := buildTea(*es.Tea)
		if err != nil {
			return nil, err
		}
		opts = append(opts, entity.WithTeaContent(tea))
	}

	switch entity.Kind(es.Kind) {
	case entity.KindContainer:
		return entity.NewContainer(es.ID, opts...)
	case entity.KindCup:
		return entity.NewCup(es.ID, opts...)
	default:
		return nil, simerr.NewEntityTypeNotSupported(es.ID, es.Kind)
	}
}

func buildTea(ts TeaSpec) (*entity.TeaState, error) {
	var opts []entity.TeaOption
	if ts.StartParticleCount != nil {
		opts = append(opts, entity.WithStartParticleCount(*ts.StartParticleCount))
	}
	if ts.Volume != nil {
		opts = append(opts, entity.WithTeaVolume(*ts.Volume))
	}
	if ts.ParticleReleaseRate != nil {
		opts = append(opts, entity.WithReleaseRate(*ts.ParticleReleaseRate))
	}
	return entity.NewTeaState(ts.ID, opts...)
}

// Run builds s, advances it tick by tick and checks its expectations.
//
// Simulation errors do not make Run fail: they are recorded in
// Result.Failure and judged against the scenario's declared failure. Run
// returns an error only when ctx is cancelled between ticks, a snapshot
// cannot be encoded, or the snapshot hook fails.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	cfg := newRunConfig(opts)
	result := NewResult()
	logger := cfg.logger.With("scenario", s.Name)

	ticks := s.Ticks
	if cfg.ticks != nil {
		ticks = *cfg.ticks
	}
	every := s.SnapshotEvery
	if cfg.every != nil {
		every = *cfg.every
	}

	var trace record.Trace
	snapshot := func(k *kernel.Kernel) error {
		snap := Snapshot{
			Tick:    k.CurrentTick(),
			Elapsed: k.Elapsed(),
			Status:  k.ViewStatus(s.Verbose),
		}
		h, err := trace.Add(snap.Tick, snap.Status)
		if err != nil {
			return fmt.Errorf("snapshot tick %d: %w", snap.Tick, err)
		}
		snap.Hash = h
		result.Snapshots = append(result.Snapshots, snap)
		if cfg.hook != nil {
			if err := cfg.hook(snap); err != nil {
				return fmt.Errorf("snapshot hook at tick %d: %w", snap.Tick, err)
			}
		}
		return nil
	}

	logger.Info("scenario started", "ticks", ticks, "entities", len(s.Entities))

	k, err := build(s, cfg)
	if err != nil {
		result.Failure = failureOf(0, err)
		logger.Info("scenario setup failed", "code", result.Failure.Code)
	} else {
		if err := snapshot(k); err != nil {
			return nil, err
		}
		for i := 0; i < ticks; i++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run cancelled at tick %d: %w", k.CurrentTick(), err)
			}
			if err := k.Advance(); err != nil {
				result.Failure = failureOf(k.CurrentTick()+1, err)
				break
			}
			if every > 0 && k.CurrentTick()%int64(every) == 0 {
				if err := snapshot(k); err != nil {
					return nil, err
				}
			}
		}
		result.Ticks = k.CurrentTick()
		// A failed tick leaves the state unfit for a snapshot.
		if result.Failure == nil && result.Final().Tick != result.Ticks {
			if err := snapshot(k); err != nil {
				return nil, err
			}
		}
	}

	result.Fingerprint = trace.Fingerprint()
	checkOutcome(s, result)

	logger.Info("scenario finished",
		"pass", result.Pass,
		"ticks", result.Ticks,
		"snapshots", len(result.Snapshots),
	)
	return result, nil
}

func failureOf(tick int64, err error) *Failure {
	f := &Failure{Tick: tick, Code: simerr.CodeOf(err), Message: err.Error()}
	var se *simerr.Error
	if errors.As(err, &se) {
		f.Entity = se.Entity
		f.Field = se.Field
	}
	return f
}
