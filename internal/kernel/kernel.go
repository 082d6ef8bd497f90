// Package kernel implements the tick-based simulation kernel.
//
// A Kernel owns a registry of entities in insertion order and one
// Environment. It has two lifecycle states:
//
//	Setup     -> entities are added and the environment is configured
//	Confirmed -> ticks advance; the registry is frozen
//
// The transition is one-way. Each tick visits every entity in insertion
// order, computes a delta with the rule registered for the entity's kind,
// and has the entity apply and validate it. The first failure aborts the
// tick and is returned to the caller.
//
// Thread-safety: a Kernel is not safe for concurrent use.
package kernel

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// State is the kernel lifecycle state.
type State int

const (
	StateSetup State = iota
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer receives tick events. metrics.Recorder implements it.
type Observer interface {
	EntityUpdated(kind entity.Kind)
	TickCompleted(tick int64, entities int, took time.Duration)
	TickFailed(tick int64, code simerr.Code)
}

// Kernel is the simulation kernel.
type Kernel struct {
	entities map[string]entity.Entity
	order    []string // insertion order; never reordered
	env      Environment
	rules    map[entity.Kind]Rule
	state    State
	clock    *Clock

	atomicTicks bool
	logger      *slog.Logger
	observers   []Observer
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithRule registers rule for kind, replacing any existing one. A nil rule
// removes the registration.
func WithRule(kind entity.Kind, rule Rule) Option {
	return func(k *Kernel) {
		if rule == nil {
			delete(k.rules, kind)
			return
		}
		k.rules[kind] = rule
	}
}

// WithAtomicTicks makes every tick all-or-nothing: entities are updated on
// clones and the registry is swapped only if every update succeeds.
//
// Default: off. A failed tick leaves already-processed entities mutated.
func WithAtomicTicks() Option {
	return func(k *Kernel) {
		k.atomicTicks = true
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = l
	}
}

// WithObserver attaches an observer for tick events. Observers are
// notified in the order they were attached; nil is ignored.
func WithObserver(o Observer) Option {
	return func(k *Kernel) {
		if o != nil {
			k.observers = append(k.observers, o)
		}
	}
}

// New creates a kernel in Setup state with the default environment and the
// liquid rule registered for containers and cups.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		entities: make(map[string]entity.Entity),
		env:      DefaultEnvironment(),
		rules:    defaultRules(),
		state:    StateSetup,
		clock:    NewClock(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(k)
	}

	return k
}

// AddEntity registers e.
//
// Fails with SIMULATION_NOT_READY after ConfirmSetup, INVALID_ARGUMENT for a
// nil entity, an empty id, the reserved id "env" or a TeaState already owned
// by a vessel, and ID_ALREADY_EXISTS on a duplicate id.
func (k *Kernel) AddEntity(e entity.Entity) error {
	if k.state != StateSetup {
		return simerr.NewSimulationNotReady("entities can only be added during setup")
	}
	if e == nil {
		return simerr.NewInvalidArgument("", "", "entity must not be nil")
	}

	id := e.ID()
	switch id {
	case "":
		return simerr.NewInvalidArgument("", "id", "entity id must not be empty")
	case ReservedEnvID:
		return simerr.NewInvalidArgument(id, "id", fmt.Sprintf("id %q is reserved for the environment", id))
	}
	if ts, ok := e.(*entity.TeaState); ok && ts.Owner() != "" {
		return simerr.NewInvalidArgument(id, "",
			fmt.Sprintf("tea state %q is owned by %q and cannot be registered on its own", id, ts.Owner()))
	}
	if _, exists := k.entities[id]; exists {
		return simerr.NewIDAlreadyExists(id)
	}

	k.entities[id] = e
	k.order = append(k.order, id)
	return nil
}

// AddEntities adds es in order and stops at the first failure. Entities
// added before the failure stay registered.
func (k *Kernel) AddEntities(es ...entity.Entity) error {
	for _, e := range es {
		if err := k.AddEntity(e); err != nil {
			return err
		}
	}
	return nil
}

// ConfigEnvironment replaces the environment. Setup only.
func (k *Kernel) ConfigEnvironment(env Environment) error {
	if k.state != StateSetup {
		return simerr.NewSimulationNotReady("the environment can only be configured during setup")
	}
	if err := env.Validate(); err != nil {
		return err
	}
	k.env = env
	return nil
}

// ConfirmSetup freezes the registry and enables Advance.
func (k *Kernel) ConfirmSetup() error {
	if k.state == StateConfirmed {
		return simerr.NewSetupAlreadyConfirmed()
	}
	k.state = StateConfirmed
	k.logger.Info("simulation setup confirmed",
		"entities", len(k.order),
		"atomic", k.atomicTicks,
	)
	return nil
}

// Advance runs one tick.
//
// Fails with SIMULATION_NOT_READY before ConfirmSetup and with
// ENTITY_TYPE_NOT_SUPPORTED for an entity whose kind has no rule. Any rule or
// invariant error aborts the tick; the tick counter only moves on success.
func (k *Kernel) Advance() error {
	if k.state != StateConfirmed {
		return simerr.NewSimulationNotReady("setup must be confirmed before advancing")
	}

	tick := k.clock.Current() + 1
	start := time.Now()

	targets := k.entities
	if k.atomicTicks {
		targets = make(map[string]entity.Entity, len(k.entities))
		for id, e := range k.entities {
			targets[id] = e.Clone()
		}
	}

	for _, id := range k.order {
		e := targets[id]
		if err := k.step(e); err != nil {
			code := simerr.CodeOf(err)
			k.logger.Error("tick failed",
				"tick", tick,
				"entity", id,
				"kind", e.Kind(),
				"code", code,
				"error", err,
			)
			for _, o := range k.observers {
				o.TickFailed(tick, code)
			}
			return err
		}
	}

	if k.atomicTicks {
		k.entities = targets
	}
	k.clock.Next()

	took := time.Since(start)
	k.logger.Debug("tick completed",
		"tick", tick,
		"entities", len(k.order),
		"elapsed", k.Elapsed(),
	)
	for _, o := range k.observers {
		o.TickCompleted(tick, len(k.order), took)
	}
	return nil
}

func (k *Kernel) step(e entity.Entity) error {
	rule, ok := k.rules[e.Kind()]
	if !ok {
		return simerr.NewEntityTypeNotSupported(e.ID(), string(e.Kind()))
	}

	delta, err := rule(e, k.env)
	if err != nil {
		return err
	}
	if err := e.ApplyUpdate(delta); err != nil {
		return err
	}

	for _, o := range k.observers {
		o.EntityUpdated(e.Kind())
	}
	return nil
}

// AdvanceN runs n ticks and stops at the first error.
func (k *Kernel) AdvanceN(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Catalog returns the registered ids in insertion order.
func (k *Kernel) Catalog() []string {
	out := make([]string, len(k.order))
	copy(out, k.order)
	return out
}

// ViewEntity returns the status record of id. Fails with
// NON_EXISTENT_OBJECT for an unknown id.
func (k *Kernel) ViewEntity(id string, includeStatic bool) (entity.Status, error) {
	e, ok := k.entities[id]
	if !ok {
		return nil, simerr.NewNonExistentObject(id)
	}
	return e.Status(includeStatic), nil
}

// ViewStatus returns every entity's status keyed by id. When verbose, static
// fields are included and the environment is reported under "env".
func (k *Kernel) ViewStatus(verbose bool) map[string]entity.Status {
	out := make(map[string]entity.Status, len(k.order)+1)
	for _, id := range k.order {
		out[id] = k.entities[id].Status(verbose)
	}
	if verbose {
		out[ReservedEnvID] = k.env.Status()
	}
	return out
}

// CurrentTick returns the number of successfully completed ticks.
func (k *Kernel) CurrentTick() int64 {
	return k.clock.Current()
}

// State returns the lifecycle state.
func (k *Kernel) State() State {
	return k.state
}

// Environment returns a copy of the environment.
func (k *Kernel) Environment() Environment {
	return k.env
}

// Elapsed returns simulated time: completed ticks times time_tick.
func (k *Kernel) Elapsed() float64 {
	return float64(k.clock.Current()) * k.env.TimeTick
}
