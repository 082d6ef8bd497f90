package entity

import (
	"fmt"
	"strconv"

	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// DefaultReleaseRate is the particle release rate of a TeaState built
// without WithReleaseRate.
const DefaultReleaseRate = 1.0

// TeaState is the solute payload of a vessel. Its particles leave it at
// particle_release_rate per unit time and accumulate in the owning vessel.
type TeaState struct {
	id string

	// static
	startParticleCount float64
	volume             float64
	releaseRate        float64

	// variable
	currentParticleAmount float64

	owner string
}

// TeaOption configures a TeaState.
type TeaOption func(*TeaState)

// WithStartParticleCount sets the initial particle count.
func WithStartParticleCount(v float64) TeaOption {
	return func(t *TeaState) { t.startParticleCount = v }
}

// WithTeaVolume sets the volume the tea occupies in its vessel.
func WithTeaVolume(v float64) TeaOption {
	return func(t *TeaState) { t.volume = v }
}

// WithReleaseRate sets the particle release rate.
func WithReleaseRate(v float64) TeaOption {
	return func(t *TeaState) { t.releaseRate = v }
}

// NewTeaState creates a TeaState. id may be empty; the owning vessel then
// assigns "<vessel_id>_tea_state".
//
// Fails with LOWER_BOUND if any static field is negative, checked in the
// order start_particle_count, volume, particle_release_rate.
func NewTeaState(id string, opts ...TeaOption) (*TeaState, error) {
	t := &TeaState{id: id, releaseRate: DefaultReleaseRate}
	for _, opt := range opts {
		opt(t)
	}
	t.currentParticleAmount = t.startParticleCount

	if err := t.validateStatic(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TeaState) ID() string { return t.id }

func (t *TeaState) Kind() Kind { return KindTeaState }

// Owner returns the id of the owning vessel, or "" if unattached.
func (t *TeaState) Owner() string { return t.owner }

func (t *TeaState) StartParticleCount() float64 { return t.startParticleCount }

func (t *TeaState) Volume() float64 { return t.volume }

func (t *TeaState) ReleaseRate() float64 { return t.releaseRate }

func (t *TeaState) CurrentParticleAmount() float64 { return t.currentParticleAmount }

func (t *TeaState) validateStatic() error {
	return t.checkStatic(t.id)
}

// checkStatic checks the static fields, reporting errors under id.
func (t *TeaState) checkStatic(id string) error {
	if !(t.startParticleCount >= 0) {
		return simerr.NewLowerBound(id, "start_particle_count", t.startParticleCount, 0)
	}
	if !(t.volume >= 0) {
		return simerr.NewLowerBound(id, "volume", t.volume, 0)
	}
	if !(t.releaseRate >= 0) {
		return simerr.NewLowerBound(id, "particle_release_rate", t.releaseRate, 0)
	}
	return nil
}

// Validate checks current_particle_amount >= 0. NaN fails.
func (t *TeaState) Validate() error {
	if !(t.currentParticleAmount >= 0) {
		return simerr.NewLowerBound(t.id, string(FieldCurrentParticleAmount), t.currentParticleAmount, 0)
	}
	return nil
}

func (t *TeaState) checkDelta(d Delta) error {
	for _, c := range d {
		if c.Field != FieldCurrentParticleAmount {
			return simerr.NewUnknownField(t.id, string(c.Field))
		}
		if err := checkScalar(t.id, c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyUpdate accepts only current_particle_amount. An owned TeaState
// fails with INVALID_ARGUMENT: it is updated through its vessel.
func (t *TeaState) ApplyUpdate(d Delta) error {
	if t.owner != "" {
		return simerr.NewInvalidArgument(t.id, "",
			fmt.Sprintf("tea state %q is owned by %q and is updated through it", t.id, t.owner))
	}
	return t.applyUpdate(d)
}

func (t *TeaState) applyUpdate(d Delta) error {
	if err := t.checkDelta(d); err != nil {
		return err
	}
	for _, c := range d {
		t.currentParticleAmount += c.Amount
	}
	return t.Validate()
}

func (t *TeaState) Status(includeStatic bool) Status {
	s := Status{
		"id":                               t.id,
		string(FieldCurrentParticleAmount): t.currentParticleAmount,
	}
	if includeStatic {
		s["start_particle_count"] = t.startParticleCount
		s["volume"] = t.volume
		s["particle_release_rate"] = t.releaseRate
	}
	return s
}

func (t *TeaState) Clone() Entity {
	return t.clone()
}

func (t *TeaState) clone() *TeaState {
	c := *t
	return &c
}

func (t *TeaState) String() string {
	return fmt.Sprintf("TeaState(%s, particles=%s)", t.id, formatAmount(t.currentParticleAmount))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
