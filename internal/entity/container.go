package entity

import (
	"fmt"

	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// vessel is the shared state and behavior of Container and Cup.
type vessel struct {
	id   string
	kind Kind

	// static
	tempInit    float64
	volInit     float64
	volMax      float64
	heatingRate float64
	heaterOn    bool

	// variable
	teaParticleAmount float64
	tempCurr          float64
	volCurr           float64

	tea *TeaState
}

// Option configures a Container or Cup.
type Option func(*vessel)

func WithInitialTemp(v float64) Option {
	return func(c *vessel) { c.tempInit = v }
}

func WithInitialVolume(v float64) Option {
	return func(c *vessel) { c.volInit = v }
}

func WithMaxVolume(v float64) Option {
	return func(c *vessel) { c.volMax = v }
}

func WithHeatingRate(v float64) Option {
	return func(c *vessel) { c.heatingRate = v }
}

func WithHeater(on bool) Option {
	return func(c *vessel) { c.heaterOn = on }
}

func WithTeaParticleAmount(v float64) Option {
	return func(c *vessel) { c.teaParticleAmount = v }
}

// WithTeaContent attaches t. The vessel takes exclusive ownership; t must
// not already belong to another vessel.
func WithTeaContent(t *TeaState) Option {
	return func(c *vessel) { c.tea = t }
}

func newVessel(id string, defaults vessel, opts []Option) (vessel, error) {
	v := defaults
	v.id = id
	for _, opt := range opts {
		opt(&v)
	}

	if v.tea == nil {
		v.tea = &TeaState{releaseRate: DefaultReleaseRate}
	}
	if v.tea.owner != "" {
		return vessel{}, simerr.NewInvalidArgument(id, string(FieldTeaContent),
			fmt.Sprintf("tea state %q is already owned by %q", v.tea.id, v.tea.owner))
	}

	teaID := v.tea.id
	if teaID == "" {
		teaID = id + "_tea_state"
	}

	v.tempCurr = v.tempInit
	v.volCurr = v.volInit

	if err := v.validateInit(teaID); err != nil {
		return vessel{}, err
	}

	// The caller's TeaState is only touched once construction succeeds.
	v.tea.id = teaID
	v.tea.owner = id
	return v, nil
}

// validateInit checks construction-time invariants. Order matters: vol_max
// is checked before it is used as the capacity bound. Comparisons are
// written so that NaN fails them.
func (v *vessel) validateInit(teaID string) error {
	if err := v.tea.checkStatic(teaID); err != nil {
		return err
	}
	if !(v.tempInit >= AbsoluteZero) {
		return simerr.NewLowerBound(v.id, "temp_init", v.tempInit, AbsoluteZero)
	}
	if !(v.volInit >= 0) {
		return simerr.NewLowerBound(v.id, "vol_init", v.volInit, 0)
	}
	if !(v.volMax >= 0) {
		return simerr.NewLowerBound(v.id, "vol_max", v.volMax, 0)
	}
	if total := v.volInit + v.tea.volume; !(total <= v.volMax) {
		return capacityError(v.id, "vol_init", total, v.volMax, v.tea.volume)
	}
	if !(v.heatingRate >= 0) {
		return simerr.NewLowerBound(v.id, "heating_rate", v.heatingRate, 0)
	}
	if !(v.teaParticleAmount >= 0) {
		return simerr.NewLowerBound(v.id, string(FieldTeaParticleAmount), v.teaParticleAmount, 0)
	}
	return nil
}

// Validate checks the update-time invariants, owned TeaState first. NaN
// fails every bound.
func (v *vessel) Validate() error {
	if err := v.tea.Validate(); err != nil {
		return err
	}
	if !(v.teaParticleAmount >= 0) {
		return simerr.NewLowerBound(v.id, string(FieldTeaParticleAmount), v.teaParticleAmount, 0)
	}
	if !(v.tempCurr >= AbsoluteZero) {
		return simerr.NewLowerBound(v.id, string(FieldTempCurr), v.tempCurr, AbsoluteZero)
	}
	if !(v.volCurr >= 0) {
		return simerr.NewLowerBound(v.id, string(FieldVolCurr), v.volCurr, 0)
	}
	if total := v.volCurr + v.tea.volume; !(total <= v.volMax) {
		return capacityError(v.id, string(FieldVolCurr), total, v.volMax, v.tea.volume)
	}
	return nil
}

func capacityError(id, field string, total, volMax, teaVolume float64) error {
	err := simerr.NewUpperBound(id, field, total, volMax)
	err.Message = fmt.Sprintf("%s plus tea volume (%s) cannot be above maximum capacity %s",
		field, formatAmount(total), formatAmount(volMax))
	err.Details["tea_volume"] = formatAmount(teaVolume)
	return err
}

// checkDelta verifies key closure for the whole batch, nested part included.
func (v *vessel) checkDelta(d Delta) error {
	for _, c := range d {
		switch c.Field {
		case FieldTempCurr, FieldVolCurr, FieldTeaParticleAmount:
			if err := checkScalar(v.id, c); err != nil {
				return err
			}
		case FieldTeaContent:
			if err := checkNested(v.id, c); err != nil {
				return err
			}
			if err := v.tea.checkDelta(c.Nested); err != nil {
				return err
			}
		default:
			return simerr.NewUnknownField(v.id, string(c.Field))
		}
	}
	return nil
}

// ApplyUpdate routes scalar changes to the vessel and tea_content changes to
// the owned TeaState, then validates once.
func (v *vessel) ApplyUpdate(d Delta) error {
	if err := v.checkDelta(d); err != nil {
		return err
	}

	for _, c := range d {
		switch c.Field {
		case FieldTempCurr:
			v.tempCurr += c.Amount
		case FieldVolCurr:
			v.volCurr += c.Amount
		case FieldTeaParticleAmount:
			v.teaParticleAmount += c.Amount
		case FieldTeaContent:
			if err := v.tea.applyUpdate(c.Nested); err != nil {
				return err
			}
		}
	}

	return v.Validate()
}

func (v *vessel) Status(includeStatic bool) Status {
	s := Status{
		"id":                           v.id,
		string(FieldTempCurr):          v.tempCurr,
		string(FieldVolCurr):           v.volCurr,
		string(FieldTeaParticleAmount): v.teaParticleAmount,
		string(FieldTeaContent):        v.tea.Status(includeStatic),
	}
	if includeStatic {
		s["temp_init"] = v.tempInit
		s["vol_init"] = v.volInit
		s["vol_max"] = v.volMax
		s["heating_rate"] = v.heatingRate
		s["is_heater_on"] = v.heaterOn
	}
	return s
}

func (v *vessel) clone() vessel {
	c := *v
	c.tea = v.tea.clone()
	return c
}

func (v *vessel) ID() string { return v.id }

func (v *vessel) Kind() Kind { return v.kind }

// Tea returns the owned TeaState for reading. Its ApplyUpdate refuses
// updates; changes go through the vessel's tea_content field.
func (v *vessel) Tea() *TeaState { return v.tea }

func (v *vessel) TempInit() float64 { return v.tempInit }

func (v *vessel) VolInit() float64 { return v.volInit }

func (v *vessel) VolMax() float64 { return v.volMax }

func (v *vessel) HeatingRate() float64 { return v.heatingRate }

func (v *vessel) IsHeaterOn() bool { return v.heaterOn }

func (v *vessel) TempCurr() float64 { return v.tempCurr }

func (v *vessel) VolCurr() float64 { return v.volCurr }

func (v *vessel) TeaParticleAmount() float64 { return v.teaParticleAmount }

// Container is a heatable liquid vessel such as a kettle or pot.
type Container struct {
	vessel
}

var containerDefaults = vessel{
	kind:        KindContainer,
	tempInit:    100,
	volInit:     1000,
	volMax:      2000,
	heatingRate: 1.0,
}

// NewContainer creates a Container with defaults temp_init 100, vol_init
// 1000, vol_max 2000, heating_rate 1, heater off and no particles.
//
// Fails with LOWER_BOUND or UPPER_BOUND on the first violated
// construction-time invariant, and with INVALID_ARGUMENT if the tea content
// is already owned.
func NewContainer(id string, opts ...Option) (*Container, error) {
	v, err := newVessel(id, containerDefaults, opts)
	if err != nil {
		return nil, err
	}
	return &Container{vessel: v}, nil
}

func (c *Container) Clone() Entity {
	return &Container{vessel: c.vessel.clone()}
}

// Cup is a small serving vessel. It follows the Container contract and
// update rule; only its kind and defaults differ.
type Cup struct {
	vessel
}

var cupDefaults = vessel{
	kind:     KindCup,
	tempInit: 100,
	volInit:  250,
	volMax:   350,
}

// NewCup creates a Cup with defaults temp_init 100, vol_init 250, vol_max
// 350, no heating and no particles.
func NewCup(id string, opts ...Option) (*Cup, error) {
	v, err := newVessel(id, cupDefaults, opts)
	if err != nil {
		return nil, err
	}
	return &Cup{vessel: v}, nil
}

func (c *Cup) Clone() Entity {
	return &Cup{vessel: c.vessel.clone()}
}

var (
	_ LiquidHolder = (*Container)(nil)
	_ LiquidHolder = (*Cup)(nil)
	_ Entity       = (*TeaState)(nil)
)
