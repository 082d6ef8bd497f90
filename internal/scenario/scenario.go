package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/kernel"
	"github.com/vfaabeso/tea-simulation/internal/schema"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

//go:embed scenario.cue
var scenarioCUE string

// Scenario describes one simulation run: the environment, the entities in
// registration order, how long to run, and what the outcome must be.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name" json:"name"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Environment overrides the default environment field by field.
	Environment *EnvironmentSpec `yaml:"environment,omitempty" json:"environment,omitempty"`

	// Entities are registered in this order.
	Entities []EntitySpec `yaml:"entities" json:"entities"`

	// Ticks is the number of ticks to run.
	Ticks int `yaml:"ticks" json:"ticks"`

	// SnapshotEvery takes a snapshot every N ticks. 0 means only the initial
	// and final snapshots.
	SnapshotEvery int `yaml:"snapshot_every,omitempty" json:"snapshot_every,omitempty"`

	// Verbose includes static fields and the environment in snapshots.
	Verbose bool `yaml:"verbose,omitempty" json:"verbose,omitempty"`

	// Atomic makes every tick all-or-nothing.
	Atomic bool `yaml:"atomic,omitempty" json:"atomic,omitempty"`

	// Expect is checked against the final snapshot.
	Expect []Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Failure, when set, declares that the run must fail with this code.
	Failure *ExpectedFailure `yaml:"failure,omitempty" json:"failure,omitempty"`
}

// EnvironmentSpec holds optional environment overrides.
type EnvironmentSpec struct {
	CoolingRate *float64 `yaml:"cooling_rate,omitempty" json:"cooling_rate,omitempty"`
	AmbientTemp *float64 `yaml:"ambient_temp,omitempty" json:"ambient_temp,omitempty"`
	TimeTick    *float64 `yaml:"time_tick,omitempty" json:"time_tick,omitempty"`
	EvapRate    *float64 `yaml:"evap_rate,omitempty" json:"evap_rate,omitempty"`
}

// EntitySpec declares a container or cup. Unset fields fall back to the
// variant's defaults.
type EntitySpec struct {
	Kind              string   `yaml:"kind" json:"kind"`
	ID                string   `yaml:"id" json:"id"`
	TempInit          *float64 `yaml:"temp_init,omitempty" json:"temp_init,omitempty"`
	VolInit           *float64 `yaml:"vol_init,omitempty" json:"vol_init,omitempty"`
	VolMax            *float64 `yaml:"vol_max,omitempty" json:"vol_max,omitempty"`
	HeatingRate       *float64 `yaml:"heating_rate,omitempty" json:"heating_rate,omitempty"`
	IsHeaterOn        *bool    `yaml:"is_heater_on,omitempty" json:"is_heater_on,omitempty"`
	TeaParticleAmount *float64 `yaml:"tea_particle_amount,omitempty" json:"tea_particle_amount,omitempty"`
	Tea               *TeaSpec `yaml:"tea,omitempty" json:"tea,omitempty"`
}

// TeaSpec declares the tea content of a vessel.
type TeaSpec struct {
	ID                  string   `yaml:"id,omitempty" json:"id,omitempty"`
	StartParticleCount  *float64 `yaml:"start_particle_count,omitempty" json:"start_particle_count,omitempty"`
	Volume              *float64 `yaml:"volume,omitempty" json:"volume,omitempty"`
	ParticleReleaseRate *float64 `yaml:"particle_release_rate,omitempty" json:"particle_release_rate,omitempty"`
}

// Expectation checks one numeric field of the final snapshot. Exactly one of
// Approx, or a Min/Max range, must be given.
type Expectation struct {
	// Entity is the entity id, or "env" for the environment (verbose only).
	Entity string `yaml:"entity" json:"entity"`

	// Field is a dotted path into the status record, e.g.
	// "tea_content.current_particle_amount".
	Field string `yaml:"field" json:"field"`

	Approx    *float64 `yaml:"approx,omitempty" json:"approx,omitempty"`
	Tolerance *float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// DefaultTolerance is used by approx expectations without a tolerance.
const DefaultTolerance = 1e-9

// ExpectedFailure matches a run failure by code and, optionally, entity.
// The code matches its descendants: VALUE_OUT_OF_RANGE matches LOWER_BOUND.
type ExpectedFailure struct {
	Code   string `yaml:"code" json:"code"`
	Entity string `yaml:"entity,omitempty" json:"entity,omitempty"`
}

// LoadScenario reads a scenario file. Files ending in .cue are unified with
// the #Scenario definition; anything else is parsed as YAML with unknown
// fields rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return ParseYAML(data)
}

// ParseYAML parses and validates a YAML scenario.
func ParseYAML(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// ParseCUE unifies a CUE scenario with the #Scenario definition, decodes it
// and validates it. filename is used in CUE error positions.
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(scenarioCUE, cue.Filename("scenario.cue")).LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile scenario definition: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	var s Scenario
	if err := unified.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

var (
	nonNegative = schema.MustNew(schema.TypeFloat, schema.WithMin(0))
	anyFloat    = schema.MustNew(schema.TypeFloat)

	environmentSchema = schema.Set{
		"cooling_rate": anyFloat,
		"ambient_temp": anyFloat,
		"time_tick":    nonNegative,
		"evap_rate":    anyFloat,
	}

	entitySchema = schema.Set{
		"temp_init":           schema.MustNew(schema.TypeFloat, schema.WithMin(entity.AbsoluteZero)),
		"vol_init":            nonNegative,
		"vol_max":             nonNegative,
		"heating_rate":        nonNegative,
		"tea_particle_amount": nonNegative,
	}

	teaSchema = schema.Set{
		"start_particle_count":  nonNegative,
		"volume":                nonNegative,
		"particle_release_rate": nonNegative,
	}

	expectationSchema = schema.Set{
		"tolerance": nonNegative,
	}
)

// Validate reports every problem in s, combined with multierr.
func Validate(s *Scenario) error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}
	check := func(prefix string, set schema.Set, record map[string]any) {
		for _, err := range multierr.Errors(set.ValidateRecord(record)) {
			add("%s.%w", prefix, err)
		}
	}

	if s.Name == "" {
		add("name is required")
	}
	if s.Ticks < 0 {
		add("ticks must be non-negative, got %d", s.Ticks)
	}
	if s.SnapshotEvery < 0 {
		add("snapshot_every must be non-negative, got %d", s.SnapshotEvery)
	}

	if s.Environment != nil {
		check("environment", environmentSchema, floatRecord(map[string]*float64{
			"cooling_rate": s.Environment.CoolingRate,
			"ambient_temp": s.Environment.AmbientTemp,
			"time_tick":    s.Environment.TimeTick,
			"evap_rate":    s.Environment.EvapRate,
		}))
	}

	if len(s.Entities) == 0 {
		add("entities list is required and must be non-empty")
	}
	seen := make(map[string]int, len(s.Entities))
	for i, es := range s.Entities {
		prefix := fmt.Sprintf("entities[%d]", i)
		switch entity.Kind(es.Kind) {
		case entity.KindContainer, entity.KindCup:
		default:
			add("%s: unknown kind %q (want container or cup)", prefix, es.Kind)
		}
		switch es.ID {
		case "":
			add("%s: id is required", prefix)
		case kernel.ReservedEnvID:
			add("%s: id %q is reserved", prefix, es.ID)
		}
		if j, dup := seen[es.ID]; dup && es.ID != "" {
			add("%s: id %q already used by entities[%d]", prefix, es.ID, j)
		} else {
			seen[es.ID] = i
		}

		check(prefix, entitySchema, floatRecord(map[string]*float64{
			"temp_init":           es.TempInit,
			"vol_init":            es.VolInit,
			"vol_max":             es.VolMax,
			"heating_rate":        es.HeatingRate,
			"tea_particle_amount": es.TeaParticleAmount,
		}))
		if es.Tea != nil {
			check(prefix+".tea", teaSchema, floatRecord(map[string]*float64{
				"start_particle_count":  es.Tea.StartParticleCount,
				"volume":                es.Tea.Volume,
				"particle_release_rate": es.Tea.ParticleReleaseRate,
			}))
		}
	}

	for i, e := range s.Expect {
		prefix := fmt.Sprintf("expect[%d]", i)
		if e.Entity == "" {
			add("%s: entity is required", prefix)
		}
		if e.Field == "" {
			add("%s: field is required", prefix)
		}
		switch {
		case e.Approx == nil && e.Min == nil && e.Max == nil:
			add("%s: one of approx, min or max is required", prefix)
		case e.Approx != nil && (e.Min != nil || e.Max != nil):
			add("%s: approx cannot be combined with min or max", prefix)
		case e.Min != nil && e.Max != nil && *e.Min > *e.Max:
			add("%s: %w", prefix, simerr.NewInconsistentBounds(*e.Min, *e.Max))
		}
		check(prefix, expectationSchema, floatRecord(map[string]*float64{"tolerance": e.Tolerance}))
	}

	if s.Failure != nil && !simerr.Code(s.Failure.Code).Known() {
		add("failure: unknown error code %q", s.Failure.Code)
	}

	return errs
}

// floatRecord keeps only the set fields.
func floatRecord(fields map[string]*float64) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
