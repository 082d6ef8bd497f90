// Package schema provides reusable value-constraint descriptors.
//
// A Schema names the admissible domain of a scalar: its type and optional
// inclusive bounds. Schemas are standalone policy objects; they hold no state
// beyond their declaration and Validate has no side effects.
//
//	s, err := schema.New(schema.TypeFloat, schema.WithMin(0))
//	if err != nil {
//	    return err // INCONSISTENT_BOUNDS
//	}
//	if err := s.Validate(-1.0); err != nil {
//	    // INVALID_SCHEMA_VALUE
//	}
package schema

import (
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/multierr"

	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// ValueType names the Go value family a schema accepts.
type ValueType string

const (
	// TypeFloat accepts float32 and float64.
	TypeFloat ValueType = "float"
	// TypeInt accepts signed and unsigned integers.
	TypeInt ValueType = "int"
	// TypeNumber accepts any integer or float.
	TypeNumber ValueType = "number"
	// TypeBool accepts bool.
	TypeBool ValueType = "bool"
	// TypeString accepts string.
	TypeString ValueType = "string"
)

// ValidTypes lists the supported value types.
var ValidTypes = []ValueType{TypeFloat, TypeInt, TypeNumber, TypeBool, TypeString}

// Schema is an immutable constraint on a single value.
type Schema struct {
	valueType ValueType
	min       *float64
	max       *float64
}

// Option configures optional schema bounds.
type Option func(*Schema)

// WithMin sets the inclusive lower bound.
func WithMin(v float64) Option {
	return func(s *Schema) {
		s.min = &v
	}
}

// WithMax sets the inclusive upper bound.
func WithMax(v float64) Option {
	return func(s *Schema) {
		s.max = &v
	}
}

// New creates a schema for valueType.
//
// Fails with INCONSISTENT_BOUNDS if both bounds are given and min > max, and
// with INVALID_ARGUMENT if valueType is not one of ValidTypes.
func New(valueType ValueType, opts ...Option) (*Schema, error) {
	if !isValidType(valueType) {
		return nil, simerr.NewInvalidArgument("", "value_type",
			fmt.Sprintf("unsupported value type %q", valueType))
	}

	s := &Schema{valueType: valueType}
	for _, opt := range opts {
		opt(s)
	}

	if s.min != nil && s.max != nil && *s.min > *s.max {
		return nil, simerr.NewInconsistentBounds(*s.min, *s.max)
	}

	return s, nil
}

// MustNew is like New but panics on error.
// Use only for package-level schemas whose bounds are known to be valid.
func MustNew(valueType ValueType, opts ...Option) *Schema {
	s, err := New(valueType, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Type returns the accepted value type.
func (s *Schema) Type() ValueType {
	return s.valueType
}

// Min returns the lower bound and whether one is set.
func (s *Schema) Min() (float64, bool) {
	if s.min == nil {
		return 0, false
	}
	return *s.min, true
}

// Max returns the upper bound and whether one is set.
func (s *Schema) Max() (float64, bool) {
	if s.max == nil {
		return 0, false
	}
	return *s.max, true
}

// Validate checks value against the schema.
// Fails with INVALID_SCHEMA_VALUE on a type mismatch or, for numeric values,
// when value < min or value > max.
func (s *Schema) Validate(value any) error {
	family, ok := familyOf(value)
	if !ok || !s.accepts(family) {
		return simerr.NewInvalidSchemaValue(
			fmt.Sprintf("type %s does not match the value %v (%T)", s.valueType, value, value))
	}

	n, numeric := asFloat(value)
	if !numeric {
		return nil
	}

	if s.min != nil && n < *s.min {
		return simerr.NewInvalidSchemaValue(
			fmt.Sprintf("input value %s is smaller than the minimum value %s", format(n), format(*s.min)))
	}
	if s.max != nil && n > *s.max {
		return simerr.NewInvalidSchemaValue(
			fmt.Sprintf("input value %s is larger than the maximum value %s", format(n), format(*s.max)))
	}

	return nil
}

func (s *Schema) accepts(family ValueType) bool {
	if s.valueType == TypeNumber {
		return family == TypeInt || family == TypeFloat
	}
	return s.valueType == family
}

// Set maps field names to schemas.
type Set map[string]*Schema

// ValidateRecord validates every field of record that has a schema in the set.
// Fields without a schema and schemas without a field are ignored.
// All violations are returned combined; nil means the record is valid.
func (set Set) ValidateRecord(record map[string]any) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	for _, name := range names {
		value, ok := record[name]
		if !ok {
			continue
		}
		if err := set[name].Validate(value); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

func isValidType(t ValueType) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

func familyOf(v any) (ValueType, bool) {
	switch v.(type) {
	case float32, float64:
		return TypeFloat, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt, true
	case bool:
		return TypeBool, true
	case string:
		return TypeString, true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
