package entity

import (
	"fmt"
	"math"
	"strings"

	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// Field names an updatable entity field.
type Field string

const (
	FieldTempCurr              Field = "temp_curr"
	FieldVolCurr               Field = "vol_curr"
	FieldTeaParticleAmount     Field = "tea_particle_amount"
	FieldTeaContent            Field = "tea_content"
	FieldCurrentParticleAmount Field = "current_particle_amount"
)

// Change is one additive update. Scalar fields use Amount; FieldTeaContent
// carries a Nested delta for the owned TeaState instead.
type Change struct {
	Field  Field
	Amount float64
	Nested Delta
}

// Delta is an ordered batch of changes applied in slice order.
type Delta []Change

// Add returns a scalar change.
func Add(field Field, amount float64) Change {
	return Change{Field: field, Amount: amount}
}

// Nest returns a change that forwards d to an owned part.
func Nest(field Field, d Delta) Change {
	return Change{Field: field, Nested: d}
}

// String renders the delta as "field:amount, ..." for logs.
func (d Delta) String() string {
	var sb strings.Builder
	for i, c := range d {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(c.Field))
		sb.WriteByte(':')
		if c.Nested != nil {
			sb.WriteByte('{')
			sb.WriteString(c.Nested.String())
			sb.WriteByte('}')
			continue
		}
		sb.WriteString(formatAmount(c.Amount))
	}
	return sb.String()
}

// checkScalar rejects a change on a scalar field that carries a nested
// delta or a non-finite amount.
func checkScalar(entityID string, c Change) error {
	if c.Nested != nil {
		return simerr.NewInvalidArgument(entityID, string(c.Field),
			"field "+string(c.Field)+" is scalar and cannot take a nested update")
	}
	if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) {
		return simerr.NewInvalidArgument(entityID, string(c.Field),
			fmt.Sprintf("change to %s must be finite, got %v", c.Field, c.Amount))
	}
	return nil
}

// checkNested rejects a change on a nested field that carries an amount.
func checkNested(entityID string, c Change) error {
	if c.Amount != 0 {
		return simerr.NewInvalidArgument(entityID, string(c.Field),
			"field "+string(c.Field)+" only takes a nested update")
	}
	return nil
}
