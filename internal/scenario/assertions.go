package scenario

import (
	"fmt"
	"math"
	"strings"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// checkOutcome judges the run against the declared failure and the
// expectations, recording every mismatch on result.
func checkOutcome(s *Scenario, result *Result) {
	switch {
	case s.Failure != nil && result.Failure == nil:
		result.AddError(fmt.Sprintf("expected failure %s, but the run completed %d ticks", s.Failure.Code, result.Ticks))
	case s.Failure != nil:
		if err := matchFailure(*s.Failure, *result.Failure); err != nil {
			result.AddError(err.Error())
		}
	case result.Failure != nil:
		result.AddError(fmt.Sprintf("unexpected failure at tick %d: %s", result.Failure.Tick, result.Failure.Message))
	}

	final := result.Final()
	for i, e := range s.Expect {
		if final == nil {
			result.AddError(fmt.Sprintf("expect[%d]: no snapshot to check", i))
			continue
		}
		if err := CheckExpectation(e, final.Status); err != nil {
			result.AddError(fmt.Sprintf("expect[%d]: %v", i, err))
		}
	}
}

func matchFailure(want ExpectedFailure, got Failure) error {
	if !got.Code.Descends(simerr.Code(want.Code)) {
		return fmt.Errorf("expected failure %s, got %s: %s", want.Code, got.Code, got.Message)
	}
	if want.Entity != "" && want.Entity != got.Entity {
		return fmt.Errorf("expected failure on entity %q, got %q", want.Entity, got.Entity)
	}
	return nil
}

// CheckExpectation checks e against a snapshot status.
func CheckExpectation(e Expectation, status map[string]entity.Status) error {
	rec, ok := status[e.Entity]
	if !ok {
		return fmt.Errorf("entity %q not in snapshot", e.Entity)
	}

	got, err := LookupFloat(rec, e.Field)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Entity, err)
	}

	if e.Approx != nil {
		tol := DefaultTolerance
		if e.Tolerance != nil {
			tol = *e.Tolerance
		}
		if math.Abs(got-*e.Approx) > tol {
			return fmt.Errorf("%s.%s = %v, expected %v ± %v", e.Entity, e.Field, got, *e.Approx, tol)
		}
		return nil
	}

	if e.Min != nil && got < *e.Min {
		return fmt.Errorf("%s.%s = %v, expected >= %v", e.Entity, e.Field, got, *e.Min)
	}
	if e.Max != nil && got > *e.Max {
		return fmt.Errorf("%s.%s = %v, expected <= %v", e.Entity, e.Field, got, *e.Max)
	}
	return nil
}

// LookupFloat resolves a dotted path such as
// "tea_content.current_particle_amount" to a numeric value in rec.
func LookupFloat(rec entity.Status, path string) (float64, error) {
	parts := strings.Split(path, ".")
	cur := rec
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return 0, fmt.Errorf("field %q not found", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			f, ok := v.(float64)
			if !ok {
				return 0, fmt.Errorf("field %q is %T, not a number", path, v)
			}
			return f, nil
		}
		next, ok := v.(entity.Status)
		if !ok {
			return 0, fmt.Errorf("field %q is not a record", strings.Join(parts[:i+1], "."))
		}
		cur = next
	}
	return 0, fmt.Errorf("empty field path")
}
