// Package simerr defines the closed error taxonomy shared by every simulation
// package.
//
// All failures are reported as *Error values carrying a Code. Codes form a
// small hierarchy (see parents below) so callers can match a whole family with
// errors.Is:
//
//	if errors.Is(err, simerr.ErrValueOutOfRange) {
//	    // LOWER_BOUND or UPPER_BOUND
//	}
//
// Errors are never retried or swallowed inside the simulation; every error is
// fatal to the call that produced it.
package simerr

import (
	"errors"
	"fmt"
	"strconv"
)

// Code identifies an error kind.
type Code string

const (
	// CodeSimulation is the root of all simulation errors.
	CodeSimulation Code = "SIMULATION_ERROR"

	// CodeEntityTypeNotSupported indicates no update rule exists for an entity kind.
	CodeEntityTypeNotSupported Code = "ENTITY_TYPE_NOT_SUPPORTED"

	// CodeIDAlreadyExists indicates an entity id collides with a registered one.
	CodeIDAlreadyExists Code = "ID_ALREADY_EXISTS"

	// CodeInvalidArgument indicates a malformed argument, such as an unknown
	// or immutable update field.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeNonExistentObject indicates a lookup for an unknown id.
	CodeNonExistentObject Code = "NON_EXISTENT_OBJECT"

	// CodeSetupAlreadyConfirmed indicates ConfirmSetup was called twice.
	CodeSetupAlreadyConfirmed Code = "SETUP_ALREADY_CONFIRMED"

	// CodeSimulationNotReady indicates an operation was invoked in the wrong
	// lifecycle state.
	CodeSimulationNotReady Code = "SIMULATION_NOT_READY"

	// CodeSemantic is the parent of errors about the state of simulated values.
	CodeSemantic Code = "SEMANTIC_ERROR"

	// CodeValueOutOfRange indicates a tracked value left its declared range.
	CodeValueOutOfRange Code = "VALUE_OUT_OF_RANGE"

	// CodeLowerBound indicates a value below its lower bound.
	CodeLowerBound Code = "LOWER_BOUND"

	// CodeUpperBound indicates a value above its upper bound.
	CodeUpperBound Code = "UPPER_BOUND"

	// CodeSchema is the root of schema errors.
	CodeSchema Code = "SCHEMA_ERROR"

	// CodeInvalidSchemaValue indicates a value rejected by a schema.
	CodeInvalidSchemaValue Code = "INVALID_SCHEMA_VALUE"

	// CodeInconsistentBounds indicates a schema declared with min > max.
	CodeInconsistentBounds Code = "INCONSISTENT_BOUNDS"
)

var parents = map[Code]Code{
	CodeEntityTypeNotSupported: CodeSimulation,
	CodeIDAlreadyExists:        CodeSimulation,
	CodeInvalidArgument:        CodeSimulation,
	CodeNonExistentObject:      CodeSimulation,
	CodeSetupAlreadyConfirmed:  CodeSimulation,
	CodeSimulationNotReady:     CodeSimulation,
	CodeSemantic:               CodeSimulation,
	CodeValueOutOfRange:        CodeSemantic,
	CodeLowerBound:             CodeValueOutOfRange,
	CodeUpperBound:             CodeValueOutOfRange,
	CodeInvalidSchemaValue:     CodeSchema,
	CodeInconsistentBounds:     CodeSchema,
}

// Parent returns the parent code, or "" for a root.
func (c Code) Parent() Code {
	return parents[c]
}

// Known reports whether c is one of the codes defined above.
func (c Code) Known() bool {
	if c == CodeSimulation || c == CodeSchema {
		return true
	}
	_, ok := parents[c]
	return ok
}

// Descends reports whether c equals ancestor or sits below it in the hierarchy.
func (c Code) Descends(ancestor Code) bool {
	for cur := c; cur != ""; cur = cur.Parent() {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Category groups codes by who is expected to act on them.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryLifecycle  Category = "lifecycle"
	CategorySemantic   Category = "semantic"
	CategorySchema     Category = "schema"
)

// Category returns the diagnostic category of the code.
func (c Code) Category() Category {
	switch {
	case c.Descends(CodeSemantic):
		return CategorySemantic
	case c.Descends(CodeSchema):
		return CategorySchema
	case c == CodeSetupAlreadyConfirmed, c == CodeSimulationNotReady:
		return CategoryLifecycle
	default:
		return CategoryStructural
	}
}

// Error is the single error type of the simulation.
//
// Entity and Field are optional; when set they name the offending entity and
// field. Details carries extra diagnostics such as the value and bound of a
// range violation.
type Error struct {
	Code    Code
	Message string
	Entity  string
	Field   string
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Entity != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (entity=%s, field=%s)", e.Code, e.Message, e.Entity, e.Field)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	case e.Message == "":
		return string(e.Code)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is matches target when target is an *Error whose code is e's code or one of
// its ancestors. Only the code is compared, so the sentinels below match any
// error of their family.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code.Descends(t.Code)
}

// Sentinels for errors.Is.
var (
	ErrSimulation             = &Error{Code: CodeSimulation}
	ErrEntityTypeNotSupported = &Error{Code: CodeEntityTypeNotSupported}
	ErrIDAlreadyExists        = &Error{Code: CodeIDAlreadyExists}
	ErrInvalidArgument        = &Error{Code: CodeInvalidArgument}
	ErrNonExistentObject      = &Error{Code: CodeNonExistentObject}
	ErrSetupAlreadyConfirmed  = &Error{Code: CodeSetupAlreadyConfirmed}
	ErrSimulationNotReady     = &Error{Code: CodeSimulationNotReady}
	ErrSemantic               = &Error{Code: CodeSemantic}
	ErrValueOutOfRange        = &Error{Code: CodeValueOutOfRange}
	ErrLowerBound             = &Error{Code: CodeLowerBound}
	ErrUpperBound             = &Error{Code: CodeUpperBound}
	ErrSchema                 = &Error{Code: CodeSchema}
	ErrInvalidSchemaValue     = &Error{Code: CodeInvalidSchemaValue}
	ErrInconsistentBounds     = &Error{Code: CodeInconsistentBounds}
)

// CodeOf extracts the code of a (possibly wrapped) *Error.
// Returns "" if err carries no simulation error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRangeError reports whether err is a lower or upper bound violation.
func IsRangeError(err error) bool {
	return errors.Is(err, ErrValueOutOfRange)
}

// IsLifecycleError reports whether err was caused by calling an operation in
// the wrong kernel state.
func IsLifecycleError(err error) bool {
	return CodeOf(err).Category() == CategoryLifecycle
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NewLowerBound reports that field of entity is below bound.
func NewLowerBound(entity, field string, value, bound float64) *Error {
	return &Error{
		Code:    CodeLowerBound,
		Message: fmt.Sprintf("%s (%s) cannot be below %s", field, formatFloat(value), formatFloat(bound)),
		Entity:  entity,
		Field:   field,
		Details: map[string]string{
			"value": formatFloat(value),
			"bound": formatFloat(bound),
		},
	}
}

// NewUpperBound reports that field of entity is above bound.
func NewUpperBound(entity, field string, value, bound float64) *Error {
	return &Error{
		Code:    CodeUpperBound,
		Message: fmt.Sprintf("%s (%s) cannot be above %s", field, formatFloat(value), formatFloat(bound)),
		Entity:  entity,
		Field:   field,
		Details: map[string]string{
			"value": formatFloat(value),
			"bound": formatFloat(bound),
		},
	}
}

// NewInvalidArgument reports a malformed argument. field may be empty.
func NewInvalidArgument(entity, field, message string) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Message: message,
		Entity:  entity,
		Field:   field,
	}
}

// NewUnknownField reports an update key that does not exist on the entity or
// is static.
func NewUnknownField(entity, field string) *Error {
	return NewInvalidArgument(entity, field,
		fmt.Sprintf("field %q might not exist or is a static field", field))
}

// NewIDAlreadyExists reports a duplicate entity id.
func NewIDAlreadyExists(id string) *Error {
	return &Error{
		Code:    CodeIDAlreadyExists,
		Message: fmt.Sprintf("id %q already exists in one of the entities", id),
		Entity:  id,
	}
}

// NewNonExistentObject reports a lookup for an unknown id.
func NewNonExistentObject(id string) *Error {
	return &Error{
		Code:    CodeNonExistentObject,
		Message: fmt.Sprintf("object with id %q does not exist", id),
		Entity:  id,
	}
}

// NewEntityTypeNotSupported reports an entity kind with no registered rule.
func NewEntityTypeNotSupported(entity, kind string) *Error {
	return &Error{
		Code:    CodeEntityTypeNotSupported,
		Message: fmt.Sprintf("update for entity kind %q is not supported", kind),
		Entity:  entity,
		Details: map[string]string{"kind": kind},
	}
}

// NewSimulationNotReady reports an operation invoked in the wrong state.
func NewSimulationNotReady(message string) *Error {
	return &Error{Code: CodeSimulationNotReady, Message: message}
}

// NewSetupAlreadyConfirmed reports a repeated ConfirmSetup.
func NewSetupAlreadyConfirmed() *Error {
	return &Error{
		Code:    CodeSetupAlreadyConfirmed,
		Message: "simulation setup is already confirmed",
	}
}

// NewInvalidSchemaValue reports a value rejected by a schema.
func NewInvalidSchemaValue(message string) *Error {
	return &Error{Code: CodeInvalidSchemaValue, Message: message}
}

// NewInconsistentBounds reports a schema declared with min > max.
func NewInconsistentBounds(min, max float64) *Error {
	return &Error{
		Code:    CodeInconsistentBounds,
		Message: fmt.Sprintf("minimum value %s is higher than the maximum value %s", formatFloat(min), formatFloat(max)),
		Details: map[string]string{
			"min": formatFloat(min),
			"max": formatFloat(max),
		},
	}
}
