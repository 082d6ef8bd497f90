// Package entity defines the simulated objects and their self-validating
// contract.
//
// Every entity owns its invariants: construction validates static and
// initial values, and every ApplyUpdate validates the post-update state
// exactly once for the whole batch. A failed range check does not roll the
// entity back; callers must stop using it.
//
// Composition is a tree. A Container (or Cup) exclusively owns one TeaState
// and is the only path through which that TeaState is mutated.
package entity

// AbsoluteZero is the lowest admissible temperature, in degrees Celsius.
const AbsoluteZero = -273.15

// Kind tags an entity variant. The kernel keys its update rules by Kind.
type Kind string

const (
	KindContainer Kind = "container"
	KindCup       Kind = "cup"
	KindTeaState  Kind = "tea_state"
)

// Status is the record form of an entity: string keys with float64, bool,
// string or nested Status values.
type Status = map[string]any

// Entity is the contract every simulated object satisfies.
type Entity interface {
	// ID returns the immutable identifier.
	ID() string

	// Kind returns the variant tag used for rule dispatch.
	Kind() Kind

	// Validate checks the update-time invariants. It returns a
	// *simerr.Error with code LOWER_BOUND or UPPER_BOUND on violation.
	Validate() error

	// ApplyUpdate adds every change of d to the entity, in order, then
	// validates once. An unknown field fails before anything is touched.
	ApplyUpdate(d Delta) error

	// Status returns the mutable fields and id, plus static fields when
	// includeStatic is set.
	Status(includeStatic bool) Status

	// Clone returns a deep copy, owned parts included.
	Clone() Entity
}

// LiquidHolder is an entity with a temperature and an owned tea payload.
// Container and Cup implement it.
type LiquidHolder interface {
	Entity
	TempCurr() float64
	VolCurr() float64
	Tea() *TeaState
}
