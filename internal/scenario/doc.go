// Package scenario loads simulation scenarios and runs them against the
// kernel.
//
// A scenario is a YAML or CUE file:
//
//	name: container_cooling
//	environment: {cooling_rate: 0.004, ambient_temp: 20, time_tick: 0.001, evap_rate: 0.001}
//	entities:
//	  - kind: container
//	    id: container
//	    heating_rate: 0.005
//	ticks: 10000
//	snapshot_every: 1000
//	expect:
//	  - entity: container
//	    field: temp_curr
//	    approx: 96.863
//	    tolerance: 0.001
//
// Run takes a snapshot at tick 0, every snapshot_every ticks and after the
// last tick, chains the snapshot hashes into a fingerprint, and checks the
// expectations against the final snapshot. A scenario may instead declare
// that it must fail:
//
//	failure:
//	  code: LOWER_BOUND
//	  entity: shallow
//
// RunWithGolden and AssertGolden compare the canonical snapshot trace
// against testdata/golden/<name>.golden.
package scenario
