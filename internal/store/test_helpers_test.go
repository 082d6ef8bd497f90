package store

import (
	"path/filepath"
	"testing"

	"github.com/vfaabeso/tea-simulation/internal/entity"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testEnvironment is the status record of the default environment.
func testEnvironment() entity.Status {
	return entity.Status{
		"ambient_temp": 20.0,
		"cooling_rate": 1.0,
		"evap_rate":    1.0,
		"time_tick":    1.0,
	}
}

// testStatus returns a two-entity snapshot status.
func testStatus(temp float64) map[string]entity.Status {
	return map[string]entity.Status{
		"mug": {
			"id":        "mug",
			"temp_curr": temp,
			"vol_curr":  250.0,
			"tea_content": entity.Status{
				"id":                      "mug_tea_state",
				"current_particle_amount": 4.0,
			},
		},
		"kettle": {
			"id":           "kettle",
			"temp_curr":    temp,
			"is_heater_on": false,
		},
	}
}
