package kernel

import (
	"fmt"
	"math"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// ReservedEnvID is the key under which ViewStatus reports the environment.
// No entity may use it.
const ReservedEnvID = "env"

// Environment is the shared ambient state every rule reads. It is passed by
// value and never mutated by entities.
type Environment struct {
	CoolingRate float64 `yaml:"cooling_rate" json:"cooling_rate"`
	AmbientTemp float64 `yaml:"ambient_temp" json:"ambient_temp"`
	TimeTick    float64 `yaml:"time_tick" json:"time_tick"`
	EvapRate    float64 `yaml:"evap_rate" json:"evap_rate"`
}

// DefaultEnvironment returns cooling_rate 1, ambient_temp 20, time_tick 1,
// evap_rate 1.
func DefaultEnvironment() Environment {
	return Environment{
		CoolingRate: 1.0,
		AmbientTemp: 20.0,
		TimeTick:    1.0,
		EvapRate:    1.0,
	}
}

// Validate rejects NaN and infinite fields with INVALID_ARGUMENT.
func (e Environment) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"cooling_rate", e.CoolingRate},
		{"ambient_temp", e.AmbientTemp},
		{"time_tick", e.TimeTick},
		{"evap_rate", e.EvapRate},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return simerr.NewInvalidArgument(ReservedEnvID, f.name,
				fmt.Sprintf("%s must be finite, got %v", f.name, f.value))
		}
	}
	return nil
}

// Status returns the environment as a status record.
func (e Environment) Status() entity.Status {
	return entity.Status{
		"cooling_rate": e.CoolingRate,
		"ambient_temp": e.AmbientTemp,
		"time_tick":    e.TimeTick,
		"evap_rate":    e.EvapRate,
	}
}
