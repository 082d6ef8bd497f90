package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

func TestLiquidRule_Delta(t *testing.T) {
	tea, err := entity.NewTeaState("", entity.WithStartParticleCount(10), entity.WithReleaseRate(0.25))
	require.NoError(t, err)
	c := mustContainer(t, "c", entity.WithInitialTemp(60), entity.WithTeaContent(tea))

	env := Environment{CoolingRate: 0.5, AmbientTemp: 20, TimeTick: 2, EvapRate: 0.25}
	d, err := LiquidRule(c, env)
	require.NoError(t, err)

	assert.Equal(t, entity.Delta{
		entity.Add(entity.FieldTempCurr, -40),
		entity.Add(entity.FieldVolCurr, -20),
		entity.Nest(entity.FieldTeaContent, entity.Delta{
			entity.Add(entity.FieldCurrentParticleAmount, -5),
		}),
		entity.Add(entity.FieldTeaParticleAmount, 5),
	}, d)

	// Computing a delta never mutates the entity.
	assert.Equal(t, 60.0, c.TempCurr())
	assert.Equal(t, 10.0, tea.CurrentParticleAmount())
}

func TestLiquidRule_BelowAmbientWarms(t *testing.T) {
	c := mustContainer(t, "c", entity.WithInitialTemp(10))

	d, err := LiquidRule(c, DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, 10.0, d[0].Amount)
	assert.Equal(t, 10.0, d[1].Amount)
}

func TestLiquidRule_RejectsNonLiquid(t *testing.T) {
	tea, err := entity.NewTeaState("t")
	require.NoError(t, err)

	_, err = LiquidRule(tea, DefaultEnvironment())
	assert.True(t, errors.Is(err, simerr.ErrEntityTypeNotSupported))
}

func TestEnvironment_Status(t *testing.T) {
	assert.Equal(t, entity.Status{
		"cooling_rate": 1.0,
		"ambient_temp": 20.0,
		"time_tick":    1.0,
		"evap_rate":    1.0,
	}, DefaultEnvironment().Status())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}
