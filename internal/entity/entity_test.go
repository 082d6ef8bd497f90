package entity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

func TestNewTeaState_Defaults(t *testing.T) {
	ts, err := NewTeaState("leaves")
	require.NoError(t, err)

	assert.Equal(t, "leaves", ts.ID())
	assert.Equal(t, KindTeaState, ts.Kind())
	assert.Equal(t, 0.0, ts.StartParticleCount())
	assert.Equal(t, 0.0, ts.Volume())
	assert.Equal(t, DefaultReleaseRate, ts.ReleaseRate())
	assert.Equal(t, 0.0, ts.CurrentParticleAmount())
	assert.Empty(t, ts.Owner())
}

func TestNewTeaState_StaticBounds(t *testing.T) {
	tests := []struct {
		name  string
		opts  []TeaOption
		field string
	}{
		{"negative start count", []TeaOption{WithStartParticleCount(-1)}, "start_particle_count"},
		{"negative volume", []TeaOption{WithTeaVolume(-0.1)}, "volume"},
		{"negative release rate", []TeaOption{WithReleaseRate(-2)}, "particle_release_rate"},
		{"start count checked first", []TeaOption{WithReleaseRate(-2), WithStartParticleCount(-1)}, "start_particle_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTeaState("t", tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, simerr.ErrLowerBound))

			var se *simerr.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestTeaState_ApplyUpdate(t *testing.T) {
	ts, err := NewTeaState("t", WithStartParticleCount(10))
	require.NoError(t, err)

	require.NoError(t, ts.ApplyUpdate(Delta{
		Add(FieldCurrentParticleAmount, -3),
		Add(FieldCurrentParticleAmount, -2),
	}))
	assert.Equal(t, 5.0, ts.CurrentParticleAmount())

	err = ts.ApplyUpdate(Delta{Add(FieldCurrentParticleAmount, -6)})
	assert.True(t, errors.Is(err, simerr.ErrLowerBound))
	// No rollback on a failed range check.
	assert.Equal(t, -1.0, ts.CurrentParticleAmount())
}

func TestTeaState_UnknownField(t *testing.T) {
	ts, err := NewTeaState("t", WithStartParticleCount(10))
	require.NoError(t, err)

	err = ts.ApplyUpdate(Delta{
		Add(FieldCurrentParticleAmount, -3),
		Add(FieldTempCurr, 1),
	})
	require.Error(t, err)
	assert.Equal(t, simerr.CodeInvalidArgument, simerr.CodeOf(err))
	assert.Equal(t, 10.0, ts.CurrentParticleAmount(), "no partial mutation")
}

func TestTeaState_Status(t *testing.T) {
	ts, err := NewTeaState("t", WithStartParticleCount(8), WithTeaVolume(5), WithReleaseRate(0.5))
	require.NoError(t, err)

	assert.Equal(t, Status{"id": "t", "current_particle_amount": 8.0}, ts.Status(false))
	assert.Equal(t, Status{
		"id":                      "t",
		"current_particle_amount": 8.0,
		"start_particle_count":    8.0,
		"volume":                  5.0,
		"particle_release_rate":   0.5,
	}, ts.Status(true))
}

func TestNewContainer_Defaults(t *testing.T) {
	c, err := NewContainer("kettle")
	require.NoError(t, err)

	assert.Equal(t, KindContainer, c.Kind())
	assert.Equal(t, 100.0, c.TempInit())
	assert.Equal(t, 1000.0, c.VolInit())
	assert.Equal(t, 2000.0, c.VolMax())
	assert.Equal(t, 1.0, c.HeatingRate())
	assert.False(t, c.IsHeaterOn())
	assert.Equal(t, 0.0, c.TeaParticleAmount())
	assert.Equal(t, 100.0, c.TempCurr())
	assert.Equal(t, 1000.0, c.VolCurr())

	require.NotNil(t, c.Tea())
	assert.Equal(t, "kettle_tea_state", c.Tea().ID())
	assert.Equal(t, "kettle", c.Tea().Owner())
	assert.Equal(t, DefaultReleaseRate, c.Tea().ReleaseRate())
}

func TestNewCup_Defaults(t *testing.T) {
	c, err := NewCup("mug")
	require.NoError(t, err)

	assert.Equal(t, KindCup, c.Kind())
	assert.Equal(t, 250.0, c.VolInit())
	assert.Equal(t, 350.0, c.VolMax())
	assert.Equal(t, 0.0, c.HeatingRate())
}

func TestNewContainer_KeepsTeaID(t *testing.T) {
	ts, err := NewTeaState("sencha")
	require.NoError(t, err)

	c, err := NewContainer("pot", WithTeaContent(ts))
	require.NoError(t, err)
	assert.Same(t, ts, c.Tea())
	assert.Equal(t, "sencha", c.Tea().ID())
}

func TestNewContainer_TeaAlreadyOwned(t *testing.T) {
	ts, err := NewTeaState("")
	require.NoError(t, err)

	_, err = NewContainer("a", WithTeaContent(ts))
	require.NoError(t, err)

	_, err = NewContainer("b", WithTeaContent(ts))
	require.Error(t, err)
	assert.Equal(t, simerr.CodeInvalidArgument, simerr.CodeOf(err))
	assert.Equal(t, "a", ts.Owner())
}

func TestNewContainer_InvariantOrder(t *testing.T) {
	badTea := func() *TeaState {
		return &TeaState{releaseRate: -1}
	}

	tests := []struct {
		name  string
		opts  []Option
		code  simerr.Code
		field string
	}{
		{
			name:  "tea static first",
			opts:  []Option{WithTeaContent(badTea()), WithInitialTemp(-300)},
			code:  simerr.CodeLowerBound,
			field: "particle_release_rate",
		},
		{
			name:  "temp_init below absolute zero",
			opts:  []Option{WithInitialTemp(-273.16), WithInitialVolume(-1)},
			code:  simerr.CodeLowerBound,
			field: "temp_init",
		},
		{
			name:  "vol_init negative",
			opts:  []Option{WithInitialVolume(-1), WithMaxVolume(-1)},
			code:  simerr.CodeLowerBound,
			field: "vol_init",
		},
		{
			name:  "vol_max negative",
			opts:  []Option{WithInitialVolume(0), WithMaxVolume(-1)},
			code:  simerr.CodeLowerBound,
			field: "vol_max",
		},
		{
			name:  "capacity before heating rate",
			opts:  []Option{WithInitialVolume(1900), WithTeaContent(mustTea(t, WithTeaVolume(200))), WithHeatingRate(-1)},
			code:  simerr.CodeUpperBound,
			field: "vol_init",
		},
		{
			name:  "heating_rate negative",
			opts:  []Option{WithHeatingRate(-0.5), WithTeaParticleAmount(-1)},
			code:  simerr.CodeLowerBound,
			field: "heating_rate",
		},
		{
			name:  "tea_particle_amount negative",
			opts:  []Option{WithTeaParticleAmount(-1)},
			code:  simerr.CodeLowerBound,
			field: "tea_particle_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContainer("c", tt.opts...)
			require.Error(t, err)

			var se *simerr.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestNewContainer_AbsoluteZeroIsAdmissible(t *testing.T) {
	c, err := NewContainer("cold", WithInitialTemp(AbsoluteZero))
	require.NoError(t, err)
	assert.Equal(t, AbsoluteZero, c.TempCurr())
}

func TestContainer_ApplyUpdate(t *testing.T) {
	c, err := NewContainer("c", WithTeaContent(mustTea(t, WithStartParticleCount(10))))
	require.NoError(t, err)

	err = c.ApplyUpdate(Delta{
		Add(FieldTempCurr, -0.5),
		Add(FieldVolCurr, -10),
		Nest(FieldTeaContent, Delta{Add(FieldCurrentParticleAmount, -4)}),
		Add(FieldTeaParticleAmount, 4),
	})
	require.NoError(t, err)

	assert.Equal(t, 99.5, c.TempCurr())
	assert.Equal(t, 990.0, c.VolCurr())
	assert.Equal(t, 4.0, c.TeaParticleAmount())
	assert.Equal(t, 6.0, c.Tea().CurrentParticleAmount())
}

func TestContainer_ApplyUpdate_KeyClosure(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		field string
	}{
		{
			name:  "static field",
			delta: Delta{Add(FieldTempCurr, -1), Add(Field("temp_init"), 5)},
			field: "temp_init",
		},
		{
			name:  "unknown nested field",
			delta: Delta{Add(FieldVolCurr, -1), Nest(FieldTeaContent, Delta{Add(Field("volume"), 1)})},
			field: "volume",
		},
		{
			name:  "nested delta on scalar field",
			delta: Delta{Nest(FieldTempCurr, Delta{Add(FieldCurrentParticleAmount, 1)})},
			field: "temp_curr",
		},
		{
			name:  "amount on nested field",
			delta: Delta{{Field: FieldTeaContent, Amount: 1}},
			field: "tea_content",
		},
		{
			name:  "tea field at vessel level",
			delta: Delta{Add(FieldCurrentParticleAmount, -1)},
			field: "current_particle_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer("c", WithTeaContent(mustTea(t, WithStartParticleCount(10))))
			require.NoError(t, err)
			before := c.Status(true)

			err = c.ApplyUpdate(tt.delta)
			require.Error(t, err)

			var se *simerr.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, simerr.CodeInvalidArgument, se.Code)
			assert.Equal(t, tt.field, se.Field)
			assert.Equal(t, before, c.Status(true), "fields must be untouched")
		})
	}
}

func TestContainer_Validate_Order(t *testing.T) {
	c, err := NewContainer("c", WithTeaContent(mustTea(t, WithStartParticleCount(1))))
	require.NoError(t, err)

	// Both the tea and temperature go out of range; the tea is reported.
	err = c.ApplyUpdate(Delta{
		Add(FieldTempCurr, -1000),
		Nest(FieldTeaContent, Delta{Add(FieldCurrentParticleAmount, -2)}),
	})
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "c_tea_state", se.Entity)
	assert.Equal(t, "current_particle_amount", se.Field)
}

func TestContainer_Validate_Bounds(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		code  simerr.Code
		field string
	}{
		{"particles before temperature", Delta{Add(FieldTempCurr, -500), Add(FieldTeaParticleAmount, -1)}, simerr.CodeLowerBound, "tea_particle_amount"},
		{"temperature before volume", Delta{Add(FieldVolCurr, -2000), Add(FieldTempCurr, -500)}, simerr.CodeLowerBound, "temp_curr"},
		{"negative volume", Delta{Add(FieldVolCurr, -1001)}, simerr.CodeLowerBound, "vol_curr"},
		{"over capacity", Delta{Add(FieldVolCurr, 1000.5)}, simerr.CodeUpperBound, "vol_curr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer("c")
			require.NoError(t, err)

			err = c.ApplyUpdate(tt.delta)
			var se *simerr.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.field, se.Field)
			assert.True(t, simerr.IsRangeError(err))
		})
	}
}

func TestContainer_ApplyUpdate_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		field string
	}{
		{"NaN temperature", Delta{Add(FieldTempCurr, math.NaN()), Add(FieldVolCurr, math.NaN())}, "temp_curr"},
		{"infinite volume", Delta{Add(FieldVolCurr, math.Inf(-1))}, "vol_curr"},
		{"NaN nested particles", Delta{Nest(FieldTeaContent, Delta{Add(FieldCurrentParticleAmount, math.NaN())})}, "current_particle_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer("c")
			require.NoError(t, err)
			before := c.Status(true)

			err = c.ApplyUpdate(tt.delta)
			var se *simerr.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, simerr.CodeInvalidArgument, se.Code)
			assert.Equal(t, tt.field, se.Field)
			assert.Equal(t, before, c.Status(true))
			assert.NoError(t, c.Validate())
		})
	}
}

func TestNewContainer_RejectsNaN(t *testing.T) {
	_, err := NewContainer("c", WithInitialTemp(math.NaN()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, simerr.ErrLowerBound))

	_, err = NewContainer("c", WithMaxVolume(math.NaN()))
	require.Error(t, err)
	assert.True(t, simerr.IsRangeError(err))

	_, err = NewTeaState("t", WithTeaVolume(math.NaN()))
	assert.True(t, errors.Is(err, simerr.ErrLowerBound))
}

func TestNewContainer_FailureLeavesTeaUntouched(t *testing.T) {
	ts := mustTea(t, WithStartParticleCount(2))

	_, err := NewContainer("bad", WithInitialVolume(-1), WithTeaContent(ts))
	require.Error(t, err)
	assert.Empty(t, ts.ID())
	assert.Empty(t, ts.Owner())

	c, err := NewContainer("good", WithTeaContent(ts))
	require.NoError(t, err)
	assert.Equal(t, "good_tea_state", c.Tea().ID())
	assert.Equal(t, "good", c.Tea().Owner())
}

func TestNewContainer_TeaErrorUsesAssignedID(t *testing.T) {
	ts := &TeaState{volume: -1}

	_, err := NewContainer("pot", WithTeaContent(ts))
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "pot_tea_state", se.Entity)
	assert.Equal(t, "volume", se.Field)
	assert.Empty(t, ts.ID())
}

func TestContainer_CapacityIncludesTeaVolume(t *testing.T) {
	c, err := NewContainer("c", WithInitialVolume(1900), WithTeaContent(mustTea(t, WithTeaVolume(100))))
	require.NoError(t, err)

	err = c.ApplyUpdate(Delta{Add(FieldVolCurr, 0.001)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, simerr.ErrUpperBound))

	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "100", se.Details["tea_volume"])
}

func TestContainer_Status(t *testing.T) {
	c, err := NewContainer("c", WithHeatingRate(0.005))
	require.NoError(t, err)

	assert.Equal(t, Status{
		"id":                  "c",
		"temp_curr":           100.0,
		"vol_curr":            1000.0,
		"tea_particle_amount": 0.0,
		"tea_content":         Status{"id": "c_tea_state", "current_particle_amount": 0.0},
	}, c.Status(false))

	full := c.Status(true)
	assert.Equal(t, 0.005, full["heating_rate"])
	assert.Equal(t, false, full["is_heater_on"])
	assert.Equal(t, 2000.0, full["vol_max"])
	tea, ok := full["tea_content"].(Status)
	require.True(t, ok)
	assert.Equal(t, 1.0, tea["particle_release_rate"])
}

func TestClone_IsDeep(t *testing.T) {
	orig, err := NewCup("mug", WithTeaContent(mustTea(t, WithStartParticleCount(4))))
	require.NoError(t, err)

	cp, ok := orig.Clone().(*Cup)
	require.True(t, ok)
	require.NotSame(t, orig.Tea(), cp.Tea())

	require.NoError(t, cp.ApplyUpdate(Delta{
		Add(FieldTempCurr, -1),
		Nest(FieldTeaContent, Delta{Add(FieldCurrentParticleAmount, -1)}),
	}))

	assert.Equal(t, 100.0, orig.TempCurr())
	assert.Equal(t, 4.0, orig.Tea().CurrentParticleAmount())
	assert.Equal(t, 99.0, cp.TempCurr())
	assert.Equal(t, 3.0, cp.Tea().CurrentParticleAmount())
	assert.Equal(t, KindCup, cp.Kind())
}

func TestDelta_String(t *testing.T) {
	d := Delta{
		Add(FieldTempCurr, -0.5),
		Nest(FieldTeaContent, Delta{Add(FieldCurrentParticleAmount, -2)}),
	}
	assert.Equal(t, "temp_curr:-0.5, tea_content:{current_particle_amount:-2}", d.String())
}

func mustTea(t *testing.T, opts ...TeaOption) *TeaState {
	t.Helper()
	ts, err := NewTeaState("", opts...)
	require.NoError(t, err)
	return ts
}
