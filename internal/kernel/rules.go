package kernel

import (
	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// Rule computes the per-tick delta for one entity from its current state
// and the environment. Rules must not mutate the entity.
type Rule func(e entity.Entity, env Environment) (entity.Delta, error)

// LiquidRule cools and evaporates the liquid toward ambient temperature and
// moves particles from the tea into the liquid:
//
//	dT = cooling_rate * (temp_curr - ambient_temp) * time_tick
//	dV = evap_rate    * (temp_curr - ambient_temp) * time_tick
//	dp = particle_release_rate * current_particle_amount * time_tick
//
// Values are not clamped; a step that overshoots surfaces through the
// entity's post-update invariant check.
func LiquidRule(e entity.Entity, env Environment) (entity.Delta, error) {
	l, ok := e.(entity.LiquidHolder)
	if !ok {
		return nil, simerr.NewEntityTypeNotSupported(e.ID(), string(e.Kind()))
	}

	gap := l.TempCurr() - env.AmbientTemp
	dT := env.CoolingRate * gap * env.TimeTick
	dV := env.EvapRate * gap * env.TimeTick

	tea := l.Tea()
	dp := tea.ReleaseRate() * tea.CurrentParticleAmount() * env.TimeTick

	return entity.Delta{
		entity.Add(entity.FieldTempCurr, -dT),
		entity.Add(entity.FieldVolCurr, -dV),
		entity.Nest(entity.FieldTeaContent, entity.Delta{
			entity.Add(entity.FieldCurrentParticleAmount, -dp),
		}),
		entity.Add(entity.FieldTeaParticleAmount, dp),
	}, nil
}

func defaultRules() map[entity.Kind]Rule {
	return map[entity.Kind]Rule{
		entity.KindContainer: LiquidRule,
		entity.KindCup:       LiquidRule,
	}
}
