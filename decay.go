package engram

import (
	"math"
	"time"
)

// Retrievability computes the Ebbinghaus retrievability R(t) = exp(-Δt/S)
// for an engram at time now. Δt is measured in days from the latest
// access time (or CreatedAt if the engram has never been accessed) to
// now. If Δt <= 0, R = 1. Pure: no I/O, no clock reads.
func Retrievability(e *Engram, cfg Config, now time.Time) float64 {
	last := e.LastAccess()
	tDays := now.Sub(last).Hours() / 24.0
	if tDays <= 0 {
		return 1.0
	}
	s := ComputeStability(e, cfg)
	return math.Exp(-tDays / s)
}

// ComputeStability computes the Ebbinghaus stability S for an engram:
//
//	base_S       = 1 / decay_rate_for_kind
//	spacing_f    = 1 + 0.5 * ln(1 + n_accesses)
//	importance_f = 0.5 + importance
//	consol_f     = 1 + 0.2 * consolidation_count
//	S            = base_S * spacing_f * importance_f * consol_f
func ComputeStability(e *Engram, cfg Config) float64 {
	rate := cfg.DecayRates[e.Kind]
	if rate <= 0 {
		rate = 0.05
	}
	baseS := 1.0 / rate

	nAccesses := len(e.AccessTimes)
	spacingF := 1.0 + 0.5*math.Log1p(float64(nAccesses))

	importanceF := 0.5 + e.Importance

	consolF := 1.0 + 0.2*float64(e.ConsolidationCount)

	return baseS * spacingF * importanceF * consolF
}

// EffectiveStrength is the ranking/pruning-oriented product of the
// Memory Chain trace strengths and the Ebbinghaus retrievability:
//
//	eff = (working_strength + core_strength) * R(now)
func EffectiveStrength(e *Engram, cfg Config, now time.Time) float64 {
	r := Retrievability(e, cfg, now)
	return (e.WorkingStrength + e.CoreStrength) * r
}

// AgeDays returns the number of days since the engram was created.
func AgeDays(e *Engram, now time.Time) float64 {
	return now.Sub(e.CreatedAt).Hours() / 24.0
}
