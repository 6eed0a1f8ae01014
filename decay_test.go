package engram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrievabilityAtLastAccess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Engram{
		Kind:            KindFactual,
		CreatedAt:       now,
		AccessTimes:     []time.Time{now},
		Importance:      0.5,
		WorkingStrength: 0.5,
	}
	cfg := PresetDefault()

	r := Retrievability(e, cfg, now)
	assert.Equal(t, 1.0, r)
}

func TestRetrievabilityDecaysWithAge(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Engram{
		Kind:        KindEpisodic,
		CreatedAt:   created,
		AccessTimes: []time.Time{created},
		Importance:  0.2,
	}
	cfg := PresetDefault()

	r30 := Retrievability(e, cfg, created.AddDate(0, 0, 30))
	r90 := Retrievability(e, cfg, created.AddDate(0, 0, 90))

	assert.Less(t, r90, r30)
	assert.Greater(t, r30, 0.0)
	assert.LessOrEqual(t, r30, 1.0)
}

func TestComputeStabilityIncreasesWithAccessesAndImportance(t *testing.T) {
	cfg := PresetDefault()
	base := &Engram{Kind: KindFactual, Importance: 0.1}
	accessed := &Engram{
		Kind:        KindFactual,
		Importance:  0.1,
		AccessTimes: []time.Time{{}, {}, {}},
	}
	important := &Engram{Kind: KindFactual, Importance: 0.9}

	sBase := ComputeStability(base, cfg)
	sAccessed := ComputeStability(accessed, cfg)
	sImportant := ComputeStability(important, cfg)

	assert.Greater(t, sAccessed, sBase)
	assert.Greater(t, sImportant, sBase)
}

func TestEffectiveStrengthIsZeroWhenTracesAreZero(t *testing.T) {
	cfg := PresetDefault()
	e := &Engram{Kind: KindFactual, AccessTimes: []time.Time{time.Now()}}
	got := EffectiveStrength(e, cfg, time.Now())
	assert.Equal(t, 0.0, got)
}
