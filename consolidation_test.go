package engram

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsolidateZeroDtIsIdempotent(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerWorking, WorkingStrength: 0.5, CoreStrength: 0.1, Importance: 0.5}
	Consolidate([]*Engram{e}, 1.0, cfg, now, rng)
	after1 := *e

	e2 := after1
	Consolidate([]*Engram{&e2}, 0, cfg, now, rng)

	assert.Equal(t, after1.WorkingStrength, e2.WorkingStrength)
	assert.Equal(t, after1.CoreStrength, e2.CoreStrength)
	assert.Equal(t, after1.ConsolidationCount, e2.ConsolidationCount)
}

func TestConsolidateTransfersWorkingToCoreStrength(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerWorking, WorkingStrength: 0.8, CoreStrength: 0, Importance: 0.5}
	report := Consolidate([]*Engram{e}, 5.0, cfg, now, rng)

	assert.Greater(t, e.CoreStrength, 0.0)
	assert.Equal(t, 1, e.ConsolidationCount)
	assert.Equal(t, 1, report.WorkingProcessed)
	assert.NotNil(t, e.LastConsolidated)
}

func TestConsolidatePromotesWorkingToCore(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerWorking, WorkingStrength: 0.9, CoreStrength: 0.26, Importance: 0.9}
	Consolidate([]*Engram{e}, 1.0, cfg, now, rng)

	assert.Equal(t, LayerCore, e.Layer)
}

func TestConsolidateDemotesStaleWorkingToArchive(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerWorking, WorkingStrength: 0.01, CoreStrength: 0.01, Importance: 0.1}
	Consolidate([]*Engram{e}, 10.0, cfg, now, rng)

	assert.Equal(t, LayerArchive, e.Layer)
}

func TestConsolidateNeverAppliesMu1ToCoreLayer(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerCore, WorkingStrength: 0.5, CoreStrength: 0.5, Importance: 0.5}
	Consolidate([]*Engram{e}, 5.0, cfg, now, rng)

	// Core-layer working_strength is untouched by consolidation; only mu2
	// decay applies to core_strength.
	assert.Equal(t, 0.5, e.WorkingStrength)
	assert.Less(t, e.CoreStrength, 0.5)
}

func TestConsolidatePinnedForcedToCore(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	e := &Engram{ID: 1, Layer: LayerArchive, WorkingStrength: 0.01, CoreStrength: 0.01, Importance: 0.1, Pinned: true}
	Consolidate([]*Engram{e}, 1.0, cfg, now, rng)

	assert.Equal(t, LayerCore, e.Layer)
}

func TestConsolidateReplaysArchiveSample(t *testing.T) {
	cfg := PresetDefault()
	cfg.InterleaveRatio = 1.0
	now := time.Now()
	rng := rand.New(rand.NewSource(42))

	var archived []*Engram
	for i := 0; i < 10; i++ {
		archived = append(archived, &Engram{ID: int64(i), Layer: LayerArchive, CoreStrength: 0.01, Importance: 0.3})
	}

	report := Consolidate(archived, 1.0, cfg, now, rng)

	assert.Equal(t, 10, report.ArchiveReplayed)
	for _, e := range archived {
		assert.Greater(t, e.CoreStrength, 0.01)
	}
}
