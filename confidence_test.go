package engram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentReliabilityPerKindBaseline(t *testing.T) {
	cfg := PresetDefault()
	e := &Engram{Kind: KindEmotional, Importance: 0}
	got := ContentReliability(e, cfg)
	assert.InDelta(t, 0.95, got, 1e-9)
}

func TestContentReliabilityPinnedIsLiftedToAtLeast095(t *testing.T) {
	cfg := PresetDefault()
	e := &Engram{Kind: KindOpinion, Importance: 0, Pinned: true}
	got := ContentReliability(e, cfg)
	assert.GreaterOrEqual(t, got, 0.95)
}

func TestContentReliabilityCappedAtOne(t *testing.T) {
	cfg := PresetDefault()
	e := &Engram{Kind: KindEmotional, Importance: 1, Pinned: true}
	got := ContentReliability(e, cfg)
	assert.LessOrEqual(t, got, 1.0)
}

func TestRetrievalSalienceNormalisesAgainstCandidateMax(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	e := &Engram{Kind: KindFactual, AccessTimes: []time.Time{now}, WorkingStrength: 0.5}
	max := EffectiveStrength(e, cfg, now)

	got := RetrievalSalience(e, cfg, now, &max)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestRetrievalSalienceSigmoidWithoutCandidateSet(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	e := &Engram{Kind: KindFactual, AccessTimes: []time.Time{now}, WorkingStrength: 0.5}

	got := RetrievalSalience(e, cfg, now, nil)
	assert.Greater(t, got, 0.0)
	assert.LessOrEqual(t, got, 1.0)
}

func TestConfidenceScoreWeighting(t *testing.T) {
	cfg := PresetDefault()
	got := ConfidenceScore(1.0, 0.0, cfg)
	assert.InDelta(t, 0.7, got, 1e-9)
}

func TestConfidenceLabelBuckets(t *testing.T) {
	assert.Equal(t, LabelCertain, ConfidenceLabelFor(0.85))
	assert.Equal(t, LabelLikely, ConfidenceLabelFor(0.65))
	assert.Equal(t, LabelUncertain, ConfidenceLabelFor(0.45))
	assert.Equal(t, LabelVague, ConfidenceLabelFor(0.1))
}
