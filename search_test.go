package engram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSearchRejectsUnknownKindFilter(t *testing.T) {
	cfg := PresetDefault()
	bogus := Kind("nonexistent")
	_, _, err := runSearch(nil, nil, SearchOptions{Kind: &bogus, Limit: 5}, cfg, time.Now())
	require.Error(t, err)
	var badArg *BadArgError
	assert.ErrorAs(t, err, &badArg)
}

func TestRunSearchDefaultsLimitToTen(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	var pool []*Engram
	for i := 0; i < 15; i++ {
		pool = append(pool, &Engram{
			ID:              int64(i + 1),
			Content:         "filler content",
			Kind:            KindFactual,
			WorkingStrength: 1.0,
			Importance:      0.5,
			AccessTimes:     []time.Time{now},
		})
	}
	results, _, err := runSearch(pool, nil, SearchOptions{}, cfg, now)
	require.NoError(t, err)
	assert.Len(t, results, 10)
}

func TestRunSearchFiltersBelowMinActivation(t *testing.T) {
	cfg := PresetDefault()
	cfg.MinActivation = -3.0
	now := time.Now()
	stale := &Engram{
		ID:              1,
		Content:         "ancient forgotten fact",
		Kind:            KindFactual,
		WorkingStrength: 0.01,
		Importance:      0.01,
		AccessTimes:     []time.Time{now.Add(-1000 * 24 * time.Hour)},
	}
	results, _, err := runSearch([]*Engram{stale}, nil, SearchOptions{Limit: 10}, cfg, now)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunSearchFiltersByKind(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	a := &Engram{ID: 1, Content: "fact one", Kind: KindFactual, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}
	b := &Engram{ID: 2, Content: "episode one", Kind: KindEpisodic, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}
	wantKind := KindEpisodic
	results, _, err := runSearch([]*Engram{a, b}, nil, SearchOptions{Limit: 10, Kind: &wantKind}, cfg, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestRunSearchFiltersByMinConfidence(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	weak := &Engram{ID: 1, Content: "low confidence opinion", Kind: KindOpinion, WorkingStrength: 1, Importance: 0.01, AccessTimes: []time.Time{now}}
	results, _, err := runSearch([]*Engram{weak}, nil, SearchOptions{Limit: 10, MinConfidence: 0.99}, cfg, now)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunSearchGraphExpandFillsRemainingRoom(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	seed := &Engram{ID: 1, Content: "seed fact about vercel", Kind: KindFactual, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}
	neighbor := &Engram{ID: 2, Content: "linked neighbor fact", Kind: KindFactual, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}

	neighborsOf := func(id int64) ([]*Engram, error) {
		if id == 1 {
			return []*Engram{neighbor}, nil
		}
		return nil, nil
	}

	results, _, err := runSearch([]*Engram{seed}, neighborsOf, SearchOptions{Limit: 5, GraphExpand: true}, cfg, now)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[1].ID)
}

func TestRunSearchGraphExpandSkipsAlreadySeen(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	seed := &Engram{ID: 1, Content: "seed", Kind: KindFactual, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}
	already := &Engram{ID: 2, Content: "already present", Kind: KindFactual, WorkingStrength: 1, Importance: 0.5, AccessTimes: []time.Time{now}}

	neighborsOf := func(id int64) ([]*Engram, error) {
		return []*Engram{already}, nil
	}

	results, _, err := runSearch([]*Engram{seed, already}, neighborsOf, SearchOptions{Limit: 5, GraphExpand: true}, cfg, now)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunSearchTruncatesToLimit(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	var pool []*Engram
	for i := 0; i < 5; i++ {
		pool = append(pool, &Engram{
			ID:              int64(i + 1),
			Content:         "repeatable fact content",
			Kind:            KindFactual,
			WorkingStrength: 1,
			Importance:      0.5,
			AccessTimes:     []time.Time{now},
		})
	}
	results, survivors, err := runSearch(pool, nil, SearchOptions{Limit: 2}, cfg, now)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, survivors, 2)
}

func TestRunSearchTieBreaksByEffectiveStrengthThenRecency(t *testing.T) {
	cfg := PresetDefault()
	now := time.Now()
	older := &Engram{
		ID: 1, Content: "tie", Kind: KindFactual, WorkingStrength: 0.3, Importance: 0.5,
		CreatedAt:   now.Add(-48 * time.Hour),
		AccessTimes: []time.Time{now},
	}
	newer := &Engram{
		ID: 2, Content: "tie", Kind: KindFactual, WorkingStrength: 0.3, Importance: 0.5,
		CreatedAt:   now.Add(-1 * time.Hour),
		AccessTimes: []time.Time{now},
	}
	results, _, err := runSearch([]*Engram{older, newer}, nil, SearchOptions{Limit: 10}, cfg, now)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
}
