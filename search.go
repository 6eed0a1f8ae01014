package engram

import (
	"sort"
	"time"
)

// SearchOptions carries the recall pipeline's inputs.
type SearchOptions struct {
	Query           string
	Limit           int
	ContextKeywords []string
	Kind            *Kind
	MinConfidence   float64
	GraphExpand     bool
}

// SearchResult is one scored, annotated survivor of the recall pipeline.
type SearchResult struct {
	ID                int64
	Content           string
	Kind              Kind
	Layer             Layer
	Activation        float64
	Confidence        float64
	Reliability       float64
	Salience          float64
	Label             ConfidenceLabel
	EffectiveStrength float64
	AgeDays           float64
	Importance        float64
	Description       string
}

// scoredCandidate pairs an engram with its retrieval activation for the
// duration of one search call.
type scoredCandidate struct {
	e *Engram
	a float64
}

// sortByActivation orders candidates by activation descending, breaking
// ties by effective strength descending, then created_at descending —
// the exact tie-break chain the recall pipeline specifies.
func sortByActivation(candidates []scoredCandidate, cfg Config, now time.Time) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].a != candidates[j].a {
			return candidates[i].a > candidates[j].a
		}
		si := EffectiveStrength(candidates[i].e, cfg, now)
		sj := EffectiveStrength(candidates[j].e, cfg, now)
		if si != sj {
			return si > sj
		}
		return candidates[i].e.CreatedAt.After(candidates[j].e.CreatedAt)
	})
}

// runSearch executes the recall pipeline (store window -> activation ->
// filter -> sort -> annotate -> filter -> graph expand -> truncate)
// against an already-loaded candidate pool and returns the annotated
// results plus the underlying engrams in the same order, so the caller
// can record accesses and drive retrieval-induced suppression from the
// top survivor.
func runSearch(candidates []*Engram, neighborsOf func(id int64) ([]*Engram, error), opts SearchOptions, cfg Config, now time.Time) ([]SearchResult, []*Engram, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	if opts.Kind != nil && !validKinds[*opts.Kind] {
		return nil, nil, &BadArgError{Arg: "kind", Reason: "unknown kind"}
	}

	keywords := append([]string{}, opts.ContextKeywords...)
	keywords = append(keywords, tokenize(opts.Query)...)

	minAct := minActivation(cfg)

	score := func(pool []*Engram) []scoredCandidate {
		var out []scoredCandidate
		for _, e := range pool {
			a := RetrievalActivation(e, cfg, keywords, now)
			if a < minAct {
				continue
			}
			out = append(out, scoredCandidate{e, a})
		}
		sortByActivation(out, cfg, now)
		return out
	}

	survivors := score(candidates)

	var maxEff *float64
	for _, sv := range survivors {
		eff := EffectiveStrength(sv.e, cfg, now)
		if maxEff == nil || eff > *maxEff {
			m := eff
			maxEff = &m
		}
	}

	annotate := func(sv scoredCandidate) SearchResult {
		rel := ContentReliability(sv.e, cfg)
		sal := RetrievalSalience(sv.e, cfg, now, maxEff)
		combined := ConfidenceScore(rel, sal, cfg)
		return SearchResult{
			ID:                sv.e.ID,
			Content:           sv.e.Content,
			Kind:              sv.e.Kind,
			Layer:             sv.e.Layer,
			Activation:        sv.a,
			Confidence:        combined,
			Reliability:       rel,
			Salience:          sal,
			Label:             ConfidenceLabelFor(combined),
			EffectiveStrength: EffectiveStrength(sv.e, cfg, now),
			AgeDays:           AgeDays(sv.e, now),
			Importance:        sv.e.Importance,
			Description:       confidenceDescription(rel, sal),
		}
	}

	var results []SearchResult
	var survivorEngrams []*Engram
	appendSurvivor := func(sv scoredCandidate) bool {
		if opts.Kind != nil && sv.e.Kind != *opts.Kind {
			return false
		}
		r := annotate(sv)
		if opts.MinConfidence > 0 && r.Confidence < opts.MinConfidence {
			return false
		}
		results = append(results, r)
		survivorEngrams = append(survivorEngrams, sv.e)
		return true
	}

	for _, sv := range survivors {
		appendSurvivor(sv)
	}

	if opts.GraphExpand && len(results) > 0 && len(results) < limit && neighborsOf != nil {
		neighbors, err := neighborsOf(results[0].ID)
		if err != nil {
			return nil, nil, err
		}
		seen := make(map[int64]bool)
		for _, r := range results {
			seen[r.ID] = true
		}
		var pool []*Engram
		for _, n := range neighbors {
			if !seen[n.ID] {
				pool = append(pool, n)
			}
		}
		expanded := score(pool)
		for _, sv := range expanded {
			if len(results) >= limit {
				break
			}
			appendSurvivor(sv)
		}
	}

	if len(results) > limit {
		results = results[:limit]
		survivorEngrams = survivorEngrams[:limit]
	}

	return results, survivorEngrams, nil
}
