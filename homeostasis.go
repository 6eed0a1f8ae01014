package engram

// Downscale multiplies working_strength and core_strength of every
// non-pinned engram in engrams by factor, in place. factor must be in
// (0,1]; callers validate this before calling (BadArg at the facade
// layer). The relative ordering of working_strength+core_strength across
// the non-pinned subset is preserved exactly, since every non-pinned row
// is scaled by the same constant.
func Downscale(engrams []*Engram, factor float64) {
	for _, e := range engrams {
		if e.Pinned {
			continue
		}
		e.WorkingStrength *= factor
		e.CoreStrength *= factor
	}
}

// wordOverlap computes the Jaccard-like overlap |tokens(a) ∩ tokens(b)| /
// |tokens(b)|, used to decide whether retrieving X should suppress Y.
func wordOverlap(a, b string) float64 {
	bTokens := tokenize(b)
	if len(bTokens) == 0 {
		return 0
	}
	aSet := make(map[string]bool)
	for _, t := range tokenize(a) {
		aSet[t] = true
	}
	var shared int
	seen := make(map[string]bool)
	for _, t := range bTokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		if aSet[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(seen))
}

// SuppressCompetitors applies retrieval-induced suppression: for every
// candidate Y of the same kind as X with word overlap(X,Y) above
// cfg.OverlapThreshold, Y's working_strength is scaled down by
// (1 - suppression_factor*overlap). X itself and pinned rows are
// skipped. Returns the number of rows suppressed.
func SuppressCompetitors(x *Engram, candidates []*Engram, cfg Config) int {
	threshold := cfg.OverlapThreshold
	if threshold == 0 {
		threshold = 0.30
	}
	factor := cfg.SuppressionFactor
	if factor == 0 {
		factor = 0.05
	}

	var suppressed int
	for _, y := range candidates {
		if y.ID == x.ID || y.Pinned || y.Kind != x.Kind {
			continue
		}
		overlap := wordOverlap(x.Content, y.Content)
		if overlap <= threshold {
			continue
		}
		y.WorkingStrength *= 1 - factor*overlap
		suppressed++
	}
	return suppressed
}
