package engram

import (
	"sort"
	"strings"
)

// Polarity is the outcome of lexicon-based feedback detection.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// Bilingual (Chinese + English) feedback lexicon. It is a fixed
// package-level slice, not a Config field: Config has no lexicon
// setting, so extending it means editing these lists.
var positiveSignals = []string{
	"好的", "不错", "对", "对的", "很好", "棒", "可以", "行",
	"good", "nice", "correct", "yes", "right", "exactly", "perfect",
	"great", "thanks", "thank you", "awesome", "love it", "well done",
}

var negativeSignals = []string{
	"不对", "别这样", "错", "错了", "不行", "不好", "停", "别",
	"wrong", "no", "don't", "stop", "bad", "incorrect", "nope",
	"that's wrong", "not right", "undo", "cancel",
}

// DetectFeedback scans text for bilingual polarity signals and returns
// the net polarity and a confidence derived from match count: 1 match →
// 0.5, 2 → 0.75, 3+ capped at 0.95. Equal opposing match counts are
// reported neutral with low confidence.
func DetectFeedback(text string) (Polarity, float64) {
	lower := strings.ToLower(strings.TrimSpace(text))

	var posMatches, negMatches int
	for _, s := range positiveSignals {
		if strings.Contains(lower, strings.ToLower(s)) {
			posMatches++
		}
	}
	for _, s := range negativeSignals {
		if strings.Contains(lower, strings.ToLower(s)) {
			negMatches++
		}
	}

	if posMatches == 0 && negMatches == 0 {
		return PolarityNeutral, 0.0
	}

	switch {
	case posMatches > negMatches:
		return PolarityPositive, confidenceFromMatches(posMatches)
	case negMatches > posMatches:
		return PolarityNegative, confidenceFromMatches(negMatches)
	default:
		return PolarityNeutral, 0.1
	}
}

func confidenceFromMatches(n int) float64 {
	c := 0.5 + 0.25*float64(n-1)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// ApplyReward applies reward-modulated learning to the recentN
// most-recently-accessed engrams in engrams (which need not be
// pre-sorted), using an eligibility-trace discount that favours the
// most recently accessed over earlier ones. Pinned rows are exempt.
// Returns the number of engrams modified. No-op if polarity is neutral,
// confidence is below cfg.RewardMinConfidence, or engrams is empty.
func ApplyReward(engrams []*Engram, polarity Polarity, confidence float64, recentN int, cfg Config) int {
	if polarity == PolarityNeutral {
		return 0
	}
	minConf := cfg.RewardMinConfidence
	if minConf == 0 {
		minConf = 0.3
	}
	if confidence < minConf {
		return 0
	}
	if recentN <= 0 {
		recentN = cfg.RewardRecentN
		if recentN == 0 {
			recentN = 3
		}
	}
	if len(engrams) == 0 {
		return 0
	}

	sorted := make([]*Engram, len(engrams))
	copy(sorted, engrams)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastAccess().After(sorted[j].LastAccess())
	})
	if recentN < len(sorted) {
		sorted = sorted[:recentN]
	}

	magnitude := cfg.RewardMagnitude
	if magnitude == 0 {
		magnitude = 0.15
	}
	m := magnitude * confidence

	var affected int
	for i, e := range sorted {
		if e.Pinned {
			continue
		}
		discount := 1.0 / (1.0 + 0.5*float64(i))

		if polarity == PolarityPositive {
			e.Importance = clamp01(e.Importance + m*discount)
			e.WorkingStrength += 0.05 * discount
		} else {
			e.Importance = clamp01(e.Importance - m*discount)
			e.WorkingStrength *= 1 - 0.1*discount
		}
		affected++
	}
	return affected
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
