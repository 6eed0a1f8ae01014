package engram

import (
	"math"
	"strings"
	"time"
)

// tokenize splits s into lowercase whitespace-delimited tokens. Used for
// spreading activation's case-insensitive substring match, independent
// of the Store's FTS5 tokeniser (design note "FTS tokenisation").
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	return fields
}

// BaseLevelActivation computes the ACT-R base-level activation:
//
//	B = ln(Σ_k max(now-t_k, 0.001)^(-d))
//
// Ages are measured in raw seconds, matching the original's
// base_level_activation() floor of 0.001 seconds — not days — so the
// configured MinActivation floor stays reachable on realistic
// timescales instead of requiring millennia of staleness to trip.
// Returns math.Inf(-1) if the engram has no access times — an
// unretrievable engram.
func BaseLevelActivation(e *Engram, cfg Config, now time.Time) float64 {
	if len(e.AccessTimes) == 0 {
		return math.Inf(-1)
	}

	d := cfg.ActivationDecay
	if d == 0 {
		d = 0.5
	}

	var total float64
	for _, t := range e.AccessTimes {
		age := now.Sub(t).Seconds()
		if age < 0.001 {
			age = 0.001
		}
		total += math.Pow(age, -d)
	}
	if total <= 0 {
		return math.Inf(-1)
	}
	return math.Log(total)
}

// SpreadingActivation computes context-driven spreading activation:
//
//	S = w_ctx * (|context ∩ content_tokens| / |context|)
//
// Matching is case-insensitive substring match over whitespace-delimited
// content tokens.
func SpreadingActivation(e *Engram, contextKeywords []string, wCtx float64) float64 {
	if len(contextKeywords) == 0 {
		return 0
	}

	contentLower := strings.ToLower(e.Content)
	var matches int
	for _, kw := range contextKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(contentLower, strings.ToLower(kw)) {
			matches++
		}
	}

	return wCtx * (float64(matches) / float64(len(contextKeywords)))
}

// RetrievalActivation is the total ACT-R retrieval activation:
//
//	A = B + S_ctx + w_imp*importance
//
// Returns math.Inf(-1) if the base level is -inf (no accesses).
func RetrievalActivation(e *Engram, cfg Config, contextKeywords []string, now time.Time) float64 {
	b := BaseLevelActivation(e, cfg, now)
	if math.IsInf(b, -1) {
		return b
	}

	wCtx := cfg.ContextWeight
	if wCtx == 0 {
		wCtx = 1.5
	}
	wImp := cfg.ImportanceWeight
	if wImp == 0 {
		wImp = 0.5
	}

	s := SpreadingActivation(e, contextKeywords, wCtx)
	return b + s + wImp*e.Importance
}

// minActivation resolves the configured activation floor, defaulting to
// -10 when unset.
func minActivation(cfg Config) float64 {
	if cfg.MinActivation == 0 {
		return -10.0
	}
	return cfg.MinActivation
}
