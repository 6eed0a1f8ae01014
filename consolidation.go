package engram

import (
	"math"
	"math/rand"
	"time"
)

// ConsolidationReport summarises one consolidation cycle.
type ConsolidationReport struct {
	WorkingProcessed int
	ArchiveReplayed  int
	CoreDecayed      int
	PromotedToCore   int
	DemotedToArchive int
	ArchivedFromCore int
}

// Consolidate runs one Memory Chain consolidation cycle over dt days
// across the full engram set, mutating each engram's traces and layer
// in place, and returns a summary. rng supplies the interleaved-replay
// sample; pass a deterministic source in tests. dt = 0 is idempotent:
// no decay, no transfer, no replay, only the pinned-forced-to-Core and
// threshold rebalancing passes run (which are themselves no-ops if a
// prior cycle already settled the layer assignment).
func Consolidate(engrams []*Engram, dt float64, cfg Config, now time.Time, rng *rand.Rand) ConsolidationReport {
	var report ConsolidationReport

	mu1 := cfg.Mu1
	if mu1 == 0 {
		mu1 = 0.15
	}
	mu2 := cfg.Mu2
	if mu2 == 0 {
		mu2 = 0.005
	}
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = 0.08
	}
	rho := cfg.InterleaveRatio
	if rho == 0 {
		rho = 0.30
	}
	replayBoost := cfg.ReplayBoost
	if replayBoost == 0 {
		replayBoost = 0.01
	}
	promote := cfg.PromoteThreshold
	if promote == 0 {
		promote = 0.25
	}
	demote := cfg.DemoteThreshold
	if demote == 0 {
		demote = 0.05
	}
	archive := cfg.ArchiveThreshold
	if archive == 0 {
		archive = 0.15
	}

	if dt > 0 {
		// Step 1: Working engrams transfer r1 -> r2, then both decay.
		for _, e := range engrams {
			if e.Layer != LayerWorking || e.Pinned {
				continue
			}
			alphaEff := alpha * (0.2 + e.Importance*e.Importance)
			transfer := alphaEff * e.WorkingStrength * dt
			e.CoreStrength += transfer
			e.WorkingStrength *= math.Exp(-mu1 * dt)
			e.CoreStrength *= math.Exp(-mu2 * dt)
			e.ConsolidationCount++
			t := now
			e.LastConsolidated = &t
			report.WorkingProcessed++
		}

		// Step 2: interleaved replay over a random sample of Archive engrams.
		if rng != nil {
			var archiveIdx []int
			for i, e := range engrams {
				if e.Layer == LayerArchive && !e.Pinned {
					archiveIdx = append(archiveIdx, i)
				}
			}
			nSample := int(math.Round(float64(len(archiveIdx)) * rho))
			if nSample > 0 {
				rng.Shuffle(len(archiveIdx), func(i, j int) { archiveIdx[i], archiveIdx[j] = archiveIdx[j], archiveIdx[i] })
				for _, idx := range archiveIdx[:nSample] {
					e := engrams[idx]
					e.CoreStrength += replayBoost * (0.5 + e.Importance)
					report.ArchiveReplayed++
				}
			}
		}

		// Step 3: Core engrams decay with mu2 only, never mu1.
		for _, e := range engrams {
			if e.Layer != LayerCore || e.Pinned {
				continue
			}
			e.CoreStrength *= math.Exp(-mu2 * dt)
			report.CoreDecayed++
		}
	}

	// Step 4: rebalance layers by threshold. Pinned rows are forced to Core
	// regardless of dt, including on a dt=0 no-op cycle.
	for _, e := range engrams {
		if e.Pinned {
			if e.Layer != LayerCore {
				e.Layer = LayerCore
			}
			continue
		}
		switch e.Layer {
		case LayerWorking:
			if e.CoreStrength >= promote {
				e.Layer = LayerCore
				report.PromotedToCore++
			} else if e.WorkingStrength < archive && e.CoreStrength < archive {
				e.Layer = LayerArchive
				report.DemotedToArchive++
			}
		case LayerCore:
			if e.WorkingStrength+e.CoreStrength < demote {
				e.Layer = LayerArchive
				report.ArchivedFromCore++
			}
		}
	}

	return report
}
