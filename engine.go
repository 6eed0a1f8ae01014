package engram

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// Engine is the cognitive memory engine façade. It is single-writer,
// multi-reader: mutating operations (Add, Consolidate, Reward,
// Downscale, Forget, Pin, Unpin) serialise behind a single writer lock
// that also encloses their Store writes, so readers never observe a
// half-updated engram. Recall and Get also take the writer lock, since
// they record accesses (and Recall applies retrieval-induced
// suppression). Stats, ByKind and ByLayer take the read lock and may run
// concurrently with each other.
type Engine struct {
	store  *Store
	config Config
	clock  Clock
	mu     sync.RWMutex
	rng    *rand.Rand

	anomaly       *BaselineTracker
	cancelWorker  func()
}

// Open creates an Engine backed by a SQLite file at cfg.DBPath, running
// migrations as needed. If cfg.ConsolidationInterval is non-zero, a
// background goroutine calls Consolidate on that cadence until Close.
func Open(cfg Config) (*Engine, error) {
	return OpenWithClock(cfg, SystemClock{})
}

// OpenWithClock is Open with an injectable Clock, for deterministic
// tests that need to control "now" across multiple calls.
func OpenWithClock(cfg Config, clock Clock) (*Engine, error) {
	cfg.ApplyDefaults()

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:   store,
		config:  cfg,
		clock:   clock,
		rng:     rand.New(rand.NewSource(1)),
		anomaly: NewBaselineTracker(cfg.AnomalyWindowSize),
	}

	if cfg.ConsolidationInterval > 0 {
		e.startConsolidationWorker(cfg.ConsolidationInterval)
	}

	log.Printf("[engram] opened store %s", cfg.DBPath)
	return e, nil
}

func (e *Engine) startConsolidationWorker(interval time.Duration) {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				days := interval.Hours() / 24.0
				if _, err := e.Consolidate(days); err != nil {
					log.Printf("[engram] background consolidate failed: %v", err)
				}
			case <-stop:
				return
			}
		}
	}()
	e.cancelWorker = func() { close(stop) }
}

// Close stops any background worker and closes the backing store.
func (e *Engine) Close() error {
	if e.cancelWorker != nil {
		e.cancelWorker()
	}
	return e.store.Close()
}

// Add creates a new engram and returns its ID.
func (e *Engine) Add(content string, kind Kind, opts AddOptions) (int64, error) {
	if !validKinds[kind] {
		return 0, &BadArgError{Arg: "kind", Reason: "unknown kind"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	importance := DefaultImportance()[kind]
	if opts.Importance != nil {
		if *opts.Importance < 0 || *opts.Importance > 1 {
			return 0, &BadArgError{Arg: "importance", Reason: "must be in [0,1]"}
		}
		importance = *opts.Importance
	}

	eng := &Engram{
		Content:         content,
		Kind:            kind,
		Layer:           LayerWorking,
		CreatedAt:       now,
		WorkingStrength: 0.5,
		CoreStrength:    0,
		Importance:      importance,
		Source:          opts.Source,
		GraphLinks:      opts.Tags,
		Embedding:       opts.Embedding,
	}

	id, err := e.store.InsertEngram(eng, now)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get loads a single engram and records an access against it.
func (e *Engine) Get(id int64) (*Engram, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	eng, err := e.store.GetEngram(id)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	if err := e.store.RecordAccess(id, now); err != nil {
		return nil, err
	}
	eng.AccessTimes = append(eng.AccessTimes, now)
	return eng, nil
}

// AddGraphLink attaches an (entity, relation) edge to an existing
// engram, for links discovered after the engram was first added.
func (e *Engine) AddGraphLink(id int64, entity, relation string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.AddGraphLink(id, entity, relation)
}

// ByKind returns every engram of the given kind, in no particular
// order — a plain filtered iteration, independent of the
// activation-ranked Recall pipeline.
func (e *Engine) ByKind(kind Kind) ([]*Engram, error) {
	if !validKinds[kind] {
		return nil, &BadArgError{Arg: "kind", Reason: "unknown kind"}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ByKind(kind)
}

// ByLayer returns every engram in the given layer, in no particular
// order — a plain filtered iteration, independent of the
// activation-ranked Recall pipeline.
func (e *Engine) ByLayer(layer Layer) ([]*Engram, error) {
	if !validLayers[layer] {
		return nil, &BadArgError{Arg: "layer", Reason: "unknown layer"}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ByLayer(layer)
}

// Recall runs the full recall pipeline: FTS candidate window, activation
// scoring, confidence annotation, optional one-hop graph expansion, and
// finally an access-log side effect plus retrieval-induced suppression
// driven by the top survivor.
func (e *Engine) Recall(opts SearchOptions) ([]SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	window := 4 * limit
	if window < 20 {
		window = 20
	}

	candidates, err := e.store.FTSCandidates(opts.Query, window)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if err := e.hydrateAccessTimes(c); err != nil {
			return nil, err
		}
	}

	neighborsOf := func(id int64) ([]*Engram, error) {
		neighbors, err := e.store.Neighbors(id)
		if err != nil {
			return nil, err
		}
		return neighbors, nil
	}

	results, survivors, err := runSearch(candidates, neighborsOf, opts, e.config, now)
	if err != nil {
		return nil, err
	}

	for _, s := range survivors {
		if err := e.store.RecordAccess(s.ID, now); err != nil {
			return nil, err
		}
	}

	if len(survivors) > 0 {
		top := survivors[0]
		all, err := e.store.AllEngrams()
		if err != nil {
			return nil, err
		}
		SuppressCompetitors(top, all, e.config)
		if err := e.store.SaveEngrams(all); err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (e *Engine) hydrateAccessTimes(eng *Engram) error {
	full, err := e.store.GetEngram(eng.ID)
	if err != nil {
		return err
	}
	eng.AccessTimes = full.AccessTimes
	eng.GraphLinks = full.GraphLinks
	return nil
}

// Consolidate runs one Memory Chain consolidation cycle over dt days.
func (e *Engine) Consolidate(dt float64) (ConsolidationReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.store.AllEngrams()
	if err != nil {
		return ConsolidationReport{}, err
	}

	now := e.clock.Now()
	report := Consolidate(all, dt, e.config, now, e.rng)

	if err := e.store.SaveEngrams(all); err != nil {
		return ConsolidationReport{}, err
	}
	return report, nil
}

// Reward detects polarity in feedback and applies reward-modulated
// learning to the recentN most-recently-accessed engrams.
func (e *Engine) Reward(feedback string, recentN int) (Polarity, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	polarity, confidence := DetectFeedback(feedback)
	if polarity == PolarityNeutral {
		return polarity, 0, nil
	}

	all, err := e.store.AllEngrams()
	if err != nil {
		return polarity, 0, err
	}

	affected := ApplyReward(all, polarity, confidence, recentN, e.config)
	if affected == 0 {
		return polarity, 0, nil
	}
	if err := e.store.SaveEngrams(all); err != nil {
		return polarity, 0, err
	}
	return polarity, affected, nil
}

// DownscaleResult summarises one homeostatic downscaling pass.
type DownscaleResult struct {
	NScaled   int
	AvgBefore float64
	AvgAfter  float64
}

// Downscale multiplies every non-pinned engram's traces by factor,
// implementing synaptic downscaling homeostasis. factor must be in
// (0,1].
func (e *Engine) Downscale(factor float64) (DownscaleResult, error) {
	if factor <= 0 || factor > 1 {
		return DownscaleResult{}, &BadArgError{Arg: "factor", Reason: "must be in (0,1]"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.store.AllEngrams()
	if err != nil {
		return DownscaleResult{}, err
	}

	var before, after float64
	var nScaled int
	for _, eng := range all {
		if !eng.Pinned {
			before += eng.WorkingStrength + eng.CoreStrength
			nScaled++
		}
	}
	Downscale(all, factor)
	for _, eng := range all {
		if !eng.Pinned {
			after += eng.WorkingStrength + eng.CoreStrength
		}
	}

	if err := e.store.SaveEngrams(all); err != nil {
		return DownscaleResult{}, err
	}

	result := DownscaleResult{NScaled: nScaled}
	n := float64(nScaled)
	if n > 0 {
		result.AvgBefore = before / n
		result.AvgAfter = after / n
	}
	return result, nil
}

// Pin marks an engram pinned and forces it into the Core layer.
func (e *Engine) Pin(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	eng, err := e.store.GetEngram(id)
	if err != nil {
		return err
	}
	eng.Pinned = true
	eng.Layer = LayerCore
	return e.store.SaveEngram(eng)
}

// Unpin clears the pinned flag. The layer is left as-is until the next
// consolidation cycle recomputes it.
func (e *Engine) Unpin(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	eng, err := e.store.GetEngram(id)
	if err != nil {
		return err
	}
	eng.Pinned = false
	return e.store.SaveEngram(eng)
}

// Forget deletes a single engram by id, or, if id is nil, archives every
// non-pinned engram whose effective strength falls below threshold.
func (e *Engine) Forget(id *int64, threshold *float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id != nil {
		if err := e.store.DeleteEngram(*id); err != nil {
			return 0, err
		}
		return 1, nil
	}

	th := e.config.ForgetThreshold
	if threshold != nil {
		th = *threshold
	}

	all, err := e.store.AllEngrams()
	if err != nil {
		return 0, err
	}

	now := e.clock.Now()
	var n int
	for _, eng := range all {
		if eng.Pinned || eng.Layer == LayerArchive {
			continue
		}
		if EffectiveStrength(eng, e.config, now) < th {
			eng.Layer = LayerArchive
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := e.store.SaveEngrams(all); err != nil {
		return 0, err
	}
	return n, nil
}

// Export copies the backing SQLite file to destPath, taking the writer
// lock for the duration so the snapshot is consistent.
func (e *Engine) Export(destPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.exportTo(destPath)
}

// Stats summarises the current state of the store.
func (e *Engine) Stats() (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all, err := e.store.AllEngrams()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ByLayer: make(map[Layer]int),
		ByKind:  make(map[Kind]int),
	}
	var sumImportance, sumWorking, sumCore float64
	for _, eng := range all {
		stats.TotalEngrams++
		stats.ByLayer[eng.Layer]++
		stats.ByKind[eng.Kind]++
		if eng.Pinned {
			stats.Pinned++
		}
		sumImportance += eng.Importance
		sumWorking += eng.WorkingStrength
		sumCore += eng.CoreStrength
	}
	if stats.TotalEngrams > 0 {
		n := float64(stats.TotalEngrams)
		stats.AvgImportance = sumImportance / n
		stats.AvgWorkingStrength = sumWorking / n
		stats.AvgCoreStrength = sumCore / n
	}
	return stats, nil
}

// ObserveMetric feeds a value into the engine's anomaly baseline
// tracker for the named metric (e.g. "recall_latency_ms",
// "engrams_added_per_hour") — a host-facing hook, not used internally by
// any recall or consolidation path.
func (e *Engine) ObserveMetric(metric string, value float64) {
	e.anomaly.Observe(metric, value)
}

// IsAnomaly reports whether value is an anomaly for metric given the
// engine's accumulated baseline.
func (e *Engine) IsAnomaly(metric string, value float64) bool {
	return e.anomaly.IsAnomaly(metric, value, e.config.AnomalySigmaThreshold, e.config.AnomalyMinSamples)
}
