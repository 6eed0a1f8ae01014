package engram

import "time"

// Kind classifies what sort of thing an engram records. The caller
// supplies it directly at Add time; the engine never infers it from
// content.
type Kind string

const (
	KindFactual    Kind = "factual"
	KindEpisodic   Kind = "episodic"
	KindRelational Kind = "relational"
	KindEmotional  Kind = "emotional"
	KindProcedural Kind = "procedural"
	KindOpinion    Kind = "opinion"
)

// validKinds rejects unknown kind strings with BadArg.
var validKinds = map[Kind]bool{
	KindFactual:    true,
	KindEpisodic:   true,
	KindRelational: true,
	KindEmotional:  true,
	KindProcedural: true,
	KindOpinion:    true,
}

// Layer is the coarse lifecycle bucket an engram currently occupies.
// Consolidation is the only routine permitted to change it, outside of
// explicit Pin/Unpin and prune-to-archive.
type Layer string

const (
	LayerCore    Layer = "core"
	LayerWorking Layer = "working"
	LayerArchive Layer = "archive"
)

// validLayers rejects unknown layer strings with BadArg.
var validLayers = map[Layer]bool{
	LayerCore:    true,
	LayerWorking: true,
	LayerArchive: true,
}

// DefaultDecayRates returns the per-kind Ebbinghaus decay rate (per day).
// Lower rate = higher stability = slower forgetting.
func DefaultDecayRates() map[Kind]float64 {
	return map[Kind]float64{
		KindFactual:    0.03,
		KindEpisodic:   0.10,
		KindRelational: 0.02,
		KindEmotional:  0.01,
		KindProcedural: 0.01,
		KindOpinion:    0.05,
	}
}

// DefaultImportance returns the per-kind importance assigned at creation
// when the caller does not supply one explicitly.
func DefaultImportance() map[Kind]float64 {
	return map[Kind]float64{
		KindFactual:    0.3,
		KindEpisodic:   0.4,
		KindRelational: 0.6,
		KindEmotional:  0.9,
		KindProcedural: 0.5,
		KindOpinion:    0.3,
	}
}

// DefaultReliability returns the per-kind content-reliability baseline
// used by the confidence scorer. It does not depend on time.
func DefaultReliability() map[Kind]float64 {
	return map[Kind]float64{
		KindFactual:    0.85,
		KindEpisodic:   0.90,
		KindRelational: 0.75,
		KindEmotional:  0.95,
		KindProcedural: 0.90,
		KindOpinion:    0.60,
	}
}

// GraphLink is one (entity-token, relation-token) edge attached to an
// engram. Both tokens are opaque strings the engine never interprets or
// normalises; entity resolution is an external concern.
type GraphLink struct {
	Entity   string
	Relation string
}

// Engram is the primary stored entity: a single memory with its decay
// traces, metadata, and graph linkage.
type Engram struct {
	ID                 int64
	Content            string
	Kind               Kind
	Layer              Layer
	CreatedAt          time.Time
	AccessTimes        []time.Time
	WorkingStrength    float64 // r₁ — fast-decaying trace
	CoreStrength       float64 // r₂ — slow-growing/slow-decaying trace
	Importance         float64 // [0,1]
	Pinned             bool
	ConsolidationCount int
	LastConsolidated   *time.Time
	Source             string
	GraphLinks         []GraphLink

	// Embedding is an optional auxiliary vector a host may attach to an
	// engram from its own embedding model. It is persisted verbatim but
	// never computed or read for scoring by this engine — embedding-model
	// integration is out of scope.
	Embedding []float32
}

// LastAccess returns the most recent access timestamp, or CreatedAt if
// the engram has no access beyond the one recorded at creation.
func (e *Engram) LastAccess() time.Time {
	if len(e.AccessTimes) == 0 {
		return e.CreatedAt
	}
	return e.AccessTimes[len(e.AccessTimes)-1]
}

// AddOptions carries the optional arguments to Engine.Add.
type AddOptions struct {
	Importance *float64 // nil = resolve from DefaultImportance[kind]
	Source     string
	Tags       []GraphLink // initial graph links, e.g. entities mentioned at creation
	Embedding  []float32   // optional host-supplied auxiliary vector
}

// Stats summarises the current state of the store for monitoring.
type Stats struct {
	TotalEngrams       int
	ByLayer            map[Layer]int
	ByKind             map[Kind]int
	Pinned             int
	AvgImportance      float64
	AvgWorkingStrength float64
	AvgCoreStrength    float64
}
