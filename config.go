package engram

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable constant for the five dynamical models, plus
// the storage and scheduling parameters needed to run the engine
// end to end. Configuration is static: there is no learned parameter
// tuning (spec.md §1 Non-goals).
type Config struct {
	// Storage
	DBPath string `yaml:"db_path"`

	// Decay & stability (§4.2)
	DecayRates map[Kind]float64 `yaml:"decay_rates"`

	// Activation (§4.3)
	ActivationDecay   float64 `yaml:"activation_decay"`   // d in t^-d, default 0.5
	ContextWeight     float64 `yaml:"context_weight"`     // w_ctx, default 1.5
	ImportanceWeight  float64 `yaml:"importance_weight"`  // w_imp, default 0.5
	MinActivation     float64 `yaml:"min_activation"`     // A_min, default -10

	// Consolidation (§4.4)
	Mu1                           float64 `yaml:"mu1"`                             // working decay rate, default 0.15
	Mu2                           float64 `yaml:"mu2"`                             // core decay rate, default 0.005
	Alpha                         float64 `yaml:"alpha"`                           // consolidation rate, default 0.08
	ConsolidationImportanceFloor  float64 `yaml:"consolidation_importance_floor"`  // default 0.2
	InterleaveRatio               float64 `yaml:"interleave_ratio"`                // rho, default 0.30
	ReplayBoost                   float64 `yaml:"replay_boost"`                    // default 0.01
	PromoteThreshold              float64 `yaml:"promote_threshold"`               // default 0.25
	DemoteThreshold                float64 `yaml:"demote_threshold"`               // default 0.05
	ArchiveThreshold               float64 `yaml:"archive_threshold"`              // default 0.15

	// Homeostasis (§4.5)
	DownscaleFactor    float64 `yaml:"downscale_factor"`    // default 0.95
	SuppressionFactor  float64 `yaml:"suppression_factor"`  // default 0.05
	OverlapThreshold   float64 `yaml:"overlap_threshold"`   // default 0.30

	// Reward (§4.6)
	RewardMagnitude         float64 `yaml:"reward_magnitude"`          // default 0.15
	RewardRecentN           int     `yaml:"reward_recent_n"`           // default 3
	RewardStrengthBoost     float64 `yaml:"reward_strength_boost"`     // default 0.05
	RewardSuppression       float64 `yaml:"reward_suppression"`        // default 0.1
	RewardTemporalDiscount  float64 `yaml:"reward_temporal_discount"`  // default 0.5
	RewardMinConfidence     float64 `yaml:"reward_min_confidence"`     // default 0.3

	// Confidence (§4.7)
	DefaultReliability         map[Kind]float64 `yaml:"default_reliability"`
	ConfidenceReliabilityWeight float64         `yaml:"confidence_reliability_weight"` // default 0.7
	ConfidenceSalienceWeight    float64         `yaml:"confidence_salience_weight"`    // default 0.3
	SalienceSigmoidK            float64         `yaml:"salience_sigmoid_k"`            // default 2.0

	// Forgetting (§4.2 / §4.9)
	ForgetThreshold float64 `yaml:"forget_threshold"` // default 0.01

	// Anomaly tracker (§4.10)
	AnomalyWindowSize    int     `yaml:"anomaly_window_size"`    // default 100
	AnomalySigmaThreshold float64 `yaml:"anomaly_sigma_threshold"` // default 2.0
	AnomalyMinSamples    int     `yaml:"anomaly_min_samples"`    // default 5

	// Scheduling
	ConsolidationInterval time.Duration `yaml:"consolidation_interval"` // 0 = no background worker
}

// ApplyDefaults fills zero-valued fields with the literature defaults
// from spec.md (cross-checked against original_source/engram/config.py's
// MemoryConfig.default()).
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/engram.db"
	}
	if c.DecayRates == nil {
		c.DecayRates = DefaultDecayRates()
	} else {
		merged := DefaultDecayRates()
		for k, v := range c.DecayRates {
			merged[k] = v
		}
		c.DecayRates = merged
	}
	if c.ActivationDecay == 0 {
		c.ActivationDecay = 0.5
	}
	if c.ContextWeight == 0 {
		c.ContextWeight = 1.5
	}
	if c.ImportanceWeight == 0 {
		c.ImportanceWeight = 0.5
	}
	if c.MinActivation == 0 {
		c.MinActivation = -10.0
	}
	if c.Mu1 == 0 {
		c.Mu1 = 0.15
	}
	if c.Mu2 == 0 {
		c.Mu2 = 0.005
	}
	if c.Alpha == 0 {
		c.Alpha = 0.08
	}
	if c.ConsolidationImportanceFloor == 0 {
		c.ConsolidationImportanceFloor = 0.2
	}
	if c.InterleaveRatio == 0 {
		c.InterleaveRatio = 0.30
	}
	if c.ReplayBoost == 0 {
		c.ReplayBoost = 0.01
	}
	if c.PromoteThreshold == 0 {
		c.PromoteThreshold = 0.25
	}
	if c.DemoteThreshold == 0 {
		c.DemoteThreshold = 0.05
	}
	if c.ArchiveThreshold == 0 {
		c.ArchiveThreshold = 0.15
	}
	if c.DownscaleFactor == 0 {
		c.DownscaleFactor = 0.95
	}
	if c.SuppressionFactor == 0 {
		c.SuppressionFactor = 0.05
	}
	if c.OverlapThreshold == 0 {
		c.OverlapThreshold = 0.30
	}
	if c.RewardMagnitude == 0 {
		c.RewardMagnitude = 0.15
	}
	if c.RewardRecentN == 0 {
		c.RewardRecentN = 3
	}
	if c.RewardStrengthBoost == 0 {
		c.RewardStrengthBoost = 0.05
	}
	if c.RewardSuppression == 0 {
		c.RewardSuppression = 0.1
	}
	if c.RewardTemporalDiscount == 0 {
		c.RewardTemporalDiscount = 0.5
	}
	if c.RewardMinConfidence == 0 {
		c.RewardMinConfidence = 0.3
	}
	if c.DefaultReliability == nil {
		c.DefaultReliability = DefaultReliability()
	}
	if c.ConfidenceReliabilityWeight == 0 && c.ConfidenceSalienceWeight == 0 {
		c.ConfidenceReliabilityWeight = 0.7
		c.ConfidenceSalienceWeight = 0.3
	}
	if c.SalienceSigmoidK == 0 {
		c.SalienceSigmoidK = 2.0
	}
	if c.ForgetThreshold == 0 {
		c.ForgetThreshold = 0.01
	}
	if c.AnomalyWindowSize == 0 {
		c.AnomalyWindowSize = 100
	}
	if c.AnomalySigmaThreshold == 0 {
		c.AnomalySigmaThreshold = 2.0
	}
	if c.AnomalyMinSamples == 0 {
		c.AnomalyMinSamples = 5
	}
}

// PresetDefault returns the literature-based defaults (equivalent to a
// zero-value Config with ApplyDefaults called).
func PresetDefault() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// PresetChatbot tunes the engine for conversational chatbots: slower
// decay and heavier replay so long conversations keep their context.
func PresetChatbot() Config {
	c := PresetDefault()
	c.Mu1 = 0.08
	c.Mu2 = 0.003
	c.Alpha = 0.12
	c.InterleaveRatio = 0.4
	c.ReplayBoost = 0.015
	c.ActivationDecay = 0.4
	c.ContextWeight = 2.0
	c.DownscaleFactor = 0.96
	c.RewardMagnitude = 0.2
	c.ForgetThreshold = 0.005
	return c
}

// PresetTaskAgent tunes the engine for short-lived task agents: fast
// decay, minimal replay, aggressive forgetting of stale task context.
func PresetTaskAgent() Config {
	c := PresetDefault()
	c.Mu1 = 0.25
	c.Mu2 = 0.01
	c.Alpha = 0.05
	c.InterleaveRatio = 0.1
	c.ReplayBoost = 0.005
	c.ActivationDecay = 0.6
	c.PromoteThreshold = 0.35
	c.ArchiveThreshold = 0.2
	c.DownscaleFactor = 0.90
	c.ForgetThreshold = 0.02
	return c
}

// PresetPersonalAssistant tunes the engine for long-term personal
// assistants: very slow core decay so preferences survive for months.
func PresetPersonalAssistant() Config {
	c := PresetDefault()
	c.Mu1 = 0.12
	c.Mu2 = 0.001
	c.Alpha = 0.10
	c.InterleaveRatio = 0.3
	c.ReplayBoost = 0.02
	c.ActivationDecay = 0.45
	c.ImportanceWeight = 0.7
	c.PromoteThreshold = 0.20
	c.DemoteThreshold = 0.03
	c.DownscaleFactor = 0.97
	c.ForgetThreshold = 0.005
	c.ConfidenceReliabilityWeight = 0.8
	c.ConfidenceSalienceWeight = 0.2
	return c
}

// PresetResearcher tunes the engine for research agents: near-zero
// forgetting and heavy replay, since anything might become relevant.
func PresetResearcher() Config {
	c := PresetDefault()
	c.Mu1 = 0.05
	c.Mu2 = 0.001
	c.Alpha = 0.15
	c.InterleaveRatio = 0.5
	c.ReplayBoost = 0.025
	c.ActivationDecay = 0.35
	c.ContextWeight = 2.0
	c.ImportanceWeight = 0.3
	c.PromoteThreshold = 0.15
	c.DemoteThreshold = 0.02
	c.ArchiveThreshold = 0.10
	c.DownscaleFactor = 0.98
	c.ForgetThreshold = 0.001
	return c
}

// Preset resolves one of the five named configuration presets:
// "default", "chatbot", "task-agent", "personal-assistant", "researcher".
func Preset(name string) (Config, error) {
	switch name {
	case "default", "":
		return PresetDefault(), nil
	case "chatbot":
		return PresetChatbot(), nil
	case "task-agent":
		return PresetTaskAgent(), nil
	case "personal-assistant":
		return PresetPersonalAssistant(), nil
	case "researcher":
		return PresetResearcher(), nil
	default:
		return Config{}, &BadArgError{Arg: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
	}
}

// LoadConfigFile reads a YAML file of constant overrides on top of the
// "default" preset. Hosts that want to tweak a handful of constants
// without recompiling can ship one of these instead of a Go Config
// literal.
func LoadConfigFile(path string) (Config, error) {
	c := PresetDefault()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &StoreError{Op: "LoadConfigFile", Err: err}
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, &BadArgError{Arg: "config file", Reason: err.Error()}
	}
	c.ApplyDefaults()
	return c, nil
}
