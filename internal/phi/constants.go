// Package phi provides the simulation's tuning constants, all derived from the golden ratio.
// Decay rates, thresholds and blend weights all trace back to Φ.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// Core emanation constants derived from powers of Phi.
var (
	// Agnosis (Φ⁻³): entropy, noise, the base rate of drift. ~0.236.
	Agnosis = math.Pow(Phi, -3)

	// Psyche (Φ⁻²): the threshold of meaningful connection. ~0.382.
	Psyche = math.Pow(Phi, -2)

	// Matter (Φ⁻¹): the fraction that persists through transformation. ~0.618.
	Matter = math.Pow(Phi, -1)

	// Being (Φ¹): growth factor. ~1.618.
	Being = Phi

	// Nous (Φ²): amplification of focused cognition. ~2.618.
	Nous = math.Pow(Phi, 2)
)

// Structural limits from the Fibonacci trinity.
const (
	// Completion is the pentad: max hops and max failures.
	Completion = 5

	// Excess is one past the pentad.
	Excess = 6
)

// Need model tuning.
var (
	// UrgencyThreshold is the default level below which a need is urgent.
	UrgencyThreshold = 0.3

	// BaseNeedDecay is the per-tick decay unit; each need type scales it.
	BaseNeedDecay = Agnosis * 0.01

	// NeedGoalSeed is the priority seed for goals spawned by an urgent need.
	NeedGoalSeed = 0.5
)

// Emotion model tuning.
var (
	// EmotionEpsilon is the intensity below which an emotion is dropped.
	EmotionEpsilon = 0.01

	// AppraisalFloor is the minimum personal relevance that triggers any emotion.
	AppraisalFloor = Agnosis * 0.25

	// MoodHalfLife is the age, in ticks, at which an emotion's mood weight halves.
	MoodHalfLife = 30.0
)

// Memory model tuning.
var (
	// MemoryHalfLife is the number of ticks after which recency halves.
	MemoryHalfLife = 240.0

	// MinImportance keeps every memory's accessibility strictly positive.
	MinImportance = 0.01
)

// Social model tuning.
var (
	// GossipAffinityThreshold is the affinity below which gossip never travels.
	GossipAffinityThreshold = Agnosis

	// ClusterAffinityThreshold is the mutual affinity an edge needs to bind a cluster.
	ClusterAffinityThreshold = Psyche

	// VariationOpenness is the openness above which a retelling mutates an artifact.
	VariationOpenness = Matter

	// FamiliarityStep is the familiarity gained per interaction.
	FamiliarityStep = Agnosis * 0.1
)
