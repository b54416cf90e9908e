// NeedSet implements the decaying drive model.

package agents

import (
	"fmt"
	"sort"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// NeedType enumerates the drives. The order is also the tie-break order for urgency.
type NeedType uint8

const (
	NeedSustenance NeedType = iota // Food and drink
	NeedRest
	NeedSafety
	NeedBelonging
	NeedAchievement
	NeedAutonomy
	NeedRespect
	NeedPurpose
	NeedCuriosity
)

// NumNeeds is the number of need types.
const NumNeeds = 9

var needNames = [NumNeeds]string{
	"sustenance", "rest", "safety", "belonging", "achievement",
	"autonomy", "respect", "purpose", "curiosity",
}

func (n NeedType) String() string {
	if int(n) < NumNeeds {
		return needNames[n]
	}
	return fmt.Sprintf("need(%d)", n)
}

// ParseNeedType resolves a need name.
func ParseNeedType(s string) (NeedType, bool) {
	for i, name := range needNames {
		if name == s {
			return NeedType(i), true
		}
	}
	return 0, false
}

// needDecayScale sets how fast each drive runs down relative to phi.BaseNeedDecay.
// Bodily drives are the most urgent, meaning-level drives the slowest.
var needDecayScale = [NumNeeds]float64{
	NeedSustenance:  2,
	NeedRest:        1.5,
	NeedSafety:      1,
	NeedBelonging:   0.5,
	NeedAchievement: 0.3,
	NeedAutonomy:    0.3,
	NeedRespect:     0.3,
	NeedPurpose:     0.1,
	NeedCuriosity:   0.4,
}

// DefaultDecayRate returns the default per-tick decay for a need type.
func DefaultDecayRate(t NeedType) float64 {
	return phi.BaseNeedDecay * needDecayScale[t]
}

// Need is one drive. Level runs from 0.0 (completely unmet) to 1.0 (fully satisfied).
type Need struct {
	Type      NeedType `json:"type"`
	Level     float64  `json:"level"`
	DecayRate float64  `json:"decay_rate"` // Level lost per tick, > 0
	Threshold float64  `json:"threshold"`  // Urgent when Level < Threshold
}

// IsUrgent reports whether the need is below its threshold.
func (n Need) IsUrgent() bool {
	return n.Level < n.Threshold
}

// Urgency is how far below its threshold the need sits, scaled to [0, 1].
func (n Need) Urgency() float64 {
	if !n.IsUrgent() || n.Threshold <= 0 {
		return 0
	}
	return (n.Threshold - n.Level) / n.Threshold
}

// NeedConfig is the seed for one need. Zero DecayRate/Threshold mean "use the default".
type NeedConfig struct {
	Type      string  `json:"type" yaml:"type" toml:"type"`
	Level     float64 `json:"level" yaml:"level" toml:"level"`
	DecayRate float64 `json:"decay_rate,omitempty" yaml:"decay_rate" toml:"decay_rate"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold" toml:"threshold"`
}

// NeedSet holds every drive, indexed by NeedType.
type NeedSet [NumNeeds]Need

// DefaultNeeds returns a set with every need mostly met.
func DefaultNeeds() NeedSet {
	var s NeedSet
	for i := range s {
		s[i] = Need{
			Type:      NeedType(i),
			Level:     0.8,
			DecayRate: DefaultDecayRate(NeedType(i)),
			Threshold: phi.UrgencyThreshold,
		}
	}
	return s
}

// NewNeedSet builds a need set from seeds, rejecting out-of-range values.
// Needs not named in the seeds take defaults.
func NewNeedSet(seeds []NeedConfig) (NeedSet, error) {
	s := DefaultNeeds()
	for _, c := range seeds {
		t, ok := ParseNeedType(c.Type)
		if !ok {
			return NeedSet{}, fmt.Errorf("%w: unknown need %q", ErrInvalidConfig, c.Type)
		}
		if !bounds.InUnit(c.Level) {
			return NeedSet{}, fmt.Errorf("%w: need %s level %v outside [0,1]", ErrInvalidConfig, t, c.Level)
		}
		if c.DecayRate < 0 || c.DecayRate != c.DecayRate {
			return NeedSet{}, fmt.Errorf("%w: need %s decay rate %v must be positive", ErrInvalidConfig, t, c.DecayRate)
		}
		if c.Threshold != 0 && (!bounds.InUnit(c.Threshold)) {
			return NeedSet{}, fmt.Errorf("%w: need %s threshold %v outside (0,1]", ErrInvalidConfig, t, c.Threshold)
		}
		s[t].Level = c.Level
		if c.DecayRate > 0 {
			s[t].DecayRate = c.DecayRate
		}
		if c.Threshold > 0 {
			s[t].Threshold = c.Threshold
		}
	}
	return s, nil
}

// Get returns one need.
func (s *NeedSet) Get(t NeedType) Need {
	return s[t]
}

// Decay runs every need down by rate × elapsed, floored at 0.
func (s *NeedSet) Decay(elapsed float64) {
	elapsed = bounds.NonNegative(elapsed)
	for i := range s {
		s[i].Level = bounds.Unit(s[i].Level - s[i].DecayRate*elapsed)
	}
}

// Satisfy raises a need by amount, capped at 1. Negative amounts are ignored.
func (s *NeedSet) Satisfy(t NeedType, amount float64) {
	if int(t) >= NumNeeds {
		return
	}
	s[t].Level = bounds.Unit(s[t].Level + bounds.NonNegative(amount))
}

// UrgentNeeds returns every need below its threshold, most urgent (largest gap) first.
func (s *NeedSet) UrgentNeeds() []Need {
	var urgent []Need
	for _, n := range s {
		if n.IsUrgent() {
			urgent = append(urgent, n)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		return urgent[i].Threshold-urgent[i].Level > urgent[j].Threshold-urgent[j].Level
	})
	return urgent
}

// MaxUrgency returns the largest scaled urgency across all needs.
func (s *NeedSet) MaxUrgency() float64 {
	m := 0.0
	for _, n := range s {
		m = max(m, n.Urgency())
	}
	return m
}

// OverallSatisfaction returns a weighted average of all needs,
// with bodily needs weighted more heavily.
func (s *NeedSet) OverallSatisfaction() float64 {
	total, weights := 0.0, 0.0
	for i, n := range s {
		w := needDecayScale[i]
		total += n.Level * w
		weights += w
	}
	return total / weights
}
