package agents

import (
	"fmt"
	"math"

	"github.com/talgya/tavern-minds/internal/bounds"
)

// TraitAxis enumerates the five personality axes.
type TraitAxis uint8

const (
	Openness TraitAxis = iota
	Conscientiousness
	Extraversion
	Agreeableness
	Neuroticism
)

// NumTraits is the number of personality axes.
const NumTraits = 5

var traitNames = [NumTraits]string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"}

func (t TraitAxis) String() string {
	if int(t) < NumTraits {
		return traitNames[t]
	}
	return fmt.Sprintf("trait(%d)", t)
}

// Value is a named thing an agent cares about, such as "community" or "honesty".
type Value struct {
	Name     string  `json:"name" yaml:"name" toml:"name"`
	Strength float64 `json:"strength" yaml:"strength" toml:"strength"` // 0.0–1.0
}

// TraitConfig is the seed data for a personality profile.
type TraitConfig struct {
	Openness          float64 `json:"openness" yaml:"openness" toml:"openness"`
	Conscientiousness float64 `json:"conscientiousness" yaml:"conscientiousness" toml:"conscientiousness"`
	Extraversion      float64 `json:"extraversion" yaml:"extraversion" toml:"extraversion"`
	Agreeableness     float64 `json:"agreeableness" yaml:"agreeableness" toml:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism" yaml:"neuroticism" toml:"neuroticism"`
	Values            []Value `json:"values,omitempty" yaml:"values" toml:"values"`
}

// Traits is an agent's personality profile. Immutable after construction: agents hold it
// privately and hand out copies.
type Traits struct {
	Axes   [NumTraits]float64 `json:"axes"`
	Values []Value            `json:"values,omitempty"`
}

// NewTraits validates the seed and builds a profile. Out-of-range input is rejected, never clamped.
func NewTraits(cfg TraitConfig) (Traits, error) {
	axes := [NumTraits]float64{cfg.Openness, cfg.Conscientiousness, cfg.Extraversion, cfg.Agreeableness, cfg.Neuroticism}
	for i, v := range axes {
		if !bounds.InUnit(v) {
			return Traits{}, fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, TraitAxis(i), v)
		}
	}

	seen := make(map[string]bool, len(cfg.Values))
	values := make([]Value, 0, len(cfg.Values))
	for _, v := range cfg.Values {
		if v.Name == "" {
			return Traits{}, fmt.Errorf("%w: value with empty name", ErrInvalidConfig)
		}
		if seen[v.Name] {
			return Traits{}, fmt.Errorf("%w: duplicate value %q", ErrInvalidConfig, v.Name)
		}
		if !bounds.InUnit(v.Strength) {
			return Traits{}, fmt.Errorf("%w: value %q strength %v outside [0,1]", ErrInvalidConfig, v.Name, v.Strength)
		}
		seen[v.Name] = true
		values = append(values, v)
	}
	return Traits{Axes: axes, Values: values}, nil
}

// Axis returns the value of one personality axis.
func (t Traits) Axis(a TraitAxis) float64 {
	if int(a) >= NumTraits {
		return 0
	}
	return t.Axes[a]
}

// ValueStrength returns how strongly the agent holds a value (0 when absent).
func (t Traits) ValueStrength(name string) float64 {
	for _, v := range t.Values {
		if v.Name == name {
			return v.Strength
		}
	}
	return 0
}

// Clone returns a deep copy.
func (t Traits) Clone() Traits {
	c := Traits{Axes: t.Axes}
	if t.Values != nil {
		c.Values = append([]Value(nil), t.Values...)
	}
	return c
}

// Config converts the profile back to its seed form.
func (t Traits) Config() TraitConfig {
	return TraitConfig{
		Openness:          t.Axes[Openness],
		Conscientiousness: t.Axes[Conscientiousness],
		Extraversion:      t.Axes[Extraversion],
		Agreeableness:     t.Axes[Agreeableness],
		Neuroticism:       t.Axes[Neuroticism],
		Values:            t.Clone().Values,
	}
}

// Similarity returns 1 minus the normalised euclidean distance between two profiles' axes.
func (t Traits) Similarity(o Traits) float64 {
	sum := 0.0
	for i := range t.Axes {
		d := t.Axes[i] - o.Axes[i]
		sum += d * d
	}
	return 1 - math.Sqrt(sum/NumTraits)
}
