package agents

import (
	"fmt"
	"math"

	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/phi"
)

// EmotionType enumerates the emotions. The declaration order is the dominance tie-break
// priority: threat-related emotions win ties over positive ones.
type EmotionType uint8

const (
	EmotionFear EmotionType = iota
	EmotionAnger
	EmotionSadness
	EmotionDisgust
	EmotionJoy
	EmotionHope
)

// NumEmotions is the number of emotion types.
const NumEmotions = 6

var emotionNames = [NumEmotions]string{"fear", "anger", "sadness", "disgust", "joy", "hope"}

func (e EmotionType) String() string {
	if int(e) < NumEmotions {
		return emotionNames[e]
	}
	return fmt.Sprintf("emotion(%d)", e)
}

// ParseEmotionType resolves an emotion name.
func ParseEmotionType(s string) (EmotionType, bool) {
	for i, name := range emotionNames {
		if name == s {
			return EmotionType(i), true
		}
	}
	return 0, false
}

// emotionProfile maps each emotion to its decay rate and its (valence, arousal) coordinates.
var emotionProfile = [NumEmotions]struct {
	rate, valence, arousal float64
}{
	EmotionFear:    {rate: phi.Agnosis * 0.2, valence: -0.8, arousal: 0.9},
	EmotionAnger:   {rate: phi.Agnosis * 0.25, valence: -0.6, arousal: 0.8},
	EmotionSadness: {rate: phi.Agnosis * 0.08, valence: -0.7, arousal: -0.4},
	EmotionDisgust: {rate: phi.Agnosis * 0.15, valence: -0.5, arousal: 0.2},
	EmotionJoy:     {rate: phi.Agnosis * 0.15, valence: 0.8, arousal: 0.5},
	EmotionHope:    {rate: phi.Agnosis * 0.1, valence: 0.5, arousal: 0.2},
}

// Emotion is one active affect.
type Emotion struct {
	Type      EmotionType `json:"type"`
	Intensity float64     `json:"intensity"` // 0.0–1.0
	Triggered uint64      `json:"triggered"` // Tick of the last appraisal that raised it
}

// Mood is the longer-window aggregate of recent emotions.
type Mood struct {
	Valence float64 `json:"valence"` // -1.0 to +1.0
	Arousal float64 `json:"arousal"` // -1.0 to +1.0
}

// AppraisalEvent is an event as evaluated against the agent's concerns.
type AppraisalEvent struct {
	Description    string
	Valence        float64 // -1.0 (bad) to +1.0 (good)
	Unexpectedness float64 // 0.0–1.0
	Relevance      float64 // 0.0–1.0
}

// EmotionState holds the active emotions and the current mood.
type EmotionState struct {
	active [NumEmotions]Emotion
	mood   Mood
}

// Intensity returns the current intensity of one emotion.
func (s *EmotionState) Intensity(t EmotionType) float64 {
	return s.active[t].Intensity
}

// Mood returns the current mood.
func (s *EmotionState) Mood() Mood {
	return s.mood
}

// Active returns every emotion with non-zero intensity, in type order.
func (s *EmotionState) Active() []Emotion {
	var out []Emotion
	for _, e := range s.active {
		if e.Intensity > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Appraise evaluates an event and raises the emotions it triggers. Returns the emotions
// triggered by this event (with the intensity contributed, not the resulting total).
func (s *EmotionState) Appraise(ev AppraisalEvent, tick uint64) []Emotion {
	valence := bounds.Signed(ev.Valence)
	unexpected := bounds.Unit(ev.Unexpectedness)
	relevance := bounds.Unit(ev.Relevance)
	if relevance < phi.AppraisalFloor || valence == 0 {
		return nil
	}

	base := relevance * (phi.Psyche + (1-phi.Psyche)*unexpected)

	var triggered []Emotion
	add := func(t EmotionType, intensity float64) {
		intensity = bounds.Unit(intensity)
		if intensity < phi.EmotionEpsilon {
			return
		}
		triggered = append(triggered, Emotion{Type: t, Intensity: intensity, Triggered: tick})
	}

	switch {
	case valence < 0 && unexpected >= 0.5:
		add(EmotionFear, base)
		add(EmotionAnger, base*phi.Matter)
		add(EmotionSadness, base*phi.Psyche)
	case valence < 0:
		add(EmotionSadness, base)
		add(EmotionAnger, base*phi.Psyche)
		if valence <= -0.7 {
			add(EmotionDisgust, base*phi.Psyche)
		}
	default:
		add(EmotionJoy, base)
		add(EmotionHope, base*phi.Matter)
	}

	for _, e := range triggered {
		cur := &s.active[e.Type]
		cur.Type = e.Type
		// Probabilistic OR keeps the combined intensity within [0, 1].
		cur.Intensity = bounds.Unit(cur.Intensity + e.Intensity - cur.Intensity*e.Intensity)
		cur.Triggered = tick
	}
	return triggered
}

// Decay reduces each emotion exponentially by its type's rate. Emotions that fall below
// epsilon are removed.
func (s *EmotionState) Decay(elapsed float64) {
	elapsed = bounds.NonNegative(elapsed)
	for i := range s.active {
		e := &s.active[i]
		if e.Intensity == 0 {
			continue
		}
		e.Intensity *= math.Exp(-emotionProfile[i].rate * elapsed)
		if e.Intensity < phi.EmotionEpsilon {
			*e = Emotion{Type: EmotionType(i)}
		}
	}
}

// UpdateMood moves the mood toward the recency-weighted average of the remaining emotions.
// With no active emotions the mood relaxes toward neutral.
func (s *EmotionState) UpdateMood(tick uint64) {
	var tv, ta, tw float64
	for i, e := range s.active {
		if e.Intensity == 0 {
			continue
		}
		age := 0.0
		if tick > e.Triggered {
			age = float64(tick - e.Triggered)
		}
		w := e.Intensity * math.Pow(0.5, age/phi.MoodHalfLife)
		tv += emotionProfile[i].valence * w
		ta += emotionProfile[i].arousal * w
		tw += w
	}
	var target Mood
	if tw > 0 {
		target = Mood{Valence: tv / tw, Arousal: ta / tw}
		// Weak emotions pull the mood less than strong ones.
		strength := math.Min(tw, 1)
		target.Valence *= strength
		target.Arousal *= strength
	}
	s.mood.Valence = bounds.Signed(s.mood.Valence + (target.Valence-s.mood.Valence)*phi.Psyche)
	s.mood.Arousal = bounds.Signed(s.mood.Arousal + (target.Arousal-s.mood.Arousal)*phi.Psyche)
}

// Dominant returns the most intense emotion. Ties go to the earlier type in declaration order.
// ok is false when no emotion is active.
func (s *EmotionState) Dominant() (Emotion, bool) {
	best := -1
	for i, e := range s.active {
		if e.Intensity == 0 {
			continue
		}
		if best < 0 || e.Intensity > s.active[best].Intensity {
			best = i
		}
	}
	if best < 0 {
		return Emotion{}, false
	}
	return s.active[best], true
}

// RiskTolerance is a multiplier in [0.5, 1.5]: anger and joy make the agent bolder, fear
// makes it cautious.
func (s *EmotionState) RiskTolerance() float64 {
	m := 1 + 0.5*(s.active[EmotionAnger].Intensity+0.5*s.active[EmotionJoy].Intensity) -
		0.5*s.active[EmotionFear].Intensity - 0.25*s.active[EmotionSadness].Intensity
	return bounds.Clamp(m, 0.5, 1.5)
}

// Sociability is a multiplier in [0.5, 1.5]: joy and hope draw the agent toward company,
// sadness, fear and disgust push it away.
func (s *EmotionState) Sociability() float64 {
	m := 1 + 0.5*(s.active[EmotionJoy].Intensity+0.5*s.active[EmotionHope].Intensity) -
		0.3*(s.active[EmotionSadness].Intensity+s.active[EmotionFear].Intensity+s.active[EmotionDisgust].Intensity)
	return bounds.Clamp(m, 0.5, 1.5)
}

// Set forces an emotion's intensity; used when seeding and restoring agents.
func (s *EmotionState) Set(t EmotionType, intensity float64, tick uint64) {
	if int(t) >= NumEmotions {
		return
	}
	s.active[t] = Emotion{Type: t, Intensity: bounds.Unit(intensity), Triggered: tick}
	if s.active[t].Intensity < phi.EmotionEpsilon {
		s.active[t] = Emotion{Type: t}
	}
}

// setMood is used when restoring agents.
func (s *EmotionState) setMood(m Mood) {
	s.mood = Mood{Valence: bounds.Signed(m.Valence), Arousal: bounds.Signed(m.Arousal)}
}
