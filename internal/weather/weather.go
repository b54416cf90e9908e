// Package weather provides the sky over the tavern. Conditions are drawn from seeded coherent
// noise, one reading per sim-hour, so a run's weather drifts plausibly and replays exactly.
package weather

import (
	"github.com/talgya/tavern-minds/internal/bounds"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/world"
)

// TicksPerHour is how long one reading lasts. Ticks are sim-minutes.
const TicksPerHour = 60

// Conditions is the weather for one sim-hour.
type Conditions struct {
	Hour        uint64  `json:"hour"`
	Temp        float64 `json:"temp"` // Celsius
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
	Wetness     float64 `json:"wetness"`    // 0.0–1.0
	IsStorm     bool    `json:"is_storm"`
	IsSnow      bool    `json:"is_snow"`
	IsRain      bool    `json:"is_rain"`
}

// Sky reads weather from an entropy source. It holds no state of its own, so it is safe for
// concurrent use and At is a pure function of the seed and the hour.
type Sky struct {
	src *entropy.Source
}

// NewSky creates a sky over src. Returns nil if src is nil.
func NewSky(src *entropy.Source) *Sky {
	if src == nil {
		return nil
	}
	return &Sky{src: src}
}

// At returns the conditions in force at tick.
func (s *Sky) At(tick uint64) Conditions {
	hour := tick / TicksPerHour
	h := float64(hour)

	// A slow daily swing plus drift over days.
	day := h / 24
	temp := 10 + 6*s.src.Noise(day/3, 11) + 4*s.src.Noise(h/24*6.283, 17)
	wetness := bounds.Unit((s.src.Noise(h/9, 31) + 1) / 2)
	wind := 10 * (s.src.Noise(h/5, 47) + 1)

	c := Conditions{
		Hour:      hour,
		Temp:      temp,
		WindSpeed: wind,
		Wetness:   wetness,
	}
	switch {
	case wetness > 0.62 && wind > 15:
		c.IsStorm = true
		c.IsRain = temp > 1
		c.IsSnow = temp <= 1
	case wetness > 0.62 && temp <= 1:
		c.IsSnow = true
	case wetness > 0.62:
		c.IsRain = true
	}
	c.Description = describe(c)
	return c
}

func describe(c Conditions) string {
	switch {
	case c.IsStorm && c.IsSnow:
		return "a blizzard howls around the eaves"
	case c.IsStorm:
		return "a storm batters the shutters"
	case c.IsSnow:
		return "snow settles on the yard"
	case c.IsRain:
		return "rain drums on the roof"
	case c.WindSpeed > 15:
		return "a strong wind rattles the sign outside"
	case c.Temp > 20:
		return "a warm, still evening"
	case c.Temp < 3:
		return "a bitter cold outside"
	default:
		return "fair weather"
	}
}

// Notable reports whether the weather is worth anyone's attention.
func (c Conditions) Notable() bool {
	return c.IsStorm || c.IsRain || c.IsSnow || c.WindSpeed > 15
}

// Events maps conditions onto the ambient events heard at the turn of the hour. Everyone
// hears notable weather; those outdoors feel a storm as a threat.
func (c Conditions) Events(tick uint64) []world.ScheduledEvent {
	if !c.Notable() {
		return nil
	}
	valence := -0.1
	switch {
	case c.IsStorm:
		valence = -0.4
	case c.IsSnow:
		valence = 0.1
	}
	out := []world.ScheduledEvent{{
		At:             tick,
		Kind:           "weather",
		Description:    c.Description,
		Valence:        valence,
		Unexpectedness: bounds.Unit(0.2 + c.WindSpeed/50),
		Relevance:      0.2,
	}}
	if c.IsStorm {
		out = append(out, world.ScheduledEvent{
			At:             tick,
			Tag:            world.TagOutdoors,
			Kind:           "threat",
			Description:    "caught in the open as the storm breaks",
			Valence:        -0.6,
			Unexpectedness: 0.5,
			Relevance:      0.7,
		})
	}
	return out
}
