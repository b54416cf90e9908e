package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/world"
)

func TestSkyIsSeededAndHourly(t *testing.T) {
	a := NewSky(entropy.NewSource(9))
	b := NewSky(entropy.NewSource(9))
	for tick := uint64(0); tick < 3*24*TicksPerHour; tick += 37 {
		assert.Equal(t, a.At(tick), b.At(tick))
	}
	assert.Equal(t, a.At(60), a.At(119), "one reading per hour")
	assert.Equal(t, uint64(1), a.At(119).Hour)
	assert.Nil(t, NewSky(nil))
}

func TestConditionsStayInRange(t *testing.T) {
	sky := NewSky(entropy.NewSource(3))
	for hour := uint64(0); hour < 500; hour++ {
		c := sky.At(hour * TicksPerHour)
		assert.GreaterOrEqual(t, c.Wetness, 0.0)
		assert.LessOrEqual(t, c.Wetness, 1.0)
		assert.GreaterOrEqual(t, c.WindSpeed, 0.0)
		assert.LessOrEqual(t, c.WindSpeed, 20.0)
		assert.False(t, c.IsRain && c.IsSnow && !c.IsStorm)
		assert.NotEmpty(t, c.Description)
	}
}

func TestEvents(t *testing.T) {
	assert.Empty(t, Conditions{Temp: 12, WindSpeed: 3}.Events(60))

	rain := Conditions{IsRain: true, Description: "rain drums on the roof"}
	evs := rain.Events(120)
	assert.Len(t, evs, 1)
	assert.Equal(t, "weather", evs[0].Kind)
	assert.True(t, evs[0].Due(120))
	assert.True(t, evs[0].AppliesTo(world.Location{Name: "taproom"}))

	storm := Conditions{IsStorm: true, IsRain: true, WindSpeed: 18, Description: "a storm batters the shutters"}
	evs = storm.Events(180)
	assert.Len(t, evs, 2)
	threat := evs[1]
	assert.Equal(t, "threat", threat.Kind)
	assert.False(t, threat.AppliesTo(world.Location{Name: "taproom", Tags: []string{"food"}}))
	assert.True(t, threat.AppliesTo(world.Location{Name: "yard", Tags: []string{world.TagOutdoors}}))
}
