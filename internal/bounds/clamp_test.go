package bounds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 0.0, Unit(-0.5))
	assert.Equal(t, 1.0, Unit(3.0))
	assert.Equal(t, 0.25, Unit(0.25))
	assert.Equal(t, -1.0, Signed(-7.0))
	assert.Equal(t, 1.0, Signed(1.5))
	assert.Equal(t, 0.0, Unit(math.NaN()))
	assert.Equal(t, 0.0, Signed(math.NaN()))
	assert.Equal(t, 0.0, NonNegative(-2.0))
	assert.Equal(t, float32(0.5), Clamp(float32(0.7), 0, 0.5))
}

func TestRangeChecks(t *testing.T) {
	assert.True(t, InUnit(0))
	assert.True(t, InUnit(1))
	assert.False(t, InUnit(1.0001))
	assert.False(t, InUnit(math.NaN()))
	assert.True(t, InSigned(-1))
	assert.False(t, InSigned(-1.01))
}

func TestClampIsIdempotent(t *testing.T) {
	for _, v := range []float64{-3, -1, -0.2, 0, 0.4, 1, 9} {
		once := Signed(v)
		assert.Equal(t, once, Signed(once))
	}
}
