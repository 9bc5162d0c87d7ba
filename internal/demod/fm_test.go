package demod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFMSNRBoundaryBehavior(t *testing.T) {
	// At or below the pure-noise Rayleigh ratio, corrected SNR is exactly 0.
	assert.Equal(t, 0.0, fmSNR(math.Pi/(4-math.Pi)))
	assert.Equal(t, 0.0, fmSNR(1.0))

	// Above 100 (20dB), the formula is passed through unchanged.
	assert.Equal(t, 150.0, fmSNR(150.0))
	assert.Equal(t, 100.0001, fmSNR(100.0001))
}

func TestFMSNRConvergesToFiniteNonNegativeValue(t *testing.T) {
	for _, r := range []float64{2.0, 5.0, 10.0, 30.0, 80.0} {
		got := fmSNR(r)
		assert.False(t, math.IsNaN(got), "r=%v", r)
		assert.False(t, math.IsInf(got, 0), "r=%v", r)
		assert.GreaterOrEqual(t, got, 0.0, "r=%v", r)
	}
}

func TestXIAtZeroIsTwoMinusPiOverTwo(t *testing.T) {
	// xi(0) = 2 - pi/8 * 1 * (2*1+0)^2 = 2 - pi/8*4 = 2 - pi/2
	want := 2 - math.Pi/2
	assert.InDelta(t, want, xi(0), 1e-9)
}

func TestSetFlatTogglesDeEmphasis(t *testing.T) {
	d := NewFM()
	assert.False(t, d.Flat)
	d.SetFlat(true)
	assert.True(t, d.Flat)
	d.SetFlat(false)
	assert.False(t, d.Flat)
}
