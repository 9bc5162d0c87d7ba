package demod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywave-radio/radiod/internal/sample"
)

func TestLinearMonoPassthroughWithoutPLLOrAGC(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1}, 8000)

	block := make([]sample.IQ, 256)
	for i := range block {
		block[i] = sample.IQ(complex(0.2, 0.3))
	}
	mono, stereo, info := d.Process(block)
	require.NotNil(t, mono)
	assert.Nil(t, stereo)
	assert.Len(t, mono, 256)
	// ShiftOsc defaults to zero frequency, so output is just the real part.
	for i, v := range mono {
		assert.InDelta(t, 0.2, v, 1e-9, "index %d", i)
	}
	assert.Greater(t, info.BBPower, 0.0)
}

func TestLinearEnvModeProducesMagnitude(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1, Env: true}, 8000)
	block := []sample.IQ{sample.IQ(complex(3, 4))} // magnitude 5
	mono, _, _ := d.Process(block)
	require.Len(t, mono, 1)
	assert.InDelta(t, 5.0, mono[0], 1e-9)
}

func TestLinearStereoOutputsIAndQ(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 2}, 8000)
	block := []sample.IQ{sample.IQ(complex(0.1, -0.2))}
	mono, stereo, _ := d.Process(block)
	assert.Nil(t, mono)
	require.Len(t, stereo, 1)
	assert.InDelta(t, 0.1, stereo[0].Real(), 1e-9)
	assert.InDelta(t, -0.2, stereo[0].Imag(), 1e-9)
}

func TestLinearAGCReducesGainOnLoudBlock(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1, AGC: true}, 8000)
	d.EnableAGC(0.316227766, 0.5, 20)

	block := make([]sample.IQ, 100)
	for i := range block {
		block[i] = sample.IQ(complex(2.0, 0))
	}
	d.Process(block)
	assert.Less(t, d.AGC().Gain, 1.0)
}

func TestLockDetectorEngagesAfterSustainedHighSNR(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1, PLL: true}, 8000)
	d.EnablePLL(10)
	d.snr = 10 // above the +3dB lock threshold

	// lockLimit is 1s * sampRate = 8000.
	for i := 0; i < 21; i++ { // 21*400 = 8400 > lockLimit
		d.updateLockDetector(400)
	}
	assert.True(t, d.pllLock)
	assert.Equal(t, d.lockLimit, d.lockCount)
}

func TestLockDetectorUnlocksAfterSustainedLowSNR(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1, PLL: true}, 8000)
	d.EnablePLL(10)
	d.pllLock = true
	d.lockCount = d.lockLimit
	d.snr = 0 // below threshold

	for i := 0; i < 21; i++ {
		d.updateLockDetector(400)
	}
	assert.False(t, d.pllLock)
	assert.Equal(t, -d.lockLimit, d.lockCount)
}

func TestSetPLLEnableInstallsPLLOnDemand(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1}, 8000)
	assert.Nil(t, d.PLL)

	d.SetPLLEnable(true)
	require.NotNil(t, d.PLL)
	assert.True(t, d.Options.PLL)

	d.SetPLLEnable(false)
	assert.False(t, d.Options.PLL)
	assert.NotNil(t, d.PLL, "disabling must park the PLL, not discard it")
}

func TestSetPLLSquareAndSetChannels(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1}, 8000)
	d.SetPLLSquare(true)
	assert.True(t, d.Options.Square)

	d.SetChannels(2)
	assert.Equal(t, 2, d.Options.Channels)
}

func TestLinearPLLMixesDownAndReportsFiniteStats(t *testing.T) {
	d := NewLinear(LinearOptions{Channels: 1, PLL: true}, 8000)
	d.EnablePLL(10)

	block := make([]sample.IQ, 400)
	for i := range block {
		theta := 2 * math.Pi * 1000 * float64(i) / 8000
		block[i] = sample.IQ(complex(math.Cos(theta), math.Sin(theta)))
	}
	_, _, info := d.Process(block)
	assert.False(t, math.IsNaN(info.FOffset))
	assert.False(t, math.IsNaN(info.CPhase))
}
