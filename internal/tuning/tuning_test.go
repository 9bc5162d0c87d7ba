package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywave-radio/radiod/internal/osc"
)

func newTestController() *Controller {
	c := New(osc.New(), osc.New(), osc.New(), 192000)
	c.MaxIF = 96000
	c.MinIF = -96000
	c.PassbandHalfWidth = 2500
	return c
}

func TestLO2InRangeBoundary(t *testing.T) {
	c := newTestController()
	// window is [-96000,96000], half-width 96000; usable half = 96000 - 2500 = 93500.
	assert.True(t, c.LO2InRange(93500, 0))
	assert.False(t, c.LO2InRange(93500.1, 0))
	assert.True(t, c.LO2InRange(-93500, 0))
	assert.False(t, c.LO2InRange(93000, 600))
}

func TestSetFreqPrefersSecondLOOnlyWhenInRange(t *testing.T) {
	c := newTestController()
	var sent []float64
	c.SendFirstLO = func(hz float64) error {
		sent = append(sent, hz)
		return nil
	}

	require.NoError(t, c.SetFreq(10000000, nil))
	assert.Len(t, sent, 1, "first retune always moves first_LO from its zero starting point")

	// Retune to a nearby frequency: desired second_LO (first_LO - 9995000 =
	// -88500Hz) stays in range, so no further first_LO command should be sent.
	require.NoError(t, c.SetFreq(9995000, nil))
	assert.Len(t, sent, 1, "second retune should only move the digital LO")
}

func TestSetFreqMovesFirstLOWhenSecondLOWouldLeaveRange(t *testing.T) {
	c := newTestController()
	var sent []float64
	c.SendFirstLO = func(hz float64) error {
		sent = append(sent, hz)
		return nil
	}

	require.NoError(t, c.SetFreq(10000000, nil))
	require.Len(t, sent, 1)
	firstAfterInit := sent[0]

	// A huge retune forces second_LO out of the +-93500Hz window, so
	// first_LO must move again.
	require.NoError(t, c.SetFreq(10200000, nil))
	require.Len(t, sent, 2)
	assert.NotEqual(t, firstAfterInit, sent[1])

	// The resulting second LO should sit exactly at the edge of range
	// (second_LO = first_LO - RF, so an upward retune lands on -93500Hz).
	lo2 := c.SecondLO.Freq() * c.exactSampRate()
	assert.InDelta(t, -93500, lo2, 1e-6)
}

func TestConfirmFirstLOReconcilesSecondLOToTarget(t *testing.T) {
	c := newTestController()
	require.NoError(t, c.SetFreq(10000000, nil))

	// Front end reports it actually landed 50Hz away from what was asked.
	requested := c.firstLO
	c.ConfirmFirstLO(requested + 50)

	got := c.Freq()
	assert.InDelta(t, 10000000, got, 1e-6)
}

func TestSetShiftAndSetDopplerUpdateOscillators(t *testing.T) {
	c := newTestController()
	c.SetShift(1000)
	assert.InDelta(t, 1000/c.exactSampRate(), c.ShiftOsc.Freq(), 1e-12)

	c.SetDoppler(50, 10)
	assert.InDelta(t, 50/c.exactSampRate(), c.DopplerOsc.Freq(), 1e-12)
}

func TestSetFirstLOHoldsTargetRFAndRecomputesSecondLO(t *testing.T) {
	c := newTestController()
	var sent []float64
	c.SendFirstLO = func(hz float64) error {
		sent = append(sent, hz)
		return nil
	}
	require.NoError(t, c.SetFreq(10000000, nil))

	require.NoError(t, c.SetFirstLO(10001000))
	require.Len(t, sent, 2)
	assert.InDelta(t, 10001000, sent[1], 1e-6)

	got := c.Freq()
	assert.InDelta(t, 10000000, got, 1e-6, "SetFirstLO must not change the held target RF")
}

func TestSetFirstLOSkipsSendWhenUnchanged(t *testing.T) {
	c := newTestController()
	var sent []float64
	c.SendFirstLO = func(hz float64) error {
		sent = append(sent, hz)
		return nil
	}
	require.NoError(t, c.SetFreq(10000000, nil))
	require.Len(t, sent, 1)

	require.NoError(t, c.SetFirstLO(sent[0]))
	assert.Len(t, sent, 1, "no hardware move needed, SendFirstLO must not be called again")
}

func TestExplicitLO2OverridesComputedValue(t *testing.T) {
	c := newTestController()
	explicit := 5000.0
	require.NoError(t, c.SetFreq(10000000, &explicit))

	lo2 := c.SecondLO.Freq() * c.exactSampRate()
	assert.InDelta(t, explicit, lo2, 1e-6)
}
