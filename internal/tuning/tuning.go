// Package tuning implements the dual local-oscillator tuning plane: the
// analog first LO (the tuner/front-end's hardware oscillator) and the
// digital second LO (the spindown oscillator channel.Slice steps every
// sample), plus the post-demod shift and Doppler oscillators.
//
// Grounded on radio.c's get_first_LO/get_second_LO/set_first_LO/
// set_second_LO/set_second_LO_rate and the calibration model
// (get_exact_samprate). The higher-level set_freq/LO2_in_range/tie-break
// behavior is this package's own design, since this radio.c predates the
// richer controller described here and has no matching function to port.
package tuning

import (
	"math"
	"sync"

	"github.com/skywave-radio/radiod/internal/osc"
)

// Controller owns the tuning plane for one receiver channel.
type Controller struct {
	mu sync.Mutex

	// SecondLO is the digital spindown oscillator (channel.Slice's LO).
	SecondLO *osc.Oscillator
	// ShiftOsc is the post-demodulation frequency shift oscillator.
	ShiftOsc *osc.Oscillator
	// DopplerOsc is the Doppler-correction oscillator; SetDoppler sets its
	// frequency and sweep rate. Nothing steps it or mixes it into the
	// samples, so it has no effect on the tuned frequency.
	DopplerOsc *osc.Oscillator

	// SampRate is the nominal (uncalibrated) input sample rate, Hz.
	SampRate float64
	// Calibrate is the fractional frequency correction applied to both the
	// sample clock and the first LO (radio.c's get_exact_samprate/
	// get_first_LO: true_freq = nominal*(1+calibrate)).
	Calibrate float64

	// MaxIF/MinIF bound the usable second-LO window in Hz (e.g.
	// +/- SampRate/2 for a complex front end).
	MaxIF, MinIF float64
	// PassbandHalfWidth is half the current demodulator passband, used by
	// LO2InRange so a retune never parks the passband against the alias
	// edge of the first IF.
	PassbandHalfWidth float64

	// SendFirstLO, if set, is called with the new *hardware* first LO
	// frequency (calibration already divided out) whenever SetFreq needs
	// to move the analog tuner.
	SendFirstLO func(hwFreq float64) error

	firstLO        float64 // last commanded hardware first LO (uncalibrated)
	targetRF       float64 // the RF frequency SetFreq was last asked to reach
	pendingFirstLO float64 // hardware first LO most recently commanded, awaiting confirmation
}

// New builds a tuning controller. secondLO, shiftOsc and dopplerOsc are
// typically shared with a channel.Slice and a linear demodulator.
func New(secondLO, shiftOsc, dopplerOsc *osc.Oscillator, sampRate float64) *Controller {
	return &Controller{
		SecondLO:   secondLO,
		ShiftOsc:   shiftOsc,
		DopplerOsc: dopplerOsc,
		SampRate:   sampRate,
	}
}

func (c *Controller) exactSampRate() float64 {
	return c.SampRate * (1 + c.Calibrate)
}

// FirstLOExact is the true (calibrated) first LO frequency, get_first_LO's
// equivalent.
func (c *Controller) FirstLOExact() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstLO * (1 + c.Calibrate)
}

// TargetRF is the RF frequency the last SetFreq call was asked to reach,
// used by the command dispatcher as the base frequency for a command that
// only overrides the second LO.
func (c *Controller) TargetRF() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetRF
}

// LO2InRange reports whether candidate (a prospective second-LO
// frequency, Hz) plus half the current passband fits inside the usable IF
// window (MaxIF-MinIF), with allowMargin extra clearance so a retune never
// parks the passband directly against the alias edge.
func (c *Controller) LO2InRange(candidate, allowMargin float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lo2InRangeLocked(candidate, allowMargin)
}

func (c *Controller) lo2InRangeLocked(candidate, allowMargin float64) bool {
	window := c.MaxIF - c.MinIF
	return math.Abs(candidate)+c.PassbandHalfWidth+allowMargin <= window/2
}

// SetFreq tunes so that targetRF lands at zero IF (audio zero frequency).
// If explicitLO2 is non-nil, that exact second-LO frequency is used
// instead of the one set_freq would otherwise derive from the current
// first LO -- used when a caller wants to park the second LO at a
// specific offset (e.g. a CW/SSB mode's passband center) rather than dead
// zero.
//
// When the resulting second LO would leave the usable IF window, the
// first LO is moved by the minimum amount that restores range (the
// tie-break: prefer moving only the digital second LO, which needs no
// device round-trip, until it no longer fits). The new first LO is sent to
// the front end via SendFirstLO; ConfirmFirstLO reconciles the second LO
// once the front end reports the frequency it actually achieved.
func (c *Controller) SetFreq(targetRF float64, explicitLO2 *float64) error {
	c.mu.Lock()

	firstLOExact := c.firstLO * (1 + c.Calibrate)
	var desiredLO2 float64
	if explicitLO2 != nil {
		desiredLO2 = *explicitLO2
	} else {
		desiredLO2 = firstLOExact - targetRF
	}

	if !c.lo2InRangeLocked(desiredLO2, 0) {
		window := c.MaxIF - c.MinIF
		maxAbsLO2 := window/2 - c.PassbandHalfWidth
		clamped := maxAbsLO2
		if desiredLO2 < 0 {
			clamped = -maxAbsLO2
		}
		// Move first_LO by exactly the amount needed to bring the second
		// LO back to the edge of range, no further.
		firstLOExact -= desiredLO2 - clamped
		desiredLO2 = clamped
	}

	c.targetRF = targetRF
	c.pendingFirstLO = firstLOExact
	hwFreq := firstLOExact / (1 + c.Calibrate)
	moved := hwFreq != c.firstLO
	send := c.SendFirstLO
	c.firstLO = hwFreq

	c.setSecondLOLocked(desiredLO2)
	c.mu.Unlock()

	if moved && send != nil {
		return send(hwFreq)
	}
	return nil
}

// SetFirstLO tunes the analog front end directly to hwFreq (uncalibrated
// hardware units), for a command that wants to park the first LO at a
// specific frequency rather than derive it from a target RF. The last
// target_rf is left unchanged and the second LO is recomputed so the
// receiver stays centered on it -- the same reconciliation ConfirmFirstLO
// performs when the front end reports the frequency it actually achieved.
func (c *Controller) SetFirstLO(hwFreq float64) error {
	c.mu.Lock()
	moved := hwFreq != c.firstLO
	send := c.SendFirstLO
	c.firstLO = hwFreq
	firstLOExact := hwFreq * (1 + c.Calibrate)
	c.pendingFirstLO = firstLOExact
	c.setSecondLOLocked(firstLOExact - c.targetRF)
	c.mu.Unlock()

	if moved && send != nil {
		return send(hwFreq)
	}
	return nil
}

// ConfirmFirstLO reconciles the tuning plane once the front end reports
// the hardware first LO frequency it actually achieved (which may differ
// slightly from what was requested, e.g. due to the tuner's frequency
// step granularity): the second LO is recomputed so the effective center
// frequency still lands on the last target_rf passed to SetFreq.
func (c *Controller) ConfirmFirstLO(hwFreq float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.firstLO = hwFreq
	firstLOExact := hwFreq * (1 + c.Calibrate)
	c.setSecondLOLocked(firstLOExact - c.targetRF)
}

func (c *Controller) setSecondLOLocked(hz float64) {
	if c.SecondLO == nil {
		return
	}
	c.SecondLO.Set(hz/c.exactSampRate(), 0)
}

// SetShift atomically retunes the post-demodulation shift oscillator to
// deltaHz.
func (c *Controller) SetShift(deltaHz float64) {
	if c.ShiftOsc == nil {
		return
	}
	c.ShiftOsc.Set(deltaHz/c.exactSampRate(), 0)
}

// SetDoppler atomically retunes the Doppler oscillator to deltaHz with a
// sweep rate of rateHzPerSec, matching set_second_LO_rate's conversion of
// a Hz/sec rate into cycles/sample^2.
func (c *Controller) SetDoppler(deltaHz, rateHzPerSec float64) {
	if c.DopplerOsc == nil {
		return
	}
	sr := c.exactSampRate()
	c.DopplerOsc.Set(deltaHz/sr, rateHzPerSec/(sr*sr))
}

// Freq returns the current effective tuned RF frequency (first LO minus
// second LO), get_freq's equivalent.
func (c *Controller) Freq() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SecondLO == nil {
		return c.firstLO * (1 + c.Calibrate)
	}
	return c.firstLO*(1+c.Calibrate) - c.SecondLO.Freq()*c.exactSampRate()
}
