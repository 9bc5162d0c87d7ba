// Package demod implements the three demodulator kernels -- AM envelope
// detection, FM discrimination with threshold-extension squelch, and the
// general linear/SSB/PLL detector -- plus the automatic gain control they
// share.
//
// Grounded on am.c, fm.c and linear.c from the original receiver core.
package demod

import "math"

// AGC is the automatic gain control shared by the AM and linear
// demodulators: a single multiplicative gain that snaps down whenever the
// signal would exceed headroom, then hangs for a configurable time before
// recovering at a fixed dB/sec rate.
//
// Grounded on am.c's and linear.c's near-identical gain loops -- the two
// callers duplicate this logic nearly verbatim in the original, so it's
// factored out once here rather than copied twice.
type AGC struct {
	Headroom float64 // linear amplitude threshold, e.g. dB2Voltage(-10)
	HangTime float64 // seconds to hold gain after a peak before recovering
	Gain     float64 // current gain; NaN means "not yet initialized"

	hangcount         int
	recoveryPerSample float64
	sampRate          float64
}

// DBToVoltage converts a dB value to a linear voltage ratio, matching
// dsp.h's dB2voltage macro.
func DBToVoltage(db float64) float64 { return math.Pow(10, db/20) }

// VoltageToDB is the inverse of DBToVoltage, matching dsp.h's voltage2dB.
func VoltageToDB(v float64) float64 { return 20 * math.Log10(v) }

// NewAGC builds an AGC for a stream sampled at sampRate (the decimated
// output rate), recovering at recoveryRateDB dB/sec once HangTime has
// elapsed since the last gain reduction.
func NewAGC(headroom, hangTime, recoveryRateDB, sampRate float64) *AGC {
	return &AGC{
		Headroom:          headroom,
		HangTime:          hangTime,
		Gain:              math.NaN(),
		sampRate:          sampRate,
		recoveryPerSample: DBToVoltage(recoveryRateDB / sampRate),
	}
}

// SetRecoveryRate recomputes the per-sample recovery factor, used when the
// recovery_rate config tag changes at runtime (am.c recomputes this once
// per block rather than once per sample so a status-driven rate change
// takes effect promptly).
func (a *AGC) SetRecoveryRate(recoveryRateDB float64) {
	a.recoveryPerSample = DBToVoltage(recoveryRateDB / a.sampRate)
}

// Update runs one sample of the AGC given the current signal amplitude (or,
// for AM, the smoothed carrier estimate) and returns the gain to apply to
// that sample.
func (a *AGC) Update(amplitude float64) float64 {
	switch {
	case math.IsNaN(a.Gain) || a.Gain*amplitude > a.Headroom:
		a.Gain = a.Headroom / amplitude
		a.hangcount = int(a.HangTime * a.sampRate)
	case a.hangcount > 0:
		a.hangcount--
	default:
		a.Gain *= a.recoveryPerSample
	}
	return a.Gain
}
