package demod

import (
	"math"

	"github.com/skywave-radio/radiod/internal/sample"
)

// AM is the envelope (incoherent) AM demodulator.
//
// Grounded on am.c's demod_am: magnitude detection, a slow DC tracker that
// follows the carrier level, and an AGC referenced to that carrier
// estimate rather than to the instantaneous amplitude (so a single noise
// spike can't swing the gain).
type AM struct {
	// DCAlpha is the carrier-tracking filter coefficient, spec default 1e-4.
	DCAlpha float64

	dcFilter float64
	agc      *AGC
}

// NewAM builds an AM demodulator with the given AGC parameters at the
// decimated output sample rate.
func NewAM(headroom, hangTime, recoveryRateDB, sampRate float64) *AM {
	return &AM{DCAlpha: 1e-4, agc: NewAGC(headroom, hangTime, recoveryRateDB, sampRate)}
}

// AGC exposes the demodulator's gain control, e.g. for status reporting.
func (d *AM) AGC() *AGC { return d.agc }

// Process demodulates one block, returning mono audio and the baseband
// power (mean |x|^2) for status reporting.
func (d *AM) Process(block []sample.IQ) (audio []float64, bbPower float64) {
	audio = make([]float64, len(block))
	var signal float64
	for n, x := range block {
		sampsq := x.Mag2()
		signal += sampsq
		samp := math.Sqrt(sampsq)

		// DC_filter always stays positive since samp is a magnitude.
		d.dcFilter += d.DCAlpha * (samp - d.dcFilter)

		gain := d.agc.Update(d.dcFilter)
		audio[n] = (samp - d.dcFilter) * gain
	}
	bbPower = signal / float64(len(block))
	return audio, bbPower
}
