// Package osc implements the receiver's complex oscillator: an incrementally
// stepped unit-modulus phasor used for the second LO, the Doppler and
// post-demod shift oscillators, and as the VCO inside the linear
// demodulator's Costas/PLL loop.
//
// Grounded on osc.c from the original receiver core: set_osc/step_osc/
// renorm_osc become Set/Step/Renorm below. The phase-accumulator idiom
// itself -- an incremental complex multiply instead of a per-sample trig
// call -- is the same technique morse.go uses for its tone generator
// (tone_phase / f1_change_per_sample), just expressed here as a reusable
// complex type instead of an integer phase counter indexed into a sine
// table.
package osc

import (
	"math"
	"sync"

	"github.com/skywave-radio/radiod/internal/sample"
)

// RenormRate is how many Step calls occur between magnitude renormalizations.
// Cumulative complex multiplication drifts the phasor's magnitude away from
// unity; dividing by the magnitude every RenormRate steps costs one sqrt per
// ~0.3s at 48kHz, negligible next to the filter cost it rides alongside.
const RenormRate = 16384

// Oscillator is a unit-modulus complex phasor with an optional linear
// frequency sweep (chirp).
type Oscillator struct {
	mu sync.Mutex

	freq float64 // cycles/sample
	rate float64 // cycles/sample^2

	phasor         sample.IQ
	phasorStep     sample.IQ
	phasorStepStep sample.IQ
	steps          int
}

// New returns an oscillator with zero frequency and an uninitialized phasor.
func New() *Oscillator {
	return &Oscillator{phasorStep: 1, phasorStepStep: 1}
}

func isPhasorInit(x sample.IQ) bool {
	if math.IsNaN(x.Real()) || math.IsNaN(x.Imag()) {
		return false
	}
	return x.Mag2() >= 0.9
}

// Set configures the oscillator's frequency and sweep rate, both in units of
// cycles per sample (and cycles per sample^2 for rate). If the phasor has
// never been initialized (or has drifted to NaN) it is reset to 1+0i so the
// next Step doesn't introduce a phase jump relative to whatever was there
// before.
func (o *Oscillator) Set(freq, rate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !isPhasorInit(o.phasor) {
		o.phasor = 1
		o.steps = 0
	}
	o.freq = freq
	o.rate = rate
	o.phasorStep = sample.FromPolar(1, 2*math.Pi*freq)
	if rate != 0 {
		o.phasorStepStep = sample.FromPolar(1, 2*math.Pi*rate)
	} else {
		o.phasorStepStep = 1
	}
}

// Step advances the oscillator by one sample and returns the phasor value
// that was current *before* the step, matching step_osc's "return, then
// advance" order so the first sample out of a freshly Set oscillator is
// always phase zero.
//
// Step takes no lock: only Set mutates the frequency, and the single caller
// that steps a given oscillator every sample is the only writer of its
// phasor, matching the original's single-mutex-on-set, lock-free-on-step
// design (see spec's concurrency model: "Oscillator phasors: each oscillator
// has its own mutex; step() takes no lock (only set() does)").
func (o *Oscillator) Step() sample.IQ {
	r := o.phasor
	if o.rate != 0 {
		o.phasorStep = sample.IQ(o.phasorStep.Complex() * o.phasorStepStep.Complex())
	}
	o.phasor = sample.IQ(o.phasor.Complex() * o.phasorStep.Complex())
	o.steps++
	if o.steps == RenormRate {
		o.renorm()
	}
	return r
}

// Renorm forces immediate magnitude renormalization.
func (o *Oscillator) Renorm() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renorm()
}

func (o *Oscillator) renorm() {
	o.steps = 0
	o.phasor = sample.FromPolar(1, o.phasor.Arg())
	if o.rate != 0 {
		o.phasorStepStep = sample.FromPolar(1, o.phasorStepStep.Arg())
	}
}

// Freq returns the oscillator's current frequency in cycles/sample.
func (o *Oscillator) Freq() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.freq
}

// Phase returns arg(phasor) in radians, used to report carrier phase (e.g.
// the linear demodulator's PLL_PHASE status tag).
func (o *Oscillator) Phase() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phasor.Arg()
}

// Phasor returns the oscillator's current complex phasor value without
// advancing it, used by the linear demodulator's PLL mix-down (which reads
// the VCO's phasor before Run steps it for the next sample).
func (o *Oscillator) Phasor() sample.IQ {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phasor
}
