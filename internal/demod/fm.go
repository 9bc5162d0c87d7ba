package demod

import (
	"math"
	"sync"

	"github.com/skywave-radio/radiod/internal/sample"
	"github.com/skywave-radio/radiod/internal/window"
)

// FM is the FM discriminator with threshold-extension squelch.
//
// Grounded on fm.c's demod_fm: a two-pass mean/variance estimate of the
// block's amplitude feeds a Rice-distribution SNR correction (fmSNR/xi,
// below), which drives a squelch with a short tail so brief fades don't
// click. When open, successive-sample phase differences are the FM output,
// either passed straight through ("flat") or integrated with -6dB/octave
// de-emphasis.
type FM struct {
	mu sync.Mutex

	// Flat disables de-emphasis, for data/digital FM modes.
	Flat bool

	state       complex128 // previous sample, for the one-sample phase difference
	lastAudio   float64    // de-emphasis integrator state
	squelchOpen int        // blocks remaining with squelch held open
}

// NewFM builds an FM demodulator.
func NewFM() *FM { return &FM{} }

// SetFlat toggles de-emphasis over the control channel: true selects flat
// (data/digital) output, false restores the -6dB/octave de-emphasis used
// for voice.
func (d *FM) SetFlat(flat bool) {
	d.mu.Lock()
	d.Flat = flat
	d.mu.Unlock()
}

// deEmphasisDecay is 1/e at 300 Hz, the same constant fm.c uses.
const deEmphasisDecay = 0.99376949

// FMInfo carries the per-block measurements fm.c reports through the status
// protocol.
type FMInfo struct {
	SNR        float64
	FOffset    float64 // Hz
	PDeviation float64 // Hz
	BBPower    float64
	Level      float64
}

// Process demodulates one block. headroom and passband (low, high, both
// Hz, high>low) set the fixed audio gain, applied in both flat and
// de-emphasis modes, and sampRate is the decimated output rate.
func (d *FM) Process(block []sample.IQ, headroom, low, high, sampRate float64) ([]float64, FMInfo) {
	n := len(block)
	gain := (headroom * (1 / math.Pi) * sampRate) / math.Abs(high-low)

	d.mu.Lock()
	flat := d.Flat
	d.mu.Unlock()

	var bbPower, avgAmp float64
	amplitudes := make([]float64, n)
	for i, x := range block {
		t := x.Mag2()
		bbPower += t
		amplitudes[i] = math.Sqrt(t)
		avgAmp += amplitudes[i]
	}
	bbPower /= float64(n)
	avgAmp /= float64(n)

	var variance float64
	for _, a := range amplitudes {
		d := a - avgAmp
		variance += d * d
	}
	if n > 1 {
		variance /= float64(n - 1)
	}

	snr := fmSNR(avgAmp * avgAmp / variance)
	if snr < 0 {
		snr = 0
	}

	const squelchThreshold = 4 // ~6 dB
	if snr > squelchThreshold {
		d.squelchOpen = 2 // ~40ms tail at typical block sizes
	}

	samples := make([]float64, n)
	var info FMInfo
	info.SNR = snr
	info.BBPower = bbPower

	if d.squelchOpen > 0 {
		d.squelchOpen--

		var pdevPos, pdevNeg, avgF float64
		for i, x := range block {
			xc := x.Complex()
			p := xc * cmplxConjD(d.state)
			d.state = xc

			ang := cmplxArg(p)
			amp := cmplxAbs(p) / variance
			if amp > 1 {
				amp = 1
			}

			avgF += ang
			switch {
			case i == 0:
				pdevPos, pdevNeg = ang, ang
			case ang > pdevPos:
				pdevPos = ang
			case ang < pdevNeg:
				pdevNeg = ang
			}

			if flat {
				samples[i] = ang * gain
			} else {
				d.lastAudio += ang * 0.114 * gain * amp
				samples[i] = d.lastAudio
				d.lastAudio *= deEmphasisDecay
			}
		}
		avgF /= float64(n)
		info.FOffset = sampRate * avgF / (2 * math.Pi)
		pdevPos -= avgF
		pdevNeg -= avgF
		info.PDeviation = sampRate * math.Max(pdevPos, -pdevNeg) / (2 * math.Pi)
	} else {
		d.state = 0
		for i := range samples {
			if flat {
				samples[i] = 0
			} else {
				samples[i] = d.lastAudio
				d.lastAudio *= deEmphasisDecay
			}
		}
	}

	var level float64
	for _, s := range samples {
		level += s * s
	}
	info.Level = level / float64(n)

	return samples, info
}

func cmplxConjD(x complex128) complex128 { return complex(real(x), -imag(x)) }
func cmplxArg(x complex128) float64      { return math.Atan2(imag(x), real(x)) }
func cmplxAbs(x complex128) float64      { return math.Hypot(real(x), imag(x)) }

// fmSNR refines an apparent (mean/stddev)^2 amplitude ratio into a
// corrected signal-to-noise power ratio, removing the Rice-distribution
// bias that a noisy FM carrier's amplitude envelope introduces.
//
// Grounded on fm.c's fm_snr/xi, iterated to convergence (|delta|<1e-3).
func fmSNR(r float64) float64 {
	const rayleighFloor = math.Pi / (4 - math.Pi) // meansq/variance of pure noise
	if r <= rayleighFloor {
		return 0
	}
	if r > 100 { // formula blows up for large SNR; correction is negligible anyway
		return r
	}

	thetaSq := r
	prevThetaSq := r + 10
	for math.Abs(thetaSq-prevThetaSq) > 1e-3 {
		prevThetaSq = thetaSq
		thetaSq = xi(thetaSq)*(1+r) - 2
	}
	return thetaSq
}

// xi implements the Rice-distribution correction function from fm.c.
func xi(thetaSq float64) float64 {
	t := (2+thetaSq)*window.I0(0.25*thetaSq) + thetaSq*window.I1(0.25*thetaSq)
	t *= t
	return 2 + thetaSq - (math.Pi/8)*math.Exp(-0.5*thetaSq)*t
}
