package demod

import (
	"math"
	"sync"

	"github.com/skywave-radio/radiod/internal/osc"
	"github.com/skywave-radio/radiod/internal/sample"
)

// LinearOptions selects the general linear/SSB/PLL demodulator's behavior.
type LinearOptions struct {
	PLL      bool // run the Costas/PLL carrier tracker
	Square   bool // square the mixed-down signal before the phase detector (carrier-suppressed)
	Env      bool // envelope (magnitude) output instead of real part
	AGC      bool // enable the shared AGC
	Channels int  // 1 (mono) or 2 (stereo / ISB)
}

// Linear is the general-purpose linear demodulator: USB/LSB/CW/IQ/ISB, with
// an optional Costas-loop PLL carrier tracker and AGC.
//
// Grounded on linear.c's demod_linear: PLL lock hysteresis, the
// mix-down-and-phase-detect loop driving osc.PLL, post-PLL AGC, and the
// env/mono/stereo output selection.
type Linear struct {
	// mu guards Options and PLL against the command dispatcher's setters
	// running concurrently with Process, which only reads them.
	mu      sync.Mutex
	Options LinearOptions

	PLL      *osc.PLL       // carrier tracker, used only when Options.PLL
	ShiftOsc *osc.Oscillator // post-demod frequency shift, always applied
	agc      *AGC

	defaultLoopBW float64 // loop bandwidth SetPLLEnable installs a fresh PLL with

	sampRate float64

	lockCount int
	lockLimit int
	pllLock   bool

	snr     float64
	foffset float64
	cphase  float64
}

// NewLinear builds a linear demodulator at the given (decimated) output
// sample rate. The PLL loop bandwidth is not set here; EnablePLL sets it.
func NewLinear(opts LinearOptions, sampRate float64) *Linear {
	return &Linear{
		Options:       opts,
		ShiftOsc:      osc.New(),
		sampRate:      sampRate,
		defaultLoopBW: 5, // Hz, matching linear.c's demod->opt.loop_bw default
		lockLimit:     int(1 * sampRate), // 1s hysteresis, matching linear.c's lock_time
	}
}

// EnablePLL installs a PLL with the given loop bandwidth (Hz), critically
// damped, matching linear.c's demod->opt.loop_bw = 5 default and
// init_pll(...,damping=1/sqrt(2),...).
func (d *Linear) EnablePLL(loopBW float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultLoopBW = loopBW
	d.PLL = osc.NewPLL(loopBW, math.Sqrt2/2, 0, d.sampRate)
	d.Options.PLL = true
}

// SetPLLEnable turns the Costas/PLL carrier tracker on or off over the
// control channel. Enabling when no PLL has been built yet installs one at
// the last-configured (or default) loop bandwidth; disabling leaves the PLL
// object in place, parked, so a later re-enable resumes rather than
// reallocates.
func (d *Linear) SetPLLEnable(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enable && d.PLL == nil {
		d.PLL = osc.NewPLL(d.defaultLoopBW, math.Sqrt2/2, 0, d.sampRate)
	}
	d.Options.PLL = enable
}

// SetPLLSquare selects carrier-suppressed (squaring) tracking, used for DSB
// signals with no discrete carrier line.
func (d *Linear) SetPLLSquare(square bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Options.Square = square
}

// SetChannels changes the demodulator's output channel count (1=mono,
// 2=stereo/ISB) over the control channel.
func (d *Linear) SetChannels(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Options.Channels = n
}

// EnableAGC installs the shared AGC.
func (d *Linear) EnableAGC(headroom, hangTime, recoveryRateDB float64) {
	d.agc = NewAGC(headroom, hangTime, recoveryRateDB, d.sampRate)
}

// AGC exposes the demodulator's gain control, nil if EnableAGC was never
// called.
func (d *Linear) AGC() *AGC { return d.agc }

// LinearInfo carries the per-block measurements linear.c reports through
// the status protocol.
type LinearInfo struct {
	SNR     float64
	FOffset float64 // Hz
	CPhase  float64 // radians
	PLLLock bool
	BBPower float64
	Level   float64
}

// updateLockDetector applies n samples' worth of the lock-hysteresis
// counter: it moves toward +lockLimit while snr sits above the +3dB
// threshold and toward -lockLimit otherwise, crossing either bound sets
// pllLock accordingly. Split out from Process so the hysteresis arithmetic
// is testable without driving the PLL's actual phase dynamics.
func (d *Linear) updateLockDetector(n int) {
	const snrThresh = 2 // +3dB
	if d.snr < snrThresh {
		d.lockCount -= n
	} else {
		d.lockCount += n
	}
	if d.lockCount >= d.lockLimit {
		d.lockCount = d.lockLimit
		d.pllLock = true
	}
	if d.lockCount <= -d.lockLimit {
		d.lockCount = -d.lockLimit
		d.pllLock = false
	}
}

// Process demodulates one block in place (the PLL branch overwrites block
// with the mixed-down signal, matching linear.c's reuse of filter->output).
// It returns mono audio when Channels==1 or Env is set, and the
// (possibly gain-scaled) complex stream otherwise for stereo/ISB output.
func (d *Linear) Process(block []sample.IQ) (mono []float64, stereo []sample.IQ, info LinearInfo) {
	n := len(block)

	d.mu.Lock()
	opts := d.Options
	pll := d.PLL
	d.mu.Unlock()

	if opts.PLL && pll != nil {
		d.updateLockDetector(n)

		var signal, noise float64
		for i, x := range block {
			s := x.Complex() * cmplxConjD(pll.VCO.Phasor().Complex())

			var phase float64
			if opts.Square {
				phase = cmplxArg(s * s)
			} else {
				phase = cmplxArg(s)
			}
			pll.Run(phase)

			block[i] = sample.IQ(s)

			rp := real(s) * real(s)
			ip := imag(s) * imag(s)
			signal += rp
			noise += ip
		}

		d.cphase = pll.VCO.Phase()
		if opts.Square {
			d.cphase /= 2
		}
		d.foffset = pll.VCO.Freq() * d.sampRate
		if noise != 0 {
			d.snr = signal/noise - 1
			if d.snr < 0 {
				d.snr = 0
			}
		} else {
			d.snr = math.NaN()
		}
	}

	info.SNR = d.snr
	info.FOffset = d.foffset
	info.CPhase = d.cphase
	info.PLLLock = d.pllLock

	monoOut := make([]float64, n)
	var energy, outputLevel float64
	for i, x := range block {
		s := x.Complex() * d.ShiftOsc.Step().Complex()
		norm := real(s)*real(s) + imag(s)*imag(s)
		energy += norm
		amplitude := math.Sqrt(norm)

		gain := 1.0
		if opts.AGC && d.agc != nil {
			gain = d.agc.Update(amplitude)
		}

		switch {
		case opts.Env:
			monoOut[i] = amplitude * gain
			outputLevel += monoOut[i] * monoOut[i]
		case opts.Channels == 1:
			monoOut[i] = real(s) * gain
			outputLevel += monoOut[i] * monoOut[i]
		default:
			block[i] = sample.IQ(s * complex(gain, 0))
			outputLevel += block[i].Mag2()
		}
	}

	info.BBPower = energy / float64(n)
	info.Level = outputLevel / float64(n*max(1, opts.Channels))

	if opts.Env || opts.Channels == 1 {
		return monoOut, nil, info
	}
	return nil, block, info
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
