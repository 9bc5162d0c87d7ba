// Package filter implements the fast-convolution (overlap-save) channelizer:
// a block FFT filter with a dynamically rebuildable Kaiser-windowed transfer
// function and integer output decimation.
//
// Grounded on filter.c from the original core. That implementation uses
// FFTW3 directly against C's native complex type; this port uses
// gonum.org/v1/gonum/dsp/fourier instead, since nothing nearby does
// spectral work and the standard library has no FFT.
package filter

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/skywave-radio/radiod/internal/sample"
	"github.com/skywave-radio/radiod/internal/window"
)

// OutputType selects how bins are recombined on the way to the inverse FFT.
type OutputType int

const (
	// Complex produces a full complex output (general SDR passband).
	Complex OutputType = iota
	// Real produces a real-valued output via Hermitian folding, used for
	// SSB/CW/AM where only one sideband's energy is wanted.
	Real
	// CrossConj produces an ISB (independent sideband) output: negative
	// frequency energy folds onto the I channel, positive onto Q.
	CrossConj
)

// Filter is an overlap-save fast-convolution block filter.
//
// L is the input block size, M the impulse response length, N=L+M-1 the
// FFT size, and D the integer output decimation. Response is stored in the
// frequency domain; rebuilding it (on a change to low/high/beta/samprate) is
// done under mu so Execute never reads it mid-update.
type Filter struct {
	L, M, N, D int
	OutType    OutputType

	Low, High  float64 // passband edges, fraction of the *decimated* sample rate
	KaiserBeta float64

	mu       sync.RWMutex
	response []complex128 // length N, frequency domain

	inputRing []complex128 // length N; [0:M-1] is overlap, [M-1:N] is the new block

	fwd *fourier.CmplxFFT // size N
	inv *fourier.CmplxFFT // size N/D
}

// New allocates a filter. D must evenly divide N=L+M-1 for clean decimation;
// if it doesn't, the filter still works (the caller gets a slightly uneven
// overlap accounting) but callers should prefer D that divides N, and a
// warning is the caller's responsibility to log (this mirrors filter.c's
// "Warning: FFT size is not divisible by decimation ratio", which warns and
// proceeds rather than refusing to construct the filter).
func New(l, m, decimate int, outType OutputType) (*Filter, error) {
	if l <= 0 || m <= 0 || decimate <= 0 {
		return nil, fmt.Errorf("filter: L, M and decimate must be positive (got L=%d M=%d D=%d)", l, m, decimate)
	}
	n := l + m - 1
	f := &Filter{
		L: l, M: m, N: n, D: decimate,
		OutType:   outType,
		response:  make([]complex128, n),
		inputRing: make([]complex128, n),
		fwd:       fourier.NewCmplxFFT(n),
		inv:       fourier.NewCmplxFFT(n / decimate),
	}
	return f, nil
}

// NDec is the number of (decimated) output samples per block, N/D.
func (f *Filter) NDec() int { return f.N / f.D }

// Edges returns the filter's current passband edges and Kaiser beta, the
// values last passed to Rebuild -- used by the command dispatcher to fill
// in whichever of low/high/beta a LOW_EDGE/HIGH_EDGE/KAISER_BETA command
// didn't specify.
func (f *Filter) Edges() (low, high, beta float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Low, f.High, f.KaiserBeta
}

// Warnings reports non-fatal construction issues, mirroring filter.c's
// fprintf warnings about awkward (N, D) combinations.
func (f *Filter) Warnings() []string {
	var warnings []string
	if f.N%f.D != 0 {
		warnings = append(warnings, fmt.Sprintf("FFT size %d is not divisible by decimation ratio %d", f.N, f.D))
	}
	if (f.M-1)%f.D != 0 {
		warnings = append(warnings, fmt.Sprintf("filter length %d - 1 is not divisible by decimation ratio %d", f.M, f.D))
	}
	return warnings
}

// SetResponse installs a precomputed frequency-domain response (length N).
// Used by tests and by Rebuild below. Gain for Real/CrossConj outputs is
// trimmed by 1/sqrt(2) here to compensate for folding both sidebands onto
// one set of bins, matching filter.c's per-type gain adjustment at
// construction time.
func (f *Filter) SetResponse(resp []complex128) error {
	if len(resp) != f.N {
		return fmt.Errorf("filter: response length %d != N %d", len(resp), f.N)
	}
	cp := make([]complex128, f.N)
	copy(cp, resp)
	if f.OutType == Real || f.OutType == CrossConj {
		const gain = 0.70710678118654752440 // 1/sqrt(2)
		for i := range cp {
			cp[i] *= gain
		}
	}
	f.mu.Lock()
	f.response = cp
	f.mu.Unlock()
	return nil
}

// Rebuild regenerates the response for a new passband [low,high] (as a
// fraction of the decimated sample rate) and Kaiser beta. It follows
// window_filter/window_rfilter from the original core: start from a boxcar
// passband in the frequency domain, inverse-transform to the time domain,
// center and apply the Kaiser window of length M, zero-pad back to N, and
// forward-transform again.
func (f *Filter) Rebuild(low, high, beta float64) error {
	n := f.N
	box := make([]complex128, n)

	// Mark passband bins. low/high are given as a fraction of the decimated
	// rate; the forward FFT runs at the full (pre-decimation) rate, where
	// decimated_rate = full_rate/D, so a fraction-of-decimated value maps to
	// a fraction-of-full value D times smaller.
	loN := low / float64(f.D)
	hiN := high / float64(f.D)
	for k := 0; k < n; k++ {
		freq := float64(k) / float64(n)
		if freq > 0.5 {
			freq -= 1
		}
		if freq >= loN && freq <= hiN {
			box[k] = 1
		}
	}

	timeDomain := f.inv2(box, n) // inverse FFT of size n, 1/n-normalized

	kw := window.Kaiser(f.M, beta)
	shifted := make([]complex128, n)
	half := f.M / 2
	for i := f.M - 1; i >= 0; i-- {
		src := ((i - half)%n + n) % n
		shifted[i] = timeDomain[src] * complex(kw[i], 0)
	}
	// shifted[M:] is already zero (fresh slice).

	freqDomain := f.fwdN(shifted, n)

	f.Low, f.High, f.KaiserBeta = low, high, beta
	return f.SetResponse(freqDomain)
}

// fwdN and inv2 run a forward/inverse complex FFT of arbitrary size n.
// fwdN reuses f.fwd when n is N (as it always is from Rebuild) and builds a
// throwaway plan otherwise; inv2 builds a new plan on every call.
func (f *Filter) fwdN(x []complex128, n int) []complex128 {
	plan := f.fwd
	if n != f.N {
		plan = fourier.NewCmplxFFT(n)
	}
	return plan.Coefficients(nil, x)
}

// inv2 runs an inverse FFT of size n and divides by n: gonum's
// CmplxFFT.Sequence is the unnormalized inverse transform (a
// Coefficients-then-Sequence round trip scales by n), so every caller of
// Sequence here applies its own normalization.
func (f *Filter) inv2(x []complex128, n int) []complex128 {
	plan := fourier.NewCmplxFFT(n)
	out := plan.Sequence(nil, x)
	scaleInPlace(out, 1/float64(n))
	return out
}

func scaleInPlace(x []complex128, factor float64) {
	s := complex(factor, 0)
	for i := range x {
		x[i] *= s
	}
}

// pushBlock copies one block of L new input samples (already spun down to
// baseband by the channel slice) into the filter's input ring after the
// M-1 samples kept from the previous block. Execute calls it with exactly L
// samples.
func (f *Filter) pushBlock(block []sample.IQ) {
	copy(f.inputRing[f.M-1:], toComplex(block))
}

func toComplex(xs []sample.IQ) []complex128 {
	out := make([]complex128, len(xs))
	for i, x := range xs {
		out[i] = x.Complex()
	}
	return out
}

// Execute runs one overlap-save block: block must contain exactly L new
// input samples. It returns L/D output samples (for Complex/CrossConj, as
// sample.IQ; for Real, as real float64 carried in the real part of IQ with
// zero imaginary).
func (f *Filter) Execute(block []sample.IQ) ([]sample.IQ, error) {
	if len(block) != f.L {
		return nil, fmt.Errorf("filter: Execute wants %d samples, got %d", f.L, len(block))
	}
	f.pushBlock(block)

	fdomain := f.fwd.Coefficients(nil, f.inputRing)

	// Preserve the last M-1 samples of input for the next block's overlap.
	copy(f.inputRing[0:f.M-1], f.inputRing[f.N-(f.M-1):f.N])

	f.mu.RLock()
	resp := f.response
	f.mu.RUnlock()

	nDec := f.NDec()
	dec := make([]complex128, nDec)

	dec[0] = resp[0] * fdomain[0] // DC, same handling for all types

	switch f.OutType {
	case Complex:
		for p, n2 := 1, f.N-1; p < nDec/2; p, n2 = p+1, n2-1 {
			dec[p] = resp[p] * fdomain[p]
			dec[nDec-p] = resp[n2] * fdomain[n2]
		}
	case CrossConj:
		for p, n2 := 1, f.N-1; p < nDec/2; p, n2 = p+1, n2-1 {
			pos := resp[p] * fdomain[p]
			neg := resp[n2] * fdomain[n2]
			dec[p] = pos + cmplxConj(neg)
			dec[nDec-p] = neg - cmplxConj(pos)
		}
	case Real:
		for p, n2 := 1, f.N-1; p < nDec/2; p, n2 = p+1, n2-1 {
			pos := resp[p] * fdomain[p]
			neg := resp[n2] * fdomain[n2]
			dec[p] = pos + cmplxConj(neg)
			// Negative bins are implicitly the conjugate of positive ones,
			// reconstructing a real time-domain signal the way a c2r IFFT
			// would; see filter.c's REAL branch.
			dec[nDec-p] = cmplxConj(dec[p])
		}
	}
	dec[nDec/2] = resp[nDec/2] * fdomain[nDec/2] // Nyquist, same for all types

	// inv.Sequence is gonum's unnormalized inverse (see inv2's doc comment).
	// The scale is 1/N, matching the N-point forward transform that produced
	// fdomain, so a unity passband response gives unity output gain at any
	// decimation; 1/nDec would make the output D times too loud.
	timeDomain := f.inv.Sequence(nil, dec)
	scaleInPlace(timeDomain, 1/float64(f.N))

	// The valid output window starts (M-1)/2 samples into the ring rather
	// than the full M-1: the impulse response is zero-padded causally into
	// the N-length FFT, so a symmetric (linear-phase) response carries a
	// group delay of exactly (M-1)/2 samples, and that's where the caller
	// wants the output aligned. See filter.c's output indexing and the
	// scenario 1 test below.
	tailLen := (f.M - 1) / 2 / f.D
	out := make([]sample.IQ, f.L/f.D)
	for i := range out {
		v := timeDomain[tailLen+i]
		if f.OutType == Real {
			v = complex(real(v), 0)
		}
		out[i] = sample.IQ(v)
	}
	return out, nil
}

func cmplxConj(x complex128) complex128 {
	return complex(real(x), -imag(x))
}
