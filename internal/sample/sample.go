// Package sample defines the complex baseband sample type shared by every
// DSP stage in the receiver chain.
//
// The original C core aliases "complex float"/"complex double" directly and
// leans on the compiler's native complex arithmetic. Go has complex64/
// complex128 too, but giving the receiver chain its own named type with
// explicit accessors keeps the oscillator and filter APIs from leaking a
// builtin numeric type into every signature, and gives us one place to add
// accessors (e.g. Mag2) that every demodulator needs.
package sample

import "math/cmplx"

// IQ is one complex baseband sample.
type IQ complex128

// Complex returns the underlying complex128.
func (s IQ) Complex() complex128 { return complex128(s) }

// Real returns the in-phase component.
func (s IQ) Real() float64 { return real(complex128(s)) }

// Imag returns the quadrature component.
func (s IQ) Imag() float64 { return imag(complex128(s)) }

// Mag returns |s|.
func (s IQ) Mag() float64 { return cmplx.Abs(complex128(s)) }

// Mag2 returns |s|^2 without the square root, the quantity most AGC and
// SNR estimators actually want.
func (s IQ) Mag2() float64 {
	re, im := real(complex128(s)), imag(complex128(s))
	return re*re + im*im
}

// Conj returns the complex conjugate.
func (s IQ) Conj() IQ { return IQ(cmplx.Conj(complex128(s))) }

// Arg returns the phase angle in radians.
func (s IQ) Arg() float64 { return cmplx.Phase(complex128(s)) }

// FromPolar builds a unit-magnitude phasor at the given phase, or the given
// magnitude/phase pair.
func FromPolar(mag, phase float64) IQ {
	return IQ(cmplx.Rect(mag, phase))
}
