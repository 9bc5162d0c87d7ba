// Package channel implements the receiver's channel slice: the per-sample
// pre-processing that turns raw complex baseband from the network stream
// into a corrected, spun-down stream ready for the fast-convolution filter.
//
// Grounded on demod.c's proc_samples/spindown from the original receiver
// core. The original updates its DC, gain-balance and phase-imbalance
// estimates with a per-sample exponential filter; this port instead
// accumulates per-block statistics and folds them into the running
// estimate once per block, applying the *previous* block's coefficients to
// the current one -- corrections are applied on the next block's samples,
// not the current one.
package channel

import (
	"math"
	"sync"

	"github.com/skywave-radio/radiod/internal/osc"
	"github.com/skywave-radio/radiod/internal/sample"
)

// Slice is one receiver channel's DC/gain/phase corrector and second-LO
// spindown stage.
type Slice struct {
	mu sync.Mutex

	// LO is the second (digital) local oscillator; Process multiplies each
	// corrected sample by one LO step, same as spindown's "Apply 2nd LO".
	LO *osc.Oscillator

	dc complex128 // running DC offset estimate (I in real, Q in imag)

	imb                    float64 // running I/Q energy-ratio imbalance estimate
	sinPhi, secPhi, tanPhi float64
	gainI, gainQ           float64

	DCAlpha  float64 // DC tracking rate, spec default ~1e-3
	ImbRate  float64 // imbalance tracking rate
	PhiRate  float64 // phase tracking rate
}

// New returns a channel slice with unity gain/phase correction and a zero
// DC estimate, driven by lo.
func New(lo *osc.Oscillator) *Slice {
	return &Slice{
		LO:      lo,
		imb:     1,
		gainI:   1,
		gainQ:   1,
		secPhi:  1,
		tanPhi:  0,
		DCAlpha: 1e-3,
		ImbRate: 1e-3,
		PhiRate: 1e-3,
	}
}

// Process corrects block in place: DC removal, gain-balance, phase-
// imbalance correction, then spindown by the second LO. The coefficients
// used are those derived from the previous call's statistics; this call's
// own statistics are folded into the running estimate for the next call.
func (s *Slice) Process(block []sample.IQ) {
	s.mu.Lock()
	dc := s.dc
	gainI, gainQ, secPhi, tanPhi := s.gainI, s.gainQ, s.secPhi, s.tanPhi
	s.mu.Unlock()

	n := len(block)
	if n == 0 {
		return
	}

	var sumI, sumQ, ie, qe, iq float64
	for idx, x := range block {
		raw := x.Complex()
		rawI, rawQ := real(raw), imag(raw)
		sumI += rawI
		sumQ += rawQ

		i := rawI - real(dc)
		q := rawQ - imag(dc)

		i *= gainI
		q *= gainQ
		q = q*secPhi - tanPhi*i

		ie += i * i
		qe += q * q
		iq += i * q

		block[idx] = sample.IQ(s.LO.Step().Complex() * complex(i, q))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meanI := sumI / float64(n)
	meanQ := sumQ / float64(n)
	s.dc += complex(s.DCAlpha*(meanI-real(s.dc)), s.DCAlpha*(meanQ-imag(s.dc)))

	if ie != 0 && qe != 0 {
		s.imb += s.ImbRate * (ie/qe - s.imb)
		s.gainI = math.Sqrt((1 + 1/s.imb) / 2)
		s.gainQ = math.Sqrt((1 + s.imb) / 2)

		s.sinPhi += s.PhiRate * (2*iq/(ie+qe) - s.sinPhi)
		s.secPhi = 1 / math.Sqrt(1-s.sinPhi*s.sinPhi)
		s.tanPhi = s.sinPhi * s.secPhi
	}
}

// Stats reports the current running correction coefficients: the gain
// imbalance, the sine of the phase error, and the I and Q gain corrections.
func (s *Slice) Stats() (imb, sinPhi, gainI, gainQ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imb, s.sinPhi, s.gainI, s.gainQ
}

// DCOffset reports the current running DC estimate.
func (s *Slice) DCOffset() sample.IQ {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sample.IQ(s.dc)
}
