package osc

import "math"

// PLL is a second-order digital phase-locked loop driving a VCO realized as
// an Oscillator. Grounded on osc.c's init_pll/run_pll (Gardner's classic
// loop-filter derivation): the natural frequency and damping factor are
// turned into a proportional gain and an integrator gain once at
// construction, and each sample feeds a phase-detector output through both.
type PLL struct {
	VCO *Oscillator

	sampleTime float64 // 1/samprate

	propGain       float64 // Kp = tau2/tau1
	integratorGain float64 // Ki = 1/tau1
	integrator     float64
}

// NewPLL builds a loop with natural frequency loopBW Hz, damping factor
// damping (1/sqrt(2) is "critical" damping), initial VCO frequency freq Hz,
// at the given sample rate.
func NewPLL(loopBW, damping, freq, sampRate float64) *PLL {
	p := &PLL{VCO: New()}
	p.sampleTime = 1 / sampRate

	freqCyclesPerSample := freq * p.sampleTime
	natFreqCyclesPerSample := loopBW * p.sampleTime

	const vcoGain = 2 * math.Pi // radians/sample per "volt"
	const pdGain = 1            // phase detector gain, unity from atan2

	natFreq := natFreqCyclesPerSample * 2 * math.Pi // rad/sample
	tau1 := vcoGain * pdGain / (natFreq * natFreq)
	tau2 := 2 * damping / natFreq

	p.propGain = tau2 / tau1
	p.integratorGain = 1 / tau1
	// Seed the integrator so the initial VCO frequency matches freq.
	p.integrator = freqCyclesPerSample / p.integratorGain

	p.VCO.Set(0, 0)
	return p
}

// Run steps the loop filter through one sample given the phase detector's
// output (radians), sets the VCO to the resulting clamped frequency, steps
// it one sample, and returns the feedback (VCO frequency in cycles/sample).
func (p *PLL) Run(phase float64) float64 {
	feedback := p.integratorGain*p.integrator + p.propGain*phase
	p.integrator += phase

	switch {
	case feedback > 0.49:
		feedback = 0.49
	case feedback < -0.49:
		feedback = -0.49
	}
	p.VCO.Set(feedback, 0)
	p.VCO.Step()
	return feedback
}
