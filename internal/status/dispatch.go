package status

// Tuner is the subset of a tuning controller a command dispatcher needs.
// Satisfied by *tuning.Controller; kept as an interface here so this
// package doesn't import tuning (and so dispatch logic is testable
// against a fake).
type Tuner interface {
	SetFreq(targetRF float64, explicitLO2 *float64) error
	SetFirstLO(hwFreq float64) error
	SetShift(deltaHz float64)
	SetDoppler(deltaHz, rateHzPerSec float64)
	TargetRF() float64
}

// FilterControl is the subset of a filter a command dispatcher needs.
// Satisfied by *filter.Filter.
type FilterControl interface {
	Rebuild(low, high, beta float64) error
	Edges() (low, high, beta float64)
}

// DemodControl is the subset of a channel's demodulator state a command
// dispatcher needs, routing the E/F/G tags -- demod type selection, PLL and
// independent-sideband toggles, and output channel count. Satisfied by
// *receiver.Channel, which applies SetDemodType to its mode and forwards
// the PLL, ISB and output-channel settings to its linear demodulator
// whatever mode is active.
type DemodControl interface {
	SetDemodType(t int)
	SetPLLEnable(enable bool)
	SetPLLSquare(square bool)
	SetIndependentSideband(enable bool)
	SetOutputChannels(n int)
}

// Dispatcher applies command packets by routing each recognized tag to the
// appropriate setter: Tuner for the tuning tags, Filter for the passband
// edges, Demod for demodulator-control tags. Unrecognized tags are simply
// not matched by any case below -- Decode has already skipped past their
// value using the length field, so no explicit handling is needed to stay
// in sync with the rest of the packet.
//
// RADIO_FREQUENCY, FIRST_LO_FREQUENCY and SECOND_LO_FREQUENCY are
// deferred and resolved together at the end of the packet so a single
// command specifying any subset produces one consistent retune: explicit
// RF wins over a bare second-LO override, which in turn wins over a bare
// first-LO override.
type Dispatcher struct {
	Tuner  Tuner
	Filter FilterControl
	Demod  DemodControl

	// OnUnrecognized, if set, is called for every tag no setter below
	// handles -- useful for logging commands a particular demod type or
	// build doesn't support, without treating them as protocol errors.
	OnUnrecognized func(Tag)
}

// Apply routes every entry in pkt to its setter and returns the first
// setter error encountered (if any); later entries are still applied.
func (d *Dispatcher) Apply(pkt Packet) error {
	var (
		haveRF, haveLO1, haveLO2         bool
		rf, lo1, lo2                     float64
		haveShift                        bool
		shift                            float64
		haveDopplerDelta, haveDopplerRate bool
		dopplerDelta, dopplerRate        float64
		haveLow, haveHigh, haveBeta      bool
		low, high, beta                  float64
		haveDemodType                    bool
		demodType                        int
		havePLLEnable, havePLLSquare     bool
		pllEnable, pllSquare             bool
		haveISB                          bool
		isb                              bool
		haveOutputChannels               bool
		outputChannels                   int
	)

	for _, e := range pkt.Entries {
		switch e.Tag {
		case RadioFrequency:
			rf, haveRF = DecodeFloat64(e.Value), true
		case FirstLOFrequency:
			lo1, haveLO1 = DecodeFloat64(e.Value), true
		case SecondLOFrequency:
			lo2, haveLO2 = DecodeFloat64(e.Value), true
		case ShiftFrequency:
			shift, haveShift = DecodeFloat64(e.Value), true
		case DopplerFrequency:
			dopplerDelta, haveDopplerDelta = DecodeFloat64(e.Value), true
		case DopplerFrequencyRate:
			dopplerRate, haveDopplerRate = DecodeFloat64(e.Value), true
		case LowEdge:
			low, haveLow = float64(DecodeFloat32(e.Value)), true
		case HighEdge:
			high, haveHigh = float64(DecodeFloat32(e.Value)), true
		case KaiserBeta:
			beta, haveBeta = float64(DecodeFloat32(e.Value)), true
		case DemodType:
			demodType, haveDemodType = DecodeInt(e.Value), true
		case PLLEnable:
			pllEnable, havePLLEnable = DecodeBool(e.Value), true
		case PLLSquare:
			pllSquare, havePLLSquare = DecodeBool(e.Value), true
		case IndependentSideband:
			isb, haveISB = DecodeBool(e.Value), true
		case OutputChannels:
			outputChannels, haveOutputChannels = DecodeInt(e.Value), true
		default:
			if d.OnUnrecognized != nil {
				d.OnUnrecognized(e.Tag)
			}
		}
	}

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.Tuner != nil {
		if haveShift {
			d.Tuner.SetShift(shift)
		}
		if haveDopplerDelta || haveDopplerRate {
			d.Tuner.SetDoppler(dopplerDelta, dopplerRate)
		}
		switch {
		case haveRF:
			note(d.Tuner.SetFreq(rf, nil))
		case haveLO2:
			// No explicit RF in this packet: hold the last target and
			// just override where the second LO sits within it.
			note(d.Tuner.SetFreq(d.Tuner.TargetRF(), &lo2))
		case haveLO1:
			// Neither RF nor LO2 given: park the first LO directly and let
			// the second LO absorb the difference so the target RF holds.
			note(d.Tuner.SetFirstLO(lo1))
		}
	}

	if d.Filter != nil && (haveLow || haveHigh || haveBeta) {
		curLow, curHigh, curBeta := d.Filter.Edges()
		if haveLow {
			curLow = low
		}
		if haveHigh {
			curHigh = high
		}
		if haveBeta {
			curBeta = beta
		}
		note(d.Filter.Rebuild(curLow, curHigh, curBeta))
	}

	if d.Demod != nil {
		if haveDemodType {
			d.Demod.SetDemodType(demodType)
		}
		if havePLLEnable {
			d.Demod.SetPLLEnable(pllEnable)
		}
		if havePLLSquare {
			d.Demod.SetPLLSquare(pllSquare)
		}
		if haveISB {
			d.Demod.SetIndependentSideband(isb)
		}
		if haveOutputChannels {
			d.Demod.SetOutputChannels(outputChannels)
		}
	}

	return firstErr
}
