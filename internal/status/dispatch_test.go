package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTuner struct {
	targetRF          float64
	lastTargetRF      float64
	lastExplicitLO2   *float64
	shift             float64
	dopplerDelta      float64
	dopplerRate       float64
	setFreqCalls      int
	lastFirstLO       float64
	setFirstLOCalls   int
}

func (f *fakeTuner) SetFreq(targetRF float64, explicitLO2 *float64) error {
	f.setFreqCalls++
	f.lastTargetRF = targetRF
	f.lastExplicitLO2 = explicitLO2
	f.targetRF = targetRF
	return nil
}
func (f *fakeTuner) SetFirstLO(hwFreq float64) error {
	f.setFirstLOCalls++
	f.lastFirstLO = hwFreq
	return nil
}
func (f *fakeTuner) SetShift(deltaHz float64)                 { f.shift = deltaHz }
func (f *fakeTuner) SetDoppler(deltaHz, rateHzPerSec float64) { f.dopplerDelta, f.dopplerRate = deltaHz, rateHzPerSec }
func (f *fakeTuner) TargetRF() float64                        { return f.targetRF }

type fakeDemod struct {
	demodType          int
	setDemodTypeCalls  int
	pllEnable          bool
	setPLLEnableCalls  int
	pllSquare          bool
	setPLLSquareCalls  int
	isb                bool
	setISBCalls        int
	outputChannels     int
	setChannelsCalls   int
}

func (f *fakeDemod) SetDemodType(t int)              { f.demodType, f.setDemodTypeCalls = t, f.setDemodTypeCalls+1 }
func (f *fakeDemod) SetPLLEnable(enable bool)        { f.pllEnable, f.setPLLEnableCalls = enable, f.setPLLEnableCalls+1 }
func (f *fakeDemod) SetPLLSquare(square bool)        { f.pllSquare, f.setPLLSquareCalls = square, f.setPLLSquareCalls+1 }
func (f *fakeDemod) SetIndependentSideband(isb bool) { f.isb, f.setISBCalls = isb, f.setISBCalls+1 }
func (f *fakeDemod) SetOutputChannels(n int)         { f.outputChannels, f.setChannelsCalls = n, f.setChannelsCalls+1 }

type fakeFilter struct {
	low, high, beta float64
	rebuildCalls    int
}

func (f *fakeFilter) Rebuild(low, high, beta float64) error {
	f.rebuildCalls++
	f.low, f.high, f.beta = low, high, beta
	return nil
}
func (f *fakeFilter) Edges() (float64, float64, float64) { return f.low, f.high, f.beta }

func TestDispatchExplicitRFWinsOverLO2(t *testing.T) {
	tuner := &fakeTuner{}
	d := Dispatcher{Tuner: tuner}

	var e Encoder
	e.Float64(RadioFrequency, 14200000)
	e.Float64(SecondLOFrequency, 9000)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, tuner.setFreqCalls)
	assert.Equal(t, 14200000.0, tuner.lastTargetRF)
	assert.Nil(t, tuner.lastExplicitLO2)
}

func TestDispatchBareLO2UsesCurrentTargetRF(t *testing.T) {
	tuner := &fakeTuner{targetRF: 7100000}
	d := Dispatcher{Tuner: tuner}

	var e Encoder
	e.Float64(SecondLOFrequency, -5000)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, tuner.setFreqCalls)
	assert.Equal(t, 7100000.0, tuner.lastTargetRF)
	require.NotNil(t, tuner.lastExplicitLO2)
	assert.Equal(t, -5000.0, *tuner.lastExplicitLO2)
}

func TestDispatchShiftAndDoppler(t *testing.T) {
	tuner := &fakeTuner{}
	d := Dispatcher{Tuner: tuner}

	var e Encoder
	e.Float64(ShiftFrequency, 1500)
	e.Float64(DopplerFrequency, 30)
	e.Float64(DopplerFrequencyRate, 2)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1500.0, tuner.shift)
	assert.Equal(t, 30.0, tuner.dopplerDelta)
	assert.Equal(t, 2.0, tuner.dopplerRate)
	assert.Equal(t, 0, tuner.setFreqCalls, "no RF or LO2 tag present")
}

func TestDispatchFilterEdgesFillsInMissingFromCurrent(t *testing.T) {
	f := &fakeFilter{low: -2500, high: 2500, beta: 3.0}
	d := Dispatcher{Filter: f}

	var e Encoder
	e.Float32(HighEdge, 2800)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, f.rebuildCalls)
	assert.Equal(t, -2500.0, f.low)
	assert.InDelta(t, 2800.0, f.high, 1e-3)
	assert.Equal(t, 3.0, f.beta)
}

func TestDispatchBareLO1SetsFirstLODirectly(t *testing.T) {
	tuner := &fakeTuner{targetRF: 7100000}
	d := Dispatcher{Tuner: tuner}

	var e Encoder
	e.Float64(FirstLOFrequency, 7000000)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, tuner.setFirstLOCalls)
	assert.Equal(t, 7000000.0, tuner.lastFirstLO)
	assert.Equal(t, 0, tuner.setFreqCalls, "LO1 alone must not go through SetFreq")
}

func TestDispatchExplicitRFWinsOverLO1(t *testing.T) {
	tuner := &fakeTuner{}
	d := Dispatcher{Tuner: tuner}

	var e Encoder
	e.Float64(RadioFrequency, 14200000)
	e.Float64(FirstLOFrequency, 14000000)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, tuner.setFreqCalls)
	assert.Equal(t, 0, tuner.setFirstLOCalls)
}

func TestDispatchRoutesDemodControlTags(t *testing.T) {
	dm := &fakeDemod{}
	d := Dispatcher{Demod: dm}

	var e Encoder
	e.Int(DemodType, 1)
	e.Bool(PLLEnable, true)
	e.Bool(PLLSquare, true)
	e.Bool(IndependentSideband, true)
	e.Int(OutputChannels, 2)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	assert.Equal(t, 1, dm.demodType)
	assert.True(t, dm.pllEnable)
	assert.True(t, dm.pllSquare)
	assert.True(t, dm.isb)
	assert.Equal(t, 2, dm.outputChannels)
}

func TestDispatchUnrecognizedTagCallback(t *testing.T) {
	var seen []Tag
	d := Dispatcher{OnUnrecognized: func(t Tag) { seen = append(seen, t) }}

	var e Encoder
	e.Int(LNAGain, 10)
	pkt := ParsePacket(Encode(DirCommand, Decode(e.Bytes())))

	require.NoError(t, d.Apply(pkt))
	require.Len(t, seen, 1)
	assert.Equal(t, LNAGain, seen[0])
}
