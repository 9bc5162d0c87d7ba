package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skywave-radio/radiod/internal/demod"
	"github.com/skywave-radio/radiod/internal/sample"
	"github.com/skywave-radio/radiod/internal/status"
)

func TestComputeDecimateRoundsToNearestInteger(t *testing.T) {
	assert.Equal(t, 24, computeDecimate(192000, 8000))
	assert.Equal(t, 1, computeDecimate(8000, 192000))
	assert.Equal(t, 1, computeDecimate(8000, 0)) // falls back to defaultOutputSampleRate
}

func TestDecodePayloadIQ16LittleEndian(t *testing.T) {
	// One sample: I=16384 (0.5 full scale), Q=-16384, little-endian 16-bit.
	payload := []byte{0x00, 0x40, 0x00, 0xC0}
	out, ok := decodePayload(97, payload)
	assert.True(t, ok)
	assert.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0].Real(), 1e-6)
	assert.InDelta(t, -0.5, out[0].Imag(), 1e-6)
}

func TestDecodePayloadIQ8Signed(t *testing.T) {
	payload := []byte{64, 192} // I=64 (+0.5), Q=-64 (-0.5) as int8
	out, ok := decodePayload(98, payload)
	assert.True(t, ok)
	assert.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0].Real(), 1e-6)
	assert.InDelta(t, -0.5, out[0].Imag(), 1e-6)
}

func TestDecodePayloadIQ12PackedBigEndian(t *testing.T) {
	// I=2048+1024=3072 -> +0.5, Q=2048 -> 0.0, packed as 12+12 bits in 3 bytes.
	raw := uint32(3072)<<12 | uint32(2048)
	payload := []byte{byte(raw >> 16), byte(raw >> 8), byte(raw)}
	out, ok := decodePayload(99, payload)
	assert.True(t, ok)
	assert.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0].Real(), 1e-6)
	assert.InDelta(t, 0.0, out[0].Imag(), 1e-6)
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	_, ok := decodePayload(55, []byte{1, 2, 3, 4})
	assert.False(t, ok)
}

func TestDecodePayloadRejectsMisalignedLength(t *testing.T) {
	_, ok := decodePayload(97, []byte{1, 2, 3})
	assert.False(t, ok)
}

func TestBlockIsSilentMono(t *testing.T) {
	assert.True(t, blockIsSilent([]float64{0, 0, 0}, nil))
	assert.False(t, blockIsSilent([]float64{0, 0, 0.001}, nil))
}

func TestBlockIsSilentStereo(t *testing.T) {
	silent := []sample.IQ{0, 0}
	loud := []sample.IQ{0, sample.IQ(complex(0.1, 0))}
	assert.True(t, blockIsSilent(nil, silent))
	assert.False(t, blockIsSilent(nil, loud))
}

func TestPutPCM16ClampsAndScales(t *testing.T) {
	buf := make([]byte, 2)
	putPCM16(buf, 2.0) // clamps to +1
	assert.Equal(t, int16(32767), int16(uint16(buf[0])<<8|uint16(buf[1])))

	putPCM16(buf, -2.0) // clamps to -1
	assert.Equal(t, int16(-32767), int16(uint16(buf[0])<<8|uint16(buf[1])))
}

func TestTargetChannelFallsBackToFirstWhenNoSSRCTag(t *testing.T) {
	r := &Receiver{
		Channels:  []*Channel{{Name: "a"}, {Name: "b"}},
		ssrcIndex: map[uint32]*Channel{},
	}
	got := r.targetChannel(status.Packet{})
	assert.Same(t, r.Channels[0], got)
}

func TestTargetChannelMatchesOutputSSRCTag(t *testing.T) {
	a := &Channel{Name: "a"}
	b := &Channel{Name: "b"}
	r := &Receiver{
		Channels:  []*Channel{a, b},
		ssrcIndex: map[uint32]*Channel{1: a, 2: b},
	}
	var e status.Encoder
	e.Int(status.OutputSSRC, 2)
	pkt := status.ParsePacket(append([]byte{byte(status.DirCommand)}, e.Bytes()...))

	got := r.targetChannel(pkt)
	assert.Same(t, b, got)
}

func TestChannelSetModeAndModeRoundTrip(t *testing.T) {
	ch := &Channel{mode: ModeLinear}
	ch.SetMode(ModeFM)
	assert.Equal(t, ModeFM, ch.Mode())
}

func TestChannelSetDemodTypeMapsNumericCodes(t *testing.T) {
	ch := &Channel{mode: ModeLinear}
	ch.SetDemodType(1)
	assert.Equal(t, ModeFM, ch.Mode())
	ch.SetDemodType(2)
	assert.Equal(t, ModeAM, ch.Mode())
	ch.SetDemodType(0)
	assert.Equal(t, ModeLinear, ch.Mode())
}

func TestChannelDemodControlForwardsToLinear(t *testing.T) {
	ch := &Channel{Linear: demod.NewLinear(demod.LinearOptions{Channels: 1}, 8000)}

	ch.SetPLLEnable(true)
	assert.True(t, ch.Linear.Options.PLL)

	ch.SetPLLSquare(true)
	assert.True(t, ch.Linear.Options.Square)

	ch.SetIndependentSideband(true)
	assert.Equal(t, 2, ch.Linear.Options.Channels)

	ch.SetIndependentSideband(false)
	assert.Equal(t, 1, ch.Linear.Options.Channels)

	ch.SetOutputChannels(2)
	assert.Equal(t, 2, ch.Linear.Options.Channels)
}

func TestNextStatusForceEveryTenthEmit(t *testing.T) {
	ch := &Channel{}
	for i := 0; i < statusForceCadence; i++ {
		force := ch.nextStatusForce()
		if i == 0 {
			assert.True(t, force, "first emit (count 0) must be forced")
		} else {
			assert.False(t, force, "emit %d must not be forced", i)
		}
	}
	// Count has wrapped back to 0 -- the 11th call forces again.
	assert.True(t, ch.nextStatusForce())
}

func TestNextStatusForceAfterCommandArrival(t *testing.T) {
	ch := &Channel{}
	assert.True(t, ch.nextStatusForce()) // consume the periodic force at count 0
	assert.False(t, ch.nextStatusForce())

	ch.noteCommandApplied()
	assert.True(t, ch.nextStatusForce(), "command arrival must force the next emit")
	assert.False(t, ch.nextStatusForce(), "force flag must clear after being consumed")
}
