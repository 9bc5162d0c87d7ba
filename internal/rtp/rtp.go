// Package rtp implements the 12-byte RTP header used to frame both the
// inbound raw I/Q stream and the outbound demodulated audio stream, plus
// per-SSRC sequence/timestamp tracking for drop and duplicate detection.
//
// Grounded on original_source/multicast.h's struct rtp_header/rtp_state
// and multicast.c's ntoh_rtp/hton_rtp/rtp_process, which this package
// reproduces field-for-field and bit-for-bit.
package rtp

import "encoding/binary"

// Version is the only RTP version this receiver speaks.
const Version = 2

// MinSize is the minimum wire size of a fixed RTP header with no CSRC list
// or extension.
const MinSize = 12

// Payload types this receiver's streams use. Non-standard, matching
// multicast.h's IQ_PT/IQ_PT8/PCM_MONO_PT/PCM_STEREO_PT.
const (
	PayloadIQ16       = 97
	PayloadIQ8        = 98
	PayloadPCMMono    = 11
	PayloadPCMStereo  = 10
)

// Header is the internal (host-order, unpacked) representation of an RTP
// header -- not what's on the wire. CSRC is nil unless CC > 0.
type Header struct {
	Version   int
	Pad       bool
	Extension bool
	Marker    bool
	Type      byte
	Seq       uint16
	Timestamp uint32
	SSRC      uint32
	CSRC      []uint32
}

// Decode parses a wire-format RTP header from the front of data and
// returns the header plus the number of bytes consumed (including any
// CSRC list and extension header, matching ntoh_rtp's pointer advance --
// the extension's payload itself is skipped, not retained).
func Decode(data []byte) (Header, int, bool) {
	if len(data) < MinSize {
		return Header{}, 0, false
	}
	w := binary.BigEndian.Uint32(data[0:4])
	h := Header{
		Version:   int(w >> 30),
		Pad:       (w>>29)&1 != 0,
		Extension: (w>>28)&1 != 0,
		Marker:    (w>>23)&1 != 0,
		Type:      byte((w >> 16) & 0x7f),
		Seq:       uint16(w & 0xffff),
		Timestamp: binary.BigEndian.Uint32(data[4:8]),
		SSRC:      binary.BigEndian.Uint32(data[8:12]),
	}
	cc := int((w >> 24) & 0xf)
	off := 12
	if len(data) < off+4*cc {
		return Header{}, 0, false
	}
	if cc > 0 {
		h.CSRC = make([]uint32, cc)
		for i := 0; i < cc; i++ {
			h.CSRC[i] = binary.BigEndian.Uint32(data[off : off+4])
			off += 4
		}
	}
	if h.Extension {
		if len(data) < off+4 {
			return Header{}, 0, false
		}
		extLen := int(binary.BigEndian.Uint32(data[off:off+4]) & 0xffff)
		off += 4 + 4*extLen
		if len(data) < off {
			return Header{}, 0, false
		}
	}
	return h, off, true
}

// Encode serializes h into wire format, written to be insensitive to
// Go struct layout the same way hton_rtp documents itself as C-layout
// independent -- it always writes exactly 12+4*len(CSRC) bytes, no
// extension (this receiver never sends one).
func Encode(h Header) []byte {
	buf := make([]byte, 12+4*len(h.CSRC))
	var w uint32 = Version << 30
	if h.Pad {
		w |= 1 << 29
	}
	if h.Extension {
		w |= 1 << 28
	}
	w |= uint32(len(h.CSRC)&0xf) << 24
	if h.Marker {
		w |= 1 << 23
	}
	w |= uint32(h.Type&0x7f) << 16
	w |= uint32(h.Seq)
	binary.BigEndian.PutUint32(buf[0:4], w)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
	for i, csrc := range h.CSRC {
		binary.BigEndian.PutUint32(buf[12+4*i:16+4*i], csrc)
	}
	return buf
}

// State tracks one inbound RTP stream's sequence number and timestamp,
// matching struct rtp_state.
type State struct {
	SSRC             uint32
	init             bool
	expectedSeq      uint16
	expectedTimestamp uint32
	Packets          int64
	Drops            int64
	Dupes            int64
}

// Process applies one incoming header to the tracked state, matching
// rtp_process: a new or reused SSRC resets tracking; a sequence number
// behind the expected one is a duplicate (dropped, return false); a
// sequence number ahead of expected counts its gap as drops; the return
// value is the number of sample-times the timestamp jumped ahead of
// what was expected (0 when contiguous), or a negative value if the
// packet's timestamp is older than expected (also dropped).
//
// sampleCount is the number of samples/frames this packet carries, used
// to predict the next expected timestamp.
func (s *State) Process(h Header, sampleCount int) (timestampJump int64, accept bool) {
	if h.SSRC != s.SSRC {
		s.init = false
		s.SSRC = h.SSRC
	}
	if !s.init {
		s.Packets = 0
		s.expectedSeq = h.Seq
		s.expectedTimestamp = h.Timestamp
		s.Dupes = 0
		s.Drops = 0
		s.init = true
	}
	s.Packets++

	seqStep := int16(h.Seq - s.expectedSeq)
	if seqStep != 0 {
		if seqStep < 0 {
			s.Dupes++
			return 0, false
		}
		s.Drops += int64(seqStep)
	}
	s.expectedSeq = h.Seq + 1

	timeStep := int64(int32(h.Timestamp - s.expectedTimestamp))
	if timeStep < 0 {
		return timeStep, false
	}
	s.expectedTimestamp = h.Timestamp + uint32(sampleCount)
	return timeStep, true
}
