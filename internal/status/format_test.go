package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacketStringFormatsGPSTimeAsTimestamp(t *testing.T) {
	var e Encoder
	e.Int64(GPSTime, 1700000000) // 2023-11-14 22:13:20 UTC
	pkt := ParsePacket(append([]byte{byte(DirStatus)}, e.Bytes()...))

	out := pkt.String()
	assert.Contains(t, out, "gps_time=2023-11-14 22:13:20 UTC")
}

func TestPacketStringFormatsPlainIntegerTags(t *testing.T) {
	var e Encoder
	e.Int64(InputSamples, 42)
	pkt := ParsePacket(append([]byte{byte(DirCommand)}, e.Bytes()...))

	out := pkt.String()
	assert.Contains(t, out, "dir=1")
	assert.Contains(t, out, "input_samples=42")
}

func TestPacketStringHandlesEmptyPacket(t *testing.T) {
	pkt := ParsePacket(nil)
	assert.Equal(t, "dir=0", pkt.String())
}
