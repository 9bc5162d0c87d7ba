package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// gpsTimeLayout renders GPSTime entries using a strftime layout rather
// than Go's reference-date format, the way xmit.go/tq.go format audio-file
// timestamps elsewhere in this lineage.
const gpsTimeLayout = "%Y-%m-%d %H:%M:%S UTC"

// String renders a packet's entries as a human-readable line for debug
// logging: "tag=value" pairs space-separated, with GPSTime pretty-printed
// as a timestamp instead of a raw integer.
func (p Packet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dir=%d", p.Direction)
	for _, e := range p.Entries {
		b.WriteByte(' ')
		b.WriteString(e.Tag.String())
		b.WriteByte('=')
		b.WriteString(e.describe())
	}
	return b.String()
}

// describe renders one entry's value as text, without knowing its intended
// type ahead of time -- tags that are known to carry a Unix timestamp
// (GPSTime) get strftime-formatted; everything else is shown as the decoded
// unsigned integer, falling back to a length-prefixed byte count if it
// isn't a valid leading-zero-suppressed integer.
func (e Entry) describe() string {
	if e.Tag == GPSTime && len(e.Value) > 0 {
		sec := int64(DecodeUint(e.Value))
		formatted, err := strftime.Format(gpsTimeLayout, time.Unix(sec, 0).UTC())
		if err != nil {
			return fmt.Sprintf("%d", sec)
		}
		return formatted
	}
	if len(e.Value) == 0 {
		return ""
	}
	if len(e.Value) <= 8 {
		return fmt.Sprintf("%d", DecodeUint(e.Value))
	}
	return fmt.Sprintf("<%d bytes>", len(e.Value))
}
