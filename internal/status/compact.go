package status

import "bytes"

// Compactor tracks the last value sent for each tag and strips unchanged
// fields from subsequent packets, matching compact_packet's per-tag
// change-tracking table (struct state s[256] in the original).
type Compactor struct {
	last [256][]byte
}

// NewCompactor returns a Compactor with no tags yet seen; the first
// Compact call (with force=false) therefore emits every entry once.
func NewCompactor() *Compactor {
	return &Compactor{}
}

// Compact filters entries down to those that changed since the last call
// (or all of them, if force is true), and updates the tracking table to
// match. The EOL terminator is not part of entries and is not added here;
// callers append it when serializing.
func (c *Compactor) Compact(entries []Entry, force bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		prev := c.last[e.Tag]
		if force || prev == nil || !bytes.Equal(prev, e.Value) {
			c.last[e.Tag] = append([]byte(nil), e.Value...)
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the tracking table so the next Compact call re-sends every
// tag regardless of force.
func (c *Compactor) Reset() {
	for i := range c.last {
		c.last[i] = nil
	}
}
