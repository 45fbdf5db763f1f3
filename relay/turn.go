package relay

import "strings"

// turnText accumulates model text within one turn. Some models resend the
// cumulative text instead of a delta; delta strips what was already sent.
type turnText struct {
	seen string
}

// delta returns the part of chunk not yet forwarded and records it.
// A chunk extending the accumulated text yields the suffix; any other chunk
// is a fresh fragment and is returned whole.
func (t *turnText) delta(chunk string) string {
	if strings.HasPrefix(chunk, t.seen) {
		d := chunk[len(t.seen):]
		t.seen = chunk
		return d
	}
	t.seen += chunk
	return chunk
}

func (t *turnText) reset() {
	t.seen = ""
}
