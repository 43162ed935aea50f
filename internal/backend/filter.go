package backend

import (
	"strings"
)

// textFilter suppresses empty and consecutively repeated transcript text so
// receive loops only surface distinct updates. Used from a single receive
// goroutine; no locking.
type textFilter struct {
	last string
}

// emit trims text and forwards it when non-empty and different from the
// previously forwarded value.
func (f *textFilter) emit(text string, out func(string)) {
	text = strings.TrimSpace(text)
	if text == "" || text == f.last {
		return
	}
	f.last = text
	out(text)
}
