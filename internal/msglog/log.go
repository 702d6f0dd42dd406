// Package msglog provides the bounded, insertion-ordered message log kept by
// each tester engine.
package msglog

// DefaultMax is the capacity used when a non-positive maximum is given.
const DefaultMax = 1000

// Log is a FIFO buffer holding at most Max entries. Appending to a full log
// evicts the oldest entry.
//
// Thread Safety: Log is not safe for concurrent use. Engines guard it with
// their own mutex.
type Log[M any] struct {
	items []M
	max   int
}

// New creates a log holding at most limit entries.
func New[M any](limit int) *Log[M] {
	if limit <= 0 {
		limit = DefaultMax
	}
	return &Log[M]{max: limit}
}

// Append adds m, evicting the oldest entries if the log is over capacity.
func (l *Log[M]) Append(m M) {
	l.items = append(l.items, m)
	l.trim()
}

// Items returns a copy of the log contents, oldest first.
func (l *Log[M]) Items() []M {
	out := make([]M, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of entries.
func (l *Log[M]) Len() int {
	return len(l.items)
}

// Max returns the capacity.
func (l *Log[M]) Max() int {
	return l.max
}

// Clear removes every entry.
func (l *Log[M]) Clear() {
	clear(l.items)
	l.items = l.items[:0]
}

// SetMax changes the capacity, evicting the oldest entries if needed.
func (l *Log[M]) SetMax(limit int) {
	if limit <= 0 {
		limit = DefaultMax
	}
	l.max = limit
	l.trim()
}

func (l *Log[M]) trim() {
	over := len(l.items) - l.max
	if over <= 0 {
		return
	}
	clear(l.items[:over])
	l.items = append(l.items[:0], l.items[over:]...)
}
