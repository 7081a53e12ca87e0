package store

import (
	"fmt"
	"slices"

	"github.com/amirbrooks/todotxt/internal/todotxt"
)

// List is an ordered, index-addressed collection of entries. Indices are
// always the contiguous range [0, Len()). A List owns its entries: values
// passed in and handed out are copies. It is not safe for concurrent use.
type List struct {
	entries []todotxt.Entry
	limit   int
}

// NewList returns an empty list holding at most limit entries. A limit of
// zero or less means no limit.
func NewList(limit int) *List {
	return &List{limit: limit}
}

func (l *List) Len() int { return len(l.entries) }

// Append adds e at the end and returns its index. When the list is full it
// returns ErrCapacity and leaves the list unchanged.
func (l *List) Append(e todotxt.Entry) (int, error) {
	if l.limit > 0 && len(l.entries) >= l.limit {
		return 0, fmt.Errorf("%w: list holds at most %d entries", ErrCapacity, l.limit)
	}
	l.entries = append(l.entries, cloneEntry(e))
	return len(l.entries) - 1, nil
}

// Remove deletes the entry at i and shifts later entries down by one,
// keeping their order. It runs in O(Len()-i). It reports false and does
// nothing when i is out of range.
func (l *List) Remove(i int) bool {
	if !l.inRange(i) {
		return false
	}
	last := len(l.entries) - 1
	copy(l.entries[i:], l.entries[i+1:])
	// Drop the stale tail copy so the removed entry is released.
	l.entries[last] = todotxt.Entry{}
	l.entries = l.entries[:last]
	return true
}

// SetCompletion sets the completed flag of the entry at i. Nothing else
// about the entry changes.
func (l *List) SetCompletion(i int, completed bool) bool {
	if !l.inRange(i) {
		return false
	}
	l.entries[i].Completed = completed
	return true
}

// At returns a copy of the entry at i.
func (l *List) At(i int) (todotxt.Entry, bool) {
	if !l.inRange(i) {
		return todotxt.Entry{}, false
	}
	return cloneEntry(l.entries[i]), true
}

// Replace overwrites the entry at i, typically with a re-parsed line.
func (l *List) Replace(i int, e todotxt.Entry) bool {
	if !l.inRange(i) {
		return false
	}
	l.entries[i] = cloneEntry(e)
	return true
}

// Swap exchanges the entries at a and b.
func (l *List) Swap(a, b int) bool {
	if !l.inRange(a) || !l.inRange(b) {
		return false
	}
	if a == b {
		return true
	}
	l.entries[a], l.entries[b] = l.entries[b], l.entries[a]
	return true
}

// Entries returns a copy of all entries in order.
func (l *List) Entries() []todotxt.Entry {
	out := make([]todotxt.Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Clear releases every entry.
func (l *List) Clear() {
	clear(l.entries)
	l.entries = nil
}

func (l *List) inRange(i int) bool {
	return i >= 0 && i < len(l.entries)
}

func cloneEntry(e todotxt.Entry) todotxt.Entry {
	e.Tags = slices.Clone(e.Tags)
	return e
}
