package store

import (
	"strings"

	"github.com/amirbrooks/todotxt/internal/todotxt"
)

const (
	StatusOpen = "open"
	StatusDone = "done"
)

// ListFilter selects entries. Empty fields match everything.
type ListFilter struct {
	// Tag is "+project", "@context", "key:value" or a bare key.
	Tag      string
	Search   string
	Status   string
	Priority string
}

// Match is an entry together with its list index.
type Match struct {
	Index int           `json:"index" yaml:"index"`
	Entry todotxt.Entry `json:"entry" yaml:"entry"`
}

// Filter returns matching entries in list order.
func (l *List) Filter(f ListFilter) []Match {
	f = normalizeListFilter(f)
	var out []Match
	for i, e := range l.entries {
		if !matchesListFilter(e, f) {
			continue
		}
		out = append(out, Match{Index: i, Entry: cloneEntry(e)})
	}
	return out
}

func normalizeListFilter(f ListFilter) ListFilter {
	return ListFilter{
		Tag:      strings.TrimSpace(f.Tag),
		Search:   strings.ToLower(strings.TrimSpace(f.Search)),
		Status:   strings.ToLower(strings.TrimSpace(f.Status)),
		Priority: strings.ToUpper(strings.TrimSpace(f.Priority)),
	}
}

func matchesListFilter(e todotxt.Entry, f ListFilter) bool {
	switch f.Status {
	case StatusOpen:
		if e.Completed {
			return false
		}
	case StatusDone:
		if !e.Completed {
			return false
		}
	}
	if f.Priority != "" && e.PriorityString() != f.Priority {
		return false
	}
	if f.Tag != "" && !matchesTag(e, f.Tag) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Description), f.Search) {
		return false
	}
	return true
}

func matchesTag(e todotxt.Entry, query string) bool {
	if tag, ok := todotxt.ParseTag(query); ok {
		return e.HasTag(tag.Key, tag.Value)
	}
	// A bare key matches any key:value tag with that key.
	key := strings.TrimSuffix(query, ":")
	return len(e.TagValues(key)) > 0
}
