package todotxt

import (
	"encoding/json"
	"strings"
)

// NoPriority marks an entry without a (A)-(Z) priority.
const NoPriority byte = 0

// Tag is a +project, @context or key:value annotation found in a
// description. Key holds the prefix character for +/@ tags.
type Tag struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

func (t Tag) String() string {
	if t.Key == string(projectPrefix) || t.Key == string(contextPrefix) {
		return t.Key + t.Value
	}
	return t.Key + ":" + t.Value
}

// Entry is one parsed todo.txt line.
//
// Description keeps the text of every tag listed in Tags; tags index the
// description rather than being removed from it.
type Entry struct {
	Completed      bool
	Priority       byte
	CompletionDate Date
	CreationDate   Date
	Description    string
	Tags           []Tag
}

// entryView is the exported shape of an Entry in YAML and JSON output.
type entryView struct {
	Completed      bool   `yaml:"completed" json:"completed"`
	Priority       string `yaml:"priority,omitempty" json:"priority,omitempty"`
	CompletionDate string `yaml:"completion_date,omitempty" json:"completion_date,omitempty"`
	CreationDate   string `yaml:"creation_date,omitempty" json:"creation_date,omitempty"`
	Description    string `yaml:"description" json:"description"`
	Tags           []Tag  `yaml:"tags,omitempty" json:"tags"`
	Line           string `yaml:"line" json:"line"`
}

func (e Entry) view() entryView {
	v := entryView{
		Completed:   e.Completed,
		Priority:    e.PriorityString(),
		Description: e.Description,
		Tags:        e.Tags,
		Line:        e.String(),
	}
	if v.Tags == nil {
		v.Tags = []Tag{}
	}
	if e.CompletionDate.Valid() {
		v.CompletionDate = e.CompletionDate.String()
	}
	if e.CreationDate.Valid() {
		v.CreationDate = e.CreationDate.String()
	}
	return v
}

// MarshalYAML implements yaml.Marshaler.
func (e Entry) MarshalYAML() (interface{}, error) {
	return e.view(), nil
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.view())
}

func (e Entry) HasPriority() bool {
	return e.Priority != NoPriority
}

// PriorityString returns "A".."Z" or "" when no priority is set.
func (e Entry) PriorityString() string {
	if !e.HasPriority() {
		return ""
	}
	return string(e.Priority)
}

// TagValues returns the values of all tags with key, in order.
func (e Entry) TagValues(key string) []string {
	var out []string
	for _, t := range e.Tags {
		if t.Key == key {
			out = append(out, t.Value)
		}
	}
	return out
}

func (e Entry) HasTag(key, value string) bool {
	for _, t := range e.Tags {
		if t.Key == key && t.Value == value {
			return true
		}
	}
	return false
}

// Projects returns the +project values.
func (e Entry) Projects() []string { return e.TagValues(string(projectPrefix)) }

// Contexts returns the @context values.
func (e Entry) Contexts() []string { return e.TagValues(string(contextPrefix)) }

// Parse reads one line of todo.txt markup. Leading markers are consumed in
// order: "x", "(A)", then one or two dates. A lone date is the creation date;
// two dates are completion then creation. Everything after the markers is the
// description. Parse never fails: markup that does not fit is left in the
// description.
func Parse(line string) Entry {
	var e Entry
	words := Tokenize(line, ' ')
	cur := 0

	if cur < len(words) && IsCompletionMarker(words[cur]) {
		e.Completed = true
		cur++
	}
	if cur < len(words) && IsPriorityMarker(words[cur]) {
		e.Priority = words[cur][1]
		cur++
	}
	if cur < len(words) && IsDate(words[cur]) {
		if cur+1 < len(words) && IsDate(words[cur+1]) {
			e.CompletionDate = ParseDate(words[cur])
			e.CreationDate = ParseDate(words[cur+1])
			cur++
		} else {
			e.CreationDate = ParseDate(words[cur])
		}
		cur++
	}

	rest := words[cur:]
	e.Description = strings.Join(rest, " ")
	for _, w := range rest {
		if tag, ok := ParseTag(w); ok {
			e.Tags = append(e.Tags, tag)
		}
	}
	return e
}

// String renders e back to a single todo.txt line.
func (e Entry) String() string {
	return Format(e)
}

// Format renders e as "x (A) completion creation description", omitting
// absent parts. A completion date is written only together with a creation
// date, since a lone date reads back as the creation date.
func Format(e Entry) string {
	parts := make([]string, 0, 5)
	if e.Completed {
		parts = append(parts, completionMarker)
	}
	if e.HasPriority() {
		parts = append(parts, "("+string(e.Priority)+")")
	}
	if e.CreationDate.Valid() {
		if e.CompletionDate.Valid() {
			parts = append(parts, e.CompletionDate.String())
		}
		parts = append(parts, e.CreationDate.String())
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	return strings.Join(parts, " ")
}
