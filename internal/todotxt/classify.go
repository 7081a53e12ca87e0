package todotxt

import "strings"

// TagShape is the kind of tag a word carries.
type TagShape int

const (
	ShapeNone TagShape = iota
	// ShapePrefix is a +project or @context word.
	ShapePrefix
	// ShapeKeyValue is a key:value word.
	ShapeKeyValue
)

func (s TagShape) String() string {
	switch s {
	case ShapePrefix:
		return "prefix"
	case ShapeKeyValue:
		return "key-value"
	default:
		return "none"
	}
}

const (
	completionMarker = "x"
	projectPrefix    = '+'
	contextPrefix    = '@'
)

func IsCompletionMarker(word string) bool {
	return word == completionMarker
}

// IsPriorityMarker reports whether word is "(A)" through "(Z)".
func IsPriorityMarker(word string) bool {
	return len(word) == 3 && word[0] == '(' && word[2] == ')' && isUpper(word[1])
}

func IsDate(word string) bool {
	return ParseDate(word).Valid()
}

// ShapeOf classifies word. A +/@ prefix wins over an interior colon.
func ShapeOf(word string) TagShape {
	if len(word) > 1 && (word[0] == projectPrefix || word[0] == contextPrefix) {
		return ShapePrefix
	}
	if i := strings.IndexByte(word, ':'); i >= 0 && i < len(word)-1 {
		return ShapeKeyValue
	}
	return ShapeNone
}

// ParseTag extracts the tag carried by word, if any.
func ParseTag(word string) (Tag, bool) {
	switch ShapeOf(word) {
	case ShapePrefix:
		return Tag{Key: word[:1], Value: word[1:]}, true
	case ShapeKeyValue:
		key, value, _ := strings.Cut(word, ":")
		return Tag{Key: key, Value: value}, true
	default:
		return Tag{}, false
	}
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
