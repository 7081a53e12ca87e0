// Package todotxt parses and renders single lines of todo.txt markup.
package todotxt

// Tokenize splits line into words on sep.
//
// A run of separators counts as one boundary and leading separators are
// skipped, so no empty word comes from a run. The segment after the last
// boundary is always returned, even when it is empty: "a b " yields
// ["a" "b" ""] and "" yields [""].
func Tokenize(line string, sep byte) []string {
	var words []string
	begin := 0
	for i := 0; i < len(line); i++ {
		if line[i] != sep {
			continue
		}
		if i == begin {
			begin++
			continue
		}
		words = append(words, line[begin:i])
		begin = i + 1
	}
	return append(words, line[begin:])
}
