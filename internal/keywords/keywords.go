// Package keywords turns free text into the normalised keyword set used both
// to index events and to query them. Indexing and querying must go through
// the same Extract for matches to line up.
package keywords

import (
	"regexp"
	"slices"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

var stopWords = toSet(
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in", "into",
	"is", "it", "i", "no", "not", "of", "on", "or", "such", "that", "the", "their",
	"then", "there", "these", "they", "this", "to", "was", "will", "with", "what",
	"where", "when", "why", "how", "help", "need", "like", "make", "got", "would",
	"could", "should",
)

// Set is a keyword set.
type Set map[string]struct{}

func toSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// FromSlice builds a Set from stored keywords.
func FromSlice(words []string) Set {
	return toSet(words...)
}

// IsStopWord reports whether word is dropped by Extract.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Extract splits text into maximal runs of ASCII letters, lower-cases each run
// and drops stop words. Non-ASCII letters only ever separate words.
func Extract(text string) Set {
	out := Set{}
	if text == "" {
		return out
	}
	for _, w := range wordPattern.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if !IsStopWord(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// ExtractAll merges the keywords of every text.
func ExtractAll(texts ...string) Set {
	out := Set{}
	for _, t := range texts {
		for w := range Extract(t) {
			out[w] = struct{}{}
		}
	}
	return out
}

// Sorted returns the keywords in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// Intersects reports whether s and other share a keyword.
func (s Set) Intersects(other Set) bool {
	if len(s) > len(other) {
		s, other = other, s
	}
	for w := range s {
		if _, ok := other[w]; ok {
			return true
		}
	}
	return false
}

// Chunk splits the sorted keywords into groups of at most size entries.
func (s Set) Chunk(size int) [][]string {
	if size <= 0 {
		size = 1
	}
	return slices.Collect(slices.Chunk(s.Sorted(), size))
}
