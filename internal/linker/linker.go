// Package linker turns sentence text into normalized word-like fragments so
// the store can cross-link a sentence with every learning word it reinforces.
package linker

import (
	"strings"
	"unicode"
)

// Fragments splits text into word-like fragments and normalizes each:
// whitespace and pure-punctuation fragments are dropped, surrounding
// punctuation is stripped, and the result is lowercased. Japanese text goes
// through morphological analysis so inflected forms match their dictionary
// form; other languages use Unicode word segmentation.
func Fragments(language, text string) []string {
	var raw []string
	if isJapanese(language) {
		raw = japaneseFragments(text)
	} else {
		raw = splitWords(text)
	}

	fragments := make([]string, 0, len(raw))
	for _, f := range raw {
		n := Normalize(f)
		if n == "" {
			continue
		}
		fragments = append(fragments, n)
	}
	return fragments
}

// Normalize strips surrounding punctuation and lowercases a fragment.
// Returns "" for fragments with no letters or digits.
func Normalize(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if s == "" {
		return ""
	}
	return strings.ToLower(s)
}

// splitWords segments on anything that is not a letter, number, or an
// in-word apostrophe/hyphen (keeps "don't" and "well-known" whole).
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
		return r != '\'' && r != '-'
	})
}

func isJapanese(language string) bool {
	switch strings.ToLower(language) {
	case "ja", "jp", "japanese":
		return true
	}
	return false
}
