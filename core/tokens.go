package core

import "strings"

// TokenCounter estimates how many model-countable units a text consumes.
// The assembler only needs a consistent estimate to enforce its budget; a
// real tokenizer can be injected where exact counts matter.
type TokenCounter interface {
	Count(text string) int
}

// HeuristicCounter approximates tokens as max(chars/4, words). English prose
// averages about four characters per token; the word floor keeps short,
// punctuation-heavy snippets from rounding to zero.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	byChars := len(text) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	if byChars == 0 {
		return 1
	}
	return byChars
}
