package core_test

import (
	"strings"
	"testing"

	"github.com/recallhq/recall-go-sdk/core"
)

func TestHeuristicCounter(t *testing.T) {
	c := core.HeuristicCounter{}
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hi", 1},                          // short text never rounds to zero
		{"a b c d e f g h", 8},             // word floor wins over chars/4
		{strings.Repeat("x", 400), 100},    // chars/4 wins for long unbroken text
		{"one two", 2},
	}
	for _, tc := range cases {
		if got := c.Count(tc.text); got != tc.want {
			t.Errorf("Count(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestHeuristicCounter_Monotonicish(t *testing.T) {
	c := core.HeuristicCounter{}
	short := c.Count("a sentence")
	long := c.Count(strings.Repeat("a sentence ", 50))
	if long <= short {
		t.Errorf("longer text should cost more tokens: %d vs %d", short, long)
	}
}
