package utils

import (
	"testing"
)

func TestCountWords(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two three", 3},
		{"  spaced\tout\nwords  ", 3},
		{"hyphen-ated counts once", 3},
	}
	for _, c := range cases {
		if got := CountWords(c.text); got != c.want {
			t.Fatalf("CountWords(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First sentence. Second one.  Third")
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "First sentence" {
		t.Fatalf("unexpected first sentence: %q", got[0])
	}
}

func TestSplitSentencesEmpty(t *testing.T) {
	if got := SplitSentences("..."); len(got) != 0 {
		t.Fatalf("expected no sentences, got %v", got)
	}
}
