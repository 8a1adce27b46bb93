package validator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/utils"
)

func TestAutoTrimUnderLimitUnchanged(t *testing.T) {
	section := &model.GrantSection{Name: "Work Plan", Content: "one two three", WordCount: 3}

	got := autoTrim(section, 10)

	if got != section {
		t.Fatalf("section within limits should come back untouched")
	}
	if strings.Contains(got.Content, TrimNotice) {
		t.Errorf("trim notice appended to a section within limits")
	}
}

func TestAutoTrimCutsToLimit(t *testing.T) {
	// No periods anywhere, so there is no sentence boundary to back off to.
	words := make([]string, 50)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	content := strings.Join(words, " ")
	section := &model.GrantSection{
		Name:      "Project Pitch",
		Content:   content,
		WordCount: 50,
		Iteration: 1,
		Critique:  "needs tighter focus",
	}

	got := autoTrim(section, 20)

	// 1. input untouched
	if section.Content != content || section.WordCount != 50 || section.RefinementNotes != "" {
		t.Fatalf("input section was mutated: %+v", section)
	}

	// 2. body cut to the limit, notice appended
	if !strings.HasSuffix(got.Content, TrimNotice) {
		t.Errorf("content does not end with the trim notice: %q", got.Content)
	}
	body := strings.TrimSuffix(got.Content, "\n\n"+TrimNotice)
	if n := utils.CountWords(body); n != 20 {
		t.Errorf("trimmed body has %d words, want 20", n)
	}

	// 3. word count recomputed over the full content including the notice
	if got.WordCount != utils.CountWords(got.Content) {
		t.Errorf("WordCount = %d, content counts %d", got.WordCount, utils.CountWords(got.Content))
	}

	// 4. metadata preserved, trim recorded
	if got.Name != "Project Pitch" || got.Iteration != 1 || got.Critique != "needs tighter focus" {
		t.Errorf("section metadata not preserved: %+v", got)
	}
	if !strings.Contains(got.RefinementNotes, "Auto-trimmed") {
		t.Errorf("RefinementNotes = %q, want trim marker", got.RefinementNotes)
	}
}

func TestAutoTrimBacksOffToSentenceBoundary(t *testing.T) {
	// The 19th word ends a sentence; the cut at 20 words lands just past it,
	// within the final tenth of the truncated text.
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("alpha%02d", i)
	}
	words[18] += "."
	section := &model.GrantSection{Name: "Broader Impacts", Content: strings.Join(words, " "), WordCount: 30}

	got := autoTrim(section, 20)

	body := strings.TrimSuffix(got.Content, "\n\n"+TrimNotice)
	if !strings.HasSuffix(body, "alpha18.") {
		t.Errorf("trim did not back off to the sentence boundary: %q", body)
	}
	if n := utils.CountWords(body); n != 19 {
		t.Errorf("trimmed body has %d words, want 19", n)
	}
}

func TestAutoTrimKeepsExistingRefinementNotes(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("beta%d", i)
	}
	section := &model.GrantSection{
		Name:            "Commercialization Plan",
		Content:         strings.Join(words, " "),
		WordCount:       30,
		RefinementNotes: "Refined based on critical feedback",
	}

	got := autoTrim(section, 10)

	if !strings.HasPrefix(got.RefinementNotes, "Refined based on critical feedback; ") {
		t.Errorf("existing notes lost: %q", got.RefinementNotes)
	}
	if !strings.Contains(got.RefinementNotes, "Auto-trimmed") {
		t.Errorf("trim marker missing: %q", got.RefinementNotes)
	}
}
