package model

// GrantSection is one drafted piece of proposal text. Values are immutable
// once produced: refinement and trimming build a new section rather than
// editing content in place.
type GrantSection struct {
	Name            string `json:"name"`
	Content         string `json:"content"`
	WordCount       int    `json:"word_count"`
	Iteration       int    `json:"iteration"`
	Critique        string `json:"critique,omitempty"`
	RefinementNotes string `json:"refinement_notes,omitempty"`
}
