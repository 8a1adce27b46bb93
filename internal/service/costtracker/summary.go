package costtracker

import (
	"fmt"

	"github.com/grantforge/backend/internal/model"
)

// Summary aggregates a usage ledger for reporting.
type Summary struct {
	Entries      []model.UsageRecord `json:"entries"`
	BySection    map[string]float64  `json:"cost_by_section"`
	ByOperation  map[string]float64  `json:"cost_by_operation"`
	InputTokens  int                 `json:"input_tokens"`
	OutputTokens int                 `json:"output_tokens"`
	TotalTokens  int                 `json:"total_tokens"`
	TotalCost    float64             `json:"total_cost_usd"`
	WithinTarget bool                `json:"within_target"`
}

// Summarize aggregates records in call order. It works on both a live
// tracker's entries and rows loaded back from the database.
func Summarize(records []model.UsageRecord) *Summary {
	s := &Summary{
		Entries:     records,
		BySection:   make(map[string]float64),
		ByOperation: make(map[string]float64),
	}
	for _, r := range records {
		s.BySection[r.Section] += r.CostUSD
		s.ByOperation[r.Operation] += r.CostUSD
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.TotalCost += r.CostUSD
	}
	s.TotalTokens = s.InputTokens + s.OutputTokens
	s.WithinTarget = s.TotalCost <= TargetMaxUSD
	return s
}

// TargetNote describes the total against the expected cost range.
func (s *Summary) TargetNote() string {
	if s.TotalCost > TargetMaxUSD {
		return fmt.Sprintf("cost $%.2f exceeds target of $%.2f", s.TotalCost, TargetMaxUSD)
	}
	return fmt.Sprintf("cost $%.2f within target ($%.0f-%.0f)", s.TotalCost, TargetMinUSD, TargetMaxUSD)
}
