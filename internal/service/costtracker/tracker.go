package costtracker

import (
	"context"
	"sync"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"k8s.io/klog/v2"
)

// Operation names recorded in the usage ledger.
const (
	OpGenerate = "generate"
	OpCritique = "critique"
	OpRefine   = "refine"
)

// Expected cost range for one full proposal, in USD.
const (
	TargetMinUSD = 2.0
	TargetMaxUSD = 5.0
)

type pricing struct {
	input  float64
	output float64
}

// Rates are dollars per token, derived from per-million list prices.
var pricingTable = map[string]pricing{
	"claude-sonnet-4":   {input: 3.00 / 1_000_000, output: 15.00 / 1_000_000},
	"claude-sonnet-4-5": {input: 3.00 / 1_000_000, output: 15.00 / 1_000_000},
}

const fallbackModel = "claude-sonnet-4"

// Cost computes the USD cost of a single call. Unknown models are
// priced at the fallback rate rather than failing the run.
func Cost(modelName string, inputTokens, outputTokens int) float64 {
	p, ok := pricingTable[modelName]
	if !ok {
		p = pricingTable[fallbackModel]
	}
	return float64(inputTokens)*p.input + float64(outputTokens)*p.output
}

// Tracker keeps an append-only ledger of LLM usage for one run. The
// ledger stays valid when a run fails partway, so partial cost is
// still reportable.
type Tracker struct {
	mu      sync.Mutex
	runID   uint
	repo    repository.UsageRepository
	entries []model.UsageRecord
}

// New returns a tracker for the given run. repo may be nil, in which
// case entries are kept in memory only.
func New(runID uint, repo repository.UsageRepository) *Tracker {
	return &Tracker{runID: runID, repo: repo}
}

// Record appends one ledger entry and returns its cost. Persistence
// failures are logged, not returned: cost accounting must never abort
// a generation in flight.
func (t *Tracker) Record(ctx context.Context, section, operation string, inputTokens, outputTokens int, modelName string) float64 {
	cost := Cost(modelName, inputTokens, outputTokens)
	record := model.UsageRecord{
		RunID:        t.runID,
		Section:      section,
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Model:        modelName,
		CostUSD:      cost,
	}

	t.mu.Lock()
	t.entries = append(t.entries, record)
	t.mu.Unlock()

	if t.repo != nil {
		if err := t.repo.Create(ctx, &record); err != nil {
			klog.Errorf("usage record not persisted: run=%d section=%s op=%s err=%v", t.runID, section, operation, err)
		}
	}
	klog.V(6).Infof("usage recorded: run=%d section=%s op=%s in=%d out=%d cost=$%.4f",
		t.runID, section, operation, inputTokens, outputTokens, cost)
	return cost
}

// TotalCost sums the ledger.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, e := range t.entries {
		total += e.CostUSD
	}
	return total
}

// TotalTokens returns summed input and output tokens.
func (t *Tracker) TotalTokens() (inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		inputTokens += e.InputTokens
		outputTokens += e.OutputTokens
	}
	return inputTokens, outputTokens
}

// Entries returns a copy of the ledger in call order.
func (t *Tracker) Entries() []model.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.UsageRecord, len(t.entries))
	copy(out, t.entries)
	return out
}

// Summary aggregates the current ledger.
func (t *Tracker) Summary() *Summary {
	return Summarize(t.Entries())
}
