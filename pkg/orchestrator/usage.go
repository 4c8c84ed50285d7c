package orchestrator

import (
	"context"
	"time"

	"github.com/mireles/aibridge/pkg/ledger"
)

// EstimateCost predicts the cost of a chat message before sending it. The
// model alias is resolved first so "smart" prices like its target model.
func (o *Orchestrator) EstimateCost(message, model string, maxTokens int) float64 {
	name := model
	if name == "" {
		name = o.cfg.DefaultModel
	}
	resolved, _, err := o.registry.Resolve(name, "")
	if err != nil {
		return 0
	}
	return o.registry.EstimateCost(message, resolved, maxTokens)
}

// UsageSummary aggregates in-process totals with ledger-backed statistics.
type UsageSummary struct {
	TotalCost     float64
	RequestCount  int
	DailyCost     float64
	MonthlyCost   float64
	MostUsedModel string
	Remaining     ledger.Remaining
}

// UsageStats reports the running totals of this instance plus the current
// daily and monthly spend from the ledger. Without a ledger only the
// in-process totals are populated.
func (o *Orchestrator) UsageStats(ctx context.Context) (UsageSummary, error) {
	o.mu.Lock()
	summary := UsageSummary{
		TotalCost:    o.totalCost,
		RequestCount: o.requestCount,
	}
	budget := o.budget
	o.mu.Unlock()

	if o.ledger == nil {
		return summary, nil
	}

	now := time.Now()
	daily, err := o.ledger.DailyCost(ctx, now)
	if err != nil {
		return summary, err
	}
	monthly, err := o.ledger.MonthlyCost(ctx, now.Year(), now.Month())
	if err != nil {
		return summary, err
	}
	mostUsed, err := o.ledger.MostUsedModel(ctx, 30)
	if err != nil {
		return summary, err
	}
	remaining, err := o.ledger.BudgetRemaining(ctx, budget)
	if err != nil {
		return summary, err
	}

	summary.DailyCost = daily
	summary.MonthlyCost = monthly
	summary.MostUsedModel = mostUsed
	summary.Remaining = remaining

	return summary, nil
}

// LedgerStats exposes the windowed per-model and per-provider breakdown.
func (o *Orchestrator) LedgerStats(ctx context.Context, days int) (ledger.Stats, error) {
	if o.ledger == nil {
		return ledger.Stats{PeriodDays: days}, nil
	}
	return o.ledger.UsageStats(ctx, days)
}

// SetBudgetLimits replaces the spend ceilings. A non-positive value leaves
// that period's existing limit in place.
func (o *Orchestrator) SetBudgetLimits(daily, monthly float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if daily > 0 {
		o.budget.DailyLimit = daily
	}
	if monthly > 0 {
		o.budget.MonthlyLimit = monthly
	}
}

// BudgetRemaining reports how much budget is left in each limited period.
func (o *Orchestrator) BudgetRemaining(ctx context.Context) (ledger.Remaining, error) {
	o.mu.Lock()
	budget := o.budget
	o.mu.Unlock()

	if o.ledger == nil {
		return ledger.Remaining{}, nil
	}
	return o.ledger.BudgetRemaining(ctx, budget)
}

// TotalCost returns the cost accumulated by this instance.
func (o *Orchestrator) TotalCost() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalCost
}

// RequestCount returns the number of completed requests in this instance.
func (o *Orchestrator) RequestCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requestCount
}
