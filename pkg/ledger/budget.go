package ledger

import (
	"context"
	"fmt"
	"time"
)

// Budget periods reported by BudgetExceededError.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// BudgetExceededError is returned by CheckBudget when the estimated cost of
// a request would push spend past a configured ceiling.
type BudgetExceededError struct {
	Period  string  // PeriodDaily or PeriodMonthly.
	Current float64 // Period cost including the estimate.
	Limit   float64 // The configured ceiling.
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget would be exceeded: %.4f > %.4f", e.Period, e.Current, e.Limit)
}

// Budget holds spend ceilings. A zero field means that period is unlimited.
type Budget struct {
	DailyLimit   float64
	MonthlyLimit float64
}

// CheckBudget verifies that spending estimatedCost would keep both the daily
// and monthly period totals under their ceilings. It runs before dispatch
// against an estimate, so the real cost can still land slightly past a
// ceiling, which is an accepted approximation.
//
// The check and the subsequent dispatch are not atomic across concurrent
// requests: two in-flight requests can each pass and jointly exceed a
// ceiling. That race is documented behavior, not a bug to lock away.
func (l *Ledger) CheckBudget(ctx context.Context, estimatedCost float64, b Budget) error {
	now := time.Now()

	if b.DailyLimit > 0 {
		daily, err := l.DailyCost(ctx, now)
		if err != nil {
			return err
		}
		if daily+estimatedCost > b.DailyLimit {
			return &BudgetExceededError{
				Period:  PeriodDaily,
				Current: daily + estimatedCost,
				Limit:   b.DailyLimit,
			}
		}
	}

	if b.MonthlyLimit > 0 {
		monthly, err := l.MonthlyCost(ctx, now.Year(), now.Month())
		if err != nil {
			return err
		}
		if monthly+estimatedCost > b.MonthlyLimit {
			return &BudgetExceededError{
				Period:  PeriodMonthly,
				Current: monthly + estimatedCost,
				Limit:   b.MonthlyLimit,
			}
		}
	}

	return nil
}

// Remaining reports how much budget is left in each period. A nil entry
// means that period has no configured limit.
type Remaining struct {
	Daily   *float64
	Monthly *float64
}

// BudgetRemaining returns the remaining spend for each limited period.
func (l *Ledger) BudgetRemaining(ctx context.Context, b Budget) (Remaining, error) {
	var rem Remaining
	now := time.Now()

	if b.DailyLimit > 0 {
		daily, err := l.DailyCost(ctx, now)
		if err != nil {
			return Remaining{}, err
		}
		v := b.DailyLimit - daily
		rem.Daily = &v
	}

	if b.MonthlyLimit > 0 {
		monthly, err := l.MonthlyCost(ctx, now.Year(), now.Month())
		if err != nil {
			return Remaining{}, err
		}
		v := b.MonthlyLimit - monthly
		rem.Monthly = &v
	}

	return rem, nil
}
