/*
Package incentive turns a month of scored, completed tasks into a bonus:
the calculator selects a user's qualifying tasks for a period, folds them
through an explicitly-selected payout formula, and persists exactly one
incentive record per (user, month, year). An accountant then approves or
rejects the record, the only mutation allowed after creation.

FORMULAS:
  Two payout formulas coexist in the product's history and are modeled as
  named strategies, selected by the caller and never inferred from data:

  rating-tier (flat amounts, 1-5 evaluator rating):
      avg >= 4           -> 500,000
      3 <= avg < 4       -> 300,000
      2 <= avg < 3       -> 100,000
      avg < 2            -> 0

  salary-percent (0-100 task percentages, relative to base salary):
      avg > 80           -> 0.2 * salary
      70 <= avg <= 80    -> 0.1 * salary
      avg < 70           -> 0

  Salary-percent is the default for new incentive creation; rating-tier
  remains selectable for the legacy report paths.

SEE ALSO:
  - calculator.go: Task selection, duplicate guard, persistence
  - report.go: Batch payroll report (salary-percent across all users)
*/
package incentive

import (
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// FORMULA - Payout strategy
// =============================================================================

// FormulaInput is the per-user material a formula folds into a bonus.
type FormulaInput struct {
	// Tasks are the qualifying tasks: completed, evaluated, scored within
	// the target period.
	Tasks []core.Task

	// Salary is the user's base salary. Only the salary-relative formula
	// reads it.
	Salary decimal.Decimal
}

// Formula maps a period's qualifying tasks to a bonus amount.
type Formula interface {
	// Name identifies the strategy on the persisted incentive record.
	Name() string

	// Bonus computes the payout. Input always has at least one task; the
	// calculator rejects empty periods before any formula runs.
	Bonus(in FormulaInput) (decimal.Decimal, error)
}

// ByName resolves a formula identifier from the API surface. Empty string
// selects the default (salary-percent).
func ByName(name string) (Formula, error) {
	switch name {
	case "", FormulaSalaryPercent:
		return SalaryPercentFormula{}, nil
	case FormulaRatingTier:
		return RatingTierFormula{}, nil
	default:
		return nil, &core.ValidationError{Field: "formula", Message: "unknown formula " + name}
	}
}

const (
	FormulaRatingTier    = "rating-tier"
	FormulaSalaryPercent = "salary-percent"
)

// =============================================================================
// RATING-TIER FORMULA - Flat amounts from the average 1-5 rating
// =============================================================================

var (
	tierHigh = decimal.NewFromInt(500000)
	tierMid  = decimal.NewFromInt(300000)
	tierLow  = decimal.NewFromInt(100000)

	ratingFour  = decimal.NewFromInt(4)
	ratingThree = decimal.NewFromInt(3)
	ratingTwo   = decimal.NewFromInt(2)
)

// RatingTierFormula averages the separate 1-5 evaluator rating across the
// period's tasks and maps it to a flat amount. Base salary is not
// referenced.
type RatingTierFormula struct{}

func (RatingTierFormula) Name() string { return FormulaRatingTier }

func (RatingTierFormula) Bonus(in FormulaInput) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range in.Tasks {
		if t.Rating < 1 || t.Rating > 5 {
			return decimal.Zero, &core.ValidationError{
				Field:   "rating",
				Message: "task " + string(t.ID) + " has no 1-5 rating; rating-tier formula needs rated tasks",
			}
		}
		sum = sum.Add(decimal.NewFromInt(int64(t.Rating)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(in.Tasks))))

	switch {
	case avg.GreaterThanOrEqual(ratingFour):
		return tierHigh, nil
	case avg.GreaterThanOrEqual(ratingThree):
		return tierMid, nil
	case avg.GreaterThanOrEqual(ratingTwo):
		return tierLow, nil
	default:
		return decimal.Zero, nil
	}
}

// =============================================================================
// SALARY-PERCENT FORMULA - Fraction of base salary from the average score
// =============================================================================

var (
	pctEighty  = decimal.NewFromInt(80)
	pctSeventy = decimal.NewFromInt(70)

	fracTwenty = decimal.NewFromFloat(0.2)
	fracTen    = decimal.NewFromFloat(0.1)
)

// SalaryPercentFormula averages the tasks' total percentages (0-100) and
// pays a fraction of base salary: 20% above 80, 10% from 70 through 80
// inclusive, nothing below 70.
type SalaryPercentFormula struct{}

func (SalaryPercentFormula) Name() string { return FormulaSalaryPercent }

func (SalaryPercentFormula) Bonus(in FormulaInput) (decimal.Decimal, error) {
	avg, err := AveragePercentage(in.Tasks)
	if err != nil {
		return decimal.Zero, err
	}

	switch {
	case avg.GreaterThan(pctEighty):
		return in.Salary.Mul(fracTwenty), nil
	case avg.GreaterThanOrEqual(pctSeventy):
		return in.Salary.Mul(fracTen), nil
	default:
		return decimal.Zero, nil
	}
}

// AveragePercentage averages totalPercentage across evaluated tasks. A
// task without a frozen total (never finalized) cannot qualify and is a
// state error here rather than a silent zero.
func AveragePercentage(tasks []core.Task) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range tasks {
		if t.TotalPercentage == nil {
			return decimal.Zero, &core.InvalidStateError{
				Op:      "average percentage",
				Current: string(t.Status),
				Message: "task " + string(t.ID) + " has no frozen total percentage",
			}
		}
		sum = sum.Add(*t.TotalPercentage)
	}
	return sum.Div(decimal.NewFromInt(int64(len(tasks)))), nil
}
