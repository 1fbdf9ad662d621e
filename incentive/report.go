/*
report.go - Batch payroll report

PURPOSE:
  The accountant's monthly view: for every user, average the period's
  evaluated task percentages, apply the salary-percent formula, and report
  salary + bonus = total pay. The report is read-only - nothing is
  persisted, and it is independent of whether incentive records exist for
  the period.
*/
package incentive

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// PAYROLL REPORT
// =============================================================================

// PayrollLine is one user's row in the monthly report.
type PayrollLine struct {
	UserID            core.UserID
	DisplayName       string
	Salary            decimal.Decimal
	TaskCount         int
	AveragePercentage decimal.Decimal
	Bonus             decimal.Decimal
	TotalSalary       decimal.Decimal
}

// Reporter produces the batch payroll report.
type Reporter struct {
	Tasks core.TaskStore
	Users core.UserDirectory
}

func NewReporter(store core.Store) *Reporter {
	return &Reporter{Tasks: store, Users: store}
}

// Payroll builds the report for one month across all users. Users with no
// qualifying tasks still appear, with a zero average and zero bonus -
// their base salary is owed regardless.
func (r *Reporter) Payroll(ctx context.Context, month, year string) ([]PayrollLine, error) {
	period, err := core.ParsePeriod(month, year)
	if err != nil {
		return nil, err
	}

	users, err := r.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	formula := SalaryPercentFormula{}
	lines := make([]PayrollLine, 0, len(users))
	for _, u := range users {
		line := PayrollLine{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Salary:      u.Salary,
			TotalSalary: u.Salary,
		}

		tasks, err := qualifying(ctx, r.Tasks, u.ID, period)
		if err != nil {
			return nil, err
		}
		if len(tasks) > 0 {
			avg, err := AveragePercentage(tasks)
			if err != nil {
				return nil, err
			}
			bonus, err := formula.Bonus(FormulaInput{Tasks: tasks, Salary: u.Salary})
			if err != nil {
				return nil, err
			}
			line.TaskCount = len(tasks)
			line.AveragePercentage = avg
			line.Bonus = bonus
			line.TotalSalary = u.Salary.Add(bonus)
		}

		lines = append(lines, line)
	}
	return lines, nil
}

// qualifying returns the user's completed, evaluated tasks whose
// evaluation timestamp falls within the period. The store filters on
// assignee and status; the period match happens here because the document
// store only filters on indexed equality.
func qualifying(ctx context.Context, store core.TaskStore, userID core.UserID, period core.Period) ([]core.Task, error) {
	completed, err := store.ListCompletedTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []core.Task
	for _, t := range completed {
		if t.Evaluated && period.Contains(t.EvaluationTime()) {
			out = append(out, t)
		}
	}
	return out, nil
}
