/*
calculator.go - Monthly incentive calculation

PURPOSE:
  Implements the one operation with real invariants in this system:
  calculateIncentive(userId, month, year). The calculation is idempotent
  per key - at most one incentive record may ever exist for a
  (user, month, year), and a second calculation fails cleanly with a
  DuplicateIncentiveError instead of recomputing or merging.

CALCULATION FLOW:
  1. Parse and validate the period ("04", "2025")
  2. Pre-check the incentive store for the key -> DuplicateIncentiveError
  3. Load the user's completed tasks; keep those evaluated within the
     period (matched on the evaluation timestamp, not the due date)
  4. Zero qualifying tasks -> NoDataError, nothing persisted
  5. Fold through the selected formula into a bonus amount
  6. Persist with status pending; the store's unique key constraint is
     the real duplicate guard under concurrent operators
  7. Return the created record for immediate display

  No step retries; every failure returns a typed error the UI can render
  without special-casing.
*/
package incentive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes and persists monthly incentives.
type Calculator struct {
	Tasks      core.TaskStore
	Users      core.UserDirectory
	Incentives core.IncentiveStore

	Log *logrus.Logger
	Now func() time.Time
}

func NewCalculator(store core.Store, log *logrus.Logger) *Calculator {
	if log == nil {
		log = logrus.New()
	}
	return &Calculator{
		Tasks:      store,
		Users:      store,
		Incentives: store,
		Log:        log,
		Now:        time.Now,
	}
}

// Calculate computes the incentive for one user and month and persists it
// exactly once. formulaName selects the payout strategy explicitly; the
// empty string means the default salary-percent formula.
func (c *Calculator) Calculate(ctx context.Context, userID core.UserID, month, year, formulaName string) (*core.Incentive, error) {
	period, err := core.ParsePeriod(month, year)
	if err != nil {
		return nil, err
	}

	formula, err := ByName(formulaName)
	if err != nil {
		return nil, err
	}

	// Best-effort pre-check for a descriptive error. The storage-level
	// unique key on (user, month, year) closes the race between two
	// operators calculating concurrently.
	existing, err := c.Incentives.FindIncentive(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &core.DuplicateIncentiveError{UserID: userID, Period: period}
	}

	user, err := c.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tasks, err := qualifying(ctx, c.Tasks, userID, period)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, &core.NoDataError{UserID: userID, Period: period}
	}

	bonus, err := formula.Bonus(FormulaInput{Tasks: tasks, Salary: user.Salary})
	if err != nil {
		return nil, err
	}

	now := c.Now()
	inc := core.Incentive{
		ID:          core.IncentiveID(uuid.NewString()),
		UserID:      userID,
		Period:      period,
		TaskCount:   len(tasks),
		Formula:     formula.Name(),
		TotalAmount: bonus,
		Status:      core.IncentivePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.Incentives.CreateIncentive(ctx, inc); err != nil {
		return nil, err
	}

	c.Log.WithFields(logrus.Fields{
		"user":    userID,
		"period":  period.String(),
		"formula": inc.Formula,
		"tasks":   inc.TaskCount,
		"amount":  inc.TotalAmount.String(),
	}).Info("incentive calculated")

	return &inc, nil
}
