package incentive_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/store/memory"
)

// =============================================================================
// PAYROLL REPORT
// =============================================================================

func TestPayroll_MixedMonth(t *testing.T) {
	// GIVEN: One user with a strong April, one with no April tasks
	// WHEN: Running the April payroll
	// THEN: Both appear; the idle user keeps base salary with zero bonus

	store := memory.New()
	ctx := context.Background()
	seedUser(t, store, "emp-1", 1000000)
	seedUser(t, store, "emp-2", 800000)
	seedEvaluatedTask(t, store, "t1", "emp-1", 90, 5, april10)
	seedEvaluatedTask(t, store, "t2", "emp-1", 80, 4, april10)
	seedEvaluatedTask(t, store, "t3", "emp-2", 95, 5, may2) // wrong month

	reporter := incentive.NewReporter(store)
	lines, err := reporter.Payroll(ctx, "04", "2025")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byUser := map[core.UserID]incentive.PayrollLine{}
	for _, l := range lines {
		byUser[l.UserID] = l
	}

	one := byUser["emp-1"]
	assert.Equal(t, 2, one.TaskCount)
	assert.True(t, one.AveragePercentage.Equal(decimal.NewFromInt(85)), "got %s", one.AveragePercentage)
	assert.True(t, one.Bonus.Equal(decimal.NewFromInt(200000)), "got %s", one.Bonus)
	assert.True(t, one.TotalSalary.Equal(decimal.NewFromInt(1200000)), "got %s", one.TotalSalary)

	two := byUser["emp-2"]
	assert.Equal(t, 0, two.TaskCount)
	assert.True(t, two.Bonus.IsZero())
	assert.True(t, two.TotalSalary.Equal(decimal.NewFromInt(800000)))
}

func TestPayroll_NothingPersisted(t *testing.T) {
	// The report is read-only: no incentive records appear as a side effect

	store := memory.New()
	ctx := context.Background()
	seedUser(t, store, "emp-1", 1000000)
	seedEvaluatedTask(t, store, "t1", "emp-1", 90, 5, april10)

	reporter := incentive.NewReporter(store)
	_, err := reporter.Payroll(ctx, "04", "2025")
	require.NoError(t, err)

	incs, err := store.ListIncentives(ctx)
	require.NoError(t, err)
	assert.Empty(t, incs)
}

func TestPayroll_BadPeriod(t *testing.T) {
	store := memory.New()
	reporter := incentive.NewReporter(store)

	_, err := reporter.Payroll(context.Background(), "14", "2025")
	assert.ErrorIs(t, err, core.ErrValidation)
}
