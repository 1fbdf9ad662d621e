package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// PERIOD PARSING
// =============================================================================

func TestParsePeriod_Valid(t *testing.T) {
	p, err := core.ParsePeriod("04", "2025")
	require.NoError(t, err)
	assert.Equal(t, "04", p.Month)
	assert.Equal(t, "2025", p.Year)
	assert.Equal(t, "2025-04", p.String())
}

func TestParsePeriod_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		month string
		year  string
	}{
		{"single digit month", "4", "2025"},
		{"month zero", "00", "2025"},
		{"month thirteen", "13", "2025"},
		{"non-numeric month", "ab", "2025"},
		{"two digit year", "04", "25"},
		{"non-numeric year", "04", "20xx"},
		{"empty month", "", "2025"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := core.ParsePeriod(tc.month, tc.year)
			assert.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

// =============================================================================
// PERIOD MEMBERSHIP
// =============================================================================

func TestPeriod_Contains(t *testing.T) {
	// GIVEN: The period 2025-04
	// WHEN: Checking timestamps at the month's edges
	// THEN: Everything within April matches, neighbors and zero do not

	p, err := core.ParsePeriod("04", "2025")
	require.NoError(t, err)

	assert.True(t, p.Contains(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, time.April, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Time{}))
}

func TestPeriodOf_ZeroPadsMonth(t *testing.T) {
	p := core.PeriodOf(time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, core.Period{Month: "02", Year: "2025"}, p)
}

func TestPeriod_Bounds(t *testing.T) {
	p := core.Period{Month: "12", Year: "2025"}
	start, end := p.Bounds()
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

// =============================================================================
// EVALUATION TIME FALLBACK
// =============================================================================

func TestTask_EvaluationTime(t *testing.T) {
	// GIVEN: Tasks with various timestamp combinations
	// WHEN: Asking for the evaluation time
	// THEN: EvaluatedAt wins, CompletedAt is the fallback, zero otherwise

	evalAt := time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)
	doneAt := time.Date(2025, time.March, 28, 17, 0, 0, 0, time.UTC)

	both := core.Task{EvaluatedAt: &evalAt, CompletedAt: &doneAt}
	assert.Equal(t, evalAt, both.EvaluationTime())

	onlyDone := core.Task{CompletedAt: &doneAt}
	assert.Equal(t, doneAt, onlyDone.EvaluationTime())

	neither := core.Task{}
	assert.True(t, neither.EvaluationTime().IsZero())
}
