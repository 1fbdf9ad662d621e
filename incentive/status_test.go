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
// TRANSITION RULES
// =============================================================================

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		name    string
		current core.IncentiveStatus
		next    core.IncentiveStatus
		wantErr error
	}{
		{"pending to approved", core.IncentivePending, core.IncentiveApproved, nil},
		{"pending to rejected", core.IncentivePending, core.IncentiveRejected, nil},
		{"approved is terminal", core.IncentiveApproved, core.IncentiveRejected, core.ErrInvalidState},
		{"rejected is terminal", core.IncentiveRejected, core.IncentiveApproved, core.ErrInvalidState},
		{"cannot move back to pending", core.IncentivePending, core.IncentivePending, core.ErrValidation},
		{"unknown target", core.IncentivePending, "paid", core.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := incentive.CheckTransition(tc.current, tc.next)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

// =============================================================================
// APPROVER
// =============================================================================

func seedPendingIncentive(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	err := store.CreateIncentive(context.Background(), core.Incentive{
		ID:          core.IncentiveID(id),
		UserID:      "emp-1",
		Period:      core.Period{Month: "04", Year: "2025"},
		TaskCount:   2,
		Formula:     incentive.FormulaSalaryPercent,
		TotalAmount: decimal.NewFromInt(200000),
		Status:      core.IncentivePending,
	})
	require.NoError(t, err)
}

func TestApprover_Approve(t *testing.T) {
	// GIVEN: A pending incentive
	// WHEN: The accountant approves it with a comment
	// THEN: The stored record is approved and carries the comment

	store := memory.New()
	ctx := context.Background()
	seedPendingIncentive(t, store, "inc-1")

	approver := incentive.NewApprover(store)
	inc, err := approver.SetStatus(ctx, "inc-1", core.IncentiveApproved, "verified against payroll")
	require.NoError(t, err)
	assert.Equal(t, core.IncentiveApproved, inc.Status)
	assert.Equal(t, "verified against payroll", inc.StatusComment)

	stored, err := store.GetIncentive(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, core.IncentiveApproved, stored.Status)
}

func TestApprover_TerminalStateFrozen(t *testing.T) {
	// GIVEN: An incentive already rejected
	// WHEN: Trying to approve it afterwards
	// THEN: InvalidStateError; decisions are final

	store := memory.New()
	ctx := context.Background()
	seedPendingIncentive(t, store, "inc-1")

	approver := incentive.NewApprover(store)
	_, err := approver.SetStatus(ctx, "inc-1", core.IncentiveRejected, "duplicate submission")
	require.NoError(t, err)

	_, err = approver.SetStatus(ctx, "inc-1", core.IncentiveApproved, "changed my mind")
	assert.ErrorIs(t, err, core.ErrInvalidState)

	stored, err := store.GetIncentive(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, core.IncentiveRejected, stored.Status)
	assert.Equal(t, "duplicate submission", stored.StatusComment)
}

func TestApprover_UnknownIncentive(t *testing.T) {
	store := memory.New()
	approver := incentive.NewApprover(store)

	_, err := approver.SetStatus(context.Background(), "missing", core.IncentiveApproved, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
