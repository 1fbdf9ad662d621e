package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTask(id string) core.Task {
	w1 := decimal.NewFromInt(60)
	w2 := decimal.NewFromInt(40)
	now := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	return core.Task{
		ID:         core.TaskID(id),
		Title:      "Quarterly report",
		AssignedTo: "emp-1",
		AssignedBy: "mgr-1",
		Status:     core.TaskPending,
		Requirements: []core.Requirement{
			{Label: "accuracy", Weight: w1},
			{Label: "timeliness", Weight: w2},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleIncentive(id, user, month string) core.Incentive {
	now := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)
	return core.Incentive{
		ID:          core.IncentiveID(id),
		UserID:      core.UserID(user),
		Period:      core.Period{Month: month, Year: "2025"},
		TaskCount:   3,
		Formula:     "salary-percent",
		TotalAmount: decimal.NewFromInt(200000),
		Status:      core.IncentivePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// TASK ROUND TRIPS
// =============================================================================

func TestTask_RoundTrip(t *testing.T) {
	// GIVEN: A task with a two-entry rubric
	// WHEN: Creating and reading it back
	// THEN: All fields survive, including the typed requirement list

	store := newTestStore(t)
	ctx := context.Background()
	task := sampleTask("task-1")

	require.NoError(t, store.CreateTask(ctx, task))

	got, err := store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.AssignedTo, got.AssignedTo)
	assert.Equal(t, core.TaskPending, got.Status)
	require.Len(t, got.Requirements, 2)
	assert.Equal(t, "accuracy", got.Requirements[0].Label)
	assert.True(t, got.Requirements[0].Weight.Equal(decimal.NewFromInt(60)))
	assert.Nil(t, got.Requirements[0].Completion)
}

func TestTask_UpdatePersistsEvaluation(t *testing.T) {
	// GIVEN: A stored task
	// WHEN: Writing back a finalized evaluation
	// THEN: Scores, total, flag, and timestamps all round-trip

	store := newTestStore(t)
	ctx := context.Background()
	task := sampleTask("task-1")
	require.NoError(t, store.CreateTask(ctx, task))

	evalAt := time.Date(2025, time.April, 20, 15, 0, 0, 0, time.UTC)
	score1 := decimal.NewFromFloat(55.5)
	score2 := decimal.NewFromInt(30)
	total := score1.Add(score2)

	task.Status = core.TaskCompleted
	task.CompletedAt = &evalAt
	task.Requirements[0].Completion = &score1
	task.Requirements[1].Completion = &score2
	task.Rating = 4
	task.Evaluated = true
	task.EvaluatedAt = &evalAt
	task.TotalPercentage = &total
	require.NoError(t, store.UpdateTask(ctx, task))

	got, err := store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, got.Evaluated)
	assert.Equal(t, 4, got.Rating)
	require.NotNil(t, got.TotalPercentage)
	assert.True(t, got.TotalPercentage.Equal(decimal.NewFromFloat(85.5)), "got %s", got.TotalPercentage)
	require.NotNil(t, got.Requirements[0].Completion)
	assert.True(t, got.Requirements[0].Completion.Equal(score1))
	require.NotNil(t, got.EvaluatedAt)
	assert.True(t, got.EvaluatedAt.Equal(evalAt))
}

func TestTask_ListCompletedFiltersStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done := sampleTask("task-1")
	done.Status = core.TaskCompleted
	require.NoError(t, store.CreateTask(ctx, done))
	require.NoError(t, store.CreateTask(ctx, sampleTask("task-2"))) // pending

	other := sampleTask("task-3")
	other.AssignedTo = "emp-2"
	other.Status = core.TaskCompleted
	require.NoError(t, store.CreateTask(ctx, other))

	got, err := store.ListCompletedTasks(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.TaskID("task-1"), got[0].ID)
}

func TestTask_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, store.UpdateTask(ctx, sampleTask("missing")), core.ErrNotFound)
	assert.ErrorIs(t, store.DeleteTask(ctx, "missing"), core.ErrNotFound)
}

// =============================================================================
// USER ROUND TRIPS
// =============================================================================

func TestUser_SaveIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := core.User{
		ID:          "emp-1",
		DisplayName: "Dana",
		Email:       "dana@example.com",
		Role:        core.RoleEmployee,
		Salary:      decimal.NewFromInt(1000000),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.SaveUser(ctx, user))

	user.Salary = decimal.NewFromInt(1200000)
	user.Role = core.RoleAdmin
	require.NoError(t, store.SaveUser(ctx, user))

	got, err := store.GetUser(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, got.Role)
	assert.True(t, got.Salary.Equal(decimal.NewFromInt(1200000)))

	all, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// INCENTIVE UNIQUE KEY
// =============================================================================

func TestIncentive_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: An incentive stored for (emp-1, 04, 2025)
	// WHEN: Inserting a second record for the same key under a new ID
	// THEN: The unique index rejects it as ErrDuplicateIncentive

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-1", "emp-1", "04")))

	err := store.CreateIncentive(ctx, sampleIncentive("inc-2", "emp-1", "04"))
	assert.ErrorIs(t, err, core.ErrDuplicateIncentive)

	// Different month and different user are both fine
	assert.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-3", "emp-1", "05")))
	assert.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-4", "emp-2", "04")))
}

func TestIncentive_FindByPeriod(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-1", "emp-1", "04")))

	found, err := store.FindIncentive(ctx, "emp-1", core.Period{Month: "04", Year: "2025"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, core.IncentiveID("inc-1"), found.ID)

	// Absence is nil, not an error
	none, err := store.FindIncentive(ctx, "emp-1", core.Period{Month: "06", Year: "2025"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestIncentive_StatusUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-1", "emp-1", "04")))

	require.NoError(t, store.UpdateIncentiveStatus(ctx, "inc-1", core.IncentiveApproved, "ok to pay"))

	got, err := store.GetIncentive(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, core.IncentiveApproved, got.Status)
	assert.Equal(t, "ok to pay", got.StatusComment)

	assert.ErrorIs(t, store.UpdateIncentiveStatus(ctx, "missing", core.IncentiveApproved, ""), core.ErrNotFound)
}

func TestIncentive_ListByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-1", "emp-1", "03")))
	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-2", "emp-1", "04")))
	require.NoError(t, store.CreateIncentive(ctx, sampleIncentive("inc-3", "emp-2", "04")))

	got, err := store.ListIncentivesByUser(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
