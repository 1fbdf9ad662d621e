/*
Package core provides the shared domain model for the incentive engine.

PURPOSE:
  This package contains the entities and invariants everything else builds
  on: tasks with weighted requirement rubrics, the users they are assigned
  to, and the monthly incentive records computed from them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Requirement: A named, percentage-weighted criterion within a task rubric
  - Task: A unit of assigned work carrying its rubric and evaluation state
  - User: Directory entry (role, base salary) consumed by the calculator
  - Incentive: One computed bonus record per (user, month, year)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for weights, percentages, and money
     to avoid floating-point drift in payout comparisons
  2. Type Safety: Strong typing for IDs, statuses, and roles
  3. Explicit lifecycle: Status transitions are checked, never assumed
  4. One-way gates: Evaluation freezes a task; incentive approval freezes
     an incentive

SEE ALSO:
  - period.go: Month/year period parsing and matching
  - errors.go: Centralized error taxonomy
  - store.go: Persistence interfaces
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TaskID string
type IncentiveID string

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleAdmin, RoleAccountant:
		return true
	}
	return false
}

// =============================================================================
// USER - Directory entry (read by the calculator, managed by admins)
// =============================================================================

type User struct {
	ID          UserID
	DisplayName string
	Email       string
	Role        Role

	// Base monthly salary. Defaults to zero when absent or non-numeric
	// at the boundary; the percentage-of-salary formula multiplies it.
	Salary decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// REQUIREMENT - One weighted criterion in a task's rubric
// =============================================================================

// Requirement is a named criterion with a percentage weight. Weights across
// a task's rubric must sum to exactly 100 (see evaluation.ValidateRubric),
// so that per-requirement completion entries are directly additive into a
// 0-100 task score without a normalization step.
type Requirement struct {
	Label  string
	Weight decimal.Decimal

	// Completion is the evaluator-entered percentage (0-100) of how fully
	// this requirement was met, already scaled to the requirement's share
	// of 100. Nil until the manager scores it.
	Completion *decimal.Decimal
}

// Scored reports whether the evaluator has entered a completion value.
func (r Requirement) Scored() bool { return r.Completion != nil }

// =============================================================================
// TASK STATUS - pending -> in-progress -> completed, or rejected
// =============================================================================

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskRejected   TaskStatus = "rejected"
)

// taskTransitions is the allowed status graph. Completed and rejected are
// terminal.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskCompleted, TaskRejected},
	TaskInProgress: {TaskCompleted, TaskRejected},
	TaskCompleted:  {},
	TaskRejected:   {},
}

// CanTransition reports whether a task may move from its current status to
// the target status.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, next := range taskTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s TaskStatus) Terminal() bool { return len(taskTransitions[s]) == 0 }

// Valid reports whether the status is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// =============================================================================
// TASK - Assigned work with a rubric and evaluation state
// =============================================================================

type Task struct {
	ID          TaskID
	Title       string
	Description string
	AssignedTo  UserID
	AssignedBy  UserID
	DueDate     time.Time

	Status        TaskStatus
	StatusComment string

	// Rubric authored at creation time. Replaceable wholesale on edit
	// until the task is evaluated, then frozen.
	Requirements []Requirement

	// Rating is the separate 1-5 evaluator score consumed by the
	// rating-tier formula. Zero means not rated.
	Rating int

	// Evaluation fields. Evaluated flips to true exactly once, when a
	// manager finalizes scoring on a completed task; after that the
	// rubric, rating, and TotalPercentage are immutable.
	Evaluated       bool
	EvaluatedAt     *time.Time
	TotalPercentage *decimal.Decimal

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// EvaluationTime returns the timestamp used for period matching: the
// evaluation time when present, otherwise the completion time. Incentives
// are computed against the month the work was scored, not the due date.
func (t *Task) EvaluationTime() time.Time {
	if t.EvaluatedAt != nil {
		return *t.EvaluatedAt
	}
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return time.Time{}
}

// =============================================================================
// INCENTIVE STATUS - pending -> approved | rejected (terminal)
// =============================================================================

type IncentiveStatus string

const (
	IncentivePending  IncentiveStatus = "pending"
	IncentiveApproved IncentiveStatus = "approved"
	IncentiveRejected IncentiveStatus = "rejected"
)

// Valid reports whether the status is a known incentive status.
func (s IncentiveStatus) Valid() bool {
	switch s {
	case IncentivePending, IncentiveApproved, IncentiveRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transition.
// Only pending incentives may change.
func (s IncentiveStatus) Terminal() bool { return s != IncentivePending }

// =============================================================================
// INCENTIVE - One computed bonus record per (user, month, year)
// =============================================================================

type Incentive struct {
	ID     IncentiveID
	UserID UserID
	Period Period

	// TaskCount is the number of qualifying tasks folded into the amount.
	TaskCount int

	// Formula names the strategy that produced TotalAmount. Selected
	// explicitly by the caller, never inferred from data shape.
	Formula string

	TotalAmount decimal.Decimal

	Status        IncentiveStatus
	StatusComment string

	CreatedAt time.Time
	UpdatedAt time.Time
}
