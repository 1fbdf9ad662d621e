/*
store.go - Persistence interfaces for tasks, users, and incentives

PURPOSE:
  Defines the contract between the engine and the document store. The
  original system ran on a managed document database; the engine only ever
  issues single-shot request/response calls against these interfaces, with
  no lock held across calls.

KEY INTERFACES:
  TaskStore:      Task CRUD plus the completed-tasks-by-assignee query the
                  calculator needs
  UserDirectory:  User lookup and management (name, email, role, salary)
  IncentiveStore: Incentive creation with a UNIQUE (user, month, year)
                  constraint, plus the status update

DUPLICATE KEY CONTRACT:
  CreateIncentive MUST enforce uniqueness of (user, month, year) at the
  storage layer and return ErrDuplicateIncentive on collision. The
  calculator also pre-checks with FindIncentive for a friendlier error,
  but the constraint is what closes the concurrent-operators race.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (unique index)
  - store/mongo:  MongoDB (unique compound index)
  - store/memory: in-memory for tests and demos
*/
package core

import "context"

// =============================================================================
// TASK STORE
// =============================================================================

type TaskStore interface {
	// CreateTask persists a new task. The rubric must already be validated.
	CreateTask(ctx context.Context, task Task) error

	// GetTask returns a task by ID, or ErrNotFound.
	GetTask(ctx context.Context, id TaskID) (*Task, error)

	// ListTasks returns all tasks, newest first.
	ListTasks(ctx context.Context) ([]Task, error)

	// ListTasksByAssignee returns all tasks assigned to a user.
	ListTasksByAssignee(ctx context.Context, userID UserID) ([]Task, error)

	// ListCompletedTasks returns the user's tasks with status "completed".
	// Period filtering on the evaluation timestamp happens in the
	// calculator, mirroring how the document store can only filter on
	// indexed equality.
	ListCompletedTasks(ctx context.Context, userID UserID) ([]Task, error)

	// UpdateTask replaces the stored task. Used for edits, status changes,
	// and evaluation finalization.
	UpdateTask(ctx context.Context, task Task) error

	// DeleteTask removes a task by ID.
	DeleteTask(ctx context.Context, id TaskID) error
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

type UserDirectory interface {
	// GetUser returns a user by ID, or ErrNotFound.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]User, error)

	// SaveUser creates or replaces a user record.
	SaveUser(ctx context.Context, user User) error
}

// =============================================================================
// INCENTIVE STORE
// =============================================================================

type IncentiveStore interface {
	// FindIncentive returns the incentive for the key, or nil when none
	// exists. Never an error for absence.
	FindIncentive(ctx context.Context, userID UserID, period Period) (*Incentive, error)

	// CreateIncentive persists a new incentive. Returns
	// ErrDuplicateIncentive when a record for (user, month, year) exists.
	CreateIncentive(ctx context.Context, inc Incentive) error

	// GetIncentive returns an incentive by ID, or ErrNotFound.
	GetIncentive(ctx context.Context, id IncentiveID) (*Incentive, error)

	// ListIncentives returns all incentives, newest first.
	ListIncentives(ctx context.Context) ([]Incentive, error)

	// ListIncentivesByUser returns one user's incentives.
	ListIncentivesByUser(ctx context.Context, userID UserID) ([]Incentive, error)

	// UpdateIncentiveStatus sets status, comment, and updatedAt. The
	// transition itself is validated by the incentive package before the
	// write; the store only persists.
	UpdateIncentiveStatus(ctx context.Context, id IncentiveID, status IncentiveStatus, comment string) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface. Concrete backends implement all
// three interfaces over one connection.
type Store interface {
	TaskStore
	UserDirectory
	IncentiveStore
}
