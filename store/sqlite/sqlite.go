/*
Package sqlite provides a SQLite-backed implementation of core.Store.

PURPOSE:
  Implements the task, user, and incentive persistence interfaces over
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  users:      Directory entries with role and base salary
  tasks:      Assigned work; the requirement rubric is stored as a JSON
              column and (de)serialized at the boundary into typed structs
  incentives: One row per computed monthly bonus

DUPLICATE KEY ENFORCEMENT:
  idx_incentives_user_period is a UNIQUE index on (user_id, month, year).
  The calculator's read-then-write pre-check is best-effort; this index
  is what actually prevents two concurrent operators from double-creating
  an incentive. Violations surface as core.ErrDuplicateIncentive.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: Interface definitions
  - store/mongo: Document-database implementation
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
)

// Store implements core.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ core.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (directory entries)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'employee',
		salary TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Tasks (rubric stored as JSON, typed at the boundary)
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		assigned_to TEXT NOT NULL,
		assigned_by TEXT,
		due_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		status_comment TEXT,
		requirements_json TEXT NOT NULL,
		rating INTEGER DEFAULT 0,
		evaluated BOOLEAN DEFAULT FALSE,
		evaluated_at TEXT,
		total_percentage TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_assignee
		ON tasks(assigned_to);
	-- Hot path: the calculator's completed-tasks query
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee_status
		ON tasks(assigned_to, status);

	-- Incentives (one per user and month)
	CREATE TABLE IF NOT EXISTS incentives (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		year TEXT NOT NULL,
		task_count INTEGER NOT NULL,
		formula TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		status_comment TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one incentive per (user, month, year). This closes the
	-- read-then-write race when two operators calculate concurrently.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_incentives_user_period
		ON incentives(user_id, month, year);

	CREATE INDEX IF NOT EXISTS idx_incentives_user
		ON incentives(user_id);
	CREATE INDEX IF NOT EXISTS idx_incentives_status
		ON incentives(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TASK STORE (core.TaskStore interface)
// =============================================================================

func (s *Store) CreateTask(ctx context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqsJSON, err := marshalRequirements(task.Requirements)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks
		(id, title, description, assigned_to, assigned_by, due_date, status,
		 status_comment, requirements_json, rating, evaluated, evaluated_at,
		 total_percentage, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.AssignedTo, task.AssignedBy,
		nullTime(&task.DueDate), task.Status, task.StatusComment, reqsJSON,
		task.Rating, task.Evaluated, nullTime(task.EvaluatedAt),
		nullDecimal(task.TotalPercentage),
		task.CreatedAt.UTC().Format(time.RFC3339),
		task.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return core.WrapStorage("create task", err)
	}
	return nil
}

const taskColumns = `id, title, description, assigned_to, assigned_by, due_date,
	status, status_comment, requirements_json, rating, evaluated, evaluated_at,
	total_percentage, created_at, updated_at, completed_at`

func (s *Store) GetTask(ctx context.Context, id core.TaskID) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get task", err)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]core.Task, error) {
	return s.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC")
}

func (s *Store) ListTasksByAssignee(ctx context.Context, userID core.UserID) ([]core.Task, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE assigned_to = ? ORDER BY created_at DESC", userID)
}

func (s *Store) ListCompletedTasks(ctx context.Context, userID core.UserID) ([]core.Task, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE assigned_to = ? AND status = ? ORDER BY created_at DESC",
		userID, core.TaskCompleted)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapStorage("list tasks", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, core.WrapStorage("list tasks", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list tasks", err)
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqsJSON, err := marshalRequirements(task.Requirements)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks SET
			title = ?, description = ?, assigned_to = ?, assigned_by = ?,
			due_date = ?, status = ?, status_comment = ?, requirements_json = ?,
			rating = ?, evaluated = ?, evaluated_at = ?, total_percentage = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		task.Title, task.Description, task.AssignedTo, task.AssignedBy,
		nullTime(&task.DueDate), task.Status, task.StatusComment, reqsJSON,
		task.Rating, task.Evaluated, nullTime(task.EvaluatedAt),
		nullDecimal(task.TotalPercentage),
		task.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(task.CompletedAt),
		task.ID,
	)
	if err != nil {
		return core.WrapStorage("update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id core.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return core.WrapStorage("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// =============================================================================
// USER DIRECTORY (core.UserDirectory interface)
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, display_name, email, role, salary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			role = excluded.role,
			salary = excluded.salary,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.DisplayName, user.Email, user.Role, user.Salary.String(),
		now, now,
	)
	if err != nil {
		return core.WrapStorage("save user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u                    core.User
		salary               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, role, salary, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role, &salary, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get user", err)
	}

	u.Salary = parseSalary(salary)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, email, role, salary, created_at, updated_at FROM users ORDER BY display_name")
	if err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u                    core.User
			salary               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role, &salary, &createdAt, &updatedAt); err != nil {
			return nil, core.WrapStorage("list users", err)
		}
		u.Salary = parseSalary(salary)
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	return users, nil
}

// =============================================================================
// INCENTIVE STORE (core.IncentiveStore interface)
// =============================================================================

const incentiveColumns = `id, user_id, month, year, task_count, formula,
	total_amount, status, status_comment, created_at, updated_at`

func (s *Store) FindIncentive(ctx context.Context, userID core.UserID, period core.Period) (*core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+incentiveColumns+" FROM incentives WHERE user_id = ? AND month = ? AND year = ?",
		userID, period.Month, period.Year)
	inc, err := scanIncentive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapStorage("find incentive", err)
	}
	return inc, nil
}

func (s *Store) CreateIncentive(ctx context.Context, inc core.Incentive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO incentives
		(id, user_id, month, year, task_count, formula, total_amount, status,
		 status_comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		inc.ID, inc.UserID, inc.Period.Month, inc.Period.Year,
		inc.TaskCount, inc.Formula, inc.TotalAmount.String(),
		inc.Status, inc.StatusComment,
		inc.CreatedAt.UTC().Format(time.RFC3339),
		inc.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.DuplicateIncentiveError{UserID: inc.UserID, Period: inc.Period}
		}
		return core.WrapStorage("create incentive", err)
	}
	return nil
}

func (s *Store) GetIncentive(ctx context.Context, id core.IncentiveID) (*core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+incentiveColumns+" FROM incentives WHERE id = ?", id)
	inc, err := scanIncentive(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get incentive", err)
	}
	return inc, nil
}

func (s *Store) ListIncentives(ctx context.Context) ([]core.Incentive, error) {
	return s.queryIncentives(ctx,
		"SELECT "+incentiveColumns+" FROM incentives ORDER BY created_at DESC")
}

func (s *Store) ListIncentivesByUser(ctx context.Context, userID core.UserID) ([]core.Incentive, error) {
	return s.queryIncentives(ctx,
		"SELECT "+incentiveColumns+" FROM incentives WHERE user_id = ? ORDER BY created_at DESC", userID)
}

func (s *Store) queryIncentives(ctx context.Context, query string, args ...any) ([]core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapStorage("list incentives", err)
	}
	defer rows.Close()

	var incs []core.Incentive
	for rows.Next() {
		inc, err := scanIncentive(rows)
		if err != nil {
			return nil, core.WrapStorage("list incentives", err)
		}
		incs = append(incs, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list incentives", err)
	}
	return incs, nil
}

func (s *Store) UpdateIncentiveStatus(ctx context.Context, id core.IncentiveID, status core.IncentiveStatus, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE incentives SET status = ?, status_comment = ?, updated_at = ? WHERE id = ?",
		status, comment, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return core.WrapStorage("update incentive status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// =============================================================================
// ROW SCANNING AND SERIALIZATION
// =============================================================================

// requirementRow is the JSON shape of one rubric entry in the
// requirements_json column. Decimals travel as strings.
type requirementRow struct {
	Label      string  `json:"label"`
	Weight     string  `json:"weight"`
	Completion *string `json:"completion,omitempty"`
}

func marshalRequirements(reqs []core.Requirement) (string, error) {
	rows := make([]requirementRow, len(reqs))
	for i, r := range reqs {
		rows[i] = requirementRow{Label: r.Label, Weight: r.Weight.String()}
		if r.Completion != nil {
			s := r.Completion.String()
			rows[i].Completion = &s
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", core.WrapStorage("marshal requirements", err)
	}
	return string(b), nil
}

func unmarshalRequirements(data string) ([]core.Requirement, error) {
	var rows []requirementRow
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, err
	}
	reqs := make([]core.Requirement, len(rows))
	for i, r := range rows {
		w, err := decimal.NewFromString(r.Weight)
		if err != nil {
			return nil, fmt.Errorf("requirement %d: bad weight %q: %w", i, r.Weight, err)
		}
		reqs[i] = core.Requirement{Label: r.Label, Weight: w}
		if r.Completion != nil {
			c, err := decimal.NewFromString(*r.Completion)
			if err != nil {
				return nil, fmt.Errorf("requirement %d: bad completion %q: %w", i, *r.Completion, err)
			}
			reqs[i].Completion = &c
		}
	}
	return reqs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*core.Task, error) {
	var (
		t                          core.Task
		dueDate, evaluatedAt       sql.NullString
		completedAt, totalPct      sql.NullString
		reqsJSON, created, updated string
		description, comment       sql.NullString
		assignedBy                 sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &description, &t.AssignedTo, &assignedBy,
		&dueDate, &t.Status, &comment, &reqsJSON, &t.Rating, &t.Evaluated,
		&evaluatedAt, &totalPct, &created, &updated, &completedAt)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.StatusComment = comment.String
	t.AssignedBy = core.UserID(assignedBy.String)
	if dueDate.Valid {
		t.DueDate, _ = time.Parse(time.RFC3339, dueDate.String)
	}
	if evaluatedAt.Valid {
		at, _ := time.Parse(time.RFC3339, evaluatedAt.String)
		t.EvaluatedAt = &at
	}
	if completedAt.Valid {
		at, _ := time.Parse(time.RFC3339, completedAt.String)
		t.CompletedAt = &at
	}
	if totalPct.Valid {
		d, err := decimal.NewFromString(totalPct.String)
		if err != nil {
			return nil, fmt.Errorf("bad total_percentage %q: %w", totalPct.String, err)
		}
		t.TotalPercentage = &d
	}
	t.Requirements, err = unmarshalRequirements(reqsJSON)
	if err != nil {
		return nil, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, created)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &t, nil
}

func scanIncentive(row scanner) (*core.Incentive, error) {
	var (
		inc                  core.Incentive
		amount               string
		comment              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&inc.ID, &inc.UserID, &inc.Period.Month, &inc.Period.Year,
		&inc.TaskCount, &inc.Formula, &amount, &inc.Status, &comment,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	inc.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("bad total_amount %q: %w", amount, err)
	}
	inc.StatusComment = comment.String
	inc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &inc, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// parseSalary coerces the stored salary into a decimal, defaulting absent
// or non-numeric values to zero (the directory contract).
func parseSalary(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
