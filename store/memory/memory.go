// Package memory provides an in-memory core.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu         sync.RWMutex
	tasks      map[core.TaskID]core.Task
	users      map[core.UserID]core.User
	incentives map[core.IncentiveID]core.Incentive

	// incentiveKeys mirrors the unique (user, month, year) index the
	// durable backends enforce.
	incentiveKeys map[incentiveKey]core.IncentiveID
}

type incentiveKey struct {
	UserID core.UserID
	Period core.Period
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tasks:         make(map[core.TaskID]core.Task),
		users:         make(map[core.UserID]core.User),
		incentives:    make(map[core.IncentiveID]core.Incentive),
		incentiveKeys: make(map[incentiveKey]core.IncentiveID),
	}
}

// =============================================================================
// TASK STORE
// =============================================================================

func (s *Store) CreateTask(_ context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *Store) GetTask(_ context.Context, id core.TaskID) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	t = cloneTask(t)
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	sortTasks(out)
	return out, nil
}

func (s *Store) ListTasksByAssignee(_ context.Context, userID core.UserID) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.AssignedTo == userID {
			out = append(out, cloneTask(t))
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *Store) ListCompletedTasks(_ context.Context, userID core.UserID) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.AssignedTo == userID && t.Status == core.TaskCompleted {
			out = append(out, cloneTask(t))
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return core.ErrNotFound
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id core.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

func (s *Store) GetUser(_ context.Context, id core.UserID) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveUser(_ context.Context, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// =============================================================================
// INCENTIVE STORE
// =============================================================================

func (s *Store) FindIncentive(_ context.Context, userID core.UserID, period core.Period) (*core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.incentiveKeys[incentiveKey{UserID: userID, Period: period}]
	if !ok {
		return nil, nil
	}
	inc := s.incentives[id]
	return &inc, nil
}

func (s *Store) CreateIncentive(_ context.Context, inc core.Incentive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := incentiveKey{UserID: inc.UserID, Period: inc.Period}
	if _, exists := s.incentiveKeys[k]; exists {
		return &core.DuplicateIncentiveError{UserID: inc.UserID, Period: inc.Period}
	}
	s.incentives[inc.ID] = inc
	s.incentiveKeys[k] = inc.ID
	return nil
}

func (s *Store) GetIncentive(_ context.Context, id core.IncentiveID) (*core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incentives[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &inc, nil
}

func (s *Store) ListIncentives(_ context.Context) ([]core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Incentive, 0, len(s.incentives))
	for _, inc := range s.incentives {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListIncentivesByUser(_ context.Context, userID core.UserID) ([]core.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Incentive
	for _, inc := range s.incentives {
		if inc.UserID == userID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateIncentiveStatus(_ context.Context, id core.IncentiveID, status core.IncentiveStatus, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incentives[id]
	if !ok {
		return core.ErrNotFound
	}
	inc.Status = status
	inc.StatusComment = comment
	inc.UpdatedAt = time.Now()
	s.incentives[id] = inc
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// cloneTask deep-copies the requirement slice so callers can't mutate
// stored state through a returned task.
func cloneTask(t core.Task) core.Task {
	reqs := make([]core.Requirement, len(t.Requirements))
	copy(reqs, t.Requirements)
	for i, r := range t.Requirements {
		if r.Completion != nil {
			c := *r.Completion
			reqs[i].Completion = &c
		}
	}
	t.Requirements = reqs
	return t
}

func sortTasks(tasks []core.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
}
