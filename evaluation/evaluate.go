/*
evaluate.go - Completion recording and one-time finalization

PURPOSE:
  Implements the evaluation side of the model. A manager scores each
  requirement of a completed task, then finalizes. Finalization is a
  one-way gate: it computes the task's total percentage (a plain sum of
  the weight-scaled completion entries), stamps evaluatedAt, and flips
  the evaluated flag. After that the rubric is immutable and a second
  finalize fails with an InvalidStateError.

PURE CORE + STORE-BACKED SERVICE:
  The mutations (RecordCompletion, Finalize) operate on an in-memory
  *core.Task so they are trivially testable. Service wraps them with the
  load/update round-trip against a TaskStore, which is how the API layer
  consumes them. Each call is single-shot: read, mutate, write, release.
*/
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// PURE OPERATIONS
// =============================================================================

// RecordCompletion sets requirement index's completion to a value in
// [0, 100]. Allowed only while the owning task is completed and not yet
// evaluated.
func RecordCompletion(task *core.Task, index int, percent decimal.Decimal) error {
	if task.Evaluated {
		return &core.InvalidStateError{Op: "record completion", Current: "evaluated", Message: "task evaluation is final"}
	}
	if task.Status != core.TaskCompleted {
		return &core.InvalidStateError{Op: "record completion", Current: string(task.Status), Message: "task must be completed before scoring"}
	}
	if index < 0 || index >= len(task.Requirements) {
		return &core.ValidationError{Field: "requirement", Message: fmt.Sprintf("index %d out of range (rubric has %d entries)", index, len(task.Requirements))}
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return &core.ValidationError{Field: "completion", Message: "completion must be in [0, 100], got " + percent.String()}
	}

	task.Requirements[index].Completion = &percent
	return nil
}

// Finalize computes totalPercentage as the sum of per-requirement
// completions and flips the evaluated flag. Preconditions: status is
// completed, not yet evaluated, and every requirement scored. The
// completions are already weight-scaled inputs, so no re-multiplication
// by weight happens here.
func Finalize(task *core.Task, rating int, now time.Time) error {
	if task.Evaluated {
		return &core.InvalidStateError{Op: "finalize evaluation", Current: "evaluated", Message: "task was already evaluated"}
	}
	if task.Status != core.TaskCompleted {
		return &core.InvalidStateError{Op: "finalize evaluation", Current: string(task.Status), Message: "only completed tasks can be evaluated"}
	}
	if rating < 0 || rating > 5 {
		return &core.ValidationError{Field: "rating", Message: fmt.Sprintf("rating must be 0 (unrated) or 1-5, got %d", rating)}
	}

	total := decimal.Zero
	for i, r := range task.Requirements {
		if !r.Scored() {
			return &core.InvalidStateError{
				Op:      "finalize evaluation",
				Current: string(task.Status),
				Message: fmt.Sprintf("requirement %s has no completion score", ordinal(i)),
			}
		}
		total = total.Add(*r.Completion)
	}

	task.TotalPercentage = &total
	task.Rating = rating
	task.Evaluated = true
	task.EvaluatedAt = &now
	task.UpdatedAt = now
	return nil
}

// ChangeStatus moves a task along the pending -> in-progress -> completed
// graph (or to rejected from a non-terminal state). Completion stamps
// completedAt; every change stamps updatedAt and records the comment.
func ChangeStatus(task *core.Task, to core.TaskStatus, comment string, now time.Time) error {
	if !to.Valid() {
		return &core.ValidationError{Field: "status", Message: "unknown status " + string(to)}
	}
	if !task.Status.CanTransition(to) {
		return &core.InvalidStateError{
			Op:      "change status",
			Current: string(task.Status),
			Message: "cannot move to " + string(to),
		}
	}

	task.Status = to
	task.StatusComment = comment
	task.UpdatedAt = now
	if to == core.TaskCompleted {
		task.CompletedAt = &now
	}
	return nil
}

// ReplaceRubric swaps the requirement list wholesale, the only supported
// edit mode. Rejected once the task is evaluated.
func ReplaceRubric(task *core.Task, reqs []core.Requirement, now time.Time) error {
	if task.Evaluated {
		return &core.InvalidStateError{Op: "replace rubric", Current: "evaluated", Message: "rubric is frozen after evaluation"}
	}
	if err := ValidateRubric(reqs); err != nil {
		return err
	}
	task.Requirements = reqs
	task.UpdatedAt = now
	return nil
}

// =============================================================================
// SERVICE - Store-backed wrapper
// =============================================================================

// Service orchestrates evaluation operations against a TaskStore.
type Service struct {
	Tasks core.TaskStore
	Now   func() time.Time
}

func NewService(tasks core.TaskStore) *Service {
	return &Service{Tasks: tasks, Now: time.Now}
}

// RecordCompletion loads the task, applies the score, and writes it back.
func (s *Service) RecordCompletion(ctx context.Context, id core.TaskID, index int, percent decimal.Decimal) (*core.Task, error) {
	task, err := s.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := RecordCompletion(task, index, percent); err != nil {
		return nil, err
	}
	task.UpdatedAt = s.Now()
	if err := s.Tasks.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

// FinalizeEvaluation performs the one-time evaluation of a completed task.
func (s *Service) FinalizeEvaluation(ctx context.Context, id core.TaskID, rating int) (*core.Task, error) {
	task, err := s.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Finalize(task, rating, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Tasks.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

// ChangeStatus applies a status transition and persists it.
func (s *Service) ChangeStatus(ctx context.Context, id core.TaskID, to core.TaskStatus, comment string) (*core.Task, error) {
	task, err := s.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ChangeStatus(task, to, comment, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Tasks.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

// ReplaceRubric validates and persists a wholesale rubric edit.
func (s *Service) ReplaceRubric(ctx context.Context, id core.TaskID, reqs []core.Requirement) (*core.Task, error) {
	task, err := s.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ReplaceRubric(task, reqs, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Tasks.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}
