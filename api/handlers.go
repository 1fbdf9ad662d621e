/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes task evaluation and incentive calculation via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Users:
    GET    /api/users                   List all users
    GET    /api/users/{id}              Get user details
    PUT    /api/users/{id}              Create or update user
    GET    /api/users/{id}/tasks        Tasks assigned to user
    GET    /api/users/{id}/incentives   User's incentive history

  Tasks:
    GET    /api/tasks                   List all tasks
    POST   /api/tasks                   Create task with rubric
    GET    /api/tasks/{id}              Get task details
    PUT    /api/tasks/{id}              Update task metadata
    DELETE /api/tasks/{id}              Delete task
    PUT    /api/tasks/{id}/rubric       Replace rubric (pre-completion)
    POST   /api/tasks/{id}/status       Change task status
    POST   /api/tasks/{id}/requirements/{index}/completion
                                        Record requirement completion
    POST   /api/tasks/{id}/evaluation   Finalize evaluation

  Incentives:
    POST   /api/incentives/calculate    Calculate monthly incentive
    GET    /api/incentives              List all incentives
    GET    /api/incentives/{id}         Get incentive details
    POST   /api/incentives/{id}/status  Approve or reject

  Reports:
    GET    /api/reports/payroll         Monthly payroll report

REQUEST FLOW:
  1. Parse HTTP request
  2. Structural validation (go-playground/validator)
  3. Call domain logic (evaluation, calculator, approver)
  4. Serialize response in the {success, data|error} envelope
  5. Map domain errors to HTTP status

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Duplicate incentive, invalid state transition
  - 422: No qualifying tasks for the period
  - 500: Storage and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Authentication and role gating
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/evaluation"
	"github.com/warp/incentive-engine/incentive"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      core.Store
	Evaluation *evaluation.Service
	Calculator *incentive.Calculator
	Approver   *incentive.Approver
	Reporter   *incentive.Reporter
	Log        *logrus.Logger

	validate *validator.Validate
}

// NewHandler wires the domain services over the given store.
func NewHandler(store core.Store, log *logrus.Logger) *Handler {
	return &Handler{
		Store:      store,
		Evaluation: evaluation.NewService(store),
		Calculator: incentive.NewCalculator(store, log),
		Approver:   incentive.NewApprover(store),
		Reporter:   incentive.NewReporter(store),
		Log:        log,
		validate:   validator.New(),
	}
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &core.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return &core.ValidationError{Field: f.Field(), Message: "failed " + f.Tag() + " check"}
		}
		return err
	}
	return nil
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := core.UserID(chi.URLParam(r, "id"))

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// SaveUser creates or replaces a user record. A missing or negative
// salary is stored as zero so the payroll report never divides by
// garbage.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	id := core.UserID(chi.URLParam(r, "id"))

	var req SaveUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}
	if req.ID != string(id) {
		h.writeErr(w, &core.ValidationError{Field: "id", Message: "body id does not match URL"})
		return
	}

	now := time.Now()
	existing, err := h.Store.GetUser(r.Context(), id)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		h.writeErr(w, err)
		return
	}

	user := core.User{
		ID:          id,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        core.Role(req.Role),
		Salary:      decimal.NewFromFloat(req.Salary),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if user.Salary.IsNegative() {
		user.Salary = decimal.Zero
	}
	if existing != nil {
		user.CreatedAt = existing.CreatedAt
	}

	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// ListUserTasks returns tasks assigned to a user.
func (h *Handler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	id := core.UserID(chi.URLParam(r, "id"))

	tasks, err := h.Store.ListTasksByAssignee(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUserIncentives returns one user's incentive history.
func (h *Handler) ListUserIncentives(w http.ResponseWriter, r *http.Request) {
	id := core.UserID(chi.URLParam(r, "id"))

	incs, err := h.Store.ListIncentivesByUser(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]IncentiveDTO, len(incs))
	for i, inc := range incs {
		dtos[i] = toIncentiveDTO(inc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns all tasks, newest first.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Store.ListTasks(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTask returns a single task with its rubric.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	task, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// CreateTask creates a task with its requirement rubric. The rubric is
// validated up front so an unweighable task never reaches the store.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	reqs := toRequirements(req.Requirements)
	if err := evaluation.ValidateRubric(reqs); err != nil {
		h.writeErr(w, err)
		return
	}

	var assignedBy core.UserID
	if p, ok := PrincipalFromContext(r.Context()); ok {
		assignedBy = p.UserID
	}

	now := time.Now()
	task := core.Task{
		ID:           core.TaskID(uuid.NewString()),
		Title:        req.Title,
		Description:  req.Description,
		AssignedTo:   core.UserID(req.AssignedTo),
		AssignedBy:   assignedBy,
		Status:       core.TaskPending,
		Requirements: reqs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			h.writeErr(w, &core.ValidationError{Field: "due_date", Message: "use YYYY-MM-DD"})
			return
		}
		task.DueDate = due
	}

	if err := h.Store.CreateTask(r.Context(), task); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

// UpdateTask edits task metadata. The rubric and evaluation fields have
// their own endpoints; an evaluated task is frozen entirely.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	var req UpdateTaskRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	task, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if task.Evaluated {
		h.writeErr(w, &core.InvalidStateError{Op: "update task", Current: "evaluated", Message: "evaluated tasks are frozen"})
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	task.AssignedTo = core.UserID(req.AssignedTo)
	task.DueDate = time.Time{}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			h.writeErr(w, &core.ValidationError{Field: "due_date", Message: "use YYYY-MM-DD"})
			return
		}
		task.DueDate = due
	}
	task.UpdatedAt = time.Now()

	if err := h.Store.UpdateTask(r.Context(), *task); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// DeleteTask removes a task.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteTask(r.Context(), id); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": string(id)})
}

// ReplaceRubric swaps the requirement list on a not-yet-completed task.
func (h *Handler) ReplaceRubric(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	var req ReplaceRubricRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	task, err := h.Evaluation.ReplaceRubric(r.Context(), id, toRequirements(req.Requirements))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// ChangeTaskStatus moves a task through its lifecycle.
func (h *Handler) ChangeTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	var req ChangeStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	task, err := h.Evaluation.ChangeStatus(r.Context(), id, core.TaskStatus(req.Status), req.Comment)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// RecordCompletion scores one requirement on a completed task.
func (h *Handler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		h.writeErr(w, &core.ValidationError{Field: "index", Message: "must be a non-negative integer"})
		return
	}

	var req RecordCompletionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	task, err := h.Evaluation.RecordCompletion(r.Context(), id, index, decimal.NewFromFloat(req.Completion))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// FinalizeEvaluation locks in the evaluation and computes the total
// percentage.
func (h *Handler) FinalizeEvaluation(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "id"))

	var req FinalizeEvaluationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	task, err := h.Evaluation.FinalizeEvaluation(r.Context(), id, req.Rating)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// =============================================================================
// INCENTIVE HANDLERS
// =============================================================================

// CalculateIncentive runs the monthly incentive calculation for one
// user and persists the pending record.
func (h *Handler) CalculateIncentive(w http.ResponseWriter, r *http.Request) {
	var req CalculateIncentiveRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	inc, err := h.Calculator.Calculate(r.Context(), core.UserID(req.UserID), req.Month, req.Year, req.Formula)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncentiveDTO(*inc))
}

// ListIncentives returns all incentives, newest first.
func (h *Handler) ListIncentives(w http.ResponseWriter, r *http.Request) {
	incs, err := h.Store.ListIncentives(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]IncentiveDTO, len(incs))
	for i, inc := range incs {
		dtos[i] = toIncentiveDTO(inc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetIncentive returns a single incentive record.
func (h *Handler) GetIncentive(w http.ResponseWriter, r *http.Request) {
	id := core.IncentiveID(chi.URLParam(r, "id"))

	inc, err := h.Store.GetIncentive(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncentiveDTO(*inc))
}

// SetIncentiveStatus approves or rejects a pending incentive.
func (h *Handler) SetIncentiveStatus(w http.ResponseWriter, r *http.Request) {
	id := core.IncentiveID(chi.URLParam(r, "id"))

	var req SetIncentiveStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeErr(w, err)
		return
	}

	inc, err := h.Approver.SetStatus(r.Context(), id, core.IncentiveStatus(req.Status), req.Comment)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncentiveDTO(*inc))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// PayrollReport returns the month's payroll lines for every user.
// GET /api/reports/payroll?month=MM&year=YYYY
func (h *Handler) PayrollReport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	year := r.URL.Query().Get("year")

	lines, err := h.Reporter.Payroll(r.Context(), month, year)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	dtos := make([]PayrollLineDTO, len(lines))
	for i, line := range lines {
		dtos[i] = toPayrollLineDTO(line)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: message})
}

// writeErr maps domain errors onto HTTP status codes. Anything outside
// the known taxonomy is treated as an internal error and logged with
// its cause; the client only sees a generic message.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateIncentive), errors.Is(err, core.ErrInvalidState):
		writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrNoData):
		writeFailure(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.Log.WithError(err).Error("request failed")
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}
