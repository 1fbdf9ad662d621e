/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract. Every response is wrapped in
  the same {success, data|error} envelope so the UI renders failures
  without special-casing endpoints.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request structs carry go-playground/validator tags for the structural
  checks (required fields, ranges); the business invariants (weights sum
  to 100, status transitions) stay in the domain packages.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/incentive"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// Envelope is the {success, data|error} shape every endpoint returns.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// =============================================================================
// USER TYPES
// =============================================================================

type UserDTO struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Salary      float64 `json:"salary"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

type SaveUserRequest struct {
	ID          string  `json:"id" validate:"required"`
	DisplayName string  `json:"display_name" validate:"required"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Role        string  `json:"role" validate:"required,oneof=employee admin accountant"`
	Salary      float64 `json:"salary" validate:"gte=0"`
}

func toUserDTO(u core.User) UserDTO {
	salary, _ := u.Salary.Float64()
	return UserDTO{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        string(u.Role),
		Salary:      salary,
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

// =============================================================================
// TASK TYPES
// =============================================================================

type RequirementDTO struct {
	Label      string   `json:"label"`
	Weight     float64  `json:"weight"`
	Completion *float64 `json:"completion,omitempty"`
}

type TaskDTO struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	AssignedTo      string           `json:"assigned_to"`
	AssignedBy      string           `json:"assigned_by,omitempty"`
	DueDate         string           `json:"due_date,omitempty"`
	Status          string           `json:"status"`
	StatusComment   string           `json:"status_comment,omitempty"`
	Requirements    []RequirementDTO `json:"requirements"`
	Rating          int              `json:"rating,omitempty"`
	Evaluated       bool             `json:"evaluated"`
	EvaluatedAt     string           `json:"evaluated_at,omitempty"`
	TotalPercentage *float64         `json:"total_percentage,omitempty"`
	CreatedAt       string           `json:"created_at,omitempty"`
	CompletedAt     string           `json:"completed_at,omitempty"`
}

type RequirementInput struct {
	Label  string  `json:"label" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0,lte=100"`
}

type CreateTaskRequest struct {
	Title        string             `json:"title" validate:"required"`
	Description  string             `json:"description"`
	AssignedTo   string             `json:"assigned_to" validate:"required"`
	DueDate      string             `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Requirements []RequirementInput `json:"requirements" validate:"required,min=1,dive"`
}

type UpdateTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to" validate:"required"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type ReplaceRubricRequest struct {
	Requirements []RequirementInput `json:"requirements" validate:"required,min=1,dive"`
}

type ChangeStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment"`
}

type RecordCompletionRequest struct {
	Completion float64 `json:"completion" validate:"gte=0,lte=100"`
}

type FinalizeEvaluationRequest struct {
	Rating int `json:"rating" validate:"gte=0,lte=5"`
}

func toTaskDTO(t core.Task) TaskDTO {
	dto := TaskDTO{
		ID:            string(t.ID),
		Title:         t.Title,
		Description:   t.Description,
		AssignedTo:    string(t.AssignedTo),
		AssignedBy:    string(t.AssignedBy),
		Status:        string(t.Status),
		StatusComment: t.StatusComment,
		Rating:        t.Rating,
		Evaluated:     t.Evaluated,
		CreatedAt:     formatTime(t.CreatedAt),
	}
	if !t.DueDate.IsZero() {
		dto.DueDate = t.DueDate.Format("2006-01-02")
	}
	if t.EvaluatedAt != nil {
		dto.EvaluatedAt = formatTime(*t.EvaluatedAt)
	}
	if t.CompletedAt != nil {
		dto.CompletedAt = formatTime(*t.CompletedAt)
	}
	if t.TotalPercentage != nil {
		pct, _ := t.TotalPercentage.Float64()
		dto.TotalPercentage = &pct
	}
	dto.Requirements = make([]RequirementDTO, len(t.Requirements))
	for i, r := range t.Requirements {
		weight, _ := r.Weight.Float64()
		dto.Requirements[i] = RequirementDTO{Label: r.Label, Weight: weight}
		if r.Completion != nil {
			c, _ := r.Completion.Float64()
			dto.Requirements[i].Completion = &c
		}
	}
	return dto
}

func toRequirements(inputs []RequirementInput) []core.Requirement {
	reqs := make([]core.Requirement, len(inputs))
	for i, in := range inputs {
		reqs[i] = core.Requirement{
			Label:  in.Label,
			Weight: decimal.NewFromFloat(in.Weight),
		}
	}
	return reqs
}

// =============================================================================
// INCENTIVE TYPES
// =============================================================================

type IncentiveDTO struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Month         string  `json:"month"`
	Year          string  `json:"year"`
	TaskCount     int     `json:"task_count"`
	Formula       string  `json:"formula"`
	TotalAmount   float64 `json:"total_amount"`
	Status        string  `json:"status"`
	StatusComment string  `json:"status_comment,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

type CalculateIncentiveRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Month   string `json:"month" validate:"required,len=2"`
	Year    string `json:"year" validate:"required,len=4"`
	Formula string `json:"formula" validate:"omitempty,oneof=rating-tier salary-percent"`
}

type SetIncentiveStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=approved rejected"`
	Comment string `json:"comment"`
}

func toIncentiveDTO(inc core.Incentive) IncentiveDTO {
	amount, _ := inc.TotalAmount.Float64()
	return IncentiveDTO{
		ID:            string(inc.ID),
		UserID:        string(inc.UserID),
		Month:         inc.Period.Month,
		Year:          inc.Period.Year,
		TaskCount:     inc.TaskCount,
		Formula:       inc.Formula,
		TotalAmount:   amount,
		Status:        string(inc.Status),
		StatusComment: inc.StatusComment,
		CreatedAt:     formatTime(inc.CreatedAt),
		UpdatedAt:     formatTime(inc.UpdatedAt),
	}
}

// =============================================================================
// REPORT TYPES
// =============================================================================

type PayrollLineDTO struct {
	UserID            string  `json:"user_id"`
	DisplayName       string  `json:"display_name"`
	Salary            float64 `json:"salary"`
	TaskCount         int     `json:"task_count"`
	AveragePercentage float64 `json:"average_percentage"`
	Bonus             float64 `json:"bonus"`
	TotalSalary       float64 `json:"total_salary"`
}

func toPayrollLineDTO(line incentive.PayrollLine) PayrollLineDTO {
	salary, _ := line.Salary.Float64()
	avg, _ := line.AveragePercentage.Float64()
	bonus, _ := line.Bonus.Float64()
	total, _ := line.TotalSalary.Float64()
	return PayrollLineDTO{
		UserID:            string(line.UserID),
		DisplayName:       line.DisplayName,
		Salary:            salary,
		TaskCount:         line.TaskCount,
		AveragePercentage: avg,
		Bonus:             bonus,
		TotalSalary:       total,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
