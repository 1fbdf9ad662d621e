package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	handler := api.NewHandler(store, log)
	srv := httptest.NewServer(api.NewRouter(handler, testSecret))
	t.Cleanup(srv.Close)
	return srv, store
}

func signToken(t *testing.T, userID string, role core.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doReq(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func seedCompletedTask(t *testing.T, store *memory.Store, id, user string) {
	t.Helper()
	w1 := decimal.NewFromInt(60)
	w2 := decimal.NewFromInt(40)
	done := time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)
	err := store.CreateTask(context.Background(), core.Task{
		ID:         core.TaskID(id),
		Title:      "Quarterly report",
		AssignedTo: core.UserID(user),
		Status:     core.TaskCompleted,
		Requirements: []core.Requirement{
			{Label: "accuracy", Weight: w1},
			{Label: "timeliness", Weight: w2},
		},
		CompletedAt: &done,
		CreatedAt:   done,
		UpdatedAt:   done,
	})
	require.NoError(t, err)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_MissingToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, envelope := doReq(t, srv, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
}

func TestAuth_BadSignature(t *testing.T) {
	srv, _ := newTestServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "emp-1", "role": "admin",
	})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	resp, _ := doReq(t, srv, http.MethodGet, "/api/tasks", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_RoleGating(t *testing.T) {
	// GIVEN: An employee token
	// WHEN: Calling an accountant-only endpoint
	// THEN: 403, not 401

	srv, _ := newTestServer(t)
	token := signToken(t, "emp-1", core.RoleEmployee)

	resp, _ := doReq(t, srv, http.MethodGet, "/api/incentives", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// TASK LIFECYCLE OVER HTTP
// =============================================================================

func TestTasks_CreateValidatesRubric(t *testing.T) {
	// GIVEN: A rubric summing to 90
	// WHEN: Creating the task
	// THEN: 400 with the envelope error set

	srv, _ := newTestServer(t)
	token := signToken(t, "mgr-1", core.RoleAdmin)

	resp, envelope := doReq(t, srv, http.MethodPost, "/api/tasks", token, map[string]any{
		"title":       "Quarterly report",
		"assigned_to": "emp-1",
		"requirements": []map[string]any{
			{"label": "accuracy", "weight": 60},
			{"label": "timeliness", "weight": 30},
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, envelope["error"])
}

func TestTasks_FullEvaluationFlow(t *testing.T) {
	// GIVEN: A created task walked to completed
	// WHEN: Recording both completions and finalizing
	// THEN: The task carries evaluated=true and total 85.5

	srv, _ := newTestServer(t)
	admin := signToken(t, "mgr-1", core.RoleAdmin)

	resp, envelope := doReq(t, srv, http.MethodPost, "/api/tasks", admin, map[string]any{
		"title":       "Quarterly report",
		"assigned_to": "emp-1",
		"requirements": []map[string]any{
			{"label": "accuracy", "weight": 60},
			{"label": "timeliness", "weight": 40},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	taskID := envelope["data"].(map[string]any)["id"].(string)

	employee := signToken(t, "emp-1", core.RoleEmployee)
	resp, _ = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/status", employee,
		map[string]any{"status": "in-progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/status", employee,
		map[string]any{"status": "completed", "comment": "shipped"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/requirements/0/completion", admin,
		map[string]any{"completion": 55.5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/requirements/1/completion", admin,
		map[string]any{"completion": 30})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/evaluation", admin,
		map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := envelope["data"].(map[string]any)
	assert.Equal(t, true, data["evaluated"])
	assert.InDelta(t, 85.5, data["total_percentage"].(float64), 0.0001)

	// Second finalize conflicts
	resp, _ = doReq(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/evaluation", admin,
		map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTasks_CompletionOutOfRange(t *testing.T) {
	srv, store := newTestServer(t)
	seedCompletedTask(t, store, "task-1", "emp-1")
	admin := signToken(t, "mgr-1", core.RoleAdmin)

	resp, _ := doReq(t, srv, http.MethodPost, "/api/tasks/task-1/requirements/0/completion", admin,
		map[string]any{"completion": 120})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTasks_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signToken(t, "mgr-1", core.RoleAdmin)

	resp, _ := doReq(t, srv, http.MethodGet, "/api/tasks/ghost", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// INCENTIVES OVER HTTP
// =============================================================================

func seedEvaluated(t *testing.T, store *memory.Store, id, user string, totalPct float64) {
	t.Helper()
	pct := decimal.NewFromFloat(totalPct)
	at := time.Date(2025, time.April, 12, 10, 0, 0, 0, time.UTC)
	err := store.CreateTask(context.Background(), core.Task{
		ID:              core.TaskID(id),
		AssignedTo:      core.UserID(user),
		Status:          core.TaskCompleted,
		Evaluated:       true,
		Rating:          4,
		TotalPercentage: &pct,
		EvaluatedAt:     &at,
	})
	require.NoError(t, err)
}

func seedDirectoryUser(t *testing.T, store *memory.Store, id string, salary int64) {
	t.Helper()
	err := store.SaveUser(context.Background(), core.User{
		ID:          core.UserID(id),
		DisplayName: id,
		Role:        core.RoleEmployee,
		Salary:      decimal.NewFromInt(salary),
	})
	require.NoError(t, err)
}

func TestIncentives_CalculateApproveFlow(t *testing.T) {
	// GIVEN: A user with a qualifying April at average 85
	// WHEN: Calculating and then approving
	// THEN: 201 with amount 200000, then 200 with status approved

	srv, store := newTestServer(t)
	seedDirectoryUser(t, store, "emp-1", 1000000)
	seedEvaluated(t, store, "t1", "emp-1", 90)
	seedEvaluated(t, store, "t2", "emp-1", 80)

	acct := signToken(t, "acct-1", core.RoleAccountant)

	resp, envelope := doReq(t, srv, http.MethodPost, "/api/incentives/calculate", acct, map[string]any{
		"user_id": "emp-1", "month": "04", "year": "2025",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := envelope["data"].(map[string]any)
	assert.InDelta(t, 200000, data["total_amount"].(float64), 0.0001)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "salary-percent", data["formula"])
	incID := data["id"].(string)

	// Duplicate calculation conflicts
	resp, _ = doReq(t, srv, http.MethodPost, "/api/incentives/calculate", acct, map[string]any{
		"user_id": "emp-1", "month": "04", "year": "2025",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Approve
	resp, envelope = doReq(t, srv, http.MethodPost, "/api/incentives/"+incID+"/status", acct,
		map[string]any{"status": "approved", "comment": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", envelope["data"].(map[string]any)["status"])

	// Second decision conflicts
	resp, _ = doReq(t, srv, http.MethodPost, "/api/incentives/"+incID+"/status", acct,
		map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIncentives_NoData(t *testing.T) {
	srv, store := newTestServer(t)
	seedDirectoryUser(t, store, "emp-1", 1000000)

	acct := signToken(t, "acct-1", core.RoleAccountant)
	resp, _ := doReq(t, srv, http.MethodPost, "/api/incentives/calculate", acct, map[string]any{
		"user_id": "emp-1", "month": "04", "year": "2025",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIncentives_BadMonthRejectedByValidator(t *testing.T) {
	srv, _ := newTestServer(t)
	acct := signToken(t, "acct-1", core.RoleAccountant)

	resp, _ := doReq(t, srv, http.MethodPost, "/api/incentives/calculate", acct, map[string]any{
		"user_id": "emp-1", "month": "4", "year": "2025",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAYROLL REPORT
// =============================================================================

func TestPayrollReport(t *testing.T) {
	srv, store := newTestServer(t)
	seedDirectoryUser(t, store, "emp-1", 1000000)
	seedEvaluated(t, store, "t1", "emp-1", 85)

	acct := signToken(t, "acct-1", core.RoleAccountant)
	resp, envelope := doReq(t, srv, http.MethodGet, "/api/reports/payroll?month=04&year=2025", acct, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := envelope["data"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.InDelta(t, 200000, line["bonus"].(float64), 0.0001)
	assert.InDelta(t, 1200000, line["total_salary"].(float64), 0.0001)
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_SaveAndGet(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signToken(t, "mgr-1", core.RoleAdmin)

	resp, _ := doReq(t, srv, http.MethodPut, "/api/users/emp-1", admin, map[string]any{
		"id": "emp-1", "display_name": "Dana", "role": "employee", "salary": 1000000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	employee := signToken(t, "emp-1", core.RoleEmployee)
	resp, envelope := doReq(t, srv, http.MethodGet, "/api/users/emp-1", employee, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dana", envelope["data"].(map[string]any)["display_name"])
}

func TestUsers_RoleValidated(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signToken(t, "mgr-1", core.RoleAdmin)

	resp, _ := doReq(t, srv, http.MethodPut, "/api/users/emp-1", admin, map[string]any{
		"id": "emp-1", "display_name": "Dana", "role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
