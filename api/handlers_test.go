package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiFixture struct {
	server *httptest.Server
	store  *sqlite.Store
}

// newAPIFixture stands up the full HTTP stack over a throwaway database,
// seeded with one office, one employee, the paid leave type, a two-stage
// workflow and a 25-day balance.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveOffice(ctx, sqlite.Office{
		ID:   "paris",
		Name: "Paris",
		WorkingWeek: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}))
	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{
		ID:       "emp-1",
		Name:     "Ada",
		Email:    "ada@example.com",
		OfficeID: "paris",
		HireDate: time.Date(2020, time.January, 6, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveLeaveType(ctx, leave.PaidLeaveType("lt-paid", "paris")))
	require.NoError(t, store.SaveWorkflowConfig(ctx,
		leave.ManagerThenHRWorkflow("wf-paris", "paris", "mgr-1", "hr-1")))
	require.NoError(t, store.CreateBalance(ctx, leave.NewBalance(
		leave.BalanceKey{EmployeeID: "emp-1", Year: 2026, BalanceType: "paid"},
		decimal.NewFromInt(25), decimal.Zero)))

	access := leave.NewDefaultAccessPolicy("hr-1")
	service := leave.NewService(store, access, leave.NopSink{})
	engine := leave.NewEngine(store, access, leave.NopSink{}, store)
	handler := api.NewHandler(store, service, engine, access, zap.NewNop())

	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, store: store}
}

func (f *apiFixture) post(t *testing.T, path string, body any, out any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *apiFixture) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *apiFixture) createRequest(t *testing.T) api.LeaveRequestDTO {
	t.Helper()
	var dto api.LeaveRequestDTO
	resp := f.post(t, "/api/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "lt-paid",
		"start_date":    "2026-03-02",
		"end_date":      "2026-03-04",
		"reason":        "spring break",
	}, &dto)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return dto
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestAPI_RequestLifecycle_CreateApproveApprove(t *testing.T) {
	// GIVEN: A seeded office/employee/workflow
	// WHEN: A request is created and both approvers approve in order
	// THEN: PENDING_MANAGER -> PENDING_HR -> APPROVED, balance shows 3 used

	f := newAPIFixture(t)
	dto := f.createRequest(t)
	assert.Equal(t, "PENDING_MANAGER", dto.Status)
	assert.Equal(t, "3", dto.TotalDays)
	require.Len(t, dto.Steps, 2)

	decide := fmt.Sprintf("/api/requests/%s/steps/%s", dto.ID, dto.Steps[0].ID)
	var afterMgr api.LeaveRequestDTO
	resp := f.post(t, decide, map[string]any{
		"actor_id": "mgr-1", "action": "APPROVED",
	}, &afterMgr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PENDING_HR", afterMgr.Status)

	decide = fmt.Sprintf("/api/requests/%s/steps/%s", dto.ID, dto.Steps[1].ID)
	var afterHR api.LeaveRequestDTO
	resp = f.post(t, decide, map[string]any{
		"actor_id": "hr-1", "action": "APPROVED",
	}, &afterHR)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED", afterHR.Status)

	var balances []api.BalanceDTO
	resp = f.get(t, "/api/employees/emp-1/balances?year=2026", &balances)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, balances, 1)
	assert.Equal(t, "3", balances[0].Used)
	assert.Equal(t, "0", balances[0].Pending)
	assert.Equal(t, "22", balances[0].Remaining)
}

func TestAPI_CreateRequest_Overlap_Returns409(t *testing.T) {
	f := newAPIFixture(t)
	f.createRequest(t)

	resp := f.post(t, "/api/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "lt-paid",
		"start_date":    "2026-03-04",
		"end_date":      "2026-03-06",
	}, nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CreateRequest_MissingFields_Returns400(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.post(t, "/api/requests", map[string]any{
		"employee_id": "emp-1",
		// leave_type_id and dates missing
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DecideStep_WrongActor_Returns403(t *testing.T) {
	f := newAPIFixture(t)
	dto := f.createRequest(t)

	decide := fmt.Sprintf("/api/requests/%s/steps/%s", dto.ID, dto.Steps[0].ID)
	resp := f.post(t, decide, map[string]any{
		"actor_id": "intruder", "action": "APPROVED",
	}, nil)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_DecideStep_RefuseWithoutComment_Returns400(t *testing.T) {
	f := newAPIFixture(t)
	dto := f.createRequest(t)

	decide := fmt.Sprintf("/api/requests/%s/steps/%s", dto.ID, dto.Steps[0].ID)
	resp := f.post(t, decide, map[string]any{
		"actor_id": "mgr-1", "action": "REFUSED",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetRequest_Unknown_Returns404(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.get(t, "/api/requests/ghost", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CancelRequest_ReleasesBalance(t *testing.T) {
	f := newAPIFixture(t)
	dto := f.createRequest(t)

	var cancelled api.LeaveRequestDTO
	resp := f.post(t, "/api/requests/"+dto.ID+"/cancel", map[string]any{
		"actor_id": "emp-1",
	}, &cancelled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	var balances []api.BalanceDTO
	f.get(t, "/api/employees/emp-1/balances?year=2026", &balances)
	require.Len(t, balances, 1)
	assert.Equal(t, "0", balances[0].Pending)
	assert.Equal(t, "25", balances[0].Remaining)
}

// =============================================================================
// ADMIN AND CALCULATOR
// =============================================================================

func TestAPI_AdjustBalance_RequiresReason(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.post(t, "/api/admin/adjustments", map[string]any{
		"actor_id":     "hr-1",
		"employee_id":  "emp-1",
		"year":         2026,
		"balance_type": "paid",
		"delta":        "5",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AdjustBalance_NonAdminForbidden(t *testing.T) {
	// GIVEN: hr-1 is the only balance administrator
	// WHEN: Another actor submits a well-formed adjustment
	// THEN: 403, and the balance is untouched

	f := newAPIFixture(t)

	adjustment := map[string]any{
		"actor_id":     "mgr-1",
		"employee_id":  "emp-1",
		"year":         2026,
		"balance_type": "paid",
		"delta":        "5",
		"reason":       "self-service top-up",
	}
	resp := f.post(t, "/api/admin/adjustments", adjustment, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var balances []api.BalanceDTO
	f.get(t, "/api/employees/emp-1/balances?year=2026", &balances)
	require.Len(t, balances, 1)
	assert.Equal(t, "25", balances[0].Total)

	// The admin performing the same adjustment succeeds.
	adjustment["actor_id"] = "hr-1"
	adjustment["reason"] = "seniority grant"
	var out map[string]string
	resp = f.post(t, "/api/admin/adjustments", adjustment, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "30", out["total"])
}

func TestAPI_Carryover_NonAdminForbidden(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.post(t, "/api/admin/carryover", map[string]any{
		"actor_id":     "emp-1",
		"employee_id":  "emp-1",
		"year":         2026,
		"balance_type": "paid",
		"days":         "5",
	}, nil)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_WorkingDaysPreview(t *testing.T) {
	// GIVEN: A full working week in the seeded office
	// WHEN: Previewing Mon..Fri with an AFTERNOON start
	// THEN: 4.5 days, nothing persisted

	f := newAPIFixture(t)

	var out api.WorkingDaysResponse
	resp := f.get(t, "/api/working-days?office_id=paris&start=2026-03-02&end=2026-03-06&start_half=AFTERNOON", &out)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4.5", out.Days)
}

// =============================================================================
// ONBOARDING
// =============================================================================

func TestAPI_CreateEmployee_ProvisionsPaidBalance(t *testing.T) {
	// GIVEN: An office with a default allowance and a paid leave type
	// WHEN: A new employee is onboarded through the API
	// THEN: Their current-year paid account opens at the office allowance

	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveOffice(ctx, sqlite.Office{
		ID:   "lyon",
		Name: "Lyon",
		WorkingWeek: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		DefaultAllowance: decimal.NewFromInt(25),
	}))
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.PaidLeaveType("lt-lyon-paid", "lyon")))

	var emp api.EmployeeDTO
	resp := f.post(t, "/api/employees", map[string]any{
		"id":        "emp-2",
		"name":      "Grace",
		"email":     "grace@example.com",
		"office_id": "lyon",
		"hire_date": "2026-08-03",
	}, &emp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "lyon", emp.OfficeID)

	var balances []api.BalanceDTO
	resp = f.get(t, "/api/employees/emp-2/balances", &balances)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, balances, 1)
	assert.Equal(t, "paid", balances[0].BalanceType)
	assert.Equal(t, "25", balances[0].Total)
	assert.Equal(t, "25", balances[0].Remaining)
}

func TestAPI_CreateEmployee_UnknownOffice_Rejected(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.post(t, "/api/employees", map[string]any{
		"id":        "emp-3",
		"name":      "Nobody",
		"email":     "nobody@example.com",
		"office_id": "atlantis",
		"hire_date": "2026-08-03",
	}, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
