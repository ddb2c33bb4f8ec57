package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/funding-engine/api"
	"github.com/warp/funding-engine/store/memory"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	handler := api.NewHandler(memory.New())
	return &testAPI{t: t, router: api.NewRouter(handler)}
}

// do sends a JSON request through the router and returns the recorder.
func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// seed creates a grant, one grant item with the given capacity, and an
// employee, returning their ids.
func (a *testAPI) seed(capacity int) (grantID, itemID, employeeID string) {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/api/v1/grants", map[string]any{
		"code": "G-001", "name": "Health Systems Grant", "organization": "Global Fund",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	grantID = decodeAs[api.GrantDTO](a.t, rec).ID

	rec = a.do(http.MethodPost, "/api/v1/grants/"+grantID+"/items", map[string]any{
		"grant_position": "Field Officer", "grant_salary": 30000.0, "grant_benefit": 3000.0,
		"grant_level_of_effort": 1.0, "grant_position_number": capacity, "budgetline_code": "BL-7",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID = decodeAs[api.GrantItemDTO](a.t, rec).ID

	rec = a.do(http.MethodPost, "/api/v1/employees", map[string]any{
		"staff_code": "S-0001", "name": "Ada Chan", "email": "ada@example.org", "hired_at": "2025-01-15",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	employeeID = decodeAs[api.EmployeeDTO](a.t, rec).ID
	return
}

func employmentBody(employeeID, grantID, itemID string) map[string]any {
	return map[string]any{
		"employee_id":           employeeID,
		"start_date":            "2025-03-10",
		"pass_probation_date":   "2025-06-10",
		"probation_salary":      20000.0,
		"pass_probation_salary": 32000.0,
		"allocations": []map[string]any{
			{"allocation_type": "org_funded", "grant_id": grantID, "fte": 60},
			{"allocation_type": "grant", "grant_item_id": itemID, "fte": 40},
		},
	}
}

// createEmployment seeds and creates the standard 60/40 probation employment.
func (a *testAPI) createEmployment() (employmentID, employeeID, grantID, itemID string, resp api.EmploymentResponse) {
	a.t.Helper()
	grantID, itemID, employeeID = a.seed(2)
	rec := a.do(http.MethodPost, "/api/v1/employments", employmentBody(employeeID, grantID, itemID))
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp = decodeAs[api.EmploymentResponse](a.t, rec)
	return resp.Employment.ID, employeeID, grantID, itemID, resp
}

func amountByType(t *testing.T, rows []api.AllocationDTO, allocType string) float64 {
	t.Helper()
	for _, r := range rows {
		if r.AllocationType == allocType {
			return r.AllocatedAmount
		}
	}
	t.Fatalf("no %s allocation in %+v", allocType, rows)
	return 0
}

// =============================================================================
// EMPLOYMENT CREATION
// =============================================================================

func TestCreateEmployment_DerivesProbationAmounts(t *testing.T) {
	a := newTestAPI(t)
	_, _, _, _, resp := a.createEmployment()

	assert.True(t, resp.Employment.Active)
	assert.Equal(t, "2025-03-10", resp.Employment.StartDate)
	require.Len(t, resp.Allocations, 2)

	// 20000 probation salary split 60/40.
	assert.Equal(t, 12000.0, amountByType(t, resp.Allocations, "org_funded"))
	assert.Equal(t, 8000.0, amountByType(t, resp.Allocations, "grant"))
	for _, row := range resp.Allocations {
		assert.Equal(t, "probation_salary", row.SalaryType)
		assert.Equal(t, "active", row.Status)
		assert.Nil(t, row.EndDate)
	}
}

func TestCreateEmployment_BadSumRejectedWithEnvelope(t *testing.T) {
	a := newTestAPI(t)
	grantID, itemID, employeeID := a.seed(2)

	body := employmentBody(employeeID, grantID, itemID)
	body["allocations"] = []map[string]any{
		{"allocation_type": "org_funded", "grant_id": grantID, "fte": 50},
		{"allocation_type": "grant", "grant_item_id": itemID, "fte": 30},
	}
	rec := a.do(http.MethodPost, "/api/v1/employments", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errResp := decodeAs[api.ErrorResponse](t, rec)
	assert.False(t, errResp.Success)
	assert.Contains(t, errResp.Message, "80")
	assert.Contains(t, errResp.Message, "100%")
}

func TestCreateEmployment_UnknownEmployeeIs404(t *testing.T) {
	a := newTestAPI(t)
	grantID, itemID, _ := a.seed(2)

	rec := a.do(http.MethodPost, "/api/v1/employments", employmentBody("ghost", grantID, itemID))
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.False(t, decodeAs[api.ErrorResponse](t, rec).Success)
}

func TestCreateEmployment_MissingAllocationsFailsFieldValidation(t *testing.T) {
	a := newTestAPI(t)
	_, _, employeeID := a.seed(2)

	rec := a.do(http.MethodPost, "/api/v1/employments", map[string]any{
		"employee_id": employeeID, "start_date": "2025-03-10",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decodeAs[api.ErrorResponse](t, rec)
	assert.False(t, errResp.Success)
	assert.Contains(t, errResp.Errors, "Allocations")
}

func TestCreateEmployment_MalformedBodyIs400(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/employments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CAPACITY
// =============================================================================

func TestCreateEmployment_CapacityExhaustedIs422(t *testing.T) {
	// GIVEN: A grant item with a single position slot, already taken
	a := newTestAPI(t)
	grantID, itemID, firstEmployee := a.seed(1)

	body := employmentBody(firstEmployee, grantID, itemID)
	body["allocations"] = []map[string]any{
		{"allocation_type": "grant", "grant_item_id": itemID, "fte": 100},
	}
	rec := a.do(http.MethodPost, "/api/v1/employments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/employees", map[string]any{
		"staff_code": "S-0002", "name": "Ben Osei", "hired_at": "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	secondEmployee := decodeAs[api.EmployeeDTO](t, rec).ID

	// WHEN: A second employee requests the same slot
	body = employmentBody(secondEmployee, grantID, itemID)
	body["allocations"] = []map[string]any{
		{"allocation_type": "grant", "grant_item_id": itemID, "fte": 100},
	}
	rec = a.do(http.MethodPost, "/api/v1/employments", body)

	// THEN: Rejected with the capacity message
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errResp := decodeAs[api.ErrorResponse](t, rec)
	assert.False(t, errResp.Success)
	assert.Contains(t, errResp.Message, "position slots")
}

// =============================================================================
// ALLOCATION SET LIFECYCLE
// =============================================================================

func TestCreateAllocationSet_StackingOnActiveSetRejected(t *testing.T) {
	a := newTestAPI(t)
	employmentID, _, grantID, _, _ := a.createEmployment()

	rec := a.do(http.MethodPost, "/api/v1/employee-funding-allocations", map[string]any{
		"employment_id": employmentID,
		"allocations": []map[string]any{
			{"allocation_type": "org_funded", "grant_id": grantID, "fte": 100},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, decodeAs[api.ErrorResponse](t, rec).Message, "replace")
}

func TestReplaceAllocationSet_EndsOldRowsAndRederives(t *testing.T) {
	a := newTestAPI(t)
	employmentID, employeeID, grantID, itemID, _ := a.createEmployment()

	rec := a.do(http.MethodPut, "/api/v1/employee-funding-allocations/employee/"+employeeID, map[string]any{
		"start_date": "2025-04-01",
		"allocations": []map[string]any{
			{"allocation_type": "org_funded", "grant_id": grantID, "fte": 70},
			{"allocation_type": "grant", "grant_item_id": itemID, "fte": 30},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replaced := decodeAs[[]api.AllocationDTO](t, rec)
	require.Len(t, replaced, 2)
	assert.Equal(t, 14000.0, amountByType(t, replaced, "org_funded"))
	assert.Equal(t, 6000.0, amountByType(t, replaced, "grant"))

	// Full history keeps the ended rows.
	rec = a.do(http.MethodGet, "/api/v1/employee-funding-allocations/by-employment/"+employmentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeAs[[]api.AllocationDTO](t, rec)
	require.Len(t, history, 4)

	active, ended := 0, 0
	for _, row := range history {
		if row.Status == "active" {
			active++
		} else {
			ended++
			assert.NotNil(t, row.EndDate)
		}
	}
	assert.Equal(t, 2, active)
	assert.Equal(t, 2, ended)
}

func TestReplaceAllocationSet_UnknownEmployeeIs404(t *testing.T) {
	a := newTestAPI(t)
	grantID, _, _ := a.seed(2)

	rec := a.do(http.MethodPut, "/api/v1/employee-funding-allocations/employee/ghost", map[string]any{
		"allocations": []map[string]any{
			{"allocation_type": "org_funded", "grant_id": grantID, "fte": 100},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestBulkDeactivate_EndsRowsAndFreesCapacity(t *testing.T) {
	a := newTestAPI(t)
	_, _, _, itemID, resp := a.createEmployment()

	ids := make([]string, len(resp.Allocations))
	for i, row := range resp.Allocations {
		ids[i] = row.ID
	}
	rec := a.do(http.MethodPost, "/api/v1/employee-funding-allocations/bulk-deactivate", map[string]any{
		"allocation_ids": ids, "end_date": "2025-05-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/employee-funding-allocations/by-grant-item/"+itemID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeAs[api.CapacitySummaryDTO](t, rec)
	assert.Equal(t, 1, summary.TotalAllocations)
	assert.Equal(t, 0, summary.ActiveAllocations)
}

// =============================================================================
// PROBATION OVER HTTP
// =============================================================================

func TestProbationPass_RecalculatesActiveSet(t *testing.T) {
	a := newTestAPI(t)
	employmentID, _, _, _, _ := a.createEmployment()

	rec := a.do(http.MethodPost, "/api/v1/employments/"+employmentID+"/probation/pass", map[string]any{
		"effective_date": "2025-06-10", "notes": "confirmed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := decodeAs[api.ProbationRecordDTO](t, rec)
	assert.Equal(t, "passed", record.EventType)
	assert.True(t, record.IsActive)

	// Active rows now carry the post-probation salary 32000.
	rec = a.do(http.MethodGet, "/api/v1/employments/"+employmentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeAs[api.EmploymentResponse](t, rec)
	require.Len(t, detail.Allocations, 2)
	assert.Equal(t, 19200.0, amountByType(t, detail.Allocations, "org_funded"))
	assert.Equal(t, 12800.0, amountByType(t, detail.Allocations, "grant"))
	for _, row := range detail.Allocations {
		assert.Equal(t, "pass_probation_salary", row.SalaryType)
	}
	assert.NotEmpty(t, detail.Probation)
}

func TestProbationPass_TwiceIs422(t *testing.T) {
	a := newTestAPI(t)
	employmentID, _, _, _, _ := a.createEmployment()

	rec := a.do(http.MethodPost, "/api/v1/employments/"+employmentID+"/probation/pass", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/employments/"+employmentID+"/probation/pass", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, decodeAs[api.ErrorResponse](t, rec).Message, "transition")
}

func TestProbationHistory_ListsLedger(t *testing.T) {
	a := newTestAPI(t)
	employmentID, _, _, _, _ := a.createEmployment()

	rec := a.do(http.MethodPost, "/api/v1/employments/"+employmentID+"/probation/extend", map[string]any{
		"notes": "needs more time",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/employments/"+employmentID+"/probation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeAs[[]api.ProbationRecordDTO](t, rec)
	require.Len(t, records, 2) // initial + extension
}

// =============================================================================
// READ SURFACES
// =============================================================================

func TestGetEmployment_NotFoundEnvelope(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/api/v1/employments/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decodeAs[api.ErrorResponse](t, rec)
	assert.False(t, errResp.Success)
	assert.NotEmpty(t, errResp.Message)
}

func TestGrantStructure_NestsItems(t *testing.T) {
	a := newTestAPI(t)
	grantID, itemID, _ := a.seed(2)

	rec := a.do(http.MethodGet, "/api/v1/employee-funding-allocations/grant-structure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grants := decodeAs[[]api.GrantStructureDTO](t, rec)
	require.Len(t, grants, 1)
	assert.Equal(t, grantID, grants[0].ID)
	require.Len(t, grants[0].Items, 1)
	assert.Equal(t, itemID, grants[0].Items[0].ID)
	assert.Equal(t, 2, grants[0].Items[0].PositionNumber)
}

func TestTerminateEmployment_EndsEverything(t *testing.T) {
	a := newTestAPI(t)
	employmentID, _, _, _, _ := a.createEmployment()

	rec := a.do(http.MethodDelete, "/api/v1/employments/"+employmentID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/v1/employments/%s", employmentID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeAs[api.EmploymentResponse](t, rec)
	assert.False(t, detail.Employment.Active)
	assert.Empty(t, detail.Allocations)
}
