/*
handlers.go - HTTP API handlers for the funding allocation engine

PURPOSE:
  Exposes the allocation engine and its supporting CRUD via REST. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Grants:
    POST   /api/v1/grants                      Register a grant
    GET    /api/v1/grants                      List grants
    GET    /api/v1/grants/{id}                 Grant with its items
    POST   /api/v1/grants/{id}/items           Add a funded position line
    GET    /api/v1/grant-items/{id}            Grant item detail

  Employees:
    POST   /api/v1/employees                   Register an employee
    GET    /api/v1/employees                   List employees
    GET    /api/v1/employees/{id}              Employee detail

  Employments:
    POST   /api/v1/employments                 Create employment + allocation set
    GET    /api/v1/employments/{id}            Employment + allocations + probation
    DELETE /api/v1/employments/{id}            Terminate (soft-end)
    GET    /api/v1/employments/{id}/probation          Probation history
    POST   /api/v1/employments/{id}/probation/pass     Mark passed (recalculates)
    POST   /api/v1/employments/{id}/probation/extend   Extend probation
    POST   /api/v1/employments/{id}/probation/fail     Mark failed

  Allocations:
    POST   /api/v1/employee-funding-allocations                        New set
    PUT    /api/v1/employee-funding-allocations/employee/{employee_id} Replace set
    POST   /api/v1/employee-funding-allocations/bulk-deactivate        End rows
    GET    /api/v1/employee-funding-allocations/grant-structure        Grants+items
    GET    /api/v1/employee-funding-allocations/by-grant-item/{id}     Capacity view
    GET    /api/v1/employee-funding-allocations/by-employment/{id}     Set history

ERROR HANDLING:
  Every business-rule failure becomes {success:false, message, errors?}:
  - 422: validation, capacity, conflict, invalid transition
  - 404: referenced entity missing
  - 400: unparseable body or date
  A 500 means an infrastructure fault and is logged server-side.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - funding/engine.go: The write paths behind these handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/hr"
	"github.com/warp/funding-engine/probation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     hr.TxStore
	Engine    *funding.Engine
	Probation *probation.Service

	validate *validator.Validate
}

// NewHandler wires the engine and probation service over the given store.
// The engine doubles as the probation service's recalculator, so passing a
// probation re-derives allocation amounts in the same transaction.
func NewHandler(store hr.TxStore) *Handler {
	engine := funding.NewEngine(store)
	return &Handler{
		Store:     store,
		Engine:    engine,
		Probation: probation.NewService(store, engine),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// GRANT HANDLERS
// =============================================================================

// CreateGrant registers a funding source.
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req CreateGrantRequest
	if !h.decode(w, r, &req) {
		return
	}

	g := hr.Grant{
		ID:           hr.GrantID(uuid.NewString()),
		Code:         req.Code,
		Name:         req.Name,
		Organization: req.Organization,
		CreatedAt:    time.Now(),
	}
	if err := h.Store.SaveGrant(r.Context(), g); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantDTO(g))
}

// ListGrants returns all grants.
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Store.ListGrants(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]GrantDTO, len(grants))
	for i, g := range grants {
		dtos[i] = toGrantDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetGrant returns a grant with its nested items.
func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	id := hr.GrantID(chi.URLParam(r, "id"))
	g, err := h.Store.GetGrant(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if g == nil {
		h.writeDomainError(w, hr.ErrGrantNotFound)
		return
	}
	items, err := h.Store.ListGrantItems(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantStructureDTO(*g, items))
}

// CreateGrantItem adds a funded position line to a grant.
func (h *Handler) CreateGrantItem(w http.ResponseWriter, r *http.Request) {
	grantID := hr.GrantID(chi.URLParam(r, "id"))

	var req CreateGrantItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	g, err := h.Store.GetGrant(r.Context(), grantID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if g == nil {
		h.writeDomainError(w, hr.ErrGrantNotFound)
		return
	}

	item := hr.GrantItem{
		ID:             hr.GrantItemID(uuid.NewString()),
		GrantID:        grantID,
		Position:       req.Position,
		Salary:         decimal.NewFromFloat(req.Salary),
		Benefit:        decimal.NewFromFloat(req.Benefit),
		LevelOfEffort:  decimal.NewFromFloat(req.LevelOfEffort),
		PositionNumber: req.PositionNumber,
		BudgetLineCode: req.BudgetLineCode,
		CreatedAt:      time.Now(),
	}
	if err := h.Store.SaveGrantItem(r.Context(), item); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantItemDTO(item))
}

// GetGrantItem returns a grant item.
func (h *Handler) GetGrantItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Store.GetGrantItem(r.Context(), hr.GrantItemID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if item == nil {
		h.writeDomainError(w, hr.ErrGrantItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toGrantItemDTO(*item))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// CreateEmployee registers a person.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	hiredAt, ok := h.parseDate(w, "hired_at", req.HiredAt)
	if !ok {
		return
	}

	e := hr.Employee{
		ID:        hr.EmployeeID(uuid.NewString()),
		StaffCode: req.StaffCode,
		Name:      req.Name,
		Email:     req.Email,
		HiredAt:   hiredAt,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveEmployee(r.Context(), e); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(e))
}

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Store.GetEmployee(r.Context(), hr.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if e == nil {
		h.writeDomainError(w, hr.ErrEmployeeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// =============================================================================
// EMPLOYMENT HANDLERS
// =============================================================================

// CreateEmployment creates an employment, its initial probation record, and
// its allocation set in one transaction.
func (h *Handler) CreateEmployment(w http.ResponseWriter, r *http.Request) {
	var req CreateEmploymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, ok := h.parseDate(w, "start_date", req.StartDate)
	if !ok {
		return
	}
	var passDate *time.Time
	if req.PassProbationDate != nil {
		d, ok := h.parseDate(w, "pass_probation_date", *req.PassProbationDate)
		if !ok {
			return
		}
		passDate = &d
	}

	emp := hr.Employment{
		EmployeeID:          hr.EmployeeID(req.EmployeeID),
		DepartmentID:        req.DepartmentID,
		PositionID:          req.PositionID,
		SiteID:              req.SiteID,
		StartDate:           startDate,
		PassProbationDate:   passDate,
		ProbationSalary:     decimal.NewFromFloat(req.ProbationSalary),
		PassProbationSalary: decimal.NewFromFloat(req.PassProbationSalary),
	}

	created, rows, err := h.Engine.CreateEmployment(r.Context(), emp, toLines(req.Allocations))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, EmploymentResponse{
		Employment:  toEmploymentDTO(*created),
		Allocations: toAllocationDTOs(rows),
	})
}

// GetEmployment returns an employment with its active allocations and
// probation history.
func (h *Handler) GetEmployment(w http.ResponseWriter, r *http.Request) {
	id := hr.EmploymentID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if emp == nil {
		h.writeDomainError(w, hr.ErrEmploymentNotFound)
		return
	}
	rows, err := h.Store.ActiveAllocationsByEmployment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	records, err := h.Store.ListProbationRecords(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmploymentResponse{
		Employment:  toEmploymentDTO(*emp),
		Allocations: toAllocationDTOs(rows),
		Probation:   toProbationRecordDTOs(records),
	})
}

// TerminateEmployment soft-ends an employment and its active allocations.
func (h *Handler) TerminateEmployment(w http.ResponseWriter, r *http.Request) {
	id := hr.EmploymentID(chi.URLParam(r, "id"))
	if err := h.Engine.TerminateEmployment(r.Context(), id, time.Time{}); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROBATION HANDLERS
// =============================================================================

// GetProbationHistory returns the full probation ledger for an employment.
func (h *Handler) GetProbationHistory(w http.ResponseWriter, r *http.Request) {
	id := hr.EmploymentID(chi.URLParam(r, "id"))
	_, records, err := h.Probation.History(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProbationRecordDTOs(records))
}

// MarkProbationPassed transitions to "passed" and re-derives the active
// allocation amounts from the post-probation salary.
func (h *Handler) MarkProbationPassed(w http.ResponseWriter, r *http.Request) {
	h.transitionProbation(w, r, h.Probation.MarkPassed)
}

// MarkProbationExtended extends the probation period.
func (h *Handler) MarkProbationExtended(w http.ResponseWriter, r *http.Request) {
	h.transitionProbation(w, r, h.Probation.MarkExtension)
}

// MarkProbationFailed records a failed probation.
func (h *Handler) MarkProbationFailed(w http.ResponseWriter, r *http.Request) {
	h.transitionProbation(w, r, h.Probation.MarkFailed)
}

type transitionFn func(ctx context.Context, employmentID hr.EmploymentID, effective time.Time, notes string) (*hr.ProbationRecord, error)

func (h *Handler) transitionProbation(w http.ResponseWriter, r *http.Request, fn transitionFn) {
	id := hr.EmploymentID(chi.URLParam(r, "id"))

	// Body is optional for transitions.
	var req ProbationTransitionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body", nil)
			return
		}
	}
	var effective time.Time
	if req.EffectiveDate != "" {
		d, ok := h.parseDate(w, "effective_date", req.EffectiveDate)
		if !ok {
			return
		}
		effective = d
	}

	record, err := fn(r.Context(), id, effective, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProbationRecordDTO(*record))
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// CreateAllocationSet creates a fresh allocation set for an employment that
// has none active. Stacking onto an active set is rejected.
func (h *Handler) CreateAllocationSet(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, ok := h.parseOptionalDate(w, "start_date", req.StartDate)
	if !ok {
		return
	}

	rows, err := h.Engine.Allocate(r.Context(), hr.EmploymentID(req.EmploymentID), toLines(req.Allocations), startDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTOs(rows))
}

// ReplaceAllocationSet replaces the active allocation set of the employee's
// current employment. Old rows are ended, never edited.
func (h *Handler) ReplaceAllocationSet(w http.ResponseWriter, r *http.Request) {
	employeeID := hr.EmployeeID(chi.URLParam(r, "employee_id"))

	var req ReplaceAllocationSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, ok := h.parseOptionalDate(w, "start_date", req.StartDate)
	if !ok {
		return
	}

	emp, err := h.Store.ActiveEmploymentByEmployee(r.Context(), employeeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if emp == nil {
		h.writeDomainError(w, hr.ErrEmploymentNotFound)
		return
	}

	rows, err := h.Engine.Replace(r.Context(), emp.ID, toLines(req.Allocations), startDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(rows))
}

// BulkDeactivate ends the listed allocation rows.
func (h *Handler) BulkDeactivate(w http.ResponseWriter, r *http.Request) {
	var req BulkDeactivateRequest
	if !h.decode(w, r, &req) {
		return
	}
	endDate, ok := h.parseOptionalDate(w, "end_date", req.EndDate)
	if !ok {
		return
	}

	ids := make([]hr.AllocationID, len(req.AllocationIDs))
	for i, id := range req.AllocationIDs {
		ids[i] = hr.AllocationID(id)
	}
	if err := h.Engine.Deactivate(r.Context(), ids, endDate); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deactivated": len(ids)})
}

// GrantStructure returns every grant with its nested items.
func (h *Handler) GrantStructure(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Store.ListGrants(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]GrantStructureDTO, len(grants))
	for i, g := range grants {
		items, err := h.Store.ListGrantItems(r.Context(), g.ID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		out[i] = toGrantStructureDTO(g, items)
	}
	writeJSON(w, http.StatusOK, out)
}

// AllocationsByGrantItem returns a grant item's allocations plus its
// capacity counts.
func (h *Handler) AllocationsByGrantItem(w http.ResponseWriter, r *http.Request) {
	id := hr.GrantItemID(chi.URLParam(r, "id"))

	item, count, err := h.Engine.CapacitySummary(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	rows, err := h.Store.AllocationsByGrantItem(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CapacitySummaryDTO{
		GrantItem:         toGrantItemDTO(*item),
		TotalAllocations:  count.Total,
		ActiveAllocations: count.Active,
		Allocations:       toAllocationDTOs(rows),
	})
}

// AllocationsByEmployment returns an employment's full allocation history.
func (h *Handler) AllocationsByEmployment(w http.ResponseWriter, r *http.Request) {
	id := hr.EmploymentID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if emp == nil {
		h.writeDomainError(w, hr.ErrEmploymentNotFound)
		return
	}
	rows, err := h.Store.AllocationsByEmployment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(rows))
}

// =============================================================================
// REQUEST / RESPONSE PLUMBING
// =============================================================================

// decode parses and field-validates the request body. Writes the error
// response itself and returns false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = "failed validation rule: " + fe.Tag()
			}
			respondError(w, http.StatusUnprocessableEntity, "Request validation failed", details)
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func (h *Handler) parseDate(w http.ResponseWriter, field, value string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+field+" format (use YYYY-MM-DD)", nil)
		return time.Time{}, false
	}
	return d, true
}

func (h *Handler) parseOptionalDate(w http.ResponseWriter, field, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	return h.parseDate(w, field, value)
}

// writeDomainError translates business errors into the uniform envelope.
// Anything unclassified is an infrastructure fault: logged, opaque 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var vErrs hr.ValidationErrors
	if errors.As(err, &vErrs) {
		details := make(map[string]string, len(vErrs))
		for _, ve := range vErrs {
			details[ve.Field] = ve.Message
		}
		respondError(w, http.StatusUnprocessableEntity, vErrs[0].Message, details)
		return
	}

	switch {
	case hr.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error(), nil)
	case hr.IsClientError(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func toGrantStructureDTO(g hr.Grant, items []hr.GrantItem) GrantStructureDTO {
	dto := GrantStructureDTO{GrantDTO: toGrantDTO(g), Items: []GrantItemDTO{}}
	for _, item := range items {
		dto.Items = append(dto.Items, toGrantItemDTO(item))
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message, Errors: details})
}
