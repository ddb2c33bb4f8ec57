/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Field-level validation (required, ranges, formats) is declared as
  validator/v10 struct tags and run in handlers before any business rule
  fires. Business-rule validation (100% sum, capacity, conflicts) lives in
  the funding package, never here.

MONEY AND FTE:
  Request/response bodies carry JSON numbers; the domain uses
  decimal.Decimal throughout. Conversion happens only at this boundary.

SEE ALSO:
  - handlers.go: Uses these types
  - funding/validator.go: Business-rule validation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/hr"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AllocationLineRequest is one requested slice of a salary split.
// fte is a 0-100 percentage.
type AllocationLineRequest struct {
	AllocationType string  `json:"allocation_type" validate:"required,oneof=grant org_funded"`
	GrantItemID    string  `json:"grant_item_id,omitempty"`
	GrantID        string  `json:"grant_id,omitempty"`
	FTE            float64 `json:"fte" validate:"required,gt=0,lte=100"`
}

// CreateEmploymentRequest creates an employment together with its initial
// allocation set.
type CreateEmploymentRequest struct {
	EmployeeID          string                  `json:"employee_id" validate:"required"`
	DepartmentID        string                  `json:"department_id"`
	PositionID          string                  `json:"position_id"`
	SiteID              string                  `json:"site_id"`
	StartDate           string                  `json:"start_date" validate:"required"`
	PassProbationDate   *string                 `json:"pass_probation_date,omitempty"`
	ProbationSalary     float64                 `json:"probation_salary" validate:"gte=0"`
	PassProbationSalary float64                 `json:"pass_probation_salary" validate:"gte=0"`
	Allocations         []AllocationLineRequest `json:"allocations" validate:"required,min=1,dive"`
}

// CreateAllocationSetRequest creates a fresh allocation set for an existing
// employment.
type CreateAllocationSetRequest struct {
	EmploymentID string                  `json:"employment_id" validate:"required"`
	StartDate    string                  `json:"start_date,omitempty"`
	Allocations  []AllocationLineRequest `json:"allocations" validate:"required,min=1,dive"`
}

// ReplaceAllocationSetRequest replaces the active allocation set of the
// employee's current employment.
type ReplaceAllocationSetRequest struct {
	StartDate   string                  `json:"start_date,omitempty"`
	Allocations []AllocationLineRequest `json:"allocations" validate:"required,min=1,dive"`
}

// BulkDeactivateRequest ends the listed allocation rows.
type BulkDeactivateRequest struct {
	AllocationIDs []string `json:"allocation_ids" validate:"required,min=1"`
	EndDate       string   `json:"end_date,omitempty"`
}

// CreateGrantRequest registers a funding source.
type CreateGrantRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Organization string `json:"organization"`
}

// CreateGrantItemRequest adds a funded position line to a grant.
type CreateGrantItemRequest struct {
	Position       string  `json:"grant_position" validate:"required"`
	Salary         float64 `json:"grant_salary" validate:"gte=0"`
	Benefit        float64 `json:"grant_benefit" validate:"gte=0"`
	LevelOfEffort  float64 `json:"grant_level_of_effort" validate:"gte=0,lte=1"`
	PositionNumber int     `json:"grant_position_number" validate:"required,gte=1"`
	BudgetLineCode string  `json:"budgetline_code"`
}

// CreateEmployeeRequest registers a person.
type CreateEmployeeRequest struct {
	StaffCode string `json:"staff_code" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	HiredAt   string `json:"hired_at" validate:"required"`
}

// ProbationTransitionRequest carries the optional fields of a probation
// ledger transition.
type ProbationTransitionRequest struct {
	EffectiveDate string `json:"effective_date,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the uniform error envelope. Business-rule failures never
// reach the client in any other shape.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type GrantDTO struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type GrantItemDTO struct {
	ID             string  `json:"id"`
	GrantID        string  `json:"grant_id"`
	Position       string  `json:"grant_position"`
	Salary         float64 `json:"grant_salary"`
	Benefit        float64 `json:"grant_benefit"`
	LevelOfEffort  float64 `json:"grant_level_of_effort"`
	PositionNumber int     `json:"grant_position_number"`
	BudgetLineCode string  `json:"budgetline_code,omitempty"`
}

// GrantStructureDTO is a grant with its nested items, for allocation UI
// population.
type GrantStructureDTO struct {
	GrantDTO
	Items []GrantItemDTO `json:"grant_items"`
}

type EmployeeDTO struct {
	ID        string `json:"id"`
	StaffCode string `json:"staff_code"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	HiredAt   string `json:"hired_at"`
}

type EmploymentDTO struct {
	ID                  string  `json:"id"`
	EmployeeID          string  `json:"employee_id"`
	DepartmentID        string  `json:"department_id,omitempty"`
	PositionID          string  `json:"position_id,omitempty"`
	SiteID              string  `json:"site_id,omitempty"`
	StartDate           string  `json:"start_date"`
	EndDate             *string `json:"end_date,omitempty"`
	PassProbationDate   *string `json:"pass_probation_date,omitempty"`
	ProbationSalary     float64 `json:"probation_salary"`
	PassProbationSalary float64 `json:"pass_probation_salary"`
	Active              bool    `json:"active"`
}

type AllocationDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	EmploymentID    string  `json:"employment_id"`
	AllocationType  string  `json:"allocation_type"`
	GrantItemID     *string `json:"grant_item_id,omitempty"`
	GrantID         *string `json:"grant_id,omitempty"`
	FTE             float64 `json:"fte"`
	AllocatedAmount float64 `json:"allocated_amount"`
	SalaryType      string  `json:"salary_type"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date,omitempty"`
	Status          string  `json:"status"`
}

type ProbationRecordDTO struct {
	ID            string `json:"id"`
	EmploymentID  string `json:"employment_id"`
	EventType     string `json:"event_type"`
	IsActive      bool   `json:"is_active"`
	EffectiveDate string `json:"effective_date"`
	Notes         string `json:"notes,omitempty"`
}

// EmploymentResponse is returned from employment creation and detail reads.
type EmploymentResponse struct {
	Employment  EmploymentDTO        `json:"employment"`
	Allocations []AllocationDTO      `json:"allocations"`
	Probation   []ProbationRecordDTO `json:"probation_records,omitempty"`
}

// CapacitySummaryDTO is the by-grant-item report: the item, its allocation
// rows, and the capacity counts the validator enforces.
type CapacitySummaryDTO struct {
	GrantItem         GrantItemDTO    `json:"grant_item"`
	TotalAllocations  int             `json:"total_allocations"`
	ActiveAllocations int             `json:"active_allocations"`
	Allocations       []AllocationDTO `json:"allocations"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func (r AllocationLineRequest) toLine() funding.Line {
	return funding.Line{
		Type:        hr.AllocationType(r.AllocationType),
		GrantItemID: hr.GrantItemID(r.GrantItemID),
		GrantID:     hr.GrantID(r.GrantID),
		Effort:      decimal.NewFromFloat(r.FTE),
	}
}

func toLines(reqs []AllocationLineRequest) []funding.Line {
	lines := make([]funding.Line, len(reqs))
	for i, r := range reqs {
		lines[i] = r.toLine()
	}
	return lines
}

func toGrantDTO(g hr.Grant) GrantDTO {
	return GrantDTO{
		ID:           string(g.ID),
		Code:         g.Code,
		Name:         g.Name,
		Organization: g.Organization,
		CreatedAt:    g.CreatedAt.Format(time.RFC3339),
	}
}

func toGrantItemDTO(item hr.GrantItem) GrantItemDTO {
	salary, _ := item.Salary.Float64()
	benefit, _ := item.Benefit.Float64()
	effort, _ := item.LevelOfEffort.Float64()
	return GrantItemDTO{
		ID:             string(item.ID),
		GrantID:        string(item.GrantID),
		Position:       item.Position,
		Salary:         salary,
		Benefit:        benefit,
		LevelOfEffort:  effort,
		PositionNumber: item.PositionNumber,
		BudgetLineCode: item.BudgetLineCode,
	}
}

func toEmployeeDTO(e hr.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		StaffCode: e.StaffCode,
		Name:      e.Name,
		Email:     e.Email,
		HiredAt:   e.HiredAt.Format(dateLayout),
	}
}

func toEmploymentDTO(e hr.Employment) EmploymentDTO {
	probSalary, _ := e.ProbationSalary.Float64()
	passSalary, _ := e.PassProbationSalary.Float64()
	return EmploymentDTO{
		ID:                  string(e.ID),
		EmployeeID:          string(e.EmployeeID),
		DepartmentID:        e.DepartmentID,
		PositionID:          e.PositionID,
		SiteID:              e.SiteID,
		StartDate:           e.StartDate.Format(dateLayout),
		EndDate:             formatDatePtr(e.EndDate),
		PassProbationDate:   formatDatePtr(e.PassProbationDate),
		ProbationSalary:     probSalary,
		PassProbationSalary: passSalary,
		Active:              e.Active,
	}
}

func toAllocationDTO(a hr.FundingAllocation) AllocationDTO {
	fte, _ := a.FTE.Float64()
	amount, _ := a.AllocatedAmount.Float64()
	dto := AllocationDTO{
		ID:              string(a.ID),
		EmployeeID:      string(a.EmployeeID),
		EmploymentID:    string(a.EmploymentID),
		AllocationType:  string(a.Type),
		FTE:             fte,
		AllocatedAmount: amount,
		SalaryType:      string(a.SalaryType),
		StartDate:       a.StartDate.Format(dateLayout),
		EndDate:         formatDatePtr(a.EndDate),
		Status:          string(a.Status),
	}
	if a.GrantItemID != nil {
		s := string(*a.GrantItemID)
		dto.GrantItemID = &s
	}
	if a.GrantID != nil {
		s := string(*a.GrantID)
		dto.GrantID = &s
	}
	return dto
}

func toAllocationDTOs(rows []hr.FundingAllocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(rows))
	for i, a := range rows {
		dtos[i] = toAllocationDTO(a)
	}
	return dtos
}

func toProbationRecordDTO(r hr.ProbationRecord) ProbationRecordDTO {
	return ProbationRecordDTO{
		ID:            string(r.ID),
		EmploymentID:  string(r.EmploymentID),
		EventType:     string(r.Event),
		IsActive:      r.Active,
		EffectiveDate: r.EffectiveDate.Format(dateLayout),
		Notes:         r.Notes,
	}
}

func toProbationRecordDTOs(records []hr.ProbationRecord) []ProbationRecordDTO {
	dtos := make([]ProbationRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toProbationRecordDTO(r)
	}
	return dtos
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
