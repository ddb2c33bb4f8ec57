/*
Package hr provides the core domain types for the funding allocation engine.

PURPOSE:
  This package contains the entities shared by every other package: grants
  and grant items (the funding side), employees and employments (the people
  side), the probation record ledger, and the funding allocation rows that
  tie the two sides together.

KEY CONCEPTS IN THIS FILE (types.go):
  - Grant / GrantItem: Reference data. A GrantItem is a funded position line
    within a Grant with a fixed salary and a fixed number of position slots.
  - Employment: One job assignment for one employee. Carries both the
    probation salary and the post-probation salary; which one applies is
    decided by the probation ledger, never by a status field.
  - ProbationRecord: Append-only probation lifecycle ledger. Exactly one
    record per employment is active at a time.
  - FundingAllocation: One slice of an employment's salary attributed to a
    funding source. The fte fractions of an employment's active rows must
    sum to exactly 1.

DESIGN PRINCIPLES:
  1. Precision: All money and fte values use decimal.Decimal. No floats.
  2. Type Safety: Strong ID types prevent mixing grant and grant-item IDs.
  3. Single Source of Truth: Probation state lives only in the ledger;
     Employment deliberately has no probation-status field.
  4. History: Allocations are ended (end_date set), never deleted or edited,
     so payroll history stays intact.

SEE ALSO:
  - errors.go: Error taxonomy for business-rule failures
  - store.go: Persistence interfaces
  - funding/: Validation and allocation engine
  - probation/: Ledger transitions and salary resolution
*/
package hr

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GrantID string
type GrantItemID string
type EmployeeID string
type EmploymentID string
type AllocationID string
type ProbationRecordID string

// =============================================================================
// GRANT REGISTRY - Immutable reference data
// =============================================================================

// Grant is an external funding source with a unique code.
// Created by administrators; never mutated by the allocation engine.
type Grant struct {
	ID           GrantID
	Code         string
	Name         string
	Organization string
	CreatedAt    time.Time
}

// GrantItem is a funded position line within a Grant.
// PositionNumber is the capacity: the number of concurrently-active
// allocations that may reference this item.
type GrantItem struct {
	ID             GrantItemID
	GrantID        GrantID
	Position       string
	Salary         decimal.Decimal
	Benefit        decimal.Decimal
	LevelOfEffort  decimal.Decimal
	PositionNumber int
	BudgetLineCode string
	CreatedAt      time.Time
}

// =============================================================================
// PEOPLE - Employees and employments
// =============================================================================

// Employee is the person record. Employment history, salaries, and funding
// all hang off Employment rows, not off the employee itself.
type Employee struct {
	ID        EmployeeID
	StaffCode string
	Name      string
	Email     string
	HiredAt   time.Time
	CreatedAt time.Time
}

// Employment is one job assignment for one employee.
//
// ProbationSalary and PassProbationSalary are both stored here, but callers
// must never pick between them directly: probation.ResolveSalary is the
// single place that decision is made.
type Employment struct {
	ID                  EmploymentID
	EmployeeID          EmployeeID
	DepartmentID        string
	PositionID          string
	SiteID              string
	StartDate           time.Time
	EndDate             *time.Time
	PassProbationDate   *time.Time
	ProbationSalary     decimal.Decimal
	PassProbationSalary decimal.Decimal
	Active              bool
	CreatedAt           time.Time
}

// =============================================================================
// PROBATION LEDGER
// =============================================================================

// ProbationEvent is a probation lifecycle event type.
type ProbationEvent string

const (
	ProbationInitial   ProbationEvent = "initial"
	ProbationExtension ProbationEvent = "extension"
	ProbationPassed    ProbationEvent = "passed"
	ProbationFailed    ProbationEvent = "failed"
)

// Valid reports whether e is a known event type.
func (e ProbationEvent) Valid() bool {
	switch e {
	case ProbationInitial, ProbationExtension, ProbationPassed, ProbationFailed:
		return true
	}
	return false
}

// Terminal reports whether e ends the probation cycle. A new employment
// period starts a fresh "initial" record.
func (e ProbationEvent) Terminal() bool {
	return e == ProbationPassed || e == ProbationFailed
}

// ProbationRecord is one entry in the append-only probation ledger.
// INVARIANT: exactly one record per employment has Active=true.
type ProbationRecord struct {
	ID            ProbationRecordID
	EmploymentID  EmploymentID
	Event         ProbationEvent
	Active        bool
	EffectiveDate time.Time
	Notes         string
	CreatedAt     time.Time
}

// =============================================================================
// FUNDING ALLOCATIONS
// =============================================================================

// AllocationType discriminates the funding source of an allocation row.
type AllocationType string

const (
	// AllocationGrant draws from a specific GrantItem (grant_item_id set).
	AllocationGrant AllocationType = "grant"
	// AllocationOrgFunded draws from the organization's own budget,
	// referencing a Grant directly (grant_id set).
	AllocationOrgFunded AllocationType = "org_funded"
)

func (t AllocationType) Valid() bool {
	return t == AllocationGrant || t == AllocationOrgFunded
}

// SalaryType records which salary figure an allocation amount was derived
// from, so payroll can tell probation-era rows from post-probation rows.
type SalaryType string

const (
	SalaryProbation     SalaryType = "probation_salary"
	SalaryPassProbation SalaryType = "pass_probation_salary"
)

// AllocationStatus tracks the row lifecycle. Rows are ended, never deleted.
type AllocationStatus string

const (
	AllocationActive AllocationStatus = "active"
	AllocationEnded  AllocationStatus = "ended"
)

// FundingAllocation is one slice of an employment's salary attributed to a
// single funding source.
//
// INVARIANT: exactly one of GrantItemID/GrantID is set, matching Type.
// INVARIANT: for an employment, the FTE of all rows with EndDate == nil
// sums to exactly 1.
type FundingAllocation struct {
	ID              AllocationID
	EmployeeID      EmployeeID
	EmploymentID    EmploymentID
	Type            AllocationType
	GrantItemID     *GrantItemID
	GrantID         *GrantID
	FTE             decimal.Decimal
	AllocatedAmount decimal.Decimal
	SalaryType      SalaryType
	StartDate       time.Time
	EndDate         *time.Time
	Status          AllocationStatus
	CreatedAt       time.Time
}

// IsActive reports whether the row still counts toward capacity and payroll.
func (a FundingAllocation) IsActive() bool {
	return a.EndDate == nil
}

// CapacityCount is the result of the grant capacity query: how many
// allocation rows reference a GrantItem in total, and how many are active.
type CapacityCount struct {
	Total  int
	Active int
}
