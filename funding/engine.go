/*
engine.go - Transactional allocation write paths

PURPOSE:
  The engine is the only writer of employee_funding_allocations. Every write
  path follows the same shape:

    1. Validate the line set (validator.go)
    2. Inside ONE store transaction:
       a. Resolve the referenced grants / grant items
       b. Check grant item capacity (counting rows, excluding the
          employment's own rows when replacing)
       c. Resolve the salary base from the probation ledger
       d. End superseded rows, insert the new set

CAPACITY RACE:
  Two requests racing for the last slot of a grant item must not both win.
  The COUNT and the INSERT share a transaction; the SQLite store opens
  write transactions with an immediate lock so the count cannot go stale
  between check and insert. A PostgreSQL port would SELECT ... FOR UPDATE
  on the grant item in the same place.

AMOUNTS:
  allocated_amount = salary_base * fte, where salary_base comes from
  probation.ResolveSalary. The engine never reads the salary columns
  directly.

SEE ALSO:
  - validator.go: Pure line validation
  - probation/resolver.go: Salary base resolution
  - probation/service.go: Triggers RecalculateIn on probation pass
*/
package funding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/funding-engine/hr"
	"github.com/warp/funding-engine/probation"
)

const dateLayout = "2006-01-02"

// Engine validates and persists allocation sets.
type Engine struct {
	Store hr.TxStore
	Now   func() time.Time
}

// NewEngine creates an allocation engine over the given store.
func NewEngine(store hr.TxStore) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// =============================================================================
// EMPLOYMENT CREATION
// =============================================================================

// CreateEmployment persists a new employment together with its initial
// allocation set and, when a probation target date is set, the first
// "initial" probation record. One transaction: a half-created employment
// with no funding never becomes visible.
func (e *Engine) CreateEmployment(ctx context.Context, emp hr.Employment, lines []Line) (*hr.Employment, []hr.FundingAllocation, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, nil, err
	}

	now := e.Now()
	if emp.ID == "" {
		emp.ID = hr.EmploymentID(uuid.NewString())
	}
	emp.Active = true
	emp.CreatedAt = now

	var rows []hr.FundingAllocation
	err := e.Store.WithTx(ctx, func(tx hr.Store) error {
		person, err := tx.GetEmployee(ctx, emp.EmployeeID)
		if err != nil {
			return err
		}
		if person == nil {
			return fmt.Errorf("%w: %s", hr.ErrEmployeeNotFound, emp.EmployeeID)
		}

		if err := tx.SaveEmployment(ctx, emp); err != nil {
			return err
		}
		if emp.PassProbationDate != nil {
			rec := probation.NewInitialRecord(emp.ID, emp.StartDate, now)
			if err := tx.InsertProbationRecord(ctx, rec); err != nil {
				return err
			}
		}

		rows, err = e.writeSet(ctx, tx, emp, lines, emp.StartDate, false)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &emp, rows, nil
}

// =============================================================================
// ALLOCATION SETS
// =============================================================================

// Allocate creates a fresh allocation set for an existing employment.
// Rejected with ActiveSetError when an active set already exists; callers
// must use Replace to swap a live set, never stack a second one.
func (e *Engine) Allocate(ctx context.Context, employmentID hr.EmploymentID, lines []Line, startDate time.Time) ([]hr.FundingAllocation, error) {
	return e.writeSetTx(ctx, employmentID, lines, startDate, false)
}

// Replace atomically ends the employment's active allocation set and
// inserts the new one with a fresh start date. The employment's own rows
// do not count against grant item capacity while being replaced.
func (e *Engine) Replace(ctx context.Context, employmentID hr.EmploymentID, lines []Line, startDate time.Time) ([]hr.FundingAllocation, error) {
	return e.writeSetTx(ctx, employmentID, lines, startDate, true)
}

func (e *Engine) writeSetTx(ctx context.Context, employmentID hr.EmploymentID, lines []Line, startDate time.Time, replace bool) ([]hr.FundingAllocation, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	var rows []hr.FundingAllocation
	err := e.Store.WithTx(ctx, func(tx hr.Store) error {
		emp, err := tx.GetEmployment(ctx, employmentID)
		if err != nil {
			return err
		}
		if emp == nil {
			return fmt.Errorf("%w: %s", hr.ErrEmploymentNotFound, employmentID)
		}
		rows, err = e.writeSet(ctx, tx, *emp, lines, startDate, replace)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// writeSet runs steps 2a-2d inside the caller's transaction.
func (e *Engine) writeSet(ctx context.Context, tx hr.Store, emp hr.Employment, lines []Line, startDate time.Time, replace bool) ([]hr.FundingAllocation, error) {
	now := e.Now()
	if startDate.IsZero() {
		startDate = now
	}
	if startDate.Before(emp.StartDate) {
		return nil, hr.ValidationErrors{{
			Field: "start_date",
			Message: fmt.Sprintf("start date %s is before employment start date %s",
				startDate.Format(dateLayout), emp.StartDate.Format(dateLayout)),
		}}
	}

	if err := e.checkReferences(ctx, tx, lines); err != nil {
		return nil, err
	}
	if err := e.checkCapacity(ctx, tx, emp.ID, lines); err != nil {
		return nil, err
	}

	active, err := tx.ActiveAllocationsByEmployment(ctx, emp.ID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		if !replace {
			return nil, &hr.ActiveSetError{EmploymentID: emp.ID, ActiveRows: len(active)}
		}
		// The new set may not start before the set it supersedes.
		for _, row := range active {
			if startDate.Before(row.StartDate) {
				return nil, hr.ValidationErrors{{
					Field: "start_date",
					Message: fmt.Sprintf("start date %s is before the active allocation set's start date %s",
						startDate.Format(dateLayout), row.StartDate.Format(dateLayout)),
				}}
			}
		}
		ids := allocationIDs(active)
		if err := tx.EndAllocations(ctx, ids, now); err != nil {
			return nil, err
		}
	}

	base, salaryType, err := probation.ResolveSalary(ctx, tx, emp, now)
	if err != nil {
		return nil, err
	}

	rows := make([]hr.FundingAllocation, len(lines))
	for i, l := range lines {
		row := hr.FundingAllocation{
			ID:              hr.AllocationID(uuid.NewString()),
			EmployeeID:      emp.EmployeeID,
			EmploymentID:    emp.ID,
			Type:            l.Type,
			FTE:             l.Fraction(),
			AllocatedAmount: l.Amount(base),
			SalaryType:      salaryType,
			StartDate:       startDate,
			Status:          hr.AllocationActive,
			CreatedAt:       now,
		}
		switch l.Type {
		case hr.AllocationGrant:
			itemID := l.GrantItemID
			row.GrantItemID = &itemID
		case hr.AllocationOrgFunded:
			grantID := l.GrantID
			row.GrantID = &grantID
		}
		rows[i] = row
	}
	if err := tx.InsertAllocations(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// checkReferences resolves every grant / grant item named by the lines.
func (e *Engine) checkReferences(ctx context.Context, tx hr.Store, lines []Line) error {
	for _, l := range lines {
		switch l.Type {
		case hr.AllocationGrant:
			item, err := tx.GetGrantItem(ctx, l.GrantItemID)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("%w: %s", hr.ErrGrantItemNotFound, l.GrantItemID)
			}
		case hr.AllocationOrgFunded:
			g, err := tx.GetGrant(ctx, l.GrantID)
			if err != nil {
				return err
			}
			if g == nil {
				return fmt.Errorf("%w: %s", hr.ErrGrantNotFound, l.GrantID)
			}
		}
	}
	return nil
}

// checkCapacity enforces grant_position_number per referenced grant item.
// The employment's own active rows are excluded from the count: when a set
// is replaced in this transaction, its outgoing rows must not block their
// own successors.
func (e *Engine) checkCapacity(ctx context.Context, tx hr.Store, employmentID hr.EmploymentID, lines []Line) error {
	requested := make(map[hr.GrantItemID]int)
	for _, l := range lines {
		if l.Type == hr.AllocationGrant {
			requested[l.GrantItemID]++
		}
	}

	for itemID, n := range requested {
		item, err := tx.GetGrantItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: %s", hr.ErrGrantItemNotFound, itemID)
		}
		count, err := tx.CountGrantItemAllocations(ctx, itemID, employmentID)
		if err != nil {
			return err
		}
		if count.Active+n > item.PositionNumber {
			return &hr.CapacityError{
				GrantItemID: itemID,
				Position:    item.Position,
				Capacity:    item.PositionNumber,
				Active:      count.Active,
				Requested:   n,
			}
		}
	}
	return nil
}

// =============================================================================
// DEACTIVATION AND RECALCULATION
// =============================================================================

// Deactivate ends the given allocation rows. Rows are verified to exist
// first so a typo'd id fails the whole batch instead of silently skipping.
func (e *Engine) Deactivate(ctx context.Context, ids []hr.AllocationID, endDate time.Time) error {
	if len(ids) == 0 {
		return hr.ValidationErrors{{Field: "allocation_ids", Message: "at least one allocation id is required"}}
	}
	if endDate.IsZero() {
		endDate = e.Now()
	}
	return e.Store.WithTx(ctx, func(tx hr.Store) error {
		for _, id := range ids {
			row, err := tx.GetAllocation(ctx, id)
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("%w: %s", hr.ErrAllocationNotFound, id)
			}
			if endDate.Before(row.StartDate) {
				return hr.ValidationErrors{{
					Field: "end_date",
					Message: fmt.Sprintf("end date %s is before allocation start date %s",
						endDate.Format(dateLayout), row.StartDate.Format(dateLayout)),
				}}
			}
		}
		return tx.EndAllocations(ctx, ids, endDate)
	})
}

// RecalculateIn re-derives the employment's active allocations from the
// current salary base, keeping the fte split. Runs against the caller's
// transaction-scoped store; probation.Service calls this when a probation
// passes so ledger transition and re-derivation commit together.
func (e *Engine) RecalculateIn(ctx context.Context, s hr.Store, employmentID hr.EmploymentID) error {
	emp, err := s.GetEmployment(ctx, employmentID)
	if err != nil {
		return err
	}
	if emp == nil {
		return fmt.Errorf("%w: %s", hr.ErrEmploymentNotFound, employmentID)
	}

	active, err := s.ActiveAllocationsByEmployment(ctx, employmentID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	now := e.Now()
	base, salaryType, err := probation.ResolveSalary(ctx, s, *emp, now)
	if err != nil {
		return err
	}

	if err := s.EndAllocations(ctx, allocationIDs(active), now); err != nil {
		return err
	}
	rows := make([]hr.FundingAllocation, len(active))
	for i, old := range active {
		rows[i] = hr.FundingAllocation{
			ID:              hr.AllocationID(uuid.NewString()),
			EmployeeID:      old.EmployeeID,
			EmploymentID:    old.EmploymentID,
			Type:            old.Type,
			GrantItemID:     old.GrantItemID,
			GrantID:         old.GrantID,
			FTE:             old.FTE,
			AllocatedAmount: base.Mul(old.FTE).Round(2),
			SalaryType:      salaryType,
			StartDate:       now,
			Status:          hr.AllocationActive,
			CreatedAt:       now,
		}
	}
	return s.InsertAllocations(ctx, rows)
}

// TerminateEmployment soft-ends an employment and its active allocations.
func (e *Engine) TerminateEmployment(ctx context.Context, employmentID hr.EmploymentID, endDate time.Time) error {
	if endDate.IsZero() {
		endDate = e.Now()
	}
	return e.Store.WithTx(ctx, func(tx hr.Store) error {
		emp, err := tx.GetEmployment(ctx, employmentID)
		if err != nil {
			return err
		}
		if emp == nil {
			return fmt.Errorf("%w: %s", hr.ErrEmploymentNotFound, employmentID)
		}
		if endDate.Before(emp.StartDate) {
			return hr.ValidationErrors{{
				Field: "end_date",
				Message: fmt.Sprintf("end date %s is before employment start date %s",
					endDate.Format(dateLayout), emp.StartDate.Format(dateLayout)),
			}}
		}
		active, err := tx.ActiveAllocationsByEmployment(ctx, employmentID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			if err := tx.EndAllocations(ctx, allocationIDs(active), endDate); err != nil {
				return err
			}
		}
		return tx.EndEmployment(ctx, employmentID, endDate)
	})
}

// =============================================================================
// CAPACITY QUERY
// =============================================================================

// CapacitySummary returns the grant item together with its allocation
// counts. Used by the capacity check above and by reporting endpoints.
func (e *Engine) CapacitySummary(ctx context.Context, grantItemID hr.GrantItemID) (*hr.GrantItem, hr.CapacityCount, error) {
	item, err := e.Store.GetGrantItem(ctx, grantItemID)
	if err != nil {
		return nil, hr.CapacityCount{}, err
	}
	if item == nil {
		return nil, hr.CapacityCount{}, fmt.Errorf("%w: %s", hr.ErrGrantItemNotFound, grantItemID)
	}
	count, err := e.Store.CountGrantItemAllocations(ctx, grantItemID, "")
	if err != nil {
		return nil, hr.CapacityCount{}, err
	}
	return item, count, nil
}

func allocationIDs(rows []hr.FundingAllocation) []hr.AllocationID {
	ids := make([]hr.AllocationID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
