/*
store.go - Persistence interfaces for the funding engine

PURPOSE:
  Defines the interface between domain logic and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

HISTORY CONTRACT:
  Allocation rows and probation records are never updated in place and never
  deleted. The only mutation either table sees after insert is "ending":
  setting end_date on allocations, or flipping is_active off when a newer
  probation record supersedes the old one. Payroll history depends on this.

TRANSACTIONS:
  TxStore.WithTx runs a function against a transaction-scoped Store. The
  capacity check and the inserts it guards MUST share one transaction (see
  funding/engine.go); two requests racing for the last slot of a grant item
  must serialize on the database, not on application code.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (immediate-lock transactions)
  - store/memory: In-memory for testing

SEE ALSO:
  - funding/engine.go: The transactional write paths
  - store/sqlite/sqlite.go: Concrete implementation
*/
package hr

import (
	"context"
	"time"
)

// Store is the persistence surface the domain packages use.
//
// Lookup methods return (nil, nil) when the row does not exist; callers
// translate that into the matching not-found sentinel.
type Store interface {
	// --- Grant registry ---

	SaveGrant(ctx context.Context, g Grant) error
	GetGrant(ctx context.Context, id GrantID) (*Grant, error)
	GetGrantByCode(ctx context.Context, code string) (*Grant, error)
	ListGrants(ctx context.Context) ([]Grant, error)

	SaveGrantItem(ctx context.Context, item GrantItem) error
	GetGrantItem(ctx context.Context, id GrantItemID) (*GrantItem, error)
	ListGrantItems(ctx context.Context, grantID GrantID) ([]GrantItem, error)

	// --- People ---

	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	SaveEmployment(ctx context.Context, e Employment) error
	GetEmployment(ctx context.Context, id EmploymentID) (*Employment, error)
	// ActiveEmploymentByEmployee returns the employee's current employment,
	// or (nil, nil) if none is active.
	ActiveEmploymentByEmployee(ctx context.Context, id EmployeeID) (*Employment, error)
	// EndEmployment soft-terminates an employment: sets end_date and clears
	// the active flag. The row itself is kept.
	EndEmployment(ctx context.Context, id EmploymentID, endDate time.Time) error

	// --- Probation ledger ---

	InsertProbationRecord(ctx context.Context, r ProbationRecord) error
	ActiveProbationRecord(ctx context.Context, employmentID EmploymentID) (*ProbationRecord, error)
	ListProbationRecords(ctx context.Context, employmentID EmploymentID) ([]ProbationRecord, error)
	// DeactivateProbationRecords clears is_active on every record of the
	// employment. Always followed by inserting the new active record in the
	// same transaction.
	DeactivateProbationRecords(ctx context.Context, employmentID EmploymentID) error

	// --- Funding allocations ---

	// InsertAllocations persists a batch of allocation rows. All or nothing.
	InsertAllocations(ctx context.Context, rows []FundingAllocation) error
	GetAllocation(ctx context.Context, id AllocationID) (*FundingAllocation, error)
	ActiveAllocationsByEmployment(ctx context.Context, employmentID EmploymentID) ([]FundingAllocation, error)
	AllocationsByEmployment(ctx context.Context, employmentID EmploymentID) ([]FundingAllocation, error)
	AllocationsByGrantItem(ctx context.Context, grantItemID GrantItemID) ([]FundingAllocation, error)
	// EndAllocations sets end_date (and status "ended") on the given rows.
	EndAllocations(ctx context.Context, ids []AllocationID, endDate time.Time) error

	// CountGrantItemAllocations is the grant capacity query. Rows belonging
	// to excludeEmployment are not counted as active, so an employment
	// replacing its own set does not count against itself. Pass "" to count
	// everything.
	CountGrantItemAllocations(ctx context.Context, grantItemID GrantItemID, excludeEmployment EmploymentID) (CapacityCount, error)
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
