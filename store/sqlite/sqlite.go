/*
Package sqlite provides the SQLite-backed implementation of hr.TxStore.

PURPOSE:
  Implements the persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences
  (and SELECT ... FOR UPDATE instead of the immediate transaction lock).

KEY TABLES:
  grants:                        Funding sources (unique code)
  grant_items:                   Funded position lines with slot capacity
  employees:                     Person records
  employments:                   Job assignments with both salary figures
  probation_records:             Append-only probation ledger
  employee_funding_allocations:  Salary split rows (ended, never deleted)

HISTORY ENFORCEMENT:
  Allocation rows and probation records see no destructive UPDATE and no
  DELETE. The only mutations are setting end_date/status on allocations and
  flipping is_active on probation records.

CAPACITY RACE:
  The DSN sets _txlock=immediate so BeginTx takes the write lock up front.
  A capacity COUNT inside WithTx therefore cannot go stale before the
  INSERT that depends on it - the second writer blocks until the first
  commits, then recounts.

STORAGE CONVENTIONS:
  - Decimals stored as TEXT in decimal-string form (no float loss)
  - Timestamps stored as RFC3339 TEXT

SEE ALSO:
  - hr/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/hr"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements hr.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn against a transaction-scoped store.
func (s *Store) WithTx(ctx context.Context, fn func(hr.Store) error) error {
	if _, alreadyTx := s.q.(*sql.Tx); alreadyTx {
		// Nested call: reuse the surrounding transaction.
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grants (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		organization TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grant_items (
		id TEXT PRIMARY KEY,
		grant_id TEXT NOT NULL REFERENCES grants(id),
		position TEXT NOT NULL,
		salary TEXT NOT NULL,
		benefit TEXT NOT NULL,
		level_of_effort TEXT NOT NULL,
		position_number INTEGER NOT NULL CHECK(position_number >= 1),
		budget_line_code TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_grant_items_grant
		ON grant_items(grant_id);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		staff_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT,
		hired_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		department_id TEXT,
		position_id TEXT,
		site_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		pass_probation_date TEXT,
		probation_salary TEXT NOT NULL,
		pass_probation_salary TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employments_employee
		ON employments(employee_id);

	CREATE TABLE IF NOT EXISTS probation_records (
		id TEXT PRIMARY KEY,
		employment_id TEXT NOT NULL REFERENCES employments(id),
		event_type TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		effective_date TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- INVARIANT: one active probation record per employment.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_probation_one_active
		ON probation_records(employment_id) WHERE is_active = 1;

	CREATE INDEX IF NOT EXISTS idx_probation_employment
		ON probation_records(employment_id);

	CREATE TABLE IF NOT EXISTS employee_funding_allocations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		employment_id TEXT NOT NULL REFERENCES employments(id),
		allocation_type TEXT NOT NULL,
		grant_item_id TEXT REFERENCES grant_items(id),
		grant_id TEXT REFERENCES grants(id),
		fte TEXT NOT NULL,
		allocated_amount TEXT NOT NULL,
		salary_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		-- INVARIANT: exactly one reference, matching allocation_type.
		CHECK(
			(allocation_type = 'grant' AND grant_item_id IS NOT NULL AND grant_id IS NULL) OR
			(allocation_type = 'org_funded' AND grant_id IS NOT NULL AND grant_item_id IS NULL)
		)
	);

	-- Hot path: capacity counting per grant item.
	CREATE INDEX IF NOT EXISTS idx_allocations_grant_item
		ON employee_funding_allocations(grant_item_id) WHERE grant_item_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_allocations_employment_active
		ON employee_funding_allocations(employment_id, end_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GRANT REGISTRY
// =============================================================================

func (s *Store) SaveGrant(ctx context.Context, g hr.Grant) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO grants (id, code, name, organization, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code=excluded.code, name=excluded.name, organization=excluded.organization`,
		string(g.ID), g.Code, g.Name, g.Organization, formatTime(g.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: grant code %q", hr.ErrDuplicateCode, g.Code)
	}
	return err
}

func (s *Store) GetGrant(ctx context.Context, id hr.GrantID) (*hr.Grant, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, organization, created_at FROM grants WHERE id = ?`, string(id))
	return scanGrant(row)
}

func (s *Store) GetGrantByCode(ctx context.Context, code string) (*hr.Grant, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, organization, created_at FROM grants WHERE code = ?`, code)
	return scanGrant(row)
}

func (s *Store) ListGrants(ctx context.Context) ([]hr.Grant, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, code, name, organization, created_at FROM grants ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hr.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *Store) SaveGrantItem(ctx context.Context, item hr.GrantItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO grant_items
			(id, grant_id, position, salary, benefit, level_of_effort, position_number, budget_line_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position=excluded.position, salary=excluded.salary, benefit=excluded.benefit,
			level_of_effort=excluded.level_of_effort, position_number=excluded.position_number,
			budget_line_code=excluded.budget_line_code`,
		string(item.ID), string(item.GrantID), item.Position,
		item.Salary.String(), item.Benefit.String(), item.LevelOfEffort.String(),
		item.PositionNumber, item.BudgetLineCode, formatTime(item.CreatedAt))
	return err
}

func (s *Store) GetGrantItem(ctx context.Context, id hr.GrantItemID) (*hr.GrantItem, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, grant_id, position, salary, benefit, level_of_effort, position_number, budget_line_code, created_at
		FROM grant_items WHERE id = ?`, string(id))
	return scanGrantItem(row)
}

func (s *Store) ListGrantItems(ctx context.Context, grantID hr.GrantID) ([]hr.GrantItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, grant_id, position, salary, benefit, level_of_effort, position_number, budget_line_code, created_at
		FROM grant_items WHERE grant_id = ? ORDER BY position`, string(grantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hr.GrantItem
	for rows.Next() {
		item, err := scanGrantItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// =============================================================================
// PEOPLE
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e hr.Employee) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, staff_code, name, email, hired_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET staff_code=excluded.staff_code, name=excluded.name, email=excluded.email`,
		string(e.ID), e.StaffCode, e.Name, e.Email, formatTime(e.HiredAt), formatTime(e.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: staff code %q", hr.ErrDuplicateCode, e.StaffCode)
	}
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id hr.EmployeeID) (*hr.Employee, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, staff_code, name, email, hired_at, created_at FROM employees WHERE id = ?`, string(id))
	return scanEmployee(row)
}

func (s *Store) ListEmployees(ctx context.Context) ([]hr.Employee, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, staff_code, name, email, hired_at, created_at FROM employees ORDER BY staff_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hr.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployment(ctx context.Context, e hr.Employment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employments
			(id, employee_id, department_id, position_id, site_id, start_date, end_date,
			 pass_probation_date, probation_salary, pass_probation_salary, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.EmployeeID), e.DepartmentID, e.PositionID, e.SiteID,
		formatTime(e.StartDate), formatTimePtr(e.EndDate), formatTimePtr(e.PassProbationDate),
		e.ProbationSalary.String(), e.PassProbationSalary.String(), boolInt(e.Active), formatTime(e.CreatedAt))
	return err
}

func (s *Store) GetEmployment(ctx context.Context, id hr.EmploymentID) (*hr.Employment, error) {
	row := s.q.QueryRowContext(ctx, employmentSelect+` WHERE id = ?`, string(id))
	return scanEmployment(row)
}

func (s *Store) ActiveEmploymentByEmployee(ctx context.Context, id hr.EmployeeID) (*hr.Employment, error) {
	row := s.q.QueryRowContext(ctx, employmentSelect+`
		WHERE employee_id = ? AND active = 1 ORDER BY start_date DESC LIMIT 1`, string(id))
	return scanEmployment(row)
}

func (s *Store) EndEmployment(ctx context.Context, id hr.EmploymentID, endDate time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE employments SET end_date = ?, active = 0 WHERE id = ?`,
		formatTime(endDate), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return hr.ErrEmploymentNotFound
	}
	return nil
}

// =============================================================================
// PROBATION LEDGER
// =============================================================================

func (s *Store) InsertProbationRecord(ctx context.Context, r hr.ProbationRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO probation_records
			(id, employment_id, event_type, is_active, effective_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.EmploymentID), string(r.Event), boolInt(r.Active),
		formatTime(r.EffectiveDate), r.Notes, formatTime(r.CreatedAt))
	return err
}

func (s *Store) ActiveProbationRecord(ctx context.Context, employmentID hr.EmploymentID) (*hr.ProbationRecord, error) {
	row := s.q.QueryRowContext(ctx, probationSelect+`
		WHERE employment_id = ? AND is_active = 1`, string(employmentID))
	return scanProbationRecord(row)
}

func (s *Store) ListProbationRecords(ctx context.Context, employmentID hr.EmploymentID) ([]hr.ProbationRecord, error) {
	rows, err := s.q.QueryContext(ctx, probationSelect+`
		WHERE employment_id = ? ORDER BY created_at`, string(employmentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hr.ProbationRecord
	for rows.Next() {
		r, err := scanProbationRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateProbationRecords(ctx context.Context, employmentID hr.EmploymentID) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE probation_records SET is_active = 0 WHERE employment_id = ? AND is_active = 1`,
		string(employmentID))
	return err
}

// =============================================================================
// FUNDING ALLOCATIONS
// =============================================================================

func (s *Store) InsertAllocations(ctx context.Context, rows []hr.FundingAllocation) error {
	for _, a := range rows {
		var grantItemID, grantID any
		if a.GrantItemID != nil {
			grantItemID = string(*a.GrantItemID)
		}
		if a.GrantID != nil {
			grantID = string(*a.GrantID)
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO employee_funding_allocations
				(id, employee_id, employment_id, allocation_type, grant_item_id, grant_id,
				 fte, allocated_amount, salary_type, start_date, end_date, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(a.ID), string(a.EmployeeID), string(a.EmploymentID), string(a.Type),
			grantItemID, grantID, a.FTE.String(), a.AllocatedAmount.String(), string(a.SalaryType),
			formatTime(a.StartDate), formatTimePtr(a.EndDate), string(a.Status), formatTime(a.CreatedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetAllocation(ctx context.Context, id hr.AllocationID) (*hr.FundingAllocation, error) {
	row := s.q.QueryRowContext(ctx, allocationSelect+` WHERE id = ?`, string(id))
	return scanAllocation(row)
}

func (s *Store) ActiveAllocationsByEmployment(ctx context.Context, employmentID hr.EmploymentID) ([]hr.FundingAllocation, error) {
	return s.queryAllocations(ctx, allocationSelect+`
		WHERE employment_id = ? AND end_date IS NULL ORDER BY start_date, id`, string(employmentID))
}

func (s *Store) AllocationsByEmployment(ctx context.Context, employmentID hr.EmploymentID) ([]hr.FundingAllocation, error) {
	return s.queryAllocations(ctx, allocationSelect+`
		WHERE employment_id = ? ORDER BY start_date, id`, string(employmentID))
}

func (s *Store) AllocationsByGrantItem(ctx context.Context, grantItemID hr.GrantItemID) ([]hr.FundingAllocation, error) {
	return s.queryAllocations(ctx, allocationSelect+`
		WHERE grant_item_id = ? ORDER BY start_date, id`, string(grantItemID))
}

func (s *Store) EndAllocations(ctx context.Context, ids []hr.AllocationID, endDate time.Time) error {
	for _, id := range ids {
		res, err := s.q.ExecContext(ctx, `
			UPDATE employee_funding_allocations
			SET end_date = ?, status = ?
			WHERE id = ? AND end_date IS NULL`,
			formatTime(endDate), string(hr.AllocationEnded), string(id))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Already-ended rows are fine to skip; missing rows are not.
			var exists int
			if err := s.q.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM employee_funding_allocations WHERE id = ?`, string(id)).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", hr.ErrAllocationNotFound, id)
			}
		}
	}
	return nil
}

func (s *Store) CountGrantItemAllocations(ctx context.Context, grantItemID hr.GrantItemID, excludeEmployment hr.EmploymentID) (hr.CapacityCount, error) {
	var count hr.CapacityCount
	err := s.q.QueryRowContext(ctx, `
		SELECT
			COUNT(1),
			COALESCE(SUM(CASE WHEN end_date IS NULL AND employment_id != ? THEN 1 ELSE 0 END), 0)
		FROM employee_funding_allocations
		WHERE grant_item_id = ?`,
		string(excludeEmployment), string(grantItemID)).Scan(&count.Total, &count.Active)
	return count, err
}

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]hr.FundingAllocation, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hr.FundingAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

const employmentSelect = `
	SELECT id, employee_id, department_id, position_id, site_id, start_date, end_date,
	       pass_probation_date, probation_salary, pass_probation_salary, active, created_at
	FROM employments`

const probationSelect = `
	SELECT id, employment_id, event_type, is_active, effective_date, notes, created_at
	FROM probation_records`

const allocationSelect = `
	SELECT id, employee_id, employment_id, allocation_type, grant_item_id, grant_id,
	       fte, allocated_amount, salary_type, start_date, end_date, status, created_at
	FROM employee_funding_allocations`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGrant(sc scanner) (*hr.Grant, error) {
	var g hr.Grant
	var id, createdAt string
	err := sc.Scan(&id, &g.Code, &g.Name, &g.Organization, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.ID = hr.GrantID(id)
	g.CreatedAt = parseTime(createdAt)
	return &g, nil
}

func scanGrantItem(sc scanner) (*hr.GrantItem, error) {
	var item hr.GrantItem
	var id, grantID, salary, benefit, effort, createdAt string
	err := sc.Scan(&id, &grantID, &item.Position, &salary, &benefit, &effort,
		&item.PositionNumber, &item.BudgetLineCode, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.ID = hr.GrantItemID(id)
	item.GrantID = hr.GrantID(grantID)
	item.Salary = parseDecimal(salary)
	item.Benefit = parseDecimal(benefit)
	item.LevelOfEffort = parseDecimal(effort)
	item.CreatedAt = parseTime(createdAt)
	return &item, nil
}

func scanEmployee(sc scanner) (*hr.Employee, error) {
	var e hr.Employee
	var id, hiredAt, createdAt string
	err := sc.Scan(&id, &e.StaffCode, &e.Name, &e.Email, &hiredAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = hr.EmployeeID(id)
	e.HiredAt = parseTime(hiredAt)
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func scanEmployment(sc scanner) (*hr.Employment, error) {
	var e hr.Employment
	var id, employeeID, startDate, probSalary, passSalary, createdAt string
	var endDate, passDate sql.NullString
	var active int
	err := sc.Scan(&id, &employeeID, &e.DepartmentID, &e.PositionID, &e.SiteID,
		&startDate, &endDate, &passDate, &probSalary, &passSalary, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = hr.EmploymentID(id)
	e.EmployeeID = hr.EmployeeID(employeeID)
	e.StartDate = parseTime(startDate)
	e.EndDate = parseTimePtr(endDate)
	e.PassProbationDate = parseTimePtr(passDate)
	e.ProbationSalary = parseDecimal(probSalary)
	e.PassProbationSalary = parseDecimal(passSalary)
	e.Active = active == 1
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func scanProbationRecord(sc scanner) (*hr.ProbationRecord, error) {
	var r hr.ProbationRecord
	var id, employmentID, event, effective, createdAt string
	var active int
	err := sc.Scan(&id, &employmentID, &event, &active, &effective, &r.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.ID = hr.ProbationRecordID(id)
	r.EmploymentID = hr.EmploymentID(employmentID)
	r.Event = hr.ProbationEvent(event)
	r.Active = active == 1
	r.EffectiveDate = parseTime(effective)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func scanAllocation(sc scanner) (*hr.FundingAllocation, error) {
	var a hr.FundingAllocation
	var id, employeeID, employmentID, allocType, fte, amount, salaryType, startDate, status, createdAt string
	var grantItemID, grantID, endDate sql.NullString
	err := sc.Scan(&id, &employeeID, &employmentID, &allocType, &grantItemID, &grantID,
		&fte, &amount, &salaryType, &startDate, &endDate, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ID = hr.AllocationID(id)
	a.EmployeeID = hr.EmployeeID(employeeID)
	a.EmploymentID = hr.EmploymentID(employmentID)
	a.Type = hr.AllocationType(allocType)
	if grantItemID.Valid {
		itemID := hr.GrantItemID(grantItemID.String)
		a.GrantItemID = &itemID
	}
	if grantID.Valid {
		gID := hr.GrantID(grantID.String)
		a.GrantID = &gID
	}
	a.FTE = parseDecimal(fte)
	a.AllocatedAmount = parseDecimal(amount)
	a.SalaryType = hr.SalaryType(salaryType)
	a.StartDate = parseTime(startDate)
	a.EndDate = parseTimePtr(endDate)
	a.Status = hr.AllocationStatus(status)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
