package funding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/hr"
	"github.com/warp/funding-engine/store/memory"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Memory
	engine *funding.Engine

	grant hr.Grant
	item  hr.GrantItem
}

// newFixture seeds a grant with one item (capacity 2 unless overridden) and
// one employee, and pins the engine clock.
func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	f := &fixture{
		store: store,
		grant: hr.Grant{ID: "grant-1", Code: "G-001", Name: "Health Systems Grant", Organization: "Global Fund"},
		item: hr.GrantItem{
			ID: "item-1", GrantID: "grant-1", Position: "Field Officer",
			Salary:         decimal.NewFromInt(30000),
			Benefit:        decimal.NewFromInt(3000),
			LevelOfEffort:  decimal.NewFromInt(1),
			PositionNumber: capacity,
			BudgetLineCode: "BL-01",
		},
	}
	require.NoError(t, store.SaveGrant(ctx, f.grant))
	require.NoError(t, store.SaveGrantItem(ctx, f.item))
	require.NoError(t, store.SaveEmployee(ctx, hr.Employee{
		ID: "emp-1", StaffCode: "S-0001", Name: "Ada Chan", HiredAt: testNow,
	}))

	f.engine = funding.NewEngine(store)
	f.engine.Now = func() time.Time { return testNow }
	return f
}

// probationEmployment returns a new employment on probation:
// 20000 during probation, 32000 after.
func (f *fixture) probationEmployment(employeeID hr.EmployeeID) hr.Employment {
	passDate := testNow.AddDate(0, 3, 0)
	return hr.Employment{
		EmployeeID:          employeeID,
		DepartmentID:        "dept-1",
		PositionID:          "pos-1",
		SiteID:              "site-1",
		StartDate:           testNow,
		PassProbationDate:   &passDate,
		ProbationSalary:     decimal.NewFromInt(20000),
		PassProbationSalary: decimal.NewFromInt(32000),
	}
}

func splitLines(orgPct, grantPct float64) []funding.Line {
	return []funding.Line{
		funding.OrgFundedLine("grant-1", orgPct),
		funding.GrantLine("item-1", grantPct),
	}
}

func amountOf(t *testing.T, rows []hr.FundingAllocation, typ hr.AllocationType) decimal.Decimal {
	t.Helper()
	for _, r := range rows {
		if r.Type == typ {
			return r.AllocatedAmount
		}
	}
	t.Fatalf("no row of type %s", typ)
	return decimal.Zero
}

// =============================================================================
// EMPLOYMENT CREATION WITH ALLOCATIONS
// =============================================================================

func TestCreateEmployment_ProbationSalaryDrivesAmounts(t *testing.T) {
	// GIVEN: Employment on probation (20000 / 32000), split 60% org / 40% grant
	f := newFixture(t, 2)
	ctx := context.Background()

	// WHEN: Creating the employment with its allocation set
	emp, rows, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// THEN: Amounts derive from the probation salary
	assert.True(t, amountOf(t, rows, hr.AllocationOrgFunded).Equal(decimal.NewFromInt(12000)))
	assert.True(t, amountOf(t, rows, hr.AllocationGrant).Equal(decimal.NewFromInt(8000)))
	for _, r := range rows {
		assert.Equal(t, hr.SalaryProbation, r.SalaryType)
		assert.Equal(t, emp.ID, r.EmploymentID)
		assert.Nil(t, r.EndDate)
	}

	// AND: The initial probation record is active
	rec, err := f.store.ActiveProbationRecord(ctx, emp.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, hr.ProbationInitial, rec.Event)
}

func TestCreateEmployment_MutualExclusivityPersisted(t *testing.T) {
	f := newFixture(t, 2)
	_, rows, err := f.engine.CreateEmployment(context.Background(), f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	for _, r := range rows {
		switch r.Type {
		case hr.AllocationGrant:
			assert.NotNil(t, r.GrantItemID)
			assert.Nil(t, r.GrantID)
		case hr.AllocationOrgFunded:
			assert.NotNil(t, r.GrantID)
			assert.Nil(t, r.GrantItemID)
		}
	}
}

func TestCreateEmployment_BadSumRejectedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(50, 30))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "80")

	// Nothing persisted: the employee still has no active employment.
	emp, err := f.store.ActiveEmploymentByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, emp)
}

func TestCreateEmployment_UnknownEmployeeRejected(t *testing.T) {
	f := newFixture(t, 2)
	_, _, err := f.engine.CreateEmployment(context.Background(), f.probationEmployment("ghost"), splitLines(60, 40))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hr.ErrEmployeeNotFound))
}

func TestCreateEmployment_UnknownGrantItemRejected(t *testing.T) {
	f := newFixture(t, 2)
	lines := []funding.Line{
		funding.OrgFundedLine("grant-1", 60),
		funding.GrantLine("item-missing", 40),
	}
	_, _, err := f.engine.CreateEmployment(context.Background(), f.probationEmployment("emp-1"), lines)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hr.ErrGrantItemNotFound))
}

// =============================================================================
// CAPACITY ENFORCEMENT
// =============================================================================

func TestAllocate_CapacityExhaustedRejected(t *testing.T) {
	// GIVEN: Grant item with a single position slot, already filled
	f := newFixture(t, 1)
	ctx := context.Background()
	_, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	require.NoError(t, f.store.SaveEmployee(ctx, hr.Employee{ID: "emp-2", StaffCode: "S-0002", Name: "Ben Osei", HiredAt: testNow}))

	// WHEN: A second employment requests the same item
	_, _, err = f.engine.CreateEmployment(ctx, f.probationEmployment("emp-2"), splitLines(60, 40))

	// THEN: Structured capacity error naming the item and its slots
	require.Error(t, err)
	var capErr *hr.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, hr.GrantItemID("item-1"), capErr.GrantItemID)
	assert.Equal(t, 1, capErr.Capacity)
	assert.Equal(t, 1, capErr.Active)
	assert.Equal(t, 0, capErr.Remaining())
}

func TestCreateEmployment_CapacityFailureLeavesNothingBehind(t *testing.T) {
	// A rejected creation must not leak the employment or its initial
	// probation record: the whole transaction rolls back.
	f := newFixture(t, 1)
	ctx := context.Background()
	_, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	require.NoError(t, f.store.SaveEmployee(ctx, hr.Employee{ID: "emp-2", StaffCode: "S-0002", Name: "Ben Osei", HiredAt: testNow}))
	_, _, err = f.engine.CreateEmployment(ctx, f.probationEmployment("emp-2"), splitLines(60, 40))
	require.Error(t, err)

	emp, err := f.store.ActiveEmploymentByEmployee(ctx, "emp-2")
	require.NoError(t, err)
	assert.Nil(t, emp)
}

func TestReplace_OwnRowsDoNotBlockCapacity(t *testing.T) {
	// GIVEN: Capacity 1, filled by this very employment
	f := newFixture(t, 1)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	// WHEN: Replacing the set, still referencing the same item
	rows, err := f.engine.Replace(ctx, emp.ID, splitLines(30, 70), testNow.AddDate(0, 1, 0))

	// THEN: The outgoing rows don't count against their own successors
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, amountOf(t, rows, hr.AllocationGrant).Equal(decimal.NewFromInt(14000)))
}

func TestAllocate_BatchRequestingTwoSlotsCounted(t *testing.T) {
	// Two grant lines on the same item in one batch need two free slots.
	f := newFixture(t, 1)
	ctx := context.Background()
	lines := []funding.Line{
		funding.GrantLine("item-1", 50),
		funding.GrantLine("item-1", 50),
	}
	_, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), lines)
	require.Error(t, err)
	var capErr *hr.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Requested)
}

// =============================================================================
// DUPLICATE-SET PROTECTION AND REPLACEMENT
// =============================================================================

func TestAllocate_SecondActiveSetRejected(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	_, err = f.engine.Allocate(ctx, emp.ID, splitLines(50, 50), testNow)
	require.Error(t, err)
	var setErr *hr.ActiveSetError
	require.True(t, errors.As(err, &setErr))
	assert.Equal(t, 2, setErr.ActiveRows)
}

func TestReplace_EndsOldRowsAndKeepsSumAtHundred(t *testing.T) {
	// GIVEN: An active 60/40 set
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, firstRows, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	// WHEN: Replacing with 30/70
	newStart := testNow.AddDate(0, 1, 0)
	newRows, err := f.engine.Replace(ctx, emp.ID, splitLines(30, 70), newStart)
	require.NoError(t, err)

	// THEN: Old rows are ended, new rows active, fte sum still 1
	for _, old := range firstRows {
		row, err := f.store.GetAllocation(ctx, old.ID)
		require.NoError(t, err)
		require.NotNil(t, row.EndDate)
		assert.Equal(t, hr.AllocationEnded, row.Status)
	}
	total := decimal.Zero
	for _, r := range newRows {
		assert.Nil(t, r.EndDate)
		assert.True(t, r.StartDate.Equal(newStart))
		total = total.Add(r.FTE)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(1)), "fte sum %s", total)
}

func TestReplace_IdempotentAmounts(t *testing.T) {
	// Replacing twice with the same input yields the same split and amounts.
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	first, err := f.engine.Replace(ctx, emp.ID, splitLines(60, 40), testNow)
	require.NoError(t, err)
	second, err := f.engine.Replace(ctx, emp.ID, splitLines(60, 40), testNow)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].AllocatedAmount.Equal(second[i].AllocatedAmount))
		assert.True(t, first[i].FTE.Equal(second[i].FTE))
	}

	// Only the last set is active.
	active, err := f.store.ActiveAllocationsByEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

// =============================================================================
// DEACTIVATION AND CAPACITY QUERY
// =============================================================================

func TestDeactivate_EndsRowsAndFreesCapacity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, rows, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	endDate := testNow.AddDate(0, 2, 0)
	require.NoError(t, f.engine.Deactivate(ctx, []hr.AllocationID{rows[0].ID, rows[1].ID}, endDate))

	item, count, err := f.engine.CapacitySummary(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.PositionNumber)
	assert.Equal(t, 1, count.Total)
	assert.Equal(t, 0, count.Active)
}

func TestDeactivate_EndDateBeforeStartRejected(t *testing.T) {
	// GIVEN: An active set starting at testNow
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, rows, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	// WHEN: Deactivating with an end date a year earlier
	err = f.engine.Deactivate(ctx, []hr.AllocationID{rows[0].ID, rows[1].ID}, testNow.AddDate(-1, 0, 0))

	// THEN: Rejected; no row gets a negative active window
	require.Error(t, err)
	var vErrs hr.ValidationErrors
	require.True(t, errors.As(err, &vErrs))
	assert.Contains(t, err.Error(), "before allocation start date")

	active, err := f.store.ActiveAllocationsByEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTerminateEmployment_EndDateBeforeStartRejected(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	err = f.engine.TerminateEmployment(ctx, emp.ID, testNow.AddDate(-1, 0, 0))
	require.Error(t, err)
	var vErrs hr.ValidationErrors
	require.True(t, errors.As(err, &vErrs))

	stored, err := f.store.GetEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
}

func TestReplace_BackdatedStartRejected(t *testing.T) {
	// A replacement set may not start before the set it supersedes.
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	_, err = f.engine.Replace(ctx, emp.ID, splitLines(30, 70), testNow.AddDate(-1, 0, 0))
	require.Error(t, err)
	var vErrs hr.ValidationErrors
	require.True(t, errors.As(err, &vErrs))
	assert.Contains(t, err.Error(), "start date")

	// The original set is untouched.
	active, err := f.store.ActiveAllocationsByEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestDeactivate_UnknownIDFailsWholeBatch(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, rows, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	err = f.engine.Deactivate(ctx, []hr.AllocationID{rows[0].ID, "nope"}, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hr.ErrAllocationNotFound))
}

func TestTerminateEmployment_EndsEverything(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	emp, _, err := f.engine.CreateEmployment(ctx, f.probationEmployment("emp-1"), splitLines(60, 40))
	require.NoError(t, err)

	require.NoError(t, f.engine.TerminateEmployment(ctx, emp.ID, testNow.AddDate(1, 0, 0)))

	active, err := f.store.ActiveAllocationsByEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	stored, err := f.store.GetEmployment(ctx, emp.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.NotNil(t, stored.EndDate)
}
