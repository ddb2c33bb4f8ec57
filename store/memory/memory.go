// Package memory provides an in-memory hr.TxStore implementation
// (for testing/dev).
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/warp/funding-engine/hr"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds every table as a map keyed by ID. A single mutex guards all
// of them; WithTx additionally serializes whole transactions so a capacity
// check and the inserts it guards cannot interleave with another writer.
//
// WithTx snapshots every table before running the callback and restores the
// snapshot when it errors, matching the SQLite store's rollback semantics.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	grants      map[hr.GrantID]hr.Grant
	grantItems  map[hr.GrantItemID]hr.GrantItem
	employees   map[hr.EmployeeID]hr.Employee
	employments map[hr.EmploymentID]hr.Employment
	probation   map[hr.ProbationRecordID]hr.ProbationRecord
	allocations map[hr.AllocationID]hr.FundingAllocation
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		grants:      make(map[hr.GrantID]hr.Grant),
		grantItems:  make(map[hr.GrantItemID]hr.GrantItem),
		employees:   make(map[hr.EmployeeID]hr.Employee),
		employments: make(map[hr.EmploymentID]hr.Employment),
		probation:   make(map[hr.ProbationRecordID]hr.ProbationRecord),
		allocations: make(map[hr.AllocationID]hr.FundingAllocation),
	}
}

// WithTx serializes transactional blocks. fn gets the store itself; its
// method calls take the regular per-call locks. An error from fn rolls every
// table back to its pre-transaction state.
func (m *Memory) WithTx(ctx context.Context, fn func(hr.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	grants      map[hr.GrantID]hr.Grant
	grantItems  map[hr.GrantItemID]hr.GrantItem
	employees   map[hr.EmployeeID]hr.Employee
	employments map[hr.EmploymentID]hr.Employment
	probation   map[hr.ProbationRecordID]hr.ProbationRecord
	allocations map[hr.AllocationID]hr.FundingAllocation
}

func (m *Memory) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot{
		grants:      maps.Clone(m.grants),
		grantItems:  maps.Clone(m.grantItems),
		employees:   maps.Clone(m.employees),
		employments: maps.Clone(m.employments),
		probation:   maps.Clone(m.probation),
		allocations: maps.Clone(m.allocations),
	}
}

func (m *Memory) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = s.grants
	m.grantItems = s.grantItems
	m.employees = s.employees
	m.employments = s.employments
	m.probation = s.probation
	m.allocations = s.allocations
}

// =============================================================================
// GRANT REGISTRY
// =============================================================================

func (m *Memory) SaveGrant(_ context.Context, g hr.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.grants {
		if existing.Code == g.Code && existing.ID != g.ID {
			return hr.ErrDuplicateCode
		}
	}
	m.grants[g.ID] = g
	return nil
}

func (m *Memory) GetGrant(_ context.Context, id hr.GrantID) (*hr.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.grants[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (m *Memory) GetGrantByCode(_ context.Context, code string) (*hr.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.grants {
		if g.Code == code {
			g := g
			return &g, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListGrants(_ context.Context) ([]hr.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.Grant, 0, len(m.grants))
	for _, g := range m.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveGrantItem(_ context.Context, item hr.GrantItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantItems[item.ID] = item
	return nil
}

func (m *Memory) GetGrantItem(_ context.Context, id hr.GrantItemID) (*hr.GrantItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if item, ok := m.grantItems[id]; ok {
		return &item, nil
	}
	return nil, nil
}

func (m *Memory) ListGrantItems(_ context.Context, grantID hr.GrantID) ([]hr.GrantItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []hr.GrantItem
	for _, item := range m.grantItems {
		if item.GrantID == grantID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// =============================================================================
// PEOPLE
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e hr.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.employees {
		if existing.StaffCode == e.StaffCode && existing.ID != e.ID {
			return hr.ErrDuplicateCode
		}
	}
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id hr.EmployeeID) (*hr.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.employees[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]hr.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffCode < out[j].StaffCode })
	return out, nil
}

func (m *Memory) SaveEmployment(_ context.Context, e hr.Employment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employments[e.ID] = e
	return nil
}

func (m *Memory) GetEmployment(_ context.Context, id hr.EmploymentID) (*hr.Employment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.employments[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) ActiveEmploymentByEmployee(_ context.Context, id hr.EmployeeID) (*hr.Employment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employments {
		if e.EmployeeID == id && e.Active {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) EndEmployment(_ context.Context, id hr.EmploymentID, endDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employments[id]
	if !ok {
		return hr.ErrEmploymentNotFound
	}
	e.EndDate = &endDate
	e.Active = false
	m.employments[id] = e
	return nil
}

// =============================================================================
// PROBATION LEDGER
// =============================================================================

func (m *Memory) InsertProbationRecord(_ context.Context, r hr.ProbationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probation[r.ID] = r
	return nil
}

func (m *Memory) ActiveProbationRecord(_ context.Context, employmentID hr.EmploymentID) (*hr.ProbationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.probation {
		if r.EmploymentID == employmentID && r.Active {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListProbationRecords(_ context.Context, employmentID hr.EmploymentID) ([]hr.ProbationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []hr.ProbationRecord
	for _, r := range m.probation {
		if r.EmploymentID == employmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeactivateProbationRecords(_ context.Context, employmentID hr.EmploymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.probation {
		if r.EmploymentID == employmentID && r.Active {
			r.Active = false
			m.probation[id] = r
		}
	}
	return nil
}

// =============================================================================
// FUNDING ALLOCATIONS
// =============================================================================

func (m *Memory) InsertAllocations(_ context.Context, rows []hr.FundingAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.allocations[row.ID] = row
	}
	return nil
}

func (m *Memory) GetAllocation(_ context.Context, id hr.AllocationID) (*hr.FundingAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.allocations[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *Memory) ActiveAllocationsByEmployment(_ context.Context, employmentID hr.EmploymentID) ([]hr.FundingAllocation, error) {
	return m.allocationsWhere(func(a hr.FundingAllocation) bool {
		return a.EmploymentID == employmentID && a.IsActive()
	}), nil
}

func (m *Memory) AllocationsByEmployment(_ context.Context, employmentID hr.EmploymentID) ([]hr.FundingAllocation, error) {
	return m.allocationsWhere(func(a hr.FundingAllocation) bool {
		return a.EmploymentID == employmentID
	}), nil
}

func (m *Memory) AllocationsByGrantItem(_ context.Context, grantItemID hr.GrantItemID) ([]hr.FundingAllocation, error) {
	return m.allocationsWhere(func(a hr.FundingAllocation) bool {
		return a.GrantItemID != nil && *a.GrantItemID == grantItemID
	}), nil
}

func (m *Memory) EndAllocations(_ context.Context, ids []hr.AllocationID, endDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		a, ok := m.allocations[id]
		if !ok {
			return hr.ErrAllocationNotFound
		}
		if a.EndDate == nil {
			a.EndDate = &endDate
			a.Status = hr.AllocationEnded
			m.allocations[id] = a
		}
	}
	return nil
}

func (m *Memory) CountGrantItemAllocations(_ context.Context, grantItemID hr.GrantItemID, excludeEmployment hr.EmploymentID) (hr.CapacityCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count hr.CapacityCount
	for _, a := range m.allocations {
		if a.GrantItemID == nil || *a.GrantItemID != grantItemID {
			continue
		}
		count.Total++
		if a.IsActive() && a.EmploymentID != excludeEmployment {
			count.Active++
		}
	}
	return count, nil
}

func (m *Memory) allocationsWhere(keep func(hr.FundingAllocation) bool) []hr.FundingAllocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []hr.FundingAllocation
	for _, a := range m.allocations {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}
