/*
Package funding implements the employee funding-allocation engine: the rules
governing how an employment's salary is split across grant-funded and
org-funded sources.

KEY CONCEPTS:
  - Line: One requested slice of the split. Either grant-funded (references
    a GrantItem) or org-funded (references a Grant). Effort is submitted as
    a 0-100 percentage and converted to an fte fraction.
  - Validator: Enforces the sum-to-100% invariant and per-line consistency.
  - Engine: Validates, checks grant capacity, computes amounts from the
    probation-aware salary base, and persists allocation sets atomically.

SEE ALSO:
  - validator.go: Line-set validation
  - engine.go: Transactional write paths
*/
package funding

import (
	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/hr"
)

var hundred = decimal.NewFromInt(100)

// Line is one requested allocation. Type discriminates which reference is
// meaningful; the constructors below keep the two shapes consistent, and
// Validate re-checks lines that arrive via JSON.
type Line struct {
	Type        hr.AllocationType
	GrantItemID hr.GrantItemID // set when Type == AllocationGrant
	GrantID     hr.GrantID     // set when Type == AllocationOrgFunded
	Effort      decimal.Decimal
}

// GrantLine builds a grant-funded line drawing from a GrantItem.
// effortPct is a 0-100 percentage.
func GrantLine(itemID hr.GrantItemID, effortPct float64) Line {
	return Line{Type: hr.AllocationGrant, GrantItemID: itemID, Effort: decimal.NewFromFloat(effortPct)}
}

// OrgFundedLine builds an org-funded line drawing from the organization's
// own budget under a Grant. effortPct is a 0-100 percentage.
func OrgFundedLine(grantID hr.GrantID, effortPct float64) Line {
	return Line{Type: hr.AllocationOrgFunded, GrantID: grantID, Effort: decimal.NewFromFloat(effortPct)}
}

// Fraction converts the submitted percentage to an fte fraction.
func (l Line) Fraction() decimal.Decimal {
	return l.Effort.Div(hundred)
}

// Amount computes the allocated amount for this line from a salary base.
// Rounded to 2 decimal places, the precision payroll disburses in.
func (l Line) Amount(salaryBase decimal.Decimal) decimal.Decimal {
	return salaryBase.Mul(l.Fraction()).Round(2)
}
