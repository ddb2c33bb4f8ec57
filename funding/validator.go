/*
validator.go - Allocation line-set validation

PURPOSE:
  Pure validation of a proposed allocation set, before anything touches the
  database. The capacity check lives in engine.go because it must run inside
  the write transaction; everything checkable from the lines alone is here.

RULES:
  - The set must not be empty.
  - Every line's effort must be > 0 and <= 100.
  - A grant line must reference a grant item and nothing else; an org-funded
    line must reference a grant and nothing else.
  - The efforts must sum to exactly 100%, within a fixed epsilon that only
    absorbs decimal/float conversion noise. The rejection message names the
    actual submitted total.
*/
package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/hr"
)

// sumEpsilon bounds how far the fte fraction sum may drift from 1.
// 1e-6 absorbs float-to-decimal rounding in submitted percentages without
// letting a genuinely short or long split through.
var sumEpsilon = decimal.New(1, -6)

var one = decimal.NewFromInt(1)

// ValidateLines checks a proposed allocation set and returns every violation
// found as hr.ValidationErrors.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return hr.ValidationErrors{{
			Field:   "allocations",
			Message: "at least one allocation is required",
		}}
	}

	var errs hr.ValidationErrors
	for i, l := range lines {
		field := fmt.Sprintf("allocations.%d", i)

		if !l.Type.Valid() {
			errs = append(errs, hr.ValidationError{
				Field:   field + ".allocation_type",
				Message: fmt.Sprintf("allocation_type must be %q or %q", hr.AllocationGrant, hr.AllocationOrgFunded),
			})
			continue
		}
		switch l.Type {
		case hr.AllocationGrant:
			if l.GrantItemID == "" {
				errs = append(errs, hr.ValidationError{
					Field:   field + ".grant_item_id",
					Message: "grant_item_id is required for grant allocations",
				})
			}
			if l.GrantID != "" {
				errs = append(errs, hr.ValidationError{
					Field:   field + ".grant_id",
					Message: "grant_id must not be set for grant allocations",
				})
			}
		case hr.AllocationOrgFunded:
			if l.GrantID == "" {
				errs = append(errs, hr.ValidationError{
					Field:   field + ".grant_id",
					Message: "grant_id is required for org_funded allocations",
				})
			}
			if l.GrantItemID != "" {
				errs = append(errs, hr.ValidationError{
					Field:   field + ".grant_item_id",
					Message: "grant_item_id must not be set for org_funded allocations",
				})
			}
		}

		if !l.Effort.IsPositive() || l.Effort.GreaterThan(hundred) {
			errs = append(errs, hr.ValidationError{
				Field:   field + ".fte",
				Message: "fte must be greater than 0 and at most 100 percent",
			})
		}
	}

	if sumErr := validateSum(lines); sumErr != nil {
		errs = append(errs, *sumErr)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateSum enforces the 100% invariant on the fraction sum.
func validateSum(lines []Line) *hr.ValidationError {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Fraction())
	}
	if total.Sub(one).Abs().GreaterThan(sumEpsilon) {
		return &hr.ValidationError{
			Field:   "allocations",
			Message: fmt.Sprintf("total effort of all allocations must equal exactly 100%% (got %s%%)", total.Mul(hundred).String()),
		}
	}
	return nil
}
