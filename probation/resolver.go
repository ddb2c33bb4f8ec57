/*
resolver.go - Probation-aware salary base resolution

PURPOSE:
  The single place that decides which of an employment's two salary figures
  applies right now. Everything that needs a salary base (the allocation
  engine, the probation-pass recalculation) calls ResolveSalary; nothing
  else reads ProbationSalary/PassProbationSalary directly.

WHY A SINGLE RESOLVER?
  An earlier incarnation of this system kept a probation-status column on
  the employment that duplicated the probation ledger, and the two drifted.
  The ledger's active record is the only source of truth; this file is the
  only reader that interprets it as a salary decision.

SEE ALSO:
  - service.go: Ledger transitions that change what this resolver returns
  - funding/engine.go: Main consumer
*/
package probation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/hr"
)

// ResolveSalary returns the salary base and salary type for an employment
// as of the given time.
//
// Rules:
//   - Active record "initial" or "extension": probation salary.
//   - Active record "passed": pass-probation salary.
//   - Active record "failed": probation salary (the employee never passed;
//     termination is handled separately).
//   - No active record: pass-probation salary, unless the employment has a
//     pass_probation_date still in the future, in which case the employee
//     is treated as on probation.
func ResolveSalary(ctx context.Context, s hr.Store, emp hr.Employment, asOf time.Time) (decimal.Decimal, hr.SalaryType, error) {
	rec, err := s.ActiveProbationRecord(ctx, emp.ID)
	if err != nil {
		return decimal.Zero, "", err
	}

	if rec != nil {
		switch rec.Event {
		case hr.ProbationInitial, hr.ProbationExtension, hr.ProbationFailed:
			return emp.ProbationSalary, hr.SalaryProbation, nil
		case hr.ProbationPassed:
			return emp.PassProbationSalary, hr.SalaryPassProbation, nil
		}
	}

	// No ledger entry. Employments created without a probation period go
	// straight to the post-probation salary.
	if emp.PassProbationDate != nil && emp.PassProbationDate.After(asOf) {
		return emp.ProbationSalary, hr.SalaryProbation, nil
	}
	return emp.PassProbationSalary, hr.SalaryPassProbation, nil
}
