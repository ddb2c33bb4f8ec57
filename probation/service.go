/*
service.go - Probation ledger transitions

PURPOSE:
  Owns every mutation of the probation record ledger. Records are appended,
  never edited: a transition deactivates the current active record and
  inserts a new one marked active, inside a single transaction.

STATE MACHINE:
  (none)    -> initial
  initial   -> extension | passed | failed
  extension -> extension | passed | failed
  passed    -> (terminal)
  failed    -> (terminal)

  A new employment period starts a fresh cycle with its own "initial".

PASSED CASCADE:
  When a probation passes, every active funding allocation of that
  employment was derived from the probation salary and is now stale. The
  service hands the transaction-scoped store to a Recalculator (implemented
  by funding.Engine) so the re-derivation commits or rolls back together
  with the ledger transition.

SEE ALSO:
  - resolver.go: Reads the active record this service maintains
  - funding/engine.go: Recalculator implementation
*/
package probation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/warp/funding-engine/hr"
)

// Recalculator re-derives an employment's active funding allocations using
// the transaction-scoped store, so the cascade is atomic with the ledger
// transition that triggered it.
type Recalculator interface {
	RecalculateIn(ctx context.Context, s hr.Store, employmentID hr.EmploymentID) error
}

// Service owns probation ledger transitions.
type Service struct {
	Store  hr.TxStore
	Recalc Recalculator // optional; nil disables the passed cascade
	Now    func() time.Time
}

// NewService creates a probation service. recalc may be nil.
func NewService(store hr.TxStore, recalc Recalculator) *Service {
	return &Service{Store: store, Recalc: recalc, Now: time.Now}
}

// NewInitialRecord builds the first ledger entry for a fresh employment.
// The caller inserts it inside the employment-creation transaction.
func NewInitialRecord(employmentID hr.EmploymentID, effective time.Time, now time.Time) hr.ProbationRecord {
	return hr.ProbationRecord{
		ID:            hr.ProbationRecordID(uuid.NewString()),
		EmploymentID:  employmentID,
		Event:         hr.ProbationInitial,
		Active:        true,
		EffectiveDate: effective,
		CreatedAt:     now,
	}
}

// MarkPassed transitions the employment's probation to "passed" and, when a
// Recalculator is wired, re-derives its active funding allocations against
// the post-probation salary in the same transaction.
func (s *Service) MarkPassed(ctx context.Context, employmentID hr.EmploymentID, effective time.Time, notes string) (*hr.ProbationRecord, error) {
	return s.transition(ctx, employmentID, hr.ProbationPassed, effective, notes)
}

// MarkExtension extends the probation period. Ledger-only: the allocation
// rows keep their probation-salary amounts.
func (s *Service) MarkExtension(ctx context.Context, employmentID hr.EmploymentID, effective time.Time, notes string) (*hr.ProbationRecord, error) {
	return s.transition(ctx, employmentID, hr.ProbationExtension, effective, notes)
}

// MarkFailed records a failed probation. Ledger-only: terminating the
// employment (which ends its allocations) is a separate operation.
func (s *Service) MarkFailed(ctx context.Context, employmentID hr.EmploymentID, effective time.Time, notes string) (*hr.ProbationRecord, error) {
	return s.transition(ctx, employmentID, hr.ProbationFailed, effective, notes)
}

// History returns the full probation ledger for an employment, plus the
// employment itself for context.
func (s *Service) History(ctx context.Context, employmentID hr.EmploymentID) (*hr.Employment, []hr.ProbationRecord, error) {
	emp, err := s.Store.GetEmployment(ctx, employmentID)
	if err != nil {
		return nil, nil, err
	}
	if emp == nil {
		return nil, nil, hr.ErrEmploymentNotFound
	}
	records, err := s.Store.ListProbationRecords(ctx, employmentID)
	if err != nil {
		return nil, nil, err
	}
	return emp, records, nil
}

func (s *Service) transition(ctx context.Context, employmentID hr.EmploymentID, event hr.ProbationEvent, effective time.Time, notes string) (*hr.ProbationRecord, error) {
	now := s.Now()
	if effective.IsZero() {
		effective = now
	}

	var created hr.ProbationRecord
	err := s.Store.WithTx(ctx, func(tx hr.Store) error {
		emp, err := tx.GetEmployment(ctx, employmentID)
		if err != nil {
			return err
		}
		if emp == nil {
			return hr.ErrEmploymentNotFound
		}

		active, err := tx.ActiveProbationRecord(ctx, employmentID)
		if err != nil {
			return err
		}
		if active == nil {
			return hr.ErrProbationRecordNotFound
		}
		if err := checkTransition(employmentID, active.Event, event); err != nil {
			return err
		}

		if err := tx.DeactivateProbationRecords(ctx, employmentID); err != nil {
			return err
		}
		created = hr.ProbationRecord{
			ID:            hr.ProbationRecordID(uuid.NewString()),
			EmploymentID:  employmentID,
			Event:         event,
			Active:        true,
			EffectiveDate: effective,
			Notes:         notes,
			CreatedAt:     now,
		}
		if err := tx.InsertProbationRecord(ctx, created); err != nil {
			return err
		}

		if event == hr.ProbationPassed && s.Recalc != nil {
			return s.Recalc.RecalculateIn(ctx, tx, employmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// checkTransition enforces the probation state machine.
func checkTransition(employmentID hr.EmploymentID, from, to hr.ProbationEvent) error {
	if !to.Valid() || to == hr.ProbationInitial {
		return &hr.TransitionError{EmploymentID: employmentID, From: from, To: to}
	}
	if from.Terminal() {
		return &hr.TransitionError{EmploymentID: employmentID, From: from, To: to}
	}
	return nil
}
