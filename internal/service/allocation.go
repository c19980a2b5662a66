package service

import (
	"sort"

	"github.com/segyhp/repayment-engine/internal/domain"
	customError "github.com/segyhp/repayment-engine/pkg/errors"
)

// dustThreshold is the loan balance, in minor units, that is written off
// instead of being left open.
const dustThreshold = 1

// Allocation is the outcome of applying one repayment to a loan's schedule.
type Allocation struct {
	// Touched holds the installments whose balance changed, in allocation order.
	Touched     []*domain.ScheduledRepayment
	Outstanding int64
	Status      domain.LoanStatus
	Allocated   int64
	Unallocated int64
	WrittenOff  int64
}

// AllocateRepayment walks the open installments earliest-due first and settles
// as much of each as amount allows. The installments in schedule are updated in
// place. The loan itself is not modified; the new balance and status are
// returned in the Allocation for the caller to persist.
func AllocateRepayment(loan *domain.Loan, schedule []*domain.ScheduledRepayment, amount int64) (*Allocation, error) {
	if amount <= 0 {
		return nil, customError.WrapInvalidArgument("repayment amount must be positive, got %d", amount)
	}
	if err := CheckLedger(loan, schedule); err != nil {
		return nil, err
	}

	alloc := &Allocation{}
	touched := make(map[*domain.ScheduledRepayment]bool)

	remaining := amount
	for _, s := range openByDueDate(schedule) {
		if remaining <= 0 {
			break
		}

		if remaining >= s.OutstandingAmount {
			remaining -= s.OutstandingAmount
			s.OutstandingAmount = 0
		} else {
			s.OutstandingAmount -= remaining
			remaining = 0
		}
		s.Status = domain.StatusForBalance(s.Amount, s.OutstandingAmount)

		alloc.Touched = append(alloc.Touched, s)
		touched[s] = true
	}

	alloc.Allocated = amount - remaining
	alloc.Unallocated = remaining
	alloc.Outstanding = outstandingOf(schedule)

	if alloc.Outstanding == dustThreshold {
		for _, s := range schedule {
			if s.OutstandingAmount == 0 {
				continue
			}
			s.OutstandingAmount = 0
			s.Status = domain.ScheduledRepaymentStatusRepaid
			if !touched[s] {
				alloc.Touched = append(alloc.Touched, s)
			}
		}
		alloc.WrittenOff = dustThreshold
		alloc.Outstanding = 0
	}

	alloc.Status = loanStatusFor(alloc.Outstanding)

	return alloc, nil
}

// openByDueDate returns the installments still taking part in allocation,
// ordered by due date and then by schedule position.
func openByDueDate(schedule []*domain.ScheduledRepayment) []*domain.ScheduledRepayment {
	open := make([]*domain.ScheduledRepayment, 0, len(schedule))
	for _, s := range schedule {
		if s.IsOpen() {
			open = append(open, s)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].Sequence < open[j].Sequence
	})

	return open
}

// outstandingOf is the loan balance implied by its installments.
func outstandingOf(schedule []*domain.ScheduledRepayment) int64 {
	var outstanding int64
	for _, s := range schedule {
		outstanding += s.OutstandingAmount
	}
	return outstanding
}

func loanStatusFor(outstanding int64) domain.LoanStatus {
	if outstanding == 0 {
		return domain.LoanStatusRepaid
	}
	return domain.LoanStatusDue
}

// CheckLedger verifies that a loan and its schedule agree with each other:
// installment amounts add up to the principal, every installment's status
// matches its balance, and the loan's balance and status match the schedule.
func CheckLedger(loan *domain.Loan, schedule []*domain.ScheduledRepayment) error {
	if len(schedule) == 0 {
		return customError.WrapInvalidState("loan %s has no scheduled repayments", loan.ID)
	}

	var scheduled, outstanding int64
	for _, s := range schedule {
		if s.LoanID != loan.ID {
			return customError.WrapInvalidState("scheduled repayment %s belongs to loan %s, not %s", s.ID, s.LoanID, loan.ID)
		}
		if s.Amount <= 0 || s.OutstandingAmount < 0 || s.OutstandingAmount > s.Amount {
			return customError.WrapInvalidState("scheduled repayment %s has outstanding %d of amount %d", s.ID, s.OutstandingAmount, s.Amount)
		}
		if want := domain.StatusForBalance(s.Amount, s.OutstandingAmount); s.Status != want {
			return customError.WrapInvalidState("scheduled repayment %s is %s but its balance implies %s", s.ID, s.Status, want)
		}

		scheduled += s.Amount
		outstanding += s.OutstandingAmount
	}

	bySequence := make([]*domain.ScheduledRepayment, len(schedule))
	copy(bySequence, schedule)
	sort.Slice(bySequence, func(i, j int) bool { return bySequence[i].Sequence < bySequence[j].Sequence })
	for i, s := range bySequence {
		if s.Sequence != i+1 {
			return customError.WrapInvalidState("loan %s schedule has sequence %d at position %d", loan.ID, s.Sequence, i+1)
		}
		if i > 0 && !s.DueDate.After(bySequence[i-1].DueDate) {
			return customError.WrapInvalidState("scheduled repayment %s is not due after its predecessor", s.ID)
		}
	}

	if scheduled != loan.Amount {
		return customError.WrapInvalidState("loan %s schedules %d against principal %d", loan.ID, scheduled, loan.Amount)
	}
	if outstanding != loan.OutstandingAmount {
		return customError.WrapInvalidState("loan %s records outstanding %d but its schedule holds %d", loan.ID, loan.OutstandingAmount, outstanding)
	}
	if want := loanStatusFor(loan.OutstandingAmount); loan.Status != want {
		return customError.WrapInvalidState("loan %s is %s but its balance implies %s", loan.ID, loan.Status, want)
	}

	return nil
}
