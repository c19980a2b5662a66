package service

import (
	"time"

	customError "github.com/segyhp/repayment-engine/pkg/errors"
	"github.com/segyhp/repayment-engine/pkg/utils"
)

// ScheduleEntry is one generated installment before it is bound to a loan.
type ScheduleEntry struct {
	Sequence int
	Amount   int64
	DueDate  time.Time
}

// GenerateSchedule splits principal into terms monthly installments.
//
// Every installment gets principal/terms; the last one also takes the
// remainder, so the amounts always sum to principal. Installment i is due i
// calendar months after startDate (see utils.CalculateDueDate for month-end
// handling), which makes due dates strictly increasing.
func GenerateSchedule(principal int64, terms int, startDate time.Time) ([]ScheduleEntry, error) {
	if principal <= 0 {
		return nil, customError.WrapInvalidArgument("principal must be positive, got %d", principal)
	}
	if terms <= 0 {
		return nil, customError.WrapInvalidArgument("terms must be positive, got %d", terms)
	}
	if principal < int64(terms) {
		return nil, customError.WrapInvalidArgument("principal %d cannot be split into %d non-zero installments", principal, terms)
	}

	amounts := utils.SplitAmount(principal, terms)

	schedule := make([]ScheduleEntry, 0, terms)
	for i, amount := range amounts {
		schedule = append(schedule, ScheduleEntry{
			Sequence: i + 1,
			Amount:   amount,
			DueDate:  utils.CalculateDueDate(startDate, i+1),
		})
	}

	return schedule, nil
}
