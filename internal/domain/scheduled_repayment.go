package domain

import (
	"time"

	"github.com/google/uuid"
)

type ScheduledRepaymentStatus string

const (
	ScheduledRepaymentStatusDue     ScheduledRepaymentStatus = "due"
	ScheduledRepaymentStatusPartial ScheduledRepaymentStatus = "partial"
	ScheduledRepaymentStatusRepaid  ScheduledRepaymentStatus = "repaid"
)

// ScheduledRepayment is one installment of a loan's repayment schedule.
type ScheduledRepayment struct {
	ID                uuid.UUID                `json:"id" db:"id"`
	LoanID            uuid.UUID                `json:"loan_id" db:"loan_id"`
	Sequence          int                      `json:"sequence" db:"sequence_no"`
	Amount            int64                    `json:"amount" db:"amount"`
	OutstandingAmount int64                    `json:"outstanding_amount" db:"outstanding_amount"`
	CurrencyCode      Currency                 `json:"currency_code" db:"currency_code"`
	DueDate           time.Time                `json:"due_date" db:"due_date"`
	Status            ScheduledRepaymentStatus `json:"status" db:"status"`
	CreatedAt         time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" db:"updated_at"`
}

// IsOpen reports whether the installment still takes part in allocation.
func (s *ScheduledRepayment) IsOpen() bool {
	return s.Status == ScheduledRepaymentStatusDue || s.Status == ScheduledRepaymentStatusPartial
}

// StatusForBalance derives the installment status from its balance.
func StatusForBalance(amount, outstanding int64) ScheduledRepaymentStatus {
	switch {
	case outstanding == 0:
		return ScheduledRepaymentStatusRepaid
	case outstanding < amount:
		return ScheduledRepaymentStatusPartial
	default:
		return ScheduledRepaymentStatusDue
	}
}

type ScheduledRepaymentView struct {
	*ScheduledRepayment
	AmountDisplay      string `json:"amount_display"`
	OutstandingDisplay string `json:"outstanding_display"`
}

type ScheduleResponse struct {
	LoanID   uuid.UUID                 `json:"loan_id"`
	Schedule []*ScheduledRepaymentView `json:"schedule"`
}
