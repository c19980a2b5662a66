package domain

import (
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusDue    LoanStatus = "due"
	LoanStatusRepaid LoanStatus = "repaid"
)

// Loan represents a loan entity
type Loan struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Amount            int64      `json:"amount" db:"amount"`
	CurrencyCode      Currency   `json:"currency_code" db:"currency_code"`
	Terms             int        `json:"terms" db:"terms"`
	OutstandingAmount int64      `json:"outstanding_amount" db:"outstanding_amount"`
	Status            LoanStatus `json:"status" db:"status"`
	ProcessedAt       time.Time  `json:"processed_at" db:"processed_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRepaid reports whether nothing is left to pay on the loan.
func (l *Loan) IsRepaid() bool {
	return l.Status == LoanStatusRepaid
}

// DTOs for requests and responses

// CreateLoanRequest is the service-level input for creating a loan.
type CreateLoanRequest struct {
	UserID       string
	Amount       int64
	CurrencyCode Currency
	Terms        int
	ProcessedAt  time.Time
}

// CreateLoanBody is the HTTP body accepted by POST /loans.
type CreateLoanBody struct {
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	CurrencyCode string `json:"currency_code" validate:"required,currency"`
	Terms        int    `json:"terms" validate:"required,gt=0"`
	ProcessedAt  string `json:"processed_at" validate:"required,datetime=2006-01-02"`
}

type CreateLoanResponse struct {
	Loan     *LoanView                `json:"loan"`
	Schedule []*ScheduledRepaymentView `json:"schedule"`
}

// LoanView adds a major-unit rendering of the amounts for API consumers.
type LoanView struct {
	*Loan
	AmountDisplay      string `json:"amount_display"`
	OutstandingDisplay string `json:"outstanding_display"`
}

type OutstandingResponse struct {
	LoanID             uuid.UUID  `json:"loan_id"`
	Outstanding        int64      `json:"outstanding"`
	OutstandingDisplay string     `json:"outstanding_display"`
	CurrencyCode       Currency   `json:"currency_code"`
	Status             LoanStatus `json:"status"`
}

// DelinquencyReport summarises unpaid installments that fell due before AsOf.
type DelinquencyReport struct {
	LoanID             uuid.UUID `json:"loan_id"`
	AsOf               time.Time `json:"as_of"`
	IsDelinquent       bool      `json:"is_delinquent"`
	MissedInstallments int       `json:"missed_installments"`
	OverdueAmount      int64     `json:"overdue_amount"`
}
