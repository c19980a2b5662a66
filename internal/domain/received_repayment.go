package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReceivedRepayment is an append-only ledger entry for cash received against a loan.
type ReceivedRepayment struct {
	ID           uuid.UUID `json:"id" db:"id"`
	LoanID       uuid.UUID `json:"loan_id" db:"loan_id"`
	Amount       int64     `json:"amount" db:"amount"`
	CurrencyCode Currency  `json:"currency_code" db:"currency_code"`
	ReceivedAt   time.Time `json:"received_at" db:"received_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RepayLoanRequest is the service-level input for applying a repayment.
type RepayLoanRequest struct {
	LoanID       uuid.UUID
	Amount       int64
	CurrencyCode Currency
	ReceivedAt   time.Time
}

// RepayLoanBody is the HTTP body accepted by POST /loans/{loanId}/repayments.
type RepayLoanBody struct {
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	CurrencyCode string `json:"currency_code" validate:"required,currency"`
	ReceivedAt   string `json:"received_at" validate:"required,datetime=2006-01-02"`
}

type RepaymentResponse struct {
	Repayment     *ReceivedRepayment `json:"repayment"`
	AmountDisplay string             `json:"amount_display"`
	Loan          *LoanView          `json:"loan"`
}
