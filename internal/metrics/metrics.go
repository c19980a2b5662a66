package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoansCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "loans_created_total",
		Help:      "Loans created, by currency.",
	}, []string{"currency"})

	RepaymentsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "repayments_received_total",
		Help:      "Repayments recorded in the ledger, by currency.",
	}, []string{"currency"})

	RepaymentAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "repayment_amount_minor_units_total",
		Help:      "Sum of repayment amounts in minor units, by currency.",
	}, []string{"currency"})

	UnallocatedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "unallocated_amount_minor_units_total",
		Help:      "Repayment amounts left over after every installment was settled.",
	}, []string{"currency"})

	LoansRepaid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "loans_repaid_total",
		Help:      "Loans that moved to repaid.",
	})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repayment_engine",
		Name:      "operation_duration_seconds",
		Help:      "Duration of service operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repayment_engine",
		Name:      "audit_failures_total",
		Help:      "Loans whose stored state failed the ledger audit.",
	})
)

// Outcome labels an operation result for OperationDuration.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
