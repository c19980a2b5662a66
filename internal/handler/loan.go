package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/repayment-engine/internal/domain"
	"github.com/segyhp/repayment-engine/internal/middleware"
	customError "github.com/segyhp/repayment-engine/pkg/errors"
	"github.com/segyhp/repayment-engine/pkg/response"
	"github.com/segyhp/repayment-engine/pkg/utils"
)

// LoanService is the part of the service layer the HTTP handlers use.
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.ScheduledRepayment, error)
	RepayLoan(ctx context.Context, request *domain.RepayLoanRequest) (*domain.ReceivedRepayment, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduledRepayment, error)
	GetOutstanding(ctx context.Context, loanID uuid.UUID) (int64, error)
	ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*domain.ReceivedRepayment, error)
	IsDelinquent(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.DelinquencyReport, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	v := validator.New()
	if err := v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return domain.Currency(fl.Field().String()).IsSupported()
	}); err != nil {
		panic(fmt.Sprintf("handler: register currency validation: %v", err))
	}

	return &LoanHandler{
		service:   service,
		validator: v,
	}
}

// RegisterRoutes mounts the loan endpoints on r.
func (h *LoanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/outstanding", h.GetOutstanding).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/delinquent", h.IsDelinquent).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanId}/repayments", h.RepayLoan).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanId}/repayments", h.ListRepayments).Methods(http.MethodGet)
}

// CreateLoan handles POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var body domain.CreateLoanBody
	if !h.decode(w, r, &body) {
		return
	}

	processedAt, err := utils.ParseDate(body.ProcessedAt)
	if err != nil {
		response.BadRequest(w, "Invalid processed_at", err)
		return
	}

	loan, schedule, err := h.service.CreateLoan(r.Context(), &domain.CreateLoanRequest{
		UserID:       userID,
		Amount:       body.Amount,
		CurrencyCode: domain.Currency(body.CurrencyCode),
		Terms:        body.Terms,
		ProcessedAt:  processedAt,
	})
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Created(w, &domain.CreateLoanResponse{
		Loan:     loanView(loan),
		Schedule: scheduleView(loan.CurrencyCode, schedule),
	})
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	response.Success(w, loanView(loan))
}

// GetSchedule handles GET /loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), loan.ID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, &domain.ScheduleResponse{
		LoanID:   loan.ID,
		Schedule: scheduleView(loan.CurrencyCode, schedule),
	})
}

// GetOutstanding handles GET /loans/{loanId}/outstanding
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	outstanding, err := h.service.GetOutstanding(r.Context(), loan.ID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	status := domain.LoanStatusDue
	if outstanding == 0 {
		status = domain.LoanStatusRepaid
	}

	response.Success(w, &domain.OutstandingResponse{
		LoanID:             loan.ID,
		Outstanding:        outstanding,
		OutstandingDisplay: utils.FormatMajorUnits(outstanding, loan.CurrencyCode.MinorUnitExponent()),
		CurrencyCode:       loan.CurrencyCode,
		Status:             status,
	})
}

// IsDelinquent handles GET /loans/{loanId}/delinquent?as_of=YYYY-MM-DD
func (h *LoanHandler) IsDelinquent(w http.ResponseWriter, r *http.Request) {
	asOfParam := r.URL.Query().Get("as_of")
	if asOfParam == "" {
		response.BadRequest(w, "as_of is required", nil)
		return
	}
	asOf, err := utils.ParseDate(asOfParam)
	if err != nil {
		response.BadRequest(w, "Invalid as_of", err)
		return
	}

	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	report, err := h.service.IsDelinquent(r.Context(), loan.ID, asOf)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, report)
}

// RepayLoan handles POST /loans/{loanId}/repayments
func (h *LoanHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	var body domain.RepayLoanBody
	if !h.decode(w, r, &body) {
		return
	}

	receivedAt, err := utils.ParseDate(body.ReceivedAt)
	if err != nil {
		response.BadRequest(w, "Invalid received_at", err)
		return
	}

	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	repayment, err := h.service.RepayLoan(r.Context(), &domain.RepayLoanRequest{
		LoanID:       loan.ID,
		Amount:       body.Amount,
		CurrencyCode: domain.Currency(body.CurrencyCode),
		ReceivedAt:   receivedAt,
	})
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	updated, err := h.service.GetLoan(r.Context(), loan.ID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Created(w, &domain.RepaymentResponse{
		Repayment:     repayment,
		AmountDisplay: utils.FormatMajorUnits(repayment.Amount, repayment.CurrencyCode.MinorUnitExponent()),
		Loan:          loanView(updated),
	})
}

// ListRepayments handles GET /loans/{loanId}/repayments
func (h *LoanHandler) ListRepayments(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.authorizedLoan(w, r)
	if !ok {
		return
	}

	repayments, err := h.service.ListRepayments(r.Context(), loan.ID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, repayments)
}

// authorizedLoan loads the loan named in the path and checks that it belongs to
// the caller. On failure the response has already been written.
func (h *LoanHandler) authorizedLoan(w http.ResponseWriter, r *http.Request) (*domain.Loan, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return nil, false
	}

	loanID, err := uuid.Parse(mux.Vars(r)["loanId"])
	if err != nil {
		response.BadRequest(w, "Invalid loan ID", err)
		return nil, false
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		response.BusinessError(w, err)
		return nil, false
	}

	if loan.UserID != userID {
		response.BusinessError(w, customError.WrapForbidden(loanID.String()))
		return nil, false
	}

	return loan, true
}

func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, body interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(body); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(body); err != nil {
		response.BadRequest(w, "Validation failed: "+validationMessage(err), nil)
		return false
	}
	return true
}

// validationMessage condenses validator output to one clause per field.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func loanView(loan *domain.Loan) *domain.LoanView {
	exp := loan.CurrencyCode.MinorUnitExponent()
	return &domain.LoanView{
		Loan:               loan,
		AmountDisplay:      utils.FormatMajorUnits(loan.Amount, exp),
		OutstandingDisplay: utils.FormatMajorUnits(loan.OutstandingAmount, exp),
	}
}

func scheduleView(currency domain.Currency, schedule []*domain.ScheduledRepayment) []*domain.ScheduledRepaymentView {
	exp := currency.MinorUnitExponent()
	views := make([]*domain.ScheduledRepaymentView, 0, len(schedule))
	for _, s := range schedule {
		views = append(views, &domain.ScheduledRepaymentView{
			ScheduledRepayment: s,
			AmountDisplay:      utils.FormatMajorUnits(s.Amount, exp),
			OutstandingDisplay: utils.FormatMajorUnits(s.OutstandingAmount, exp),
		})
	}
	return views
}
