package billing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gstledger/gstledger/internal/platform/httpx"
	"github.com/gstledger/gstledger/internal/shared"
)

// Handler exposes the reconciliation engine over HTTP. It renders
// stored derived values only; no formula lives in this layer.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds a Handler instance. The idempotency store may be
// nil (tests); close/confirm then skip duplicate-key screening.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validator: validator.New()}
}

// MountRoutes registers transaction and bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.createTransaction)
		r.Get("/", h.listTransactions)
		r.Get("/{id}", h.getTransaction)
		r.Patch("/{id}", h.editTransaction)
		r.Delete("/{id}", h.deleteTransaction)
		r.Post("/{id}/close", h.requestClose)
		r.Post("/{id}/confirm", h.confirmClose)
		r.Post("/{id}/bills", h.submitBill)
		r.Get("/{id}/bills", h.listBills)
	})
	r.Route("/bills", func(r chi.Router) {
		r.Patch("/{id}", h.editBill)
		r.Delete("/{id}", h.deleteBill)
	})
}

type transactionResponse struct {
	ID                int64   `json:"id"`
	VendorCode        string  `json:"vendorCode"`
	VendorName        string  `json:"vendorName"`
	District          string  `json:"district"`
	Month             string  `json:"month"`
	FinancialYear     string  `json:"financialYear"`
	ExpectedAmount    float64 `json:"expectedAmount"`
	AdvanceAmount     float64 `json:"advanceAmount"`
	GSTPercent        float64 `json:"gstPercent"`
	GSTAmount         float64 `json:"gstAmount"`
	GSTBalance        float64 `json:"gstBalance"`
	BillsReceived     float64 `json:"billsReceived"`
	RemainingExpected float64 `json:"remainingExpected"`
	ClosedByDistrict  bool    `json:"closedByDistrict"`
	ConfirmedByAdmin  bool    `json:"confirmedByAdmin"`
	Profit            float64 `json:"profit"`
	Status            string  `json:"status"`
}

func toTransactionResponse(t Transaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		VendorCode:        t.VendorCode,
		VendorName:        t.VendorName,
		District:          t.District,
		Month:             t.Month,
		FinancialYear:     t.FinancialYear,
		ExpectedAmount:    t.ExpectedAmount,
		AdvanceAmount:     t.AdvanceAmount,
		GSTPercent:        t.GSTPercent,
		GSTAmount:         t.GSTAmount,
		GSTBalance:        t.GSTBalance,
		BillsReceived:     t.BillsReceived,
		RemainingExpected: t.RemainingExpected,
		ClosedByDistrict:  t.ClosedByDistrict,
		ConfirmedByAdmin:  t.ConfirmedByAdmin,
		Profit:            t.Profit,
		Status:            string(t.Status),
	}
}

type billResponse struct {
	ID          int64   `json:"id"`
	TxnID       int64   `json:"txnId"`
	BillNumber  string  `json:"billNumber"`
	BillDate    string  `json:"billDate"`
	BillAmount  float64 `json:"billAmount"`
	GSTPercent  float64 `json:"gstPercent"`
	GSTAmount   float64 `json:"gstAmount"`
	TotalAmount float64 `json:"totalAmount"`
}

func toBillResponse(b Bill) billResponse {
	return billResponse{
		ID:          b.ID,
		TxnID:       b.TxnID,
		BillNumber:  b.BillNumber,
		BillDate:    b.BillDate.Format("2006-01-02"),
		BillAmount:  b.BillAmount,
		GSTPercent:  b.GSTPercent,
		GSTAmount:   b.GSTAmount,
		TotalAmount: b.TotalAmount,
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}

// guardIdempotency rejects duplicate submissions of close/confirm
// actions carrying an Idempotency-Key header.
func (h *Handler) guardIdempotency(r *http.Request, module string) error {
	if h.idempotency == nil {
		return nil
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return nil
	}
	return h.idempotency.CheckAndInsert(r.Context(), key, module)
}

type createTransactionRequest struct {
	VendorCode     string  `json:"vendorCode" validate:"required"`
	ExpectedAmount float64 `json:"expectedAmount" validate:"gt=0"`
	AdvanceAmount  float64 `json:"advanceAmount" validate:"gte=0"`
	GSTPercent     float64 `json:"gstPercent" validate:"gt=0"`
	Month          string  `json:"month" validate:"required"`
	FinancialYear  string  `json:"financialYear" validate:"required"`
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error()))
		return
	}
	txn, err := h.service.CreateTransaction(r.Context(), CreateTransactionInput{
		VendorCode:     req.VendorCode,
		ExpectedAmount: req.ExpectedAmount,
		AdvanceAmount:  req.AdvanceAmount,
		GSTPercent:     req.GSTPercent,
		Month:          req.Month,
		FinancialYear:  req.FinancialYear,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transaction created",
		slog.Int64("txn_id", txn.ID),
		slog.String("vendor", txn.VendorCode),
		slog.Float64("expected", txn.ExpectedAmount))
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	txns, err := h.service.ListTransactions(r.Context(), ListTransactionsRequest{
		District:   r.URL.Query().Get("district"),
		VendorCode: r.URL.Query().Get("vendor"),
		Status:     Status(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.GetTransactionWithBills(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bills := make([]billResponse, 0, len(detail.Bills))
	for _, b := range detail.Bills {
		bills = append(bills, toBillResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transaction": toTransactionResponse(detail.Transaction),
		"bills":       bills,
	})
}

type editTransactionRequest struct {
	ExpectedAmount *float64 `json:"expectedAmount"`
	AdvanceAmount  *float64 `json:"advanceAmount"`
	GSTPercent     *float64 `json:"gstPercent"`
	Month          *string  `json:"month"`
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req editTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	txn, err := h.service.EditTransaction(r.Context(), id, TransactionPatch{
		ExpectedAmount: req.ExpectedAmount,
		AdvanceAmount:  req.AdvanceAmount,
		GSTPercent:     req.GSTPercent,
		Month:          req.Month,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transaction deleted", slog.Int64("txn_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestClose(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.guardIdempotency(r, "district_close"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.RequestDistrictClose(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("district close requested", slog.Int64("txn_id", id))
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) confirmClose(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.guardIdempotency(r, "admin_confirm"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.ConfirmAdminClose(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("admin confirmed close",
		slog.Int64("txn_id", id),
		slog.Float64("profit", txn.Profit))
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

type submitBillRequest struct {
	BillNumber string  `json:"billNumber" validate:"required"`
	BillDate   string  `json:"billDate" validate:"required"`
	BillAmount float64 `json:"billAmount" validate:"gt=0"`
	GSTPercent float64 `json:"gstPercent" validate:"gt=0"`
}

func (h *Handler) submitBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req submitBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error()))
		return
	}
	billDate, err := time.Parse("2006-01-02", req.BillDate)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bill date must be YYYY-MM-DD", shared.ErrValidation))
		return
	}
	bill, err := h.service.SubmitBill(r.Context(), SubmitBillInput{
		TxnID:      id,
		BillNumber: req.BillNumber,
		BillDate:   billDate,
		BillAmount: req.BillAmount,
		GSTPercent: req.GSTPercent,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBillResponse(bill))
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bills, err := h.service.ListBills(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type editBillRequest struct {
	BillNumber *string  `json:"billNumber"`
	BillDate   *string  `json:"billDate"`
	BillAmount *float64 `json:"billAmount"`
	GSTPercent *float64 `json:"gstPercent"`
}

func (h *Handler) editBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req editBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	patch := BillPatch{
		BillNumber: req.BillNumber,
		BillAmount: req.BillAmount,
		GSTPercent: req.GSTPercent,
	}
	if req.BillDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.BillDate)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: bill date must be YYYY-MM-DD", shared.ErrValidation))
			return
		}
		patch.BillDate = &parsed
	}
	bill, err := h.service.EditBill(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill))
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteBill(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
