package wallet

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gstledger/gstledger/internal/platform/httpx"
	"github.com/gstledger/gstledger/internal/shared"
)

// Handler exposes the wallet over HTTP. Reads return stored values
// only; no balance is ever derived in this layer.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers wallet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.getBalance)
	r.Put("/balance", h.setBalance)
	r.Get("/entries", h.listEntries)
	r.Post("/entries", h.manualEntry)
	r.Get("/orphans", h.listOrphans)
	r.Get("/verify", h.verify)
}

type entryResponse struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	TxnID       *int64  `json:"txnId,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Balance     float64 `json:"balance"`
	Type        string  `json:"type"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		TxnID:       e.TxnID,
		Debit:       e.Debit,
		Credit:      e.Credit,
		Balance:     e.Balance,
		Type:        string(e.Type),
	}
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.CurrentBalance(r.Context())
	if err != nil {
		h.logger.Error("wallet balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

type setBalanceRequest struct {
	Target float64 `json:"target"`
}

func (h *Handler) setBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	entry, err := h.service.SetBalance(r.Context(), req.Target)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if entry == nil {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(*entry))
}

type manualEntryRequest struct {
	Description string  `json:"description" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

func (h *Handler) manualEntry(w http.ResponseWriter, r *http.Request) {
	var req manualEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error()))
		return
	}
	entry, err := h.service.ManualEntry(r.Context(), req.Description, req.Debit, req.Credit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	entries, err := h.service.Entries(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listOrphans(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Orphaned(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Verify(r.Context()); err != nil {
		h.logger.Error("ledger replay mismatch", slog.Any("error", err))
		httpx.Problem(w, http.StatusConflict, "Ledger Mismatch", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
