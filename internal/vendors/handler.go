package vendors

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

// Handler exposes the vendor registry over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers vendor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{code}", h.get)
	r.Patch("/{code}/contact", h.updateContact)
}

type vendorResponse struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	District         string `json:"district"`
	BusinessType     string `json:"businessType"`
	RegistrationYear int    `json:"registrationYear"`
	ContactPhone     string `json:"contactPhone,omitempty"`
	ContactEmail     string `json:"contactEmail,omitempty"`
}

func toVendorResponse(v Vendor) vendorResponse {
	return vendorResponse{
		Code:             v.Code,
		Name:             v.Name,
		District:         v.District,
		BusinessType:     v.BusinessType,
		RegistrationYear: v.RegistrationYear,
		ContactPhone:     v.ContactPhone,
		ContactEmail:     v.ContactEmail,
	}
}

type createVendorRequest struct {
	Name             string `json:"name" validate:"required"`
	District         string `json:"district" validate:"required"`
	BusinessType     string `json:"businessType" validate:"required"`
	RegistrationYear int    `json:"registrationYear" validate:"gte=0"`
	ContactPhone     string `json:"contactPhone"`
	ContactEmail     string `json:"contactEmail" validate:"omitempty,email"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createVendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error()))
		return
	}
	vendor, err := h.service.Create(r.Context(), CreateVendorInput{
		Name:             req.Name,
		District:         req.District,
		BusinessType:     req.BusinessType,
		RegistrationYear: req.RegistrationYear,
		ContactPhone:     req.ContactPhone,
		ContactEmail:     req.ContactEmail,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("vendor registered", slog.String("code", vendor.Code), slog.String("district", vendor.District))
	httpx.JSON(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vendorsList, err := h.service.List(r.Context(), r.URL.Query().Get("district"), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]vendorResponse, 0, len(vendorsList))
	for _, v := range vendorsList {
		out = append(out, toVendorResponse(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type updateContactRequest struct {
	ContactPhone *string `json:"contactPhone"`
	ContactEmail *string `json:"contactEmail" validate:"omitempty,email"`
}

func (h *Handler) updateContact(w http.ResponseWriter, r *http.Request) {
	var req updateContactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.ContactEmail != nil {
		if err := h.validator.Var(*req.ContactEmail, "omitempty,email"); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid contact email", shared.ErrValidation))
			return
		}
	}
	vendor, err := h.service.UpdateContact(r.Context(), chi.URLParam(r, "code"), ContactPatch{
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVendorResponse(vendor))
}
