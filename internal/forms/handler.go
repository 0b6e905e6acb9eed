package forms

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/formgate/formgate/internal/platform/httpx"
	"github.com/formgate/formgate/internal/rbac"
	"github.com/formgate/formgate/internal/shared"
)

// Handler wires the intake endpoints. Submission is public; review
// endpoints require the review capability, which senior roles reach
// through inheritance.
type Handler struct {
	logger           *slog.Logger
	service          *Service
	validator        *validator.Validate
	rbac             rbac.Middleware
	reviewCapability string
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, reviewCapability string) *Handler {
	return &Handler{
		logger:           logger,
		service:          service,
		validator:        validator.New(),
		rbac:             rbacMW,
		reviewCapability: reviewCapability,
	}
}

// MountRoutes registers intake routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/forms", h.submit)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCapability(h.reviewCapability))
		r.Get("/forms", h.list)
		r.Get("/forms/{reference}", h.get)
		r.Put("/forms/{reference}/status", h.updateStatus)
	})
}

type submitRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	Email   string          `json:"email" validate:"required,email"`
	Name    string          `json:"name" validate:"required,max=200"`
	Payload json.RawMessage `json:"payload"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing done"`
}

type submissionResponse struct {
	Reference string          `json:"reference"`
	Kind      string          `json:"kind"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type listSubmissionsResponse struct {
	Submissions []submissionResponse `json:"submissions"`
	Pagination  shared.Pagination    `json:"pagination"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	created, err := h.service.Submit(r.Context(), SubmitInput{
		Kind:    req.Kind,
		Email:   req.Email,
		Name:    req.Name,
		Payload: req.Payload,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSubmissionResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := ParseKind(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown form kind")
			return
		}
		filter.Kind = kind
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status")
			return
		}
		filter.Status = status
	}

	page, perPage := shared.PageFromRequest(r)
	subs, pagination, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]submissionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubmissionResponse(sub))
	}
	httpx.JSON(w, http.StatusOK, listSubmissionsResponse{Submissions: out, Pagination: pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSubmissionResponse(*sub))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sub, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "reference"), Status(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSubmissionResponse(*sub))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSubmissionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrUnknownStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("forms request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toSubmissionResponse(sub Submission) submissionResponse {
	return submissionResponse{
		Reference: sub.Reference,
		Kind:      string(sub.Kind),
		Email:     sub.Email,
		Name:      sub.Name,
		Payload:   sub.Payload,
		Status:    string(sub.Status),
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}
