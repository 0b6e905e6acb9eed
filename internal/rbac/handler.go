package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/formgate/formgate/internal/platform/httpx"
	"github.com/formgate/formgate/internal/shared"
)

// Handler exposes the role management HTTP surface. Authorization lives
// in the engine; the handler only resolves the actor from the session and
// maps engine errors onto HTTP statuses.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/roles/manageable", h.manageableRoles)
	r.Post("/roles", h.createRole)
	r.Put("/roles/{code}", h.updateRole)
	r.Delete("/roles/{code}", h.deleteRole)
	r.Post("/users/{email}/roles", h.assignRole)
	r.Delete("/users/{email}/roles", h.removeRole)
	r.Put("/users/{email}/roles", h.bulkSetRoles)
}

type roleResponse struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Level       int    `json:"level"`
	ParentCode  string `json:"parent_code,omitempty"`
	Color       string `json:"color,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type roleNodeResponse struct {
	roleResponse
	Children []roleNodeResponse `json:"children"`
}

func toRoleResponse(r Role) roleResponse {
	return roleResponse{
		Code:        r.Code,
		DisplayName: r.DisplayName,
		Description: r.Description,
		Level:       r.Level,
		ParentCode:  r.ParentCode,
		Color:       r.Color,
		Icon:        r.Icon,
	}
}

func toRoleResponses(roles []Role) []roleResponse {
	out := make([]roleResponse, len(roles))
	for i, r := range roles {
		out[i] = toRoleResponse(r)
	}
	return out
}

func toNodeResponses(nodes []*RoleNode) []roleNodeResponse {
	out := make([]roleNodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = roleNodeResponse{
			roleResponse: toRoleResponse(n.Role),
			Children:     toNodeResponses(n.Children),
		}
	}
	return out
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	decision, err := h.service.Authorize(r.Context(), actor, Capability(h.service.RootCode()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !decision.Allowed {
		h.respondError(w, r, denied(decision.Reason))
		return
	}
	roles, err := h.service.ListActive(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	tree, err := h.service.RoleHierarchyTree(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles": toRoleResponses(roles),
		"tree":  toNodeResponses(tree),
	})
}

func (h *Handler) manageableRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	roles, err := h.service.ManageableRolesFor(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": toRoleResponses(roles)})
}

type createRoleRequest struct {
	Code        string `json:"code" validate:"required,min=2,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=255"`
	ParentCode  string `json:"parent_code"`
	Level       *int   `json:"level"`
	Color       string `json:"color" validate:"max=32"`
	Icon        string `json:"icon" validate:"max=64"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), actor, CreateRoleInput{
		Code:        req.Code,
		DisplayName: req.DisplayName,
		Description: req.Description,
		ParentCode:  req.ParentCode,
		Level:       req.Level,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Level       *int    `json:"level"`
	ParentCode  *string `json:"parent_code"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actor, chi.URLParam(r, "code"), RolePatch{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Level:       req.Level,
		ParentCode:  req.ParentCode,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actor, chi.URLParam(r, "code")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	RoleCode string `json:"role_code" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignment(w, r, h.service.AssignRole)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignment(w, r, h.service.RemoveRole)
}

func (h *Handler) mutateAssignment(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor User, email, code string) error) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := op(r.Context(), actor, chi.URLParam(r, "email"), req.RoleCode); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkSetRolesRequest struct {
	RoleCodes []string `json:"role_codes"`
}

func (h *Handler) bulkSetRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req bulkSetRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return
	}
	if err := h.service.BulkSetRoles(r.Context(), actor, chi.URLParam(r, "email"), req.RoleCodes); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actor resolves the authenticated user from the session. A missing or
// unparsable session yields 401 and a false return.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (User, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return User{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return User{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.logger.Error("parse session user id", slog.String("value", raw))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return User{}, false
	}
	actor, err := h.service.ResolveActor(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return User{}, false
	}
	return *actor, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var deniedErr *AuthorizationDeniedError
	switch {
	case errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrParentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrNotAssigned),
		errors.Is(err, ErrRoleInUse), errors.Is(err, ErrRoleHasChildren):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &deniedErr):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", deniedErr.Reason)
	case errors.Is(err, ErrInvalidHierarchy):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Hierarchy", err.Error())
	default:
		h.logger.Error("rbac request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
