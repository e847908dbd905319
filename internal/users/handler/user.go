package handler

import (
	"net/http"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/service"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	httputil "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/http"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/sellers", h.ListSellers)
	router.POST("/user/role", h.SetRole)
	router.PUT("/user/role", h.SetRole)
}

func (h *UserHandler) ListSellers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		h.writeError(w, r, "ListSellers", apperrors.Unauthorized("Unauthorized"))
		return
	}

	sellers, err := h.service.ListSellers(r.Context())
	if err != nil {
		h.writeError(w, r, "ListSellers", err)
		return
	}

	if err := httputil.WriteSuccess(w, sellers); err != nil {
		h.log.Error("failed to write success response", "handler", "ListSellers", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "SetRole", apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req model.RoleUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "SetRole", err)
		return
	}

	if err := h.service.SetRole(r.Context(), principal.ID, req.Role); err != nil {
		h.writeError(w, r, "SetRole", err)
		return
	}

	if err := httputil.WriteOK(w); err != nil {
		h.log.Error("failed to write success response", "handler", "SetRole", "operation", "WriteOK", "error", err)
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.FromContext(r.Context()).Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
