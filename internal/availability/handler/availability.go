package handler

import (
	"net/http"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/service"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	httputil "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/http"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/availability", h.ListRules)
	router.POST("/availability", h.ReplaceRules)
	router.PUT("/availability", h.ReplaceRules)
	router.GET("/availability/:sellerId", h.GetSlots)
}

func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		h.writeError(w, r, "GetSlots", apperrors.Unauthorized("Unauthorized"))
		return
	}

	slots, err := h.service.GetSlots(r.Context(), ps.ByName("sellerId"), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, "GetSlots", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.SlotsResponse{Slots: slots}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "ListRules", apperrors.Unauthorized("Unauthorized"))
		return
	}

	rules, err := h.service.ListRules(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, "ListRules", err)
		return
	}

	if err := httputil.WriteSuccess(w, rules); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRules", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) ReplaceRules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "ReplaceRules", apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req model.AvailabilityReplaceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "ReplaceRules", err)
		return
	}

	if err := h.service.ReplaceRules(r.Context(), principal, &req); err != nil {
		h.writeError(w, r, "ReplaceRules", err)
		return
	}

	if err := httputil.WriteOK(w); err != nil {
		h.log.Error("failed to write success response", "handler", "ReplaceRules", "operation", "WriteOK", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.FromContext(r.Context()).Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
