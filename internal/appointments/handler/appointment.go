package handler

import (
	"net/http"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/service"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	httputil "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/http"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/appointments", h.Book)
	router.GET("/appointments", h.list(service.ScopeOwn, "List"))
	router.GET("/appointments/seller", h.list(service.ScopeSeller, "ListSeller"))
	router.GET("/appointments/buyer", h.list(service.ScopeBuyer, "ListBuyer"))
	router.PATCH("/appointments/:id/status", h.UpdateStatus)
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "Book", apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Book", err)
		return
	}

	view, err := h.service.Book(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, r, "Book", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Book", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) list(scope service.Scope, name string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			h.writeError(w, r, name, apperrors.Unauthorized("Unauthorized"))
			return
		}

		views, err := h.service.List(r.Context(), principal, scope)
		if err != nil {
			h.writeError(w, r, name, err)
			return
		}

		if err := httputil.WriteSuccess(w, views); err != nil {
			h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
		}
	}
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "UpdateStatus", apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req model.StatusUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "UpdateStatus", err)
		return
	}

	view, err := h.service.UpdateStatus(r.Context(), principal, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, r, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.FromContext(r.Context()).Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
