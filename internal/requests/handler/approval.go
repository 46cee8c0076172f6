package handler

import (
	"net/http"

	"hallbook/internal/requests/service"
	httputil "hallbook/pkg/http"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// ApprovalHandler serves the action links embedded in notifications. The
// endpoints are GET so they work from any mail or SMS client, answer in
// plain text, and authenticate by token alone.
type ApprovalHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewApprovalHandler(service service.BookingService, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service: service,
		log:     log,
	}
}

func (h *ApprovalHandler) action(decision model.Decision, success string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := ps.ByName("token")

		updated, err := h.service.DecideByToken(r.Context(), token, decision)
		if err != nil {
			if writeErr := httputil.WriteTextError(w, err); writeErr != nil {
				h.log.Error("failed to write text error response", "handler", "action", "decision", decision, "error", writeErr)
			}
			return
		}

		h.log.Info("Action link processed", "decision", decision, "request_id", updated.ID)
		if err := httputil.WriteText(w, http.StatusOK, success); err != nil {
			h.log.Error("failed to write text response", "handler", "action", "decision", decision, "error", err)
		}
	}
}

func (h *ApprovalHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/approval/approve/:token", h.action(model.DecisionApprove, "Booking approved successfully"))
	router.GET("/approval/reject/:token", h.action(model.DecisionReject, "Booking request rejected"))
	router.GET("/approval/vacate/:token", h.action(model.DecisionVacate, "Booking vacated successfully"))
	router.GET("/approval/leave/:token", h.action(model.DecisionLeave, "Booking left in place"))
}
