package handler

import (
	"encoding/json"
	"net/http"

	"hallbook/internal/halls/service"
	httputil "hallbook/pkg/http"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type HallHandler struct {
	service service.HallService
	log     *logger.Logger
}

func NewHallHandler(service service.HallService, log *logger.Logger) *HallHandler {
	return &HallHandler{
		service: service,
		log:     log,
	}
}

func (h *HallHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var hall model.Hall
	if err := json.NewDecoder(r.Body).Decode(&hall); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &hall); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, hall); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *HallHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	halls, err := h.service.List(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, halls); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HallHandler) GetByName(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")

	hall, err := h.service.GetByName(r.Context(), name)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByName", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, hall); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByName", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HallHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/halls", h.Create)
	router.GET("/api/v1/halls", h.List)
	router.GET("/api/v1/halls/name/:name", h.GetByName)
}
